package downloader

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const progressInterval = 500 * time.Millisecond

// progress counts bytes flowing through it and redraws a single status line on out.
type progress struct {
	out     io.Writer
	name    string
	total   int64
	current int64

	startedAt  time.Time
	lastRender time.Time
	now        func() time.Time
}

func newProgress(out io.Writer, name string, total int64) *progress {
	p := &progress{out: out, name: name, total: total, now: time.Now}
	p.startedAt = p.now()
	return p
}

func (p *progress) Write(b []byte) (int, error) {
	p.current += int64(len(b))

	if now := p.now(); now.Sub(p.lastRender) >= progressInterval {
		p.lastRender = now
		p.render(false)
	}
	return len(b), nil
}

// Done draws the final line and terminates it.
func (p *progress) Done() {
	p.render(true)
	fmt.Fprintln(p.out)
}

func (p *progress) render(final bool) {
	elapsed := p.now().Sub(p.startedAt)

	seconds := elapsed.Seconds()
	// Guard against division by zero or sub-millisecond durations
	if seconds < 0.1 {
		seconds = 0.1
	}
	avgBytesPerSec := float64(p.current) / seconds

	if p.total <= 0 {
		fmt.Fprintf(p.out, "\r%s | %s/s | %s      ",
			humanize.Bytes(uint64(p.current)), humanize.Bytes(uint64(avgBytesPerSec)), p.name)
		return
	}

	percent := float64(p.current) / float64(p.total) * 100
	if percent > 100 {
		percent = 100
	}

	timeLabel, timeStr := "ETA", "calc..."
	if final {
		timeLabel, timeStr = "Time", elapsed.Truncate(time.Second).String()
	} else if avgBytesPerSec > 0 {
		remaining := float64(p.total-p.current) / avgBytesPerSec
		timeStr = (time.Duration(remaining) * time.Second).String()
	}

	// Progress Bar go brrr [====>   ]
	const barWidth = 20
	completedWidth := int(percent / 100 * barWidth)
	bar := strings.Repeat("=", completedWidth)
	if completedWidth < barWidth {
		bar += ">" + strings.Repeat(" ", barWidth-completedWidth-1)
	}

	fmt.Fprintf(p.out, "\r[%s] %5.1f%% | %s/s | %s: %-7s | %s/%s | %s      ",
		bar, percent, humanize.Bytes(uint64(avgBytesPerSec)), timeLabel, timeStr,
		humanize.Bytes(uint64(p.current)), humanize.Bytes(uint64(p.total)), p.name)
}
