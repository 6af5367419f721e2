package platform

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/kkdl-dev/kkdl/internal/domain"
)

// stallReader cancels the underlying request when no bytes arrive for the stall duration.
type stallReader struct {
	rc      io.ReadCloser
	stall   time.Duration
	timer   *time.Timer
	cancel  context.CancelFunc
	stalled atomic.Bool
}

func newStallReader(rc io.ReadCloser, stall time.Duration, cancel context.CancelFunc) *stallReader {
	r := &stallReader{rc: rc, stall: stall, cancel: cancel}
	r.timer = time.AfterFunc(stall, func() {
		r.stalled.Store(true)
		cancel()
	})
	return r
}

func (r *stallReader) Read(p []byte) (int, error) {
	n, err := r.rc.Read(p)
	if err != nil && err != io.EOF && r.stalled.Load() {
		return n, fmt.Errorf("%w: no data received for %s", domain.ErrTransient, r.stall)
	}
	if n > 0 {
		r.timer.Reset(r.stall)
	}
	return n, err
}

func (r *stallReader) Close() error {
	r.timer.Stop()
	err := r.rc.Close()
	r.cancel()
	return err
}
