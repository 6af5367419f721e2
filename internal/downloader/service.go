package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/segmentio/ksuid"

	"github.com/kkdl-dev/kkdl/internal/domain"
	"github.com/kkdl-dev/kkdl/internal/infra/logger"
)

// attemptCeilingFactor bounds total attempts per lecture to this multiple of the duplicate threshold.
const attemptCeilingFactor = 4

var (
	// ErrDuplicateLimit is recorded when a lecture keeps resolving to non-progressing downloads.
	ErrDuplicateLimit = errors.New("duplicate download limit reached")
	// ErrAttemptLimit is recorded when a lecture exhausts its total attempt budget.
	ErrAttemptLimit = errors.New("attempt limit reached")

	errEmptyVideo = errors.New("empty video response")
)

// Platform is what the download loop needs from the metadata client.
type Platform interface {
	ResolveLecture(ctx context.Context, course *domain.Course, lecture domain.Lecture, q domain.Quality) (string, error)
	OpenVideo(ctx context.Context, rawURL string) (io.ReadCloser, int64, error)
}

type Options struct {
	OutputDir         string
	Quality           domain.Quality
	MaxDuplicateCount int
	// Progress receives a live status line per lecture. Nil disables it.
	Progress io.Writer
}

type Service struct {
	platform Platform
	log      *logger.Logger
	opts     Options
	writer   *FileWriter
}

func NewService(p Platform, log *logger.Logger, opts Options) *Service {
	if opts.MaxDuplicateCount <= 0 {
		opts.MaxDuplicateCount = 3
	}
	return &Service{platform: p, log: log, opts: opts, writer: NewFileWriter()}
}

// session is the per-invocation download state. It is never persisted.
type session struct {
	runID      string
	duplicates map[string]int
}

type FailedLecture struct {
	Chapter string
	Lecture domain.Lecture
	Path    string
	Err     error
}

// Report summarises one course run. Failures are reported here and in the log, never as an error.
type Report struct {
	RunID      string
	Course     string
	Downloaded int
	Skipped    int
	Bytes      int64
	Failed     []FailedLecture
}

// DownloadCourse materialises every lecture of course under the output dir, one at a time.
// It only returns an error when nothing further can succeed: bad credentials, a cancelled
// context or an unwritable output directory.
func (s *Service) DownloadCourse(ctx context.Context, course *domain.Course) (*Report, error) {
	sess := &session{runID: ksuid.New().String(), duplicates: make(map[string]int)}
	report := &Report{RunID: sess.runID, Course: course.Title}

	s.log.Info("[%s] Starting %q (%d chapters, %d lectures) at %s into %s",
		sess.runID, course.Title, len(course.Chapters), course.LectureCount(), s.opts.Quality, s.opts.OutputDir)

	for i, ch := range course.Chapters {
		chapterDir := filepath.Join(s.opts.OutputDir, course.DirName(), course.ChapterDirName(i))
		if err := s.writer.MkdirAll(chapterDir); err != nil {
			return report, err
		}

		for j, lecture := range ch.Lectures {
			target := course.LecturePath(s.opts.OutputDir, i, j)

			if s.writer.Exists(target) {
				s.log.Info("Skipping: %s (already downloaded)", filepath.Base(target))
				report.Skipped++
				continue
			}

			n, err := s.downloadLecture(ctx, sess, course, lecture, target)
			if err == nil {
				report.Downloaded++
				report.Bytes += n
				s.log.Info("Completed: %s (%s)", filepath.Base(target), humanize.Bytes(uint64(n)))
				continue
			}

			if errors.Is(err, domain.ErrAuth) || ctx.Err() != nil {
				return report, err
			}

			s.log.Error("[%s] Lecture %q failed: %v", sess.runID, lecture.Title, err)
			report.Failed = append(report.Failed, FailedLecture{Chapter: ch.Title, Lecture: lecture, Path: target, Err: err})
		}
	}

	s.log.Info("[%s] Finished %q: %d downloaded (%s), %d skipped, %d failed",
		sess.runID, course.Title, report.Downloaded, humanize.Bytes(uint64(report.Bytes)), report.Skipped, len(report.Failed))

	return report, nil
}

// downloadLecture retries until a complete file lands on disk or the duplicate guard trips.
// An attempt that wrote nothing, or that got the same URL as the previous attempt without
// writing more bytes, increments the lecture's duplicate counter; any progress resets it.
// A failed first attempt always counts, so a link that never changes is abandoned after
// exactly MaxDuplicateCount attempts.
func (s *Service) downloadLecture(ctx context.Context, sess *session, course *domain.Course, lecture domain.Lecture, target string) (int64, error) {
	limit := s.opts.MaxDuplicateCount
	ceiling := limit * attemptCeilingFactor

	var (
		lastURL     string
		lastWritten int64
	)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		videoURL, err := s.platform.ResolveLecture(ctx, course, lecture, s.opts.Quality)

		var written int64
		if err == nil {
			written, err = s.fetch(ctx, videoURL, target, filepath.Base(target))
			if err == nil {
				sess.duplicates[lecture.ID] = 0
				return written, nil
			}
		}

		if errors.Is(err, domain.ErrAuth) || errors.Is(err, domain.ErrNotFound) || ctx.Err() != nil {
			return 0, err
		}

		// The first attempt is the baseline: it can only count as a duplicate.
		progressed := attempt > 1 && written > 0 && (videoURL != lastURL || written > lastWritten)
		if progressed {
			sess.duplicates[lecture.ID] = 0
		} else {
			sess.duplicates[lecture.ID]++
		}
		count := sess.duplicates[lecture.ID]

		s.log.Warn("[%s] %q attempt %d: %v (duplicate count %d/%d)", sess.runID, lecture.Title, attempt, err, count, limit)

		if count >= limit {
			return 0, fmt.Errorf("%w after %d attempts: %v", ErrDuplicateLimit, attempt, err)
		}
		if attempt >= ceiling {
			return 0, fmt.Errorf("%w (%d): %v", ErrAttemptLimit, attempt, err)
		}

		lastURL, lastWritten = videoURL, written
	}
}

// fetch streams videoURL into the .part file and renames it into place when complete.
func (s *Service) fetch(ctx context.Context, videoURL, target, name string) (int64, error) {
	body, size, err := s.platform.OpenVideo(ctx, videoURL)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	f, err := s.writer.Open(target)
	if err != nil {
		return 0, err
	}

	var dst io.Writer = f
	var bar *progress
	if s.opts.Progress != nil {
		bar = newProgress(s.opts.Progress, name, size)
		dst = io.MultiWriter(f, bar)
	}

	n, err := io.Copy(dst, body)
	if bar != nil {
		bar.Done()
	}

	switch {
	case err != nil:
		s.writer.Abort(f)
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		return n, fmt.Errorf("%w: streaming video: %v", domain.ErrTransient, err)
	case n == 0:
		s.writer.Abort(f)
		return 0, fmt.Errorf("%w: %w", domain.ErrTransient, errEmptyVideo)
	case size >= 0 && n != size:
		s.writer.Abort(f)
		return n, fmt.Errorf("%w: got %d of %d bytes", domain.ErrTransient, n, size)
	}

	if err := s.writer.Finalize(f, target, n); err != nil {
		s.writer.Abort(f)
		return n, err
	}
	return n, nil
}
