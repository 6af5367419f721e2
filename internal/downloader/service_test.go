package downloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/kkdl-dev/kkdl/internal/domain"
	"github.com/kkdl-dev/kkdl/internal/infra/logger"
	"github.com/kkdl-dev/kkdl/internal/platform"
	"github.com/kkdl-dev/kkdl/internal/platform/platformtest"
)

func setup(t *testing.T, course platformtest.Course) (*platformtest.Server, *platform.Client, *domain.Course) {
	t.Helper()

	srv := platformtest.New([]platformtest.Course{course}, nil)
	t.Cleanup(srv.Close)
	srv.Token = "tok"

	session, err := platform.NewSession(platform.Credentials{Token: "tok"}, "kkdl-test", srv.URL+"/")
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	client := platform.New(session, platform.Options{BaseURL: srv.APIURL(), QuizURL: srv.QuizURL()}, logger.Discard())

	c, err := client.Course(context.Background(), course.Slug)
	if err != nil {
		t.Fatalf("Failed to load course: %v", err)
	}
	return srv, client, c
}

func newService(p Platform, dir string, maxDup int) *Service {
	return NewService(p, logger.Discard(), Options{
		OutputDir:         dir,
		Quality:           domain.Quality720p,
		MaxDuplicateCount: maxDup,
	})
}

func TestDownloadCourseWritesOrderedTree(t *testing.T) {
	srv, client, course := setup(t, platformtest.SampleCourse())
	dir := t.TempDir()

	report, err := newService(client, dir, 3).DownloadCourse(context.Background(), course)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if report.Downloaded != 5 || len(report.Failed) != 0 {
		t.Fatalf("Unexpected report: %+v", report)
	}
	if report.RunID == "" {
		t.Error("Expected a run ID")
	}
	if srv.Hits("quality:720p") != 5 {
		t.Errorf("Expected 5 downloads at 720p, got %d", srv.Hits("quality:720p"))
	}

	root := filepath.Join(dir, "Docker Basics")
	chapters, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("Failed to read course dir: %v", err)
	}

	var chapterNames []string
	for _, c := range chapters {
		if c.IsDir() {
			chapterNames = append(chapterNames, c.Name())
		}
	}
	wantChapters := []string{"01 - Introduction", "02 - Images & Layers"}
	if fmt.Sprint(chapterNames) != fmt.Sprint(wantChapters) {
		t.Errorf("Expected chapters %v, got %v", wantChapters, chapterNames)
	}

	var files []string
	filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			rel, _ := filepath.Rel(root, path)
			files = append(files, rel)
		}
		return nil
	})
	sort.Strings(files)

	want := []string{
		filepath.Join("01 - Introduction", "01 - Welcome.mp4"),
		filepath.Join("01 - Introduction", "02 - What is a container_.mp4"),
		filepath.Join("02 - Images & Layers", "01 - Layers.mp4"),
		filepath.Join("02 - Images & Layers", "02 - Build cache.mp4"),
		filepath.Join("02 - Images & Layers", "03 - Multi-stage builds.mp4"),
	}
	if fmt.Sprint(files) != fmt.Sprint(want) {
		t.Errorf("Expected files %v, got %v", want, files)
	}

	data, _ := os.ReadFile(filepath.Join(root, want[3]))
	if string(data) != "mp4-bytes-of-l4" {
		t.Errorf("Unexpected file content %q", data)
	}
}

func TestDownloadCourseIsIdempotent(t *testing.T) {
	srv, client, course := setup(t, platformtest.SampleCourse())
	dir := t.TempDir()
	svc := newService(client, dir, 3)

	if _, err := svc.DownloadCourse(context.Background(), course); err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	before := srv.Hits("quality:720p")

	report, err := svc.DownloadCourse(context.Background(), course)
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	if report.Skipped != 5 || report.Downloaded != 0 {
		t.Errorf("Expected all lectures skipped, got %+v", report)
	}
	if srv.Hits("quality:720p") != before {
		t.Errorf("Expected no refetch, got %d extra video requests", srv.Hits("quality:720p")-before)
	}
}

func TestLeftoverPartFileIsNotTreatedAsComplete(t *testing.T) {
	srv, client, course := setup(t, platformtest.SampleCourse())
	dir := t.TempDir()

	target := course.LecturePath(dir, 0, 0)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(target+".part", []byte("trunc"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := newService(client, dir, 3).DownloadCourse(context.Background(), course); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if srv.Hits("video:l1") != 1 {
		t.Errorf("Expected lecture with stale .part to be downloaded, got %d requests", srv.Hits("video:l1"))
	}
	data, _ := os.ReadFile(target)
	if string(data) != "mp4-bytes-of-l1" {
		t.Errorf("Unexpected content %q", data)
	}
	if _, err := os.Stat(target + ".part"); !os.IsNotExist(err) {
		t.Error("Expected .part file to be gone")
	}
}

func TestDuplicateGuardAbandonsLecture(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*platformtest.Lesson)
	}{
		{"same url empty body", func(l *platformtest.Lesson) { l.Static, l.Empty = true, true }},
		{"server errors", func(l *platformtest.Lesson) { l.Fail = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixture := platformtest.SampleCourse()
			tt.mutate(&fixture.Modules[0].Lessons[1])

			srv, client, course := setup(t, fixture)
			dir := t.TempDir()

			report, err := newService(client, dir, 4).DownloadCourse(context.Background(), course)
			if err != nil {
				t.Fatalf("Expected per-lecture failure not to abort, got %v", err)
			}

			if got := srv.Hits("video:l2"); got != 4 {
				t.Errorf("Expected exactly 4 attempts, got %d", got)
			}
			if len(report.Failed) != 1 || report.Failed[0].Lecture.ID != "l2" {
				t.Fatalf("Expected l2 recorded as failed, got %+v", report.Failed)
			}
			if !errors.Is(report.Failed[0].Err, ErrDuplicateLimit) {
				t.Errorf("Expected ErrDuplicateLimit, got %v", report.Failed[0].Err)
			}
			if report.Downloaded != 4 {
				t.Errorf("Expected remaining 4 lectures downloaded, got %d", report.Downloaded)
			}
			if _, err := os.Stat(report.Failed[0].Path); !os.IsNotExist(err) {
				t.Error("Expected no file for the abandoned lecture")
			}
		})
	}
}

func TestNotFoundLectureIsSkippedWithoutRetry(t *testing.T) {
	fixture := platformtest.SampleCourse()
	fixture.Modules[1].Lessons[0].Missing = true

	srv, client, course := setup(t, fixture)

	report, err := newService(client, t.TempDir(), 3).DownloadCourse(context.Background(), course)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if srv.Hits("lesson:l3") != 1 {
		t.Errorf("Expected a single resolution attempt, got %d", srv.Hits("lesson:l3"))
	}
	if len(report.Failed) != 1 || !errors.Is(report.Failed[0].Err, domain.ErrNotFound) {
		t.Errorf("Expected one ErrNotFound failure, got %+v", report.Failed)
	}
}

func TestExpiredVideoURLSkipsOnlyThatLecture(t *testing.T) {
	fixture := platformtest.SampleCourse()
	fixture.Modules[0].Lessons[0].Forbidden = true

	srv, client, course := setup(t, fixture)

	report, err := newService(client, t.TempDir(), 3).DownloadCourse(context.Background(), course)
	if err != nil {
		t.Fatalf("Expected a 403 on the video to stay a lecture failure, got %v", err)
	}

	if got := srv.Hits("video:l1"); got != 3 {
		t.Errorf("Expected 3 attempts with fresh URLs, got %d", got)
	}
	if srv.Hits("resolve:l1") != 3 {
		t.Errorf("Expected a resolution per attempt, got %d", srv.Hits("resolve:l1"))
	}
	if report.Downloaded != 4 {
		t.Errorf("Expected the other 4 lectures downloaded, got %d", report.Downloaded)
	}
	if len(report.Failed) != 1 || report.Failed[0].Lecture.ID != "l1" || !errors.Is(report.Failed[0].Err, ErrDuplicateLimit) {
		t.Errorf("Expected l1 abandoned by the duplicate guard, got %+v", report.Failed)
	}
}

func TestAuthFailureAbortsRun(t *testing.T) {
	srv, client, course := setup(t, platformtest.SampleCourse())
	srv.Token = "rotated"

	report, err := newService(client, t.TempDir(), 3).DownloadCourse(context.Background(), course)
	if !errors.Is(err, domain.ErrAuth) {
		t.Fatalf("Expected ErrAuth, got %v", err)
	}
	if report.Downloaded != 0 {
		t.Errorf("Expected nothing downloaded, got %d", report.Downloaded)
	}
	if srv.Hits("lesson:l2") != 0 {
		t.Error("Expected run to stop at the first lecture")
	}
}

// scripted serves pre-programmed attempts in order.
type scripted struct {
	attempts []attempt
	calls    int
}

type attempt struct {
	url      string
	body     string
	declared int64
	err      error
}

func (s *scripted) ResolveLecture(ctx context.Context, course *domain.Course, lecture domain.Lecture, q domain.Quality) (string, error) {
	a := s.attempts[s.calls]
	if a.err != nil {
		s.calls++
	}
	return a.url, a.err
}

func (s *scripted) OpenVideo(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	a := s.attempts[s.calls]
	s.calls++
	return io.NopCloser(strings.NewReader(a.body)), a.declared, nil
}

func oneLectureCourse() *domain.Course {
	return &domain.Course{
		ID: "1", Slug: "c", Title: "C",
		Chapters: []domain.Chapter{{ID: "ch", Title: "Chapter", Lectures: []domain.Lecture{{ID: "l", Title: "Lecture"}}}},
	}
}

func TestProgressResetsDuplicateCounter(t *testing.T) {
	// Two empty responses, then progress on a new URL, then a complete file.
	p := &scripted{attempts: []attempt{
		{url: "u1", body: "", declared: 0},
		{url: "u1", body: "", declared: 0},
		{url: "u2", body: "par", declared: 10},
		{url: "u2", body: "0123456789", declared: 10},
	}}

	dir := t.TempDir()
	report, err := newService(p, dir, 3).DownloadCourse(context.Background(), oneLectureCourse())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if report.Downloaded != 1 || p.calls != 4 {
		t.Errorf("Expected success on 4th attempt, got %+v after %d calls", report, p.calls)
	}
}

func TestSameURLWithoutGrowthCountsAsDuplicate(t *testing.T) {
	p := &scripted{attempts: []attempt{
		{url: "u", body: "abc", declared: 10},
		{url: "u", body: "abc", declared: 10},
	}}

	report, err := newService(p, t.TempDir(), 2).DownloadCourse(context.Background(), oneLectureCourse())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// Attempt 1 is the baseline, attempt 2 does not grow.
	if p.calls != 2 {
		t.Errorf("Expected 2 attempts, got %d", p.calls)
	}
	if len(report.Failed) != 1 || !errors.Is(report.Failed[0].Err, ErrDuplicateLimit) {
		t.Errorf("Expected duplicate limit failure, got %+v", report.Failed)
	}
}

func TestAttemptCeilingBoundsProgressingLoop(t *testing.T) {
	var attempts []attempt
	for i := 0; i < 100; i++ {
		attempts = append(attempts, attempt{url: fmt.Sprintf("u%d", i), body: "abc", declared: 10})
	}
	p := &scripted{attempts: attempts}

	report, _ := newService(p, t.TempDir(), 2).DownloadCourse(context.Background(), oneLectureCourse())

	if p.calls != 2*attemptCeilingFactor {
		t.Errorf("Expected %d attempts, got %d", 2*attemptCeilingFactor, p.calls)
	}
	if len(report.Failed) != 1 || !errors.Is(report.Failed[0].Err, ErrAttemptLimit) {
		t.Errorf("Expected attempt limit failure, got %+v", report.Failed)
	}
}

func TestResolutionErrorsCountTowardGuard(t *testing.T) {
	p := &scripted{attempts: []attempt{
		{err: fmt.Errorf("%w: timeout", domain.ErrTransient)},
		{err: &domain.ParseError{Resource: "player config", Err: errors.New("bad json")}},
		{err: fmt.Errorf("%w: timeout", domain.ErrTransient)},
	}}

	report, _ := newService(p, t.TempDir(), 3).DownloadCourse(context.Background(), oneLectureCourse())

	if p.calls != 3 || len(report.Failed) != 1 {
		t.Errorf("Expected abandonment after 3 failed resolutions, got %d calls, %+v", p.calls, report.Failed)
	}
}

func TestCancelledContextStopsRun(t *testing.T) {
	_, client, course := setup(t, platformtest.SampleCourse())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newService(client, t.TempDir(), 3).DownloadCourse(ctx, course)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestProgressLine(t *testing.T) {
	_, client, course := setup(t, platformtest.SampleCourse())

	var buf bytes.Buffer
	svc := NewService(client, logger.Discard(), Options{
		OutputDir:         t.TempDir(),
		Quality:           domain.Quality1080p,
		MaxDuplicateCount: 3,
		Progress:          &buf,
	})

	if _, err := svc.DownloadCourse(context.Background(), course); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "100.0%") || !strings.Contains(out, "01 - Welcome.mp4") {
		t.Errorf("Expected final progress lines, got %q", out)
	}
}
