package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kkdl-dev/kkdl/internal/domain"
	"github.com/kkdl-dev/kkdl/internal/infra/logger"
)

const (
	// maxMetadataBytes caps how much of a metadata response is read into memory.
	maxMetadataBytes = 16 * 1024 * 1024

	defaultTimeout = 30 * time.Second
)

type Options struct {
	BaseURL  string
	QuizURL  string
	SiteURL  string
	PageSize int
	// Timeout applies to metadata requests. Video streams use DownloadTimeout (0 = none)
	// and are still cut off when headers or body bytes stop arriving for StallTimeout.
	Timeout         time.Duration
	DownloadTimeout time.Duration
	// StallTimeout defaults to Timeout.
	StallTimeout time.Duration
}

// Client talks to the platform's course, lesson and quiz APIs.
type Client struct {
	session  *Session
	meta     *http.Client
	video    *http.Client
	baseURL  string
	quizURL  string
	siteURL  string
	pageSize int
	stall    time.Duration
	// trusted are the hosts that receive the bearer token.
	trusted map[string]bool
	log     *logger.Logger
}

func New(session *Session, opts Options, log *logger.Logger) *Client {
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if opts.SiteURL == "" {
		opts.SiteURL = strings.TrimSuffix(session.referer, "/")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.StallTimeout <= 0 {
		opts.StallTimeout = opts.Timeout
	}

	video := session.HTTPClient(opts.DownloadTimeout)
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = opts.StallTimeout
	video.Transport = transport

	trusted := make(map[string]bool)
	for _, raw := range []string{opts.BaseURL, opts.QuizURL} {
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			trusted[strings.ToLower(u.Host)] = true
		}
	}

	return &Client{
		session:  session,
		meta:     session.HTTPClient(opts.Timeout),
		video:    video,
		baseURL:  strings.TrimSuffix(opts.BaseURL, "/"),
		quizURL:  strings.TrimSuffix(opts.QuizURL, "/"),
		siteURL:  strings.TrimSuffix(opts.SiteURL, "/"),
		pageSize: opts.PageSize,
		stall:    opts.StallTimeout,
		trusted:  trusted,
		log:      log,
	}
}

// ListCourses walks every page of the course listing.
func (c *Client) ListCourses(ctx context.Context) ([]domain.CourseSummary, error) {
	var all []domain.CourseSummary

	for page := 1; ; {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("limit", strconv.Itoa(c.pageSize))

		var rsp courseListResponse
		if err := c.getJSON(ctx, "course list", c.baseURL+"/courses?"+q.Encode(), &rsp); err != nil {
			return nil, err
		}

		for _, item := range rsp.Courses {
			s, err := item.toSummary(c.courseURL)
			if err != nil {
				return nil, err
			}
			all = append(all, s)
		}

		next := rsp.Metadata.NextPage
		if next == nil || *next <= page {
			break
		}
		page = *next
	}

	c.log.Debug("Listed %d courses", len(all))
	return all, nil
}

// Course fetches the chapter/lecture tree of the course identified by slug.
func (c *Client) Course(ctx context.Context, slug string) (*domain.Course, error) {
	var rsp courseResponse
	if err := c.getJSON(ctx, "course", c.baseURL+"/courses/"+url.PathEscape(slug), &rsp); err != nil {
		return nil, err
	}

	course, err := rsp.toCourse()
	if err != nil {
		return nil, err
	}
	if course.Slug == "" {
		course.Slug = slug
	}

	c.log.Info("Course %q: %d chapters, %d lectures", course.Title, len(course.Chapters), course.LectureCount())
	return course, nil
}

// ResolveLecture returns a direct, possibly short-lived, video URL for the lecture.
// A fresh resolution is made on every call.
func (c *Client) ResolveLecture(ctx context.Context, course *domain.Course, lecture domain.Lecture, q domain.Quality) (string, error) {
	player := lecture.VideoRef
	if player == "" {
		v := url.Values{}
		v.Set("course_id", course.ID)

		var rsp lessonResponse
		if err := c.getJSON(ctx, "lesson", c.baseURL+"/lessons/"+url.PathEscape(lecture.ID)+"?"+v.Encode(), &rsp); err != nil {
			return "", err
		}
		if rsp.VideoURL == "" {
			return "", fmt.Errorf("lecture %s: %w", lecture.ID, domain.MissingField("lesson", "video_url"))
		}
		player = rsp.VideoURL
	}

	configURL, err := playerConfigURL(player)
	if err != nil {
		return "", err
	}

	var cfg playerConfig
	if err := c.getJSON(ctx, "player config", configURL, &cfg); err != nil {
		return "", err
	}

	videoURL, err := cfg.pick(q)
	if err != nil {
		return "", fmt.Errorf("lecture %s: %w", lecture.ID, err)
	}

	c.log.Debug("Resolved lecture %s at %s: %s", lecture.ID, q, videoURL)
	return videoURL, nil
}

// OpenVideo starts streaming rawURL. size is -1 when the server does not announce a length.
// Any failure is ErrTransient: signed video URLs answer 403 or 404 once they expire, and the
// caller resolves a fresh one.
func (c *Client) OpenVideo(ctx context.Context, rawURL string) (body io.ReadCloser, size int64, err error) {
	ctx, cancel := context.WithCancel(ctx)

	req, err := c.newRequest(ctx, rawURL)
	if err != nil {
		cancel()
		return nil, 0, err
	}

	rsp, err := c.video.Do(req)
	if err != nil {
		cancel()
		return nil, 0, fmt.Errorf("%w: fetching video: %v", domain.ErrTransient, err)
	}

	if rsp.StatusCode < 200 || rsp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(rsp.Body, 4096))
		rsp.Body.Close()
		cancel()
		return nil, 0, fmt.Errorf("%w: fetching video: status code `%d`: %s",
			domain.ErrTransient, rsp.StatusCode, strings.TrimSpace(string(data)))
	}

	return newStallReader(rsp.Body, c.stall, cancel), rsp.ContentLength, nil
}

// ListQuizzes returns every quiz without its questions.
func (c *Client) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	var rsp quizListResponse
	if err := c.getJSON(ctx, "quiz list", c.quizURL+"/quizzes/all", &rsp); err != nil {
		return nil, err
	}

	quizzes := make([]domain.Quiz, 0, len(rsp.Quizzes))
	for _, item := range rsp.Quizzes {
		q, err := item.toQuiz()
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, q)
	}
	return quizzes, nil
}

// Quiz fetches the questions of a single quiz.
func (c *Client) Quiz(ctx context.Context, id string) (*domain.Quiz, error) {
	v := url.Values{}
	v.Set("id", id)

	var rsp quizResponse
	if err := c.getJSON(ctx, "quiz", c.quizURL+"/json-quiz/quiz?"+v.Encode(), &rsp); err != nil {
		return nil, err
	}
	return rsp.toQuiz()
}

func (c *Client) courseURL(slug string) string {
	return c.siteURL + "/courses/" + slug
}

func (c *Client) newRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("preparing request: %w", err)
	}

	if c.trusted[strings.ToLower(req.URL.Host)] {
		c.session.authorize(req)
	} else {
		c.session.identify(req)
	}
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, resource, rawURL string, out any) (err error) {
	req, err := c.newRequest(ctx, rawURL)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", resource, err)
	}
	req.Header.Set("Accept", "application/json")

	c.log.Debug("GET %s", rawURL)

	rsp, err := c.meta.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: fetching %s: %v", domain.ErrTransient, resource, err)
	}

	defer func() {
		if e := rsp.Body.Close(); e != nil {
			err = errors.Join(err, fmt.Errorf("fetching %s: closing response body: %w", resource, e))
		}
	}()

	data, err := io.ReadAll(io.LimitReader(rsp.Body, maxMetadataBytes))
	if err != nil {
		return fmt.Errorf("%w: fetching %s: reading response body: %v", domain.ErrTransient, resource, err)
	}

	if rsp.StatusCode < 200 || rsp.StatusCode > 299 {
		return statusError(resource, rsp.StatusCode, data)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &domain.ParseError{Resource: resource, Err: err}
	}
	return nil
}

// statusError maps an HTTP status onto the error taxonomy.
func statusError(resource string, status int, body []byte) error {
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 200 {
		snippet = snippet[:200] + "..."
	}

	var kind error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = domain.ErrAuth
	case status == http.StatusNotFound || status == http.StatusGone:
		kind = domain.ErrNotFound
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500:
		kind = domain.ErrTransient
	default:
		return fmt.Errorf("fetching %s: status code `%d`: %s", resource, status, snippet)
	}

	return fmt.Errorf("%w: fetching %s: status code `%d`: %s", kind, resource, status, snippet)
}

func playerConfigURL(player string) (string, error) {
	u, err := url.Parse(player)
	if err != nil || u.Host == "" {
		return "", &domain.ParseError{Resource: "lesson", Field: "video_url", Err: fmt.Errorf("invalid player URL %q", player)}
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/config"
	return u.String(), nil
}
