// Package platformtest runs an in-process emulation of the learning platform's APIs for tests.
package platformtest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/labstack/echo/v5"
)

type Course struct {
	ID      string
	Slug    string
	Title   string
	Modules []Module
}

type Module struct {
	ID      string
	Title   string
	Lessons []Lesson
}

type Lesson struct {
	ID    string
	Title string
	// Type defaults to "video".
	Type  string
	Video []byte
	// Empty serves a zero byte body.
	Empty bool
	// Fail serves 500 for the video stream.
	Fail bool
	// Forbidden serves 403 for the video stream, like an expired signed URL.
	Forbidden bool
	// Static returns the same signed URL on every resolution.
	Static bool
	// Missing answers 404 when the lesson is resolved.
	Missing bool
}

type Quiz struct {
	ID        string
	Name      string
	Topic     string
	Questions []Question
	// Broken answers 500 when the quiz is fetched.
	Broken bool
}

type Question struct {
	Question    string
	Answers     []string
	Correct     []string
	Explanation string
}

// Server is an httptest server backed by an echo router.
type Server struct {
	*httptest.Server

	Token       string
	CookieName  string
	CookieValue string
	PageSize    int

	mu      sync.Mutex
	courses []Course
	quizzes []Quiz
	hits    map[string]int
	total   int
}

func New(courses []Course, quizzes []Quiz) *Server {
	s := &Server{
		courses:  courses,
		quizzes:  quizzes,
		hits:     make(map[string]int),
		PageSize: 2,
	}

	e := echo.New()
	e.Use(s.count)

	api := e.Group("/api", s.requireAuth)
	api.GET("/courses", s.listCourses)
	api.GET("/courses/:slug", s.course)
	api.GET("/lessons/:id", s.lesson)

	e.GET("/player/:id/config", s.playerConfig, s.requireAuth)
	e.GET("/video/:id/:quality", s.video, s.requireAuth)

	e.GET("/quiz/quizzes/all", s.listQuizzes)
	e.GET("/quiz/json-quiz/quiz", s.quiz)

	s.Server = httptest.NewServer(e)
	return s
}

func (s *Server) APIURL() string  { return s.URL + "/api" }
func (s *Server) QuizURL() string { return s.URL + "/quiz" }

// Hits returns how often key was requested. Keys are "courses", "course:<slug>",
// "resolve:<lesson>" and "video:<lesson>", "quiz:<id>".
func (s *Server) Hits(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[key]
}

// Requests returns the total number of requests served.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *Server) hit(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits[key]++
	return s.hits[key]
}

func (s *Server) count(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		s.mu.Lock()
		s.total++
		s.mu.Unlock()
		return next(c)
	}
}

func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		if s.Token == "" && s.CookieValue == "" {
			return next(c)
		}

		req := c.Request()
		if s.Token != "" && req.Header.Get("Authorization") == "Bearer "+s.Token {
			return next(c)
		}
		if s.CookieValue != "" {
			if ck, err := req.Cookie(s.CookieName); err == nil && ck.Value == s.CookieValue {
				return next(c)
			}
		}
		return c.String(http.StatusUnauthorized, "unauthorized")
	}
}

func (s *Server) listCourses(c *echo.Context) error {
	s.hit("courses")

	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}

	start := (page - 1) * s.PageSize
	end := start + s.PageSize
	if start > len(s.courses) {
		start = len(s.courses)
	}
	if end > len(s.courses) {
		end = len(s.courses)
	}

	items := make([]map[string]any, 0, end-start)
	for _, co := range s.courses[start:end] {
		items = append(items, map[string]any{"id": co.ID, "slug": co.Slug, "title": co.Title})
	}

	var next any
	if end < len(s.courses) {
		next = page + 1
	}

	return c.JSON(http.StatusOK, map[string]any{
		"courses":  items,
		"metadata": map[string]any{"current_page": page, "next_page": next},
	})
}

func (s *Server) course(c *echo.Context) error {
	slug := c.Param("slug")
	s.hit("course:" + slug)

	co, ok := s.findCourse(slug)
	if !ok {
		return c.String(http.StatusNotFound, "course not found")
	}

	modules := make([]map[string]any, 0, len(co.Modules))
	for _, m := range co.Modules {
		lessons := make([]map[string]any, 0, len(m.Lessons))
		for _, l := range m.Lessons {
			typ := l.Type
			if typ == "" {
				typ = "video"
			}
			lessons = append(lessons, map[string]any{"id": l.ID, "title": l.Title, "type": typ})
		}
		modules = append(modules, map[string]any{"id": m.ID, "title": m.Title, "lessons": lessons})
	}

	// Numeric course IDs exercise the loosely typed id handling.
	var id any = co.ID
	if n, err := strconv.Atoi(co.ID); err == nil {
		id = n
	}

	return c.JSON(http.StatusOK, map[string]any{
		"id":      id,
		"slug":    co.Slug,
		"title":   co.Title,
		"modules": modules,
	})
}

func (s *Server) lesson(c *echo.Context) error {
	id := c.Param("id")
	s.hit("lesson:" + id)

	l, ok := s.findLesson(id)
	if !ok || l.Missing {
		return c.String(http.StatusNotFound, "lesson not found")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"id":        l.ID,
		"title":     l.Title,
		"video_url": fmt.Sprintf("%s/player/%s?h=abc", s.URL, l.ID),
	})
}

func (s *Server) playerConfig(c *echo.Context) error {
	id := c.Param("id")
	n := s.hit("resolve:" + id)

	l, ok := s.findLesson(id)
	if !ok {
		return c.String(http.StatusNotFound, "video not found")
	}

	sig := strconv.Itoa(n)
	if l.Static {
		sig = "static"
	}

	var files []map[string]any
	for _, q := range []string{"360p", "720p", "1080p"} {
		files = append(files, map[string]any{
			"quality": q,
			"url":     fmt.Sprintf("%s/video/%s/%s?sig=%s", s.URL, l.ID, q, sig),
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"request": map[string]any{"files": map[string]any{"progressive": files}},
	})
}

func (s *Server) video(c *echo.Context) error {
	id := c.Param("id")
	s.hit("video:" + id)
	s.hit("quality:" + c.Param("quality"))

	l, ok := s.findLesson(id)
	switch {
	case !ok:
		return c.String(http.StatusNotFound, "video not found")
	case l.Fail:
		return c.String(http.StatusInternalServerError, "boom")
	case l.Forbidden:
		return c.String(http.StatusForbidden, "signature expired")
	case l.Empty:
		return c.Blob(http.StatusOK, "video/mp4", nil)
	}

	return c.Blob(http.StatusOK, "video/mp4", l.Video)
}

func (s *Server) listQuizzes(c *echo.Context) error {
	s.hit("quizzes")

	items := make([]map[string]any, 0, len(s.quizzes))
	for _, q := range s.quizzes {
		items = append(items, map[string]any{"id": q.ID, "name": q.Name, "topic": q.Topic})
	}
	return c.JSON(http.StatusOK, map[string]any{"quizzes": items})
}

func (s *Server) quiz(c *echo.Context) error {
	id := c.QueryParam("id")
	s.hit("quiz:" + id)

	for _, q := range s.quizzes {
		if q.ID != id {
			continue
		}
		if q.Broken {
			return c.String(http.StatusInternalServerError, "boom")
		}

		questions := make([]map[string]any, 0, len(q.Questions))
		for _, qq := range q.Questions {
			questions = append(questions, map[string]any{
				"question":       qq.Question,
				"answers":        qq.Answers,
				"correctAnswers": qq.Correct,
				"explanation":    qq.Explanation,
			})
		}
		return c.JSON(http.StatusOK, map[string]any{
			"id":        q.ID,
			"name":      q.Name,
			"topic":     q.Topic,
			"questions": questions,
		})
	}
	return c.String(http.StatusNotFound, "quiz not found")
}

func (s *Server) findCourse(slug string) (Course, bool) {
	for _, co := range s.courses {
		if strings.EqualFold(co.Slug, slug) {
			return co, true
		}
	}
	return Course{}, false
}

func (s *Server) findLesson(id string) (Lesson, bool) {
	for _, co := range s.courses {
		for _, m := range co.Modules {
			for _, l := range m.Lessons {
				if l.ID == id {
					return l, true
				}
			}
		}
	}
	return Lesson{}, false
}
