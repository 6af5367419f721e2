package platform

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kkdl-dev/kkdl/internal/domain"
)

// flexID accepts identifiers sent either as JSON strings or numbers.
type flexID string

func (id *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = flexID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number, got %s", data)
	}
	*id = flexID(n.String())
	return nil
}

type courseListResponse struct {
	Courses  []courseItem `json:"courses"`
	Metadata struct {
		CurrentPage int  `json:"current_page"`
		NextPage    *int `json:"next_page"`
	} `json:"metadata"`
}

type courseItem struct {
	ID    flexID `json:"id"`
	Slug  string `json:"slug"`
	Title string `json:"title"`
	Link  string `json:"link"`
}

func (c courseItem) toSummary(courseURL func(slug string) string) (domain.CourseSummary, error) {
	if c.Slug == "" {
		return domain.CourseSummary{}, domain.MissingField("course list", "slug")
	}

	link := c.Link
	if link == "" {
		link = courseURL(c.Slug)
	}

	return domain.CourseSummary{
		ID:    string(c.ID),
		Slug:  c.Slug,
		Title: c.Title,
		URL:   link,
	}, nil
}

type courseResponse struct {
	ID      flexID   `json:"id"`
	Slug    string   `json:"slug"`
	Title   string   `json:"title"`
	Modules []module `json:"modules"`
}

type module struct {
	ID      flexID   `json:"id"`
	Title   string   `json:"title"`
	Lessons []lesson `json:"lessons"`
}

type lesson struct {
	ID       flexID `json:"id"`
	Title    string `json:"title"`
	Type     string `json:"type"`
	VideoURL string `json:"video_url"`
}

func (l lesson) isVideo() bool {
	return strings.EqualFold(l.Type, "video") || (l.Type == "" && l.VideoURL != "")
}

// toCourse keeps listing order and drops non-video lessons (labs, articles).
func (r courseResponse) toCourse() (*domain.Course, error) {
	if r.ID == "" {
		return nil, domain.MissingField("course", "id")
	}
	if r.Title == "" {
		return nil, domain.MissingField("course", "title")
	}

	course := &domain.Course{
		ID:       string(r.ID),
		Slug:     r.Slug,
		Title:    r.Title,
		Chapters: make([]domain.Chapter, 0, len(r.Modules)),
	}

	for i, m := range r.Modules {
		if m.ID == "" {
			return nil, domain.MissingField("course", fmt.Sprintf("modules[%d].id", i))
		}

		ch := domain.Chapter{ID: string(m.ID), Title: m.Title}
		for j, l := range m.Lessons {
			if !l.isVideo() {
				continue
			}
			if l.ID == "" {
				return nil, domain.MissingField("course", fmt.Sprintf("modules[%d].lessons[%d].id", i, j))
			}
			ch.Lectures = append(ch.Lectures, domain.Lecture{
				ID:       string(l.ID),
				Title:    l.Title,
				VideoRef: l.VideoURL,
			})
		}
		course.Chapters = append(course.Chapters, ch)
	}

	return course, nil
}

type lessonResponse struct {
	ID       flexID `json:"id"`
	Title    string `json:"title"`
	VideoURL string `json:"video_url"`
}

type playerConfig struct {
	Request struct {
		Files struct {
			Progressive []rendition `json:"progressive"`
		} `json:"files"`
	} `json:"request"`
}

type rendition struct {
	Quality string `json:"quality"`
	Height  int    `json:"height"`
	URL     string `json:"url"`
}

func (r rendition) height() int {
	if r.Height > 0 {
		return r.Height
	}
	return domain.Quality(r.Quality).Height()
}

// pick returns the requested quality, else the best rendition below it, else the lowest one.
func (p playerConfig) pick(q domain.Quality) (string, error) {
	var exact, below, lowest *rendition
	want := q.Height()

	for i := range p.Request.Files.Progressive {
		r := &p.Request.Files.Progressive[i]
		if r.URL == "" {
			continue
		}

		h := r.height()
		switch {
		case strings.EqualFold(r.Quality, string(q)) || h == want:
			if exact == nil {
				exact = r
			}
		case h < want:
			if below == nil || h > below.height() {
				below = r
			}
		}

		if lowest == nil || h < lowest.height() {
			lowest = r
		}
	}

	switch {
	case exact != nil:
		return exact.URL, nil
	case below != nil:
		return below.URL, nil
	case lowest != nil:
		return lowest.URL, nil
	}
	return "", fmt.Errorf("%w: no playable renditions", domain.ErrNotFound)
}

type quizListResponse struct {
	Quizzes []quizItem `json:"quizzes"`
}

type quizItem struct {
	ID    flexID `json:"id"`
	Name  string `json:"name"`
	Topic string `json:"topic"`
}

func (q quizItem) toQuiz() (domain.Quiz, error) {
	if q.ID == "" {
		return domain.Quiz{}, domain.MissingField("quiz list", "id")
	}
	return domain.Quiz{ID: string(q.ID), Title: q.Name, Topic: q.Topic}, nil
}

type quizResponse struct {
	ID        flexID     `json:"id"`
	Name      string     `json:"name"`
	Topic     string     `json:"topic"`
	Questions []question `json:"questions"`
}

type question struct {
	Question    string   `json:"question"`
	Options     []string `json:"answers"`
	Correct     []string `json:"correctAnswers"`
	Code        string   `json:"code"`
	Explanation string   `json:"explanation"`
}

func (r quizResponse) toQuiz() (*domain.Quiz, error) {
	if r.ID == "" {
		return nil, domain.MissingField("quiz", "id")
	}

	quiz := &domain.Quiz{ID: string(r.ID), Title: r.Name, Topic: r.Topic}
	for i, q := range r.Questions {
		if strings.TrimSpace(q.Question) == "" {
			return nil, domain.MissingField("quiz", fmt.Sprintf("questions[%d].question", i))
		}
		quiz.Questions = append(quiz.Questions, domain.Question{
			Text:        q.Question,
			Choices:     q.Options,
			Answers:     q.Correct,
			Code:        q.Code,
			Explanation: q.Explanation,
		})
	}
	return quiz, nil
}
