// Package selector picks which courses to download when none was named on the command line.
package selector

import (
	"context"
	"errors"
	"io"
	"strconv"

	"github.com/manifoldco/promptui"

	"github.com/kkdl-dev/kkdl/internal/domain"
)

// ErrNoSelection is returned when the user leaves the prompt without choosing anything.
var ErrNoSelection = errors.New("no courses selected")

// Func adapts a plain function to the selector capability.
type Func func(ctx context.Context, courses []domain.CourseSummary) ([]domain.CourseSummary, error)

func (f Func) Select(ctx context.Context, courses []domain.CourseSummary) ([]domain.CourseSummary, error) {
	return f(ctx, courses)
}

// Slugs selects courses by slug, in the order given.
func Slugs(slugs ...string) Func {
	return func(_ context.Context, courses []domain.CourseSummary) ([]domain.CourseSummary, error) {
		bySlug := make(map[string]domain.CourseSummary, len(courses))
		for _, c := range courses {
			bySlug[c.Slug] = c
		}

		out := make([]domain.CourseSummary, 0, len(slugs))
		for _, s := range slugs {
			c, ok := bySlug[s]
			if !ok {
				return nil, domain.Usagef("course %q is not in your course list", s)
			}
			out = append(out, c)
		}

		if len(out) == 0 {
			return nil, ErrNoSelection
		}
		return out, nil
	}
}

// Prompt is a terminal multi-select built from repeated single selects:
// choosing a course toggles it, choosing the first entry confirms.
type Prompt struct {
	Stdin  io.ReadCloser
	Stdout io.WriteCloser
	Size   int
}

type entry struct {
	Title string
	Mark  string
	done  bool
}

func entries(courses []domain.CourseSummary, chosen []bool) []entry {
	out := make([]entry, 0, len(courses)+1)

	n := 0
	for _, c := range chosen {
		if c {
			n++
		}
	}
	done := entry{Title: "Start download", Mark: "  ", done: true}
	if n > 0 {
		done.Title = "Start download (" + strconv.Itoa(n) + " selected)"
	}
	out = append(out, done)

	for i, c := range courses {
		mark := "[ ]"
		if chosen[i] {
			mark = "[x]"
		}
		out = append(out, entry{Title: c.Title, Mark: mark})
	}
	return out
}

func (p *Prompt) Select(ctx context.Context, courses []domain.CourseSummary) ([]domain.CourseSummary, error) {
	if len(courses) == 0 {
		return nil, ErrNoSelection
	}

	size := p.Size
	if size <= 0 {
		size = 15
	}

	chosen := make([]bool, len(courses))
	cursor := 1

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		prompt := promptui.Select{
			Label:        "Select courses (enter toggles, first entry starts)",
			Items:        entries(courses, chosen),
			Size:         size,
			CursorPos:    cursor,
			HideSelected: true,
			Stdin:        p.Stdin,
			Stdout:       p.Stdout,
			Templates: &promptui.SelectTemplates{
				Label:    "{{ . }}",
				Active:   "▸ {{ .Mark }} {{ .Title | cyan }}",
				Inactive: "  {{ .Mark }} {{ .Title }}",
			},
		}

		i, _, err := prompt.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) || errors.Is(err, promptui.ErrAbort) {
				return nil, ErrNoSelection
			}
			return nil, err
		}

		if i == 0 {
			break
		}
		chosen[i-1] = !chosen[i-1]
		cursor = i
	}

	var out []domain.CourseSummary
	for i, c := range courses {
		if chosen[i] {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoSelection
	}
	return out, nil
}
