// Package quiz fetches quiz content and renders it as Markdown.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"

	"github.com/kkdl-dev/kkdl/internal/domain"
	"github.com/kkdl-dev/kkdl/internal/infra/logger"
)

// CombinedFileName is the single output file when quizzes are not written separately.
const CombinedFileName = "quizzes.md"

type Source interface {
	ListQuizzes(ctx context.Context) ([]domain.Quiz, error)
	Quiz(ctx context.Context, id string) (*domain.Quiz, error)
}

type Writer struct {
	source Source
	log    *logger.Logger
	outDir string
}

func NewWriter(src Source, log *logger.Logger, outDir string) *Writer {
	return &Writer{source: src, log: log, outDir: outDir}
}

// Download fetches every quiz and writes them either one file per quiz or into one combined file.
// It returns the paths written. A quiz that fails to fetch is logged and left out.
func (w *Writer) Download(ctx context.Context, separate bool) ([]string, error) {
	if err := os.MkdirAll(w.outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	list, err := w.source.ListQuizzes(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing quizzes: %w", err)
	}
	w.log.Info("Found %d quizzes", len(list))

	quizzes := make([]*domain.Quiz, 0, len(list))
	for _, item := range list {
		q, err := w.source.Quiz(ctx, item.ID)
		if err != nil {
			if errors.Is(err, domain.ErrAuth) || ctx.Err() != nil {
				return nil, err
			}
			w.log.Error("Quiz %q failed: %v", item.Title, err)
			continue
		}
		if q.Title == "" {
			q.Title = item.Title
		}
		if q.Topic == "" {
			q.Topic = item.Topic
		}
		quizzes = append(quizzes, q)
	}

	if separate {
		return w.writeSeparate(quizzes)
	}

	path, err := w.writeCombined(quizzes)
	if err != nil {
		return nil, err
	}
	return []string{path}, nil
}

func (w *Writer) writeSeparate(quizzes []*domain.Quiz) ([]string, error) {
	paths := make([]string, 0, len(quizzes))
	for i, q := range quizzes {
		name := slug.Make(q.Title)
		if name == "" {
			name = slug.Make(q.ID)
		}
		path := filepath.Join(w.outDir, domain.OrderedName(i, len(quizzes), name)+".md")

		if err := os.WriteFile(path, []byte(Render(q)), 0644); err != nil {
			return paths, fmt.Errorf("writing %s: %w", path, err)
		}
		w.log.Info("Wrote %s", path)
		paths = append(paths, path)
	}
	return paths, nil
}

func (w *Writer) writeCombined(quizzes []*domain.Quiz) (string, error) {
	var b strings.Builder
	for i, q := range quizzes {
		if i > 0 {
			b.WriteString("\n---\n\n")
		}
		b.WriteString(Render(q))
	}

	path := filepath.Join(w.outDir, CombinedFileName)
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	w.log.Info("Wrote %d quizzes to %s", len(quizzes), path)
	return path, nil
}

// Render formats a quiz as Markdown. Correct choices are bold and marked.
func Render(q *domain.Quiz) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", q.Title)
	if q.Topic != "" {
		fmt.Fprintf(&b, "_Topic: %s_\n\n", q.Topic)
	}

	for i, question := range q.Questions {
		fmt.Fprintf(&b, "## %d. %s\n\n", i+1, strings.TrimSpace(question.Text))

		if question.Code != "" {
			fmt.Fprintf(&b, "```\n%s\n```\n\n", strings.TrimRight(question.Code, "\n"))
		}

		for _, choice := range question.Choices {
			if question.IsAnswer(choice) {
				fmt.Fprintf(&b, "- [x] **%s**\n", choice)
			} else {
				fmt.Fprintf(&b, "- [ ] %s\n", choice)
			}
		}
		if len(question.Choices) > 0 {
			b.WriteString("\n")
		}

		// Answers that are not among the listed choices (free text) still need to appear.
		if len(question.Choices) == 0 && len(question.Answers) > 0 {
			fmt.Fprintf(&b, "**Answer:** %s\n\n", strings.Join(question.Answers, ", "))
		}

		if question.Explanation != "" {
			fmt.Fprintf(&b, "> %s\n\n", strings.ReplaceAll(strings.TrimSpace(question.Explanation), "\n", "\n> "))
		}
	}

	return b.String()
}
