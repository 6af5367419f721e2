package selector

import (
	"context"
	"errors"
	"testing"

	"github.com/kkdl-dev/kkdl/internal/domain"
)

var courses = []domain.CourseSummary{
	{ID: "1", Slug: "docker", Title: "Docker"},
	{ID: "2", Slug: "kubernetes", Title: "Kubernetes"},
	{ID: "3", Slug: "linux", Title: "Linux"},
}

func TestSlugs(t *testing.T) {
	got, err := Slugs("linux", "docker").Select(context.Background(), courses)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(got) != 2 || got[0].ID != "3" || got[1].ID != "1" {
		t.Errorf("Expected linux then docker, got %+v", got)
	}

	_, err = Slugs("rust").Select(context.Background(), courses)
	if !errors.Is(err, domain.ErrUsage) {
		t.Errorf("Expected ErrUsage for unknown slug, got %v", err)
	}

	_, err = Slugs().Select(context.Background(), courses)
	if !errors.Is(err, ErrNoSelection) {
		t.Errorf("Expected ErrNoSelection, got %v", err)
	}
}

func TestEntries(t *testing.T) {
	got := entries(courses, []bool{false, true, true})

	if len(got) != 4 {
		t.Fatalf("Expected 4 entries, got %d", len(got))
	}
	if !got[0].done || got[0].Title != "Start download (2 selected)" {
		t.Errorf("Unexpected confirm entry: %+v", got[0])
	}
	if got[1].Mark != "[ ]" || got[2].Mark != "[x]" || got[3].Title != "Linux" {
		t.Errorf("Unexpected course entries: %+v", got[1:])
	}
}

func TestPromptWithNoCourses(t *testing.T) {
	_, err := (&Prompt{}).Select(context.Background(), nil)
	if !errors.Is(err, ErrNoSelection) {
		t.Errorf("Expected ErrNoSelection, got %v", err)
	}
}
