package platform

import (
	"net/url"
	"strings"

	"github.com/asaskevich/govalidator"
	"github.com/gosimple/slug"

	"github.com/kkdl-dev/kkdl/internal/domain"
)

// ParseCourseURL validates a course URL syntactically and extracts the course slug.
// Accepted forms: https://host/courses/<slug>[/...] or any http(s) URL whose last path segment is a slug.
func ParseCourseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" || !govalidator.IsURL(raw) {
		return "", domain.Usagef("%q is not a valid URL", raw)
	}

	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(segments) == 0 {
		return "", domain.Usagef("%q does not name a course", raw)
	}

	candidate := segments[len(segments)-1]
	for i, s := range segments[:len(segments)-1] {
		if s == "courses" {
			candidate = segments[i+1]
			break
		}
	}

	candidate = strings.ToLower(candidate)
	if !slug.IsSlug(candidate) {
		return "", domain.Usagef("%q is not a valid course identifier", candidate)
	}
	return candidate, nil
}
