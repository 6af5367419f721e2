package domain

import (
	"fmt"
	"html"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// CourseSummary is one entry of the course listing, used for interactive selection.
type CourseSummary struct {
	ID    string
	Slug  string
	Title string
	URL   string
}

// Course is the tree of chapters and lectures for one enrollment unit.
type Course struct {
	ID       string
	Slug     string
	Title    string
	Chapters []Chapter
}

type Chapter struct {
	ID       string
	Title    string
	Lectures []Lecture
}

// Lecture is a single video unit. VideoRef is opaque and resolved to a URL at download time.
type Lecture struct {
	ID       string
	Title    string
	VideoRef string
}

// LectureCount returns the total number of lectures across all chapters.
func (c *Course) LectureCount() int {
	n := 0
	for _, ch := range c.Chapters {
		n += len(ch.Lectures)
	}
	return n
}

// DirName is the course root directory inside the output dir.
func (c *Course) DirName() string {
	return SanitizeFileName(c.Title, c.Slug)
}

// ChapterDirName returns the order-preserving directory name of chapter i (0-based).
func (c *Course) ChapterDirName(i int) string {
	ch := c.Chapters[i]
	return OrderedName(i, len(c.Chapters), SanitizeFileName(ch.Title, ch.ID))
}

// LectureFileName returns the order-preserving file name of lecture j (0-based) in chapter i.
func (c *Course) LectureFileName(i, j int) string {
	lectures := c.Chapters[i].Lectures
	l := lectures[j]
	return OrderedName(j, len(lectures), SanitizeFileName(l.Title, l.ID)) + ".mp4"
}

// LecturePath joins root, course, chapter and lecture into the target path.
func (c *Course) LecturePath(root string, i, j int) string {
	return filepath.Join(root, c.DirName(), c.ChapterDirName(i), c.LectureFileName(i, j))
}

// OrderedName prefixes name with the 1-based position padded to the width of total,
// so that alphabetical order equals listing order.
func OrderedName(index, total int, name string) string {
	width := len(fmt.Sprint(total))
	if width < 2 {
		width = 2
	}
	return fmt.Sprintf("%0*d - %s", width, index+1, name)
}

var (
	badChars   = regexp.MustCompile(`[\\/:*?"<>|]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// maxNameBytes leaves room for the "NN - " prefix and ".mp4.part" under the usual 255 byte limit.
const maxNameBytes = 200

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// SanitizeFileName removes OS-illegal characters. Falls back to fallback when nothing is left.
func SanitizeFileName(name, fallback string) string {
	res := html.UnescapeString(name)

	// Windows/Linux/macOS safety
	res = badChars.ReplaceAllString(res, "_")
	res = whitespace.ReplaceAllString(res, " ")
	res = strings.Trim(truncate(res, maxNameBytes), " .")

	if res == "" {
		res = badChars.ReplaceAllString(fallback, "_")
	}
	return res
}
