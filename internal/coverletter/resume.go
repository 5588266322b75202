package coverletter

import (
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
)

const (
	ResumePlaceholder = "Resume content here"
	maxResumeRunes    = 20000
)

// ResumeText returns the upload as text when it is plain text or markdown.
// Anything else (PDF, Word) yields the placeholder.
func ResumeText(name string, data []byte) string {
	if len(data) == 0 {
		return ResumePlaceholder
	}
	ext := strings.ToLower(filepath.Ext(name))
	textExt := ext == ".txt" || ext == ".md"
	if !mimetype.Detect(data).Is("text/plain") && !(textExt && utf8.Valid(data)) {
		return ResumePlaceholder
	}
	s := strings.TrimSpace(strings.TrimPrefix(string(data), "\ufeff"))
	if s == "" {
		return ResumePlaceholder
	}
	if utf8.RuneCountInString(s) > maxResumeRunes {
		s = string([]rune(s)[:maxResumeRunes])
	}
	return s
}
