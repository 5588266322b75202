package dispatch

import (
	"regexp"
	"strings"
)

var placeholder = regexp.MustCompile(`(?i)\{(company|jobTitle)\}`)

// Render fills {company} and {jobTitle} (any letter case) in one pass, so
// substituted text is never scanned again.
func Render(tmpl, company, jobTitle string) string {
	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		if strings.EqualFold(m, "{company}") {
			return company
		}
		return jobTitle
	})
}
