package extract

import (
	"regexp"
	"strings"
)

var (
	blankRunRe = regexp.MustCompile(`\n{2,}`)
	paginaRe   = regexp.MustCompile(`(?im)^p[aá]gina\s*\d+\s*$`)
	bareNumRe  = regexp.MustCompile(`(?m)^\s*\d+\s*$`)
	dashNumRe  = regexp.MustCompile(`(?m)^—?\s*\d+\s*—?$`)
	blankWSRe  = regexp.MustCompile(`\n\s*\n+`)
)

// Clean normalizes extracted text deterministically: drops carriage
// returns, collapses runs of blank lines to exactly one blank line, strips
// page-number-only lines, and trims surrounding whitespace.
func Clean(text string) string {
	text = strings.ReplaceAll(text, "\r", "")
	text = blankRunRe.ReplaceAllString(text, "\n\n")

	text = paginaRe.ReplaceAllString(text, "")
	text = bareNumRe.ReplaceAllString(text, "")
	text = dashNumRe.ReplaceAllString(text, "")

	text = blankWSRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
