package extraction

import (
	"regexp"
	"strings"
	"time"
)

// Invoices are read day first; ISO dates are unambiguous
var dateLayouts = []string{
	"2006-1-2",
	"2006/1/2",
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	"2/1/06",
	"2-1-06",
	"2.1.06",
}

var dateToken = regexp.MustCompile(`\b(\d{4}[/-]\d{1,2}[/-]\d{1,2}|\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4})\b`)

// ParseDate parses a single date token
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

// findDate returns the first valid date in the text
func findDate(text string) (time.Time, bool) {
	for _, token := range dateToken.FindAllString(text, -1) {
		if d, ok := ParseDate(token); ok {
			return d, true
		}
	}
	return time.Time{}, false
}
