package utils

import (
	"regexp"
	"strings"
	"time"

	"github.com/joseph-ayodele/household-docs/internal/entity"
)

// Clock returns the current time; parsers take one so "today" is testable.
type Clock func() time.Time

// Today returns the clock's calendar date, using time.Now for a nil clock.
func (c Clock) Today() entity.Date {
	if c == nil {
		return entity.DateOf(time.Now())
	}
	return entity.DateOf(c())
}

var (
	reNumericDate = regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`)
	reMonthDate   = regexp.MustCompile(`(?i)\b[a-z]{3,9}\.? \d{1,2},? \d{4}\b`)
)

// Month-first layouts are tried before day-first ones.
var numericDateLayouts = []string{
	"1/2/2006", "1-2-2006", "1/2/06", "1-2-06",
	"2/1/2006", "2-1-2006", "2/1/06", "2-1-06",
}

var monthDateLayouts = []string{
	"January 2, 2006", "Jan 2, 2006", "January 2 2006", "Jan 2 2006",
	"Jan. 2, 2006", "Jan. 2 2006",
}

// FindDate returns the first date found in free text: numeric forms first,
// then month-name forms.
func FindDate(text string) (entity.Date, bool) {
	for _, m := range reNumericDate.FindAllString(text, -1) {
		if d, ok := parseWithLayouts(m, numericDateLayouts); ok {
			return d, true
		}
	}
	for _, m := range reMonthDate.FindAllString(text, -1) {
		if d, ok := parseWithLayouts(m, monthDateLayouts); ok {
			return d, true
		}
	}
	return entity.Date{}, false
}

// Layouts for statement rows; "1/2" has no year and takes the current one.
var txDateLayouts = []string{"1/2/2006", "1/2/06", "2006-01-02", "1-2-2006", "1/2"}

// ParseTxDate parses a bank transaction date.
func ParseTxDate(raw string, now Clock) (entity.Date, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range txDateLayouts {
		t, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		if layout == "1/2" {
			return entity.NewDate(now.Today().Year(), t.Month(), t.Day()), true
		}
		return entity.DateOf(t), true
	}
	return entity.Date{}, false
}

// ParseLooseDate accepts ISO dates and everything FindDate understands.
func ParseLooseDate(raw string) (entity.Date, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return entity.Date{}, false
	}
	if d, err := entity.ParseDate(raw); err == nil {
		return d, true
	}
	if len(raw) >= 10 {
		if d, err := entity.ParseDate(raw[:10]); err == nil {
			return d, true
		}
	}
	return FindDate(raw)
}

func parseWithLayouts(s string, layouts []string) (entity.Date, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return entity.DateOf(t), true
		}
	}
	return entity.Date{}, false
}
