package validate

import (
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// dateLayouts are tried in order. Slashed numeric dates read month-first
// (03/04/2024 is March 4); dashed and dotted ones read day-first
// (03-04-2024 is 3 April).
var dateLayouts = []string{
	"2006-01-02",
	"2006/1/2",
	"1/2/2006",
	"2/1/2006",
	"2-1-2006",
	"1-2-2006",
	"2.1.2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
	"2 January, 2006",
	"2-Jan-2006",
	"Jan. 2, 2006",
}

// fallbackLayouts cover timestamp and weekday forms OCR picks up from
// e-mail headers and exported PDFs.
var fallbackLayouts = []string{
	time.RFC3339,
	time.DateTime,
	"2006-01-02T15:04:05",
	time.RFC1123,
	time.RFC1123Z,
	time.RFC850,
	time.ANSIC,
	"Monday, January 2, 2006",
	"Mon, January 2, 2006",
	"Monday, Jan 2, 2006",
	"Mon, Jan 2, 2006",
	"Mon Jan 2, 2006",
	"January 2006",
	"01/02/06",
	"02.01.06",
}

var (
	ordinalSuffix = regexp.MustCompile(`(?i)\b(\d{1,2})(st|nd|rd|th)\b`)
	spaceRun      = regexp.MustCompile(`\s+`)
)

// NormalizeDate parses the date forms invoices commonly carry and returns
// the calendar date in UTC.
func NormalizeDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, eris.New("validate: empty date")
	}
	s = spaceRun.ReplaceAllString(s, " ")
	s = ordinalSuffix.ReplaceAllString(s, "$1")
	s = strings.Replace(s, "Sept ", "Sep ", 1)

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return dateOnly(t), nil
		}
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return dateOnly(t), nil
		}
	}
	return time.Time{}, eris.Errorf("validate: unrecognized date %q", raw)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
