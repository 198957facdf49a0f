// Package datefmt converts loosely typed dates into the canonical storage form
// used by every tabular page, and renders canonical values back for display.
//
// Canonical forms:
//
//	date      2006-01-02
//	date-time 2006-01-02 15:04:05
//
// Display forms:
//
//	date      01/02/06
//	date-time 01/02/06 03:04 pm
//
// Every function in this package is total: unparseable input yields "".
package datefmt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// DateLayout is the canonical storage layout for date-only fields.
	DateLayout = "2006-01-02"

	// DateTimeLayout is the canonical storage layout for date-time fields.
	DateTimeLayout = "2006-01-02 15:04:05"

	displayDate     = "01/02/06"
	displayDateTime = "01/02/06 03:04 pm"
)

var (
	// isoPattern matches YYYY-MM-DD with an optional [ T]HH:MM[:SS] suffix.
	isoPattern = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})(?:[ T](\d{1,2}):(\d{2})(?::(\d{2}))?)?$`)

	// monthDayPattern matches M/D, M/D/YY, M/D/YYYY (slash or dash separated)
	// with an optional H:MM and am/pm marker.
	monthDayPattern = regexp.MustCompile(`(?i)^(\d{1,2})[/-](\d{1,2})(?:[/-](\d{2}|\d{4}))?(?:\s+(\d{1,2}):(\d{2})\s*(am|pm)?)?$`)
)

// fallbackLayouts are tried in order when neither pattern above matches.
var fallbackLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000",
	"2006/01/02",
	"2006/1/2",
	"2006/1/2 15:04",
	"2006/1/2 15:04:05",
	"1/2/2006 15:04:05",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
	"Jan 2, 2006",
	"Jan 2 2006",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006 3:04 PM",
	"January 2, 2006 3:04 PM",
	"2 Jan 2006",
	"2 January 2006",
	"02-Jan-2006",
	"2-Jan-06",
	"Mon Jan 2 2006",
	"Mon, 02 Jan 2006 15:04:05 MST",
	time.RFC1123Z,
}

// Normalize converts raw into canonical form using the current local year
// for inputs that omit one. See NormalizeAt.
func Normalize(raw string, dateTime bool) string {
	return NormalizeAt(time.Now(), raw, dateTime)
}

// NormalizeAt converts raw into canonical form. now supplies the year for
// M/D inputs without one. Two-digit years map to 2000+yy. In date-time mode a
// missing time defaults to midnight; in date mode any time is dropped.
//
// A candidate date is accepted only when building a calendar date from it
// reads back the same year, month and day, so 02/30 is rejected. In date-time
// mode hours must be 0-23 and minutes and seconds 0-59 after 12-hour
// conversion. Anything that fails returns "".
func NormalizeAt(now time.Time, raw string, dateTime bool) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	if m := isoPattern.FindStringSubmatch(s); m != nil {
		c, ok := fromParts(dateTime, atoi(m[1]), atoi(m[2]), atoi(m[3]), atoiOr(m[4], 0), atoiOr(m[5], 0), atoiOr(m[6], 0))
		if !ok {
			return ""
		}
		return c.format(dateTime)
	}

	if m := monthDayPattern.FindStringSubmatch(s); m != nil {
		year := now.Year()
		switch len(m[3]) {
		case 2:
			year = 2000 + atoi(m[3])
		case 4:
			year = atoi(m[3])
		}

		hour := atoiOr(m[4], 0)
		switch strings.ToLower(m[6]) {
		case "am":
			if hour == 12 {
				hour = 0
			}
		case "pm":
			if hour != 12 {
				hour += 12
			}
		}

		c, ok := fromParts(dateTime, year, atoi(m[1]), atoi(m[2]), hour, atoiOr(m[5], 0), 0)
		if !ok {
			return ""
		}
		return c.format(dateTime)
	}

	if t, ok := parseFallback(s); ok {
		c := civil{t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second()}
		return c.format(dateTime)
	}
	return ""
}

// Display renders a stored value in the fixed display form. Values that are
// not already canonical are normalized first, so a half-edited cell still
// renders when it can be understood. Unparseable input yields "".
func Display(value string, dateTime bool) string {
	canonical := Normalize(value, dateTime)
	if canonical == "" {
		return ""
	}
	layout, display := DateLayout, displayDate
	if dateTime {
		layout, display = DateTimeLayout, displayDateTime
	}
	t, err := time.Parse(layout, canonical)
	if err != nil {
		return ""
	}
	return t.Format(display)
}

// Parse returns the instant a stored value represents, for ordering. ok is
// false when the value cannot be normalized.
func Parse(value string, dateTime bool) (time.Time, bool) {
	canonical := Normalize(value, dateTime)
	if canonical == "" {
		return time.Time{}, false
	}
	layout := DateLayout
	if dateTime {
		layout = DateTimeLayout
	}
	t, err := time.Parse(layout, canonical)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// civil is a validated calendar date and wall-clock time.
type civil struct {
	year, month, day     int
	hour, minute, second int
}

// fromParts validates the parts by round-tripping them through time.Date.
// The time of day is checked only in date-time mode; a date field ignores it.
func fromParts(dateTime bool, year, month, day, hour, minute, second int) (civil, bool) {
	if !dateTime {
		hour, minute, second = 0, 0, 0
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return civil{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return civil{}, false
	}
	return civil{year, month, day, hour, minute, second}, true
}

func (c civil) format(dateTime bool) string {
	if !dateTime {
		return fmt.Sprintf("%04d-%02d-%02d", c.year, c.month, c.day)
	}
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", c.year, c.month, c.day, c.hour, c.minute, c.second)
}

// parseFallback tries the general layouts. Layouts with a PM marker need the
// upper-case form, so an upper-cased copy of s is tried as well.
func parseFallback(s string) (time.Time, bool) {
	candidates := []string{s}
	if up := strings.ToUpper(s); up != s {
		candidates = append(candidates, up)
	}
	for _, layout := range fallbackLayouts {
		for _, c := range candidates {
			if t, err := time.Parse(layout, c); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func atoiOr(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	return atoi(s)
}
