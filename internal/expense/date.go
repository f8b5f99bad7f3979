package expense

import "time"

// CanonicalDateFormat is the single date layout stored on records. Every
// extraction path funnels its date strings through ParseDate so formatting a
// canonical date and reparsing it yields the same calendar day.
const CanonicalDateFormat = "2006-01-02"

// dateFormats is the ordered list of layouts tried against extracted date
// strings. Order matters: unambiguous ISO layouts first, then US-style,
// then written-out forms.
var dateFormats = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"02.01.2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"01/02/06",
	time.RFC3339,
}

// ParseDate tries the ordered layout list against a date string and returns
// the canonical representation. The second return value is false when no
// layout matched; callers treat that as "no date", not an error.
func ParseDate(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(CanonicalDateFormat), true
		}
	}
	return "", false
}
