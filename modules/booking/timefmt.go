package booking

import (
	"regexp"
	"strings"
	"time"
)

// Canonical forms: dates are "YYYY-MM-DD" and times are "HH:MM:SS". Both are
// fixed-width and zero-padded, so plain string comparison is chronological.
// No timezone handling anywhere - everything is naive local wall-clock time.

const dateLayout = "2006-01-02"

var timePattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9](:[0-5][0-9])?$`)

// normalizeTime accepts "HH:MM" or "HH:MM:SS" (24h, zero-padded) and returns
// the canonical "HH:MM:SS" form. Idempotent for already-canonical input.
func normalizeTime(s string) (string, *Error) {
	s = strings.TrimSpace(s)
	if !timePattern.MatchString(s) {
		return "", errorf(ErrFormat, "invalid time %q: expected HH:MM or HH:MM:SS", s)
	}
	if len(s) == len("HH:MM") {
		s += ":00"
	}
	return s, nil
}

// normalizeDate accepts only "YYYY-MM-DD" and validates it as a real calendar day.
func normalizeDate(s string) (string, *Error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(dateLayout, s)
	if err != nil || t.Format(dateLayout) != s {
		return "", errorf(ErrFormat, "invalid date %q: expected YYYY-MM-DD", s)
	}
	return s, nil
}

func parseDate(s string) time.Time {
	t, _ := time.Parse(dateLayout, s)
	return t
}
