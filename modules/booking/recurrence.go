package booking

import (
	"sort"
	"time"
)

type Frequency string

const (
	FreqWeekly   Frequency = "weekly"
	FreqBiweekly Frequency = "biweekly"
	FreqMonthly  Frequency = "monthly"
)

const (
	// defaultOccurrenceCap bounds series that declare no terminator at all.
	defaultOccurrenceCap = 10

	// expansionCeiling bounds the generation loop no matter what the caller
	// asked for, so malformed terminators can't spin forever.
	expansionCeiling = 500
)

// recurrenceRule is a validated, normalized recurrence specification.
// BIWEEKLY is represented as WEEKLY with Interval 2; MONTHLY ignores
// Weekdays and Interval entirely.
type recurrenceRule struct {
	Frequency Frequency
	Interval  int
	Weekdays  []time.Weekday // 0=Sunday..6=Saturday
	Until     string         // inclusive end date, "" when unset
	Count     int            // max occurrences, 0 when unset
}

// expand turns the rule into concrete occurrence dates starting at startDate.
// The result is strictly increasing, deduplicated, and never empty - a rule
// that generates nothing is an ErrNoOccurrences.
func expand(startDate string, rule recurrenceRule) ([]string, *Error) {
	interval := rule.Interval
	if rule.Frequency == FreqBiweekly {
		interval = 2
	}
	if interval < 1 {
		interval = 1
	}

	cap := rule.Count
	if cap <= 0 && rule.Until == "" {
		cap = defaultOccurrenceCap
	}

	var until time.Time
	if rule.Until != "" {
		until = parseDate(rule.Until)
	}

	var dates []string
	switch rule.Frequency {
	case FreqWeekly, FreqBiweekly:
		dates = expandWeekly(parseDate(startDate), interval, rule.Weekdays, until, cap)
	case FreqMonthly:
		dates = expandMonthly(parseDate(startDate), until, cap)
	default:
		return nil, errorf(ErrValidation, "unknown frequency %q", rule.Frequency)
	}

	if len(dates) == 0 {
		return nil, errorf(ErrNoOccurrences, "the recurrence rule generates no occurrences")
	}
	return dates, nil
}

// expandWeekly walks forward one calendar day at a time, keeping dates whose
// weekday is in the set and whose week (counted from the start date's week)
// lands on the interval. Weeks begin on Sunday to match weekday numbering.
func expandWeekly(start time.Time, interval int, weekdays []time.Weekday, until time.Time, cap int) []string {
	if len(weekdays) == 0 {
		return nil
	}
	inSet := map[time.Weekday]bool{}
	for _, wd := range weekdays {
		inSet[wd] = true
	}

	anchorWeek := start.AddDate(0, 0, -int(start.Weekday()))

	var dates []string
	for i := 0; i < expansionCeiling; i++ {
		d := start.AddDate(0, 0, i)
		if !until.IsZero() && d.After(until) {
			break
		}
		if cap > 0 && len(dates) >= cap {
			break
		}
		if !inSet[d.Weekday()] {
			continue
		}
		weeks := int(d.Sub(anchorWeek).Hours()) / (24 * 7)
		if weeks%interval != 0 {
			continue
		}
		dates = append(dates, d.Format(dateLayout))
	}
	return dates
}

// expandMonthly advances one calendar month per occurrence, preserving the
// start date's day-of-month. When the target month is shorter, the date is
// clamped to its last day (Jan 31 -> Feb 28/29) rather than skipped.
func expandMonthly(start time.Time, until time.Time, cap int) []string {
	day := start.Day()

	var dates []string
	for k := 0; k < expansionCeiling; k++ {
		first := time.Date(start.Year(), start.Month()+time.Month(k), 1, 0, 0, 0, 0, time.UTC)
		lastDay := first.AddDate(0, 1, -1).Day()
		d := first.AddDate(0, 0, min(day, lastDay)-1)

		if !until.IsZero() && d.After(until) {
			break
		}
		if cap > 0 && len(dates) >= cap {
			break
		}
		if n := len(dates); n > 0 && dates[n-1] >= d.Format(dateLayout) {
			continue
		}
		dates = append(dates, d.Format(dateLayout))
	}
	return dates
}

// realizedWeekdays derives the sorted set of weekday numbers actually present
// in the generated dates. The series row records this, not the requested set.
func realizedWeekdays(dates []string) []int {
	seen := map[int]bool{}
	for _, d := range dates {
		seen[int(parseDate(d).Weekday())] = true
	}
	out := make([]int, 0, len(seen))
	for wd := range seen {
		out = append(out, wd)
	}
	sort.Ints(out)
	return out
}
