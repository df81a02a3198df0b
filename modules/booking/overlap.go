package booking

import (
	"context"
)

// intervalsOverlap reports whether [s1,e1) and [s2,e2) share any instant.
// Half-open semantics: bookings that merely touch (one ends exactly when the
// other starts) do not overlap. Lexical comparison is chronological because
// the times are canonical fixed-width strings.
func intervalsOverlap(s1, e1, s2, e2 string) bool {
	return s1 < e2 && s2 < e1
}

// findConflict returns the first existing booking on (hallID, date) whose
// interval overlaps [start,end), or nil when the slot is free. excludeID
// skips a row, which update uses to avoid conflicting with itself.
//
// This is a fresh query every time - the database is the only source of
// truth, there is no cached view of the agenda.
func (m *Module) findConflict(ctx context.Context, hallID int64, date, start, end, excludeID string) (*Booking, error) {
	existing, err := m.queryBookings(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE hall_id = $1 AND date = $2 AND id != $3
		ORDER BY start_time`, hallID, date, excludeID)
	if err != nil {
		return nil, err
	}

	for _, b := range existing {
		if intervalsOverlap(b.StartTime, b.EndTime, start, end) {
			return b, nil
		}
	}
	return nil, nil
}
