package booking

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/commonshall/hallbook/engine"
	"github.com/julienschmidt/httprouter"
)

var icalDayAbbr = [7]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

func (m *Module) handleICalFeed(r *http.Request, ps httprouter.Params) engine.Response {
	singles, err := m.queryBookings(r.Context(), `
		SELECT `+bookingColumns+` FROM bookings
		WHERE is_series = 0
		ORDER BY date, start_time`)
	if err != nil {
		return engine.Error(err)
	}

	series, err := m.queryAllSeries(r.Context())
	if err != nil {
		return engine.Error(err)
	}

	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.Header().Set("Content-Disposition", "attachment; filename=bookings.ics")
		writeICalFeed(w, singles, series, m.self.Host)
	}
}

func (m *Module) queryAllSeries(ctx context.Context) ([]*Series, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, created, hall_id, start_date, end_date, start_time, end_time,
			interval, weekdays, requester, group_name, phone, description
		FROM booking_series ORDER BY start_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []*Series
	for rows.Next() {
		s := &Series{}
		var weekdays string
		err := rows.Scan(&s.ID, &s.Created, &s.HallID, &s.StartDate, &s.EndDate, &s.StartTime, &s.EndTime,
			&s.Interval, &weekdays, &s.Requester, &s.GroupName, &s.Phone, &s.Description)
		if err != nil {
			return nil, err
		}
		s.Weekdays = splitWeekdays(weekdays)
		all = append(all, s)
	}
	return all, rows.Err()
}

// writeICalFeed writes one VEVENT per one-off booking and one recurring
// VEVENT (with RRULE) per series. All times are floating local time - the
// engine has no timezone concept.
func writeICalFeed(w io.Writer, singles []*Booking, series []*Series, hostname string) {
	fmt.Fprintln(w, "BEGIN:VCALENDAR")
	fmt.Fprintln(w, "VERSION:2.0")
	fmt.Fprintln(w, "PRODID:-//Hallbook//Bookings//EN")
	fmt.Fprintln(w, "CALSCALE:GREGORIAN")
	fmt.Fprintln(w, "METHOD:PUBLISH")
	fmt.Fprintf(w, "X-WR-CALNAME:%s Hall Bookings\n", hostname)

	for _, b := range singles {
		fmt.Fprintln(w, "BEGIN:VEVENT")
		fmt.Fprintf(w, "UID:booking-%s@%s\n", b.ID, hostname)
		fmt.Fprintf(w, "DTSTART:%s\n", icalDateTime(b.Date, b.StartTime))
		fmt.Fprintf(w, "DTEND:%s\n", icalDateTime(b.Date, b.EndTime))
		fmt.Fprintf(w, "SUMMARY:%s\n", escapeICalText(icalSummary(b.Requester, b.GroupName)))
		if b.Description != nil && *b.Description != "" {
			fmt.Fprintf(w, "DESCRIPTION:%s\n", escapeICalText(*b.Description))
		}
		fmt.Fprintln(w, "END:VEVENT")
	}

	for _, s := range series {
		fmt.Fprintln(w, "BEGIN:VEVENT")
		fmt.Fprintf(w, "UID:series-%s@%s\n", s.ID, hostname)
		fmt.Fprintf(w, "DTSTART:%s\n", icalDateTime(s.StartDate, s.StartTime))
		fmt.Fprintf(w, "DTEND:%s\n", icalDateTime(s.StartDate, s.EndTime))
		if rrule := buildRRule(s); rrule != "" {
			fmt.Fprintf(w, "RRULE:%s\n", rrule)
		}
		fmt.Fprintf(w, "SUMMARY:%s\n", escapeICalText(s.GroupName))
		if s.Description != nil && *s.Description != "" {
			fmt.Fprintf(w, "DESCRIPTION:%s\n", escapeICalText(*s.Description))
		}
		fmt.Fprintln(w, "END:VEVENT")
	}

	fmt.Fprintln(w, "END:VCALENDAR")
}

// buildRRule renders the series recurrence as an iCal RRULE. Series with a
// weekday set become weekly rules; the rest are monthly by day-of-month.
func buildRRule(s *Series) string {
	var parts []string
	if len(s.Weekdays) > 0 {
		byday := make([]string, len(s.Weekdays))
		for i, wd := range s.Weekdays {
			if wd < 0 || wd > 6 {
				return ""
			}
			byday[i] = icalDayAbbr[wd]
		}
		parts = append(parts, "FREQ=WEEKLY")
		if s.Interval > 1 {
			parts = append(parts, fmt.Sprintf("INTERVAL=%d", s.Interval))
		}
		parts = append(parts, "BYDAY="+strings.Join(byday, ","))
	} else {
		parts = append(parts, "FREQ=MONTHLY")
	}
	parts = append(parts, "UNTIL="+icalDateTime(s.EndDate, s.EndTime))
	return strings.Join(parts, ";")
}

// icalDateTime formats canonical date+time strings as floating iCal time
// (YYYYMMDDTHHMMSS, no zone designator).
func icalDateTime(date, clock string) string {
	return strings.ReplaceAll(date, "-", "") + "T" + strings.ReplaceAll(clock, ":", "")
}

func icalSummary(requester string, group *string) string {
	if group != nil && *group != "" {
		return *group
	}
	if requester == "" {
		return "Reserved"
	}
	return requester
}

// escapeICalText escapes special characters in iCal text fields.
func escapeICalText(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
