// Booking is the reservation engine for halls.
//
// It owns conflict detection and recurrence expansion: every write checks the
// requested interval against existing bookings on the same hall and date, and
// recurring series are expanded into concrete occurrences that are persisted
// atomically with their parent series row. A unique index on
// (hall_id, date, start_time) backstops the check-then-insert race; violations
// surface as the same conflict error as the application-level check.
package booking

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/commonshall/hallbook/engine"
	"github.com/commonshall/hallbook/engine/db"
	"github.com/julienschmidt/httprouter"
	qrcode "github.com/skip2/go-qrcode"
)

const migration = `
CREATE TABLE IF NOT EXISTS booking_series (
    id TEXT PRIMARY KEY,
    created INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
    hall_id INTEGER NOT NULL REFERENCES halls(id),
    start_date TEXT NOT NULL,
    end_date TEXT NOT NULL,
    start_time TEXT NOT NULL,
    end_time TEXT NOT NULL,
    interval INTEGER NOT NULL DEFAULT 1,
    weekdays TEXT NOT NULL DEFAULT '',
    requester TEXT NOT NULL DEFAULT '',
    group_name TEXT NOT NULL DEFAULT '',
    phone TEXT,
    description TEXT
) STRICT;

CREATE TABLE IF NOT EXISTS bookings (
    id TEXT PRIMARY KEY,
    created INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
    hall_id INTEGER NOT NULL REFERENCES halls(id),
    date TEXT NOT NULL,
    start_time TEXT NOT NULL,
    end_time TEXT NOT NULL,
    requester TEXT NOT NULL DEFAULT '',
    phone TEXT,
    group_name TEXT,
    description TEXT,
    is_series INTEGER NOT NULL DEFAULT 0,
    series_id TEXT REFERENCES booking_series(id) ON DELETE CASCADE,
    secret_hash TEXT,
    secret_hint TEXT
) STRICT;

CREATE UNIQUE INDEX IF NOT EXISTS bookings_slot_idx ON bookings(hall_id, date, start_time);
CREATE INDEX IF NOT EXISTS bookings_hall_date_idx ON bookings(hall_id, date);
CREATE INDEX IF NOT EXISTS bookings_series_idx ON bookings(series_id);
`

// Booking is a single occurrence: one hall, one date, one time interval.
type Booking struct {
	ID          string  `json:"id"`
	Created     int64   `json:"created"`
	HallID      int64   `json:"hall_id"`
	Date        string  `json:"date"`
	StartTime   string  `json:"start_time"`
	EndTime     string  `json:"end_time"`
	Requester   string  `json:"requester"`
	Phone       *string `json:"phone,omitempty"`
	GroupName   *string `json:"group_name,omitempty"`
	Description *string `json:"description,omitempty"`
	IsSeries    bool    `json:"is_series"`
	SeriesID    *string `json:"series_id,omitempty"`

	// Never serialized. The hint is surfaced only on forbidden errors.
	SecretHash *string `json:"-"`
	SecretHint *string `json:"-"`
}

// Series is the parent record of a recurring booking. It is written once,
// together with all of its child occurrences, and never updated afterwards.
type Series struct {
	ID          string  `json:"id"`
	Created     int64   `json:"created"`
	HallID      int64   `json:"hall_id"`
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date"`
	StartTime   string  `json:"start_time"`
	EndTime     string  `json:"end_time"`
	Interval    int     `json:"interval"`
	Weekdays    []int   `json:"weekdays"`
	Requester   string  `json:"requester"`
	GroupName   string  `json:"group_name"`
	Phone       *string `json:"phone,omitempty"`
	Description *string `json:"description,omitempty"`
}

type Module struct {
	db     *sql.DB
	issuer *engine.TokenIssuer
	self   *url.URL
}

func New(d *sql.DB, issuer *engine.TokenIssuer, self *url.URL) *Module {
	db.MustMigrate(d, migration)
	return &Module{db: d, issuer: issuer, self: self}
}

func (m *Module) AttachRoutes(router *engine.Router) {
	router.Handle("GET", "/api/bookings", m.handleList)
	router.Handle("GET", "/api/bookings/:id", m.handleGet)
	router.Handle("GET", "/api/bookings/:id/qr", m.handleManageQR)
	router.Handle("GET", "/api/series/:id", m.handleGetSeries)
	router.Handle("GET", "/ical", m.handleICalFeed)

	router.HandleLimited("POST", "/api/bookings", m.handleCreate)
	router.HandleLimited("POST", "/api/series", m.handleCreateSeries)
	router.HandleLimited("PATCH", "/api/bookings/:id", m.handleUpdate)
	router.HandleLimited("DELETE", "/api/bookings/:id", m.handleDelete)
}

func (m *Module) handleList(r *http.Request, ps httprouter.Params) engine.Response {
	q := r.URL.Query()
	hallID, err := strconv.ParseInt(q.Get("hall"), 10, 64)
	if err != nil {
		return engine.ClientErrorf(http.StatusBadRequest, "the hall query parameter must be a hall id")
	}
	date, derr := normalizeDate(q.Get("date"))
	if derr != nil {
		return errResponse(derr)
	}

	bookings, qerr := m.queryByHallAndDate(r.Context(), hallID, date)
	if qerr != nil {
		return engine.Error(qerr)
	}
	return engine.JSON(bookings)
}

func (m *Module) handleGet(r *http.Request, ps httprouter.Params) engine.Response {
	b, err := m.queryByID(r.Context(), ps.ByName("id"))
	if err == sql.ErrNoRows {
		return engine.NotFoundf("booking not found")
	}
	if err != nil {
		return engine.Error(err)
	}
	return engine.JSON(b)
}

func (m *Module) handleGetSeries(r *http.Request, ps httprouter.Params) engine.Response {
	s, err := m.querySeriesByID(r.Context(), ps.ByName("id"))
	if err == sql.ErrNoRows {
		return engine.NotFoundf("series not found")
	}
	if err != nil {
		return engine.Error(err)
	}

	occurrences, err := m.queryBySeries(r.Context(), s.ID)
	if err != nil {
		return engine.Error(err)
	}

	return engine.JSON(map[string]any{
		"series":      s,
		"occurrences": occurrences,
	})
}

// handleManageQR renders the booking's manage link as a QR code. The caller
// must already hold a valid manage token - this endpoint only draws it, it
// never mints one.
func (m *Module) handleManageQR(r *http.Request, ps httprouter.Params) engine.Response {
	id := ps.ByName("id")
	token := r.URL.Query().Get("token")

	claims, err := m.issuer.Verify(token)
	if err != nil || claims.Subject != id {
		return engine.Forbiddenf("a valid manage token is required")
	}

	if _, err := m.queryByID(r.Context(), id); err == sql.ErrNoRows {
		return engine.NotFoundf("booking not found")
	} else if err != nil {
		return engine.Error(err)
	}

	link := fmt.Sprintf("%s/api/bookings/%s?token=%s", m.self, id, url.QueryEscape(token))
	png, err := qrcode.Encode(link, qrcode.Medium, 512)
	if err != nil {
		return engine.Error(err)
	}
	return engine.PNG(png)
}

func (m *Module) queryByID(ctx context.Context, id string) (*Booking, error) {
	row := m.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	return scanBooking(row)
}

func (m *Module) queryByHallAndDate(ctx context.Context, hallID int64, date string) ([]*Booking, error) {
	return m.queryBookings(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE hall_id = $1 AND date = $2
		ORDER BY start_time`, hallID, date)
}

func (m *Module) queryBySeries(ctx context.Context, seriesID string) ([]*Booking, error) {
	return m.queryBookings(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE series_id = $1
		ORDER BY date`, seriesID)
}

func (m *Module) queryBookings(ctx context.Context, query string, args ...any) ([]*Booking, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := []*Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (m *Module) querySeriesByID(ctx context.Context, id string) (*Series, error) {
	s := &Series{}
	var weekdays string
	err := m.db.QueryRowContext(ctx, `
		SELECT id, created, hall_id, start_date, end_date, start_time, end_time,
			interval, weekdays, requester, group_name, phone, description
		FROM booking_series WHERE id = $1`, id).Scan(
		&s.ID, &s.Created, &s.HallID, &s.StartDate, &s.EndDate, &s.StartTime, &s.EndTime,
		&s.Interval, &weekdays, &s.Requester, &s.GroupName, &s.Phone, &s.Description)
	if err != nil {
		return nil, err
	}
	s.Weekdays = splitWeekdays(weekdays)
	return s, nil
}

// hallExists checks the hall directory maintained by the halls module.
func (m *Module) hallExists(ctx context.Context, hallID int64) (bool, error) {
	var one int
	err := m.db.QueryRowContext(ctx, "SELECT 1 FROM halls WHERE id = $1", hallID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

const bookingColumns = `id, created, hall_id, date, start_time, end_time,
	requester, phone, group_name, description, is_series, series_id,
	secret_hash, secret_hint`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*Booking, error) {
	b := &Booking{}
	err := row.Scan(&b.ID, &b.Created, &b.HallID, &b.Date, &b.StartTime, &b.EndTime,
		&b.Requester, &b.Phone, &b.GroupName, &b.Description, &b.IsSeries, &b.SeriesID,
		&b.SecretHash, &b.SecretHint)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func joinWeekdays(weekdays []int) string {
	parts := make([]string, len(weekdays))
	for i, wd := range weekdays {
		parts[i] = strconv.Itoa(wd)
	}
	return strings.Join(parts, ",")
}

func splitWeekdays(s string) []int {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		if n, err := strconv.Atoi(p); err == nil {
			out = append(out, n)
		}
	}
	return out
}

// isUniqueViolation recognizes the sqlite unique constraint error raised when
// two bookings race for the same slot.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
