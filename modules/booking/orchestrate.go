package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/commonshall/hallbook/engine"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
)

// manageTokenGrace is how long after its last date a booking's manage token
// stays valid, so cleanup is still possible shortly after the fact.
const manageTokenGrace = 30 * 24 * time.Hour

// CreateBookingRequest is the typed body of POST /api/bookings. The adapter
// boundary ends here: the engine below never sees raw request data.
type CreateBookingRequest struct {
	HallID      int64  `json:"hall_id"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Requester   string `json:"requester"`
	Phone       string `json:"phone"`
	GroupName   string `json:"group_name"`
	Description string `json:"description"`
	EditSecret  string `json:"edit_secret"`
	SecretHint  string `json:"secret_hint"`
}

// CreateSeriesRequest is the typed body of POST /api/series. Exactly one of
// Until / Count may be set; with neither, expansion stops at the default cap.
type CreateSeriesRequest struct {
	HallID      int64  `json:"hall_id"`
	StartDate   string `json:"start_date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Frequency   string `json:"frequency"`
	Weekdays    []int  `json:"weekdays"`
	Interval    int    `json:"interval"`
	Until       string `json:"until"`
	Count       int    `json:"occurrence_count"`
	Requester   string `json:"requester"`
	GroupName   string `json:"group_name"`
	Phone       string `json:"phone"`
	Description string `json:"description"`
}

func (m *Module) handleCreate(r *http.Request, ps httprouter.Params) engine.Response {
	req := &CreateBookingRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		return engine.ClientErrorf(http.StatusBadRequest, "invalid request body: %s", err)
	}

	b, token, err := m.createSingle(r.Context(), req)
	if err != nil {
		return errResponse(err)
	}

	slog.Info("created booking", "id", b.ID, "hall", b.HallID, "date", b.Date)
	return engine.JSONStatus(http.StatusCreated, map[string]any{
		"booking":      b,
		"manage_token": token,
	})
}

func (m *Module) handleCreateSeries(r *http.Request, ps httprouter.Params) engine.Response {
	req := &CreateSeriesRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		return engine.ClientErrorf(http.StatusBadRequest, "invalid request body: %s", err)
	}

	s, occurrences, token, err := m.createSeries(r.Context(), req)
	if err != nil {
		return errResponse(err)
	}

	slog.Info("created booking series", "id", s.ID, "hall", s.HallID, "occurrences", len(occurrences))
	return engine.JSONStatus(http.StatusCreated, map[string]any{
		"series_id":        s.ID,
		"series":           s,
		"occurrence_count": len(occurrences),
		"occurrences":      occurrences,
		"manage_token":     token,
	})
}

// createSingle validates, normalizes, checks the slot, and persists one
// booking. The returned manage token authorizes later deletion of the row.
func (m *Module) createSingle(ctx context.Context, req *CreateBookingRequest) (*Booking, string, error) {
	req.Requester = strings.TrimSpace(req.Requester)
	switch {
	case req.HallID == 0:
		return nil, "", errorf(ErrValidation, "hall_id is required")
	case req.Date == "":
		return nil, "", errorf(ErrValidation, "date is required")
	case req.StartTime == "" || req.EndTime == "":
		return nil, "", errorf(ErrValidation, "start_time and end_time are required")
	case req.Requester == "":
		return nil, "", errorf(ErrValidation, "requester is required")
	}

	date, derr := normalizeDate(req.Date)
	if derr != nil {
		return nil, "", derr
	}
	start, serr := normalizeTime(req.StartTime)
	if serr != nil {
		return nil, "", serr
	}
	end, eerr := normalizeTime(req.EndTime)
	if eerr != nil {
		return nil, "", eerr
	}
	if end <= start {
		return nil, "", errorf(ErrOrdering, "end_time must be after start_time")
	}

	if ok, err := m.hallExists(ctx, req.HallID); err != nil {
		return nil, "", err
	} else if !ok {
		return nil, "", errorf(ErrInvalidHall, "hall %d does not exist", req.HallID)
	}

	if conflict, err := m.findConflict(ctx, req.HallID, date, start, end, ""); err != nil {
		return nil, "", err
	} else if conflict != nil {
		return nil, "", conflictError(conflict.Date, conflict.Requester)
	}

	b := &Booking{
		ID:          uuid.NewString(),
		HallID:      req.HallID,
		Date:        date,
		StartTime:   start,
		EndTime:     end,
		Requester:   req.Requester,
		Phone:       optional(req.Phone),
		GroupName:   optional(req.GroupName),
		Description: optional(req.Description),
	}
	if req.EditSecret != "" {
		hash, err := hashSecret(req.EditSecret)
		if err != nil {
			return nil, "", err
		}
		b.SecretHash = &hash
		b.SecretHint = optional(req.SecretHint)
	}

	_, err := m.db.ExecContext(ctx, `
		INSERT INTO bookings (id, hall_id, date, start_time, end_time, requester,
			phone, group_name, description, is_series, secret_hash, secret_hint)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10, $11)`,
		b.ID, b.HallID, b.Date, b.StartTime, b.EndTime, b.Requester,
		b.Phone, b.GroupName, b.Description, b.SecretHash, b.SecretHint)
	if isUniqueViolation(err) {
		// Lost the race between check and insert - same taxonomy as the pre-check.
		return nil, "", conflictError(date, "")
	}
	if err != nil {
		return nil, "", err
	}

	created, err := m.queryByID(ctx, b.ID)
	if err != nil {
		return nil, "", err
	}

	token, err := m.manageToken(b.ID, date)
	if err != nil {
		return nil, "", err
	}
	return created, token, nil
}

// createSeries expands the recurrence rule, verifies every occurrence is
// conflict-free, and only then writes the parent row plus all children in a
// single transaction. A conflict on any date aborts the whole operation
// before anything is written.
func (m *Module) createSeries(ctx context.Context, req *CreateSeriesRequest) (*Series, []*Booking, string, error) {
	req.Requester = strings.TrimSpace(req.Requester)
	req.GroupName = strings.TrimSpace(req.GroupName)
	switch {
	case req.HallID == 0:
		return nil, nil, "", errorf(ErrValidation, "hall_id is required")
	case req.StartDate == "":
		return nil, nil, "", errorf(ErrValidation, "start_date is required")
	case req.StartTime == "" || req.EndTime == "":
		return nil, nil, "", errorf(ErrValidation, "start_time and end_time are required")
	case req.GroupName == "":
		return nil, nil, "", errorf(ErrValidation, "group_name is required for a series")
	case req.Frequency == "":
		return nil, nil, "", errorf(ErrValidation, "frequency is required")
	}

	freq := Frequency(strings.ToLower(req.Frequency))
	if freq != FreqWeekly && freq != FreqBiweekly && freq != FreqMonthly {
		return nil, nil, "", errorf(ErrValidation, "frequency must be weekly, biweekly, or monthly")
	}
	for _, wd := range req.Weekdays {
		if wd < 0 || wd > 6 {
			return nil, nil, "", errorf(ErrValidation, "weekdays must be in 0 (Sunday) .. 6 (Saturday)")
		}
	}

	startDate, derr := normalizeDate(req.StartDate)
	if derr != nil {
		return nil, nil, "", derr
	}
	start, serr := normalizeTime(req.StartTime)
	if serr != nil {
		return nil, nil, "", serr
	}
	end, eerr := normalizeTime(req.EndTime)
	if eerr != nil {
		return nil, nil, "", eerr
	}
	if end <= start {
		return nil, nil, "", errorf(ErrOrdering, "end_time must be after start_time")
	}

	until := ""
	if req.Until != "" {
		var uerr *Error
		if until, uerr = normalizeDate(req.Until); uerr != nil {
			return nil, nil, "", uerr
		}
	}

	if ok, err := m.hallExists(ctx, req.HallID); err != nil {
		return nil, nil, "", err
	} else if !ok {
		return nil, nil, "", errorf(ErrInvalidHall, "hall %d does not exist", req.HallID)
	}

	weekdays := make([]time.Weekday, len(req.Weekdays))
	for i, wd := range req.Weekdays {
		weekdays[i] = time.Weekday(wd)
	}
	dates, xerr := expand(startDate, recurrenceRule{
		Frequency: freq,
		Interval:  req.Interval,
		Weekdays:  weekdays,
		Until:     until,
		Count:     req.Count,
	})
	if xerr != nil {
		return nil, nil, "", xerr
	}

	// Every occurrence must be free before any row is written.
	for _, date := range dates {
		if conflict, err := m.findConflict(ctx, req.HallID, date, start, end, ""); err != nil {
			return nil, nil, "", err
		} else if conflict != nil {
			return nil, nil, "", conflictError(conflict.Date, conflict.Requester)
		}
	}

	interval := req.Interval
	if freq == FreqBiweekly {
		interval = 2
	}
	if interval < 1 {
		interval = 1
	}
	s := &Series{
		ID:          uuid.NewString(),
		HallID:      req.HallID,
		StartDate:   dates[0],
		EndDate:     dates[len(dates)-1],
		StartTime:   start,
		EndTime:     end,
		Interval:    interval,
		Weekdays:    realizedWeekdays(dates),
		Requester:   req.Requester,
		GroupName:   req.GroupName,
		Phone:       optional(req.Phone),
		Description: optional(req.Description),
	}

	if err := m.insertSeriesTx(ctx, s, dates); err != nil {
		return nil, nil, "", err
	}

	created, err := m.querySeriesByID(ctx, s.ID)
	if err != nil {
		return nil, nil, "", err
	}
	occurrences, err := m.queryBySeries(ctx, s.ID)
	if err != nil {
		return nil, nil, "", err
	}
	if len(occurrences) != len(dates) {
		slog.Error("series occurrence count mismatch after commit", "series", s.ID, "expected", len(dates), "actual", len(occurrences))
		return nil, nil, "", errorf(ErrPartialWrite, "series %s persisted %d of %d occurrences", s.ID, len(occurrences), len(dates))
	}

	token, err := m.manageToken("series:"+s.ID, s.EndDate)
	if err != nil {
		return nil, nil, "", err
	}
	return created, occurrences, token, nil
}

// insertSeriesTx writes the parent and every child occurrence as one unit.
func (m *Module) insertSeriesTx(ctx context.Context, s *Series, dates []string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO booking_series (id, hall_id, start_date, end_date, start_time,
			end_time, interval, weekdays, requester, group_name, phone, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		s.ID, s.HallID, s.StartDate, s.EndDate, s.StartTime, s.EndTime,
		s.Interval, joinWeekdays(s.Weekdays), s.Requester, s.GroupName, s.Phone, s.Description)
	if err != nil {
		return err
	}

	// Bulk insert the children in one statement.
	query := strings.Builder{}
	query.WriteString(`INSERT INTO bookings (id, hall_id, date, start_time, end_time,
		requester, phone, group_name, description, is_series, series_id) VALUES `)
	args := make([]any, 0, len(dates)*10)
	for i, date := range dates {
		if i > 0 {
			query.WriteString(",")
		}
		query.WriteString(fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, 1, $%d)",
			i*10+1, i*10+2, i*10+3, i*10+4, i*10+5, i*10+6, i*10+7, i*10+8, i*10+9, i*10+10))
		args = append(args, uuid.NewString(), s.HallID, date, s.StartTime, s.EndTime,
			s.Requester, s.Phone, s.GroupName, s.Description, s.ID)
	}
	_, err = tx.ExecContext(ctx, query.String(), args...)
	if isUniqueViolation(err) {
		return conflictError("", "")
	}
	if err != nil {
		return err
	}

	return tx.Commit()
}

// manageToken signs a deletion-capable token scoped to the given subject,
// valid until shortly after the booking's (or series') last date.
func (m *Module) manageToken(subject, lastDate string) (string, error) {
	exp := parseDate(lastDate).Add(24*time.Hour + manageTokenGrace)
	return m.issuer.Sign(&jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(exp),
	})
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
