package booking

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/commonshall/hallbook/engine"
	"github.com/julienschmidt/httprouter"
)

// UpdateBookingRequest is a partial patch: nil fields keep their current
// values. The overlap re-check always runs against the merged result, so
// moving a booking to another hall re-checks the new hall's agenda.
type UpdateBookingRequest struct {
	HallID      *int64  `json:"hall_id"`
	Date        *string `json:"date"`
	StartTime   *string `json:"start_time"`
	EndTime     *string `json:"end_time"`
	Requester   *string `json:"requester"`
	Phone       *string `json:"phone"`
	GroupName   *string `json:"group_name"`
	Description *string `json:"description"`
}

// DeleteBookingRequest carries the optional credential and the scope of the
// deletion. Mode "series" removes every occurrence sharing the row's series.
type DeleteBookingRequest struct {
	Secret string `json:"secret"`
	Token  string `json:"token"`
	Mode   string `json:"mode"`
}

func (m *Module) handleUpdate(r *http.Request, ps httprouter.Params) engine.Response {
	req := &UpdateBookingRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		return engine.ClientErrorf(http.StatusBadRequest, "invalid request body: %s", err)
	}

	b, err := m.update(r.Context(), ps.ByName("id"), req)
	if err != nil {
		return errResponse(err)
	}

	slog.Info("updated booking", "id", b.ID, "hall", b.HallID, "date", b.Date)
	return engine.JSON(b)
}

func (m *Module) handleDelete(r *http.Request, ps httprouter.Params) engine.Response {
	req := &DeleteBookingRequest{}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(req); err != nil {
			return engine.ClientErrorf(http.StatusBadRequest, "invalid request body: %s", err)
		}
	}

	deleted, err := m.delete(r.Context(), ps.ByName("id"), req)
	if err != nil {
		return errResponse(err)
	}

	slog.Info("deleted booking", "id", ps.ByName("id"), "mode", req.Mode, "rows", deleted)
	return engine.JSON(map[string]any{"deleted": deleted})
}

// update merges the patch over the current row, re-validates ordering, and
// re-runs the overlap check against the effective hall/date/interval with
// the row itself excluded. Only then are the patched fields persisted.
func (m *Module) update(ctx context.Context, id string, req *UpdateBookingRequest) (*Booking, error) {
	if req.HallID == nil && req.Date == nil && req.StartTime == nil && req.EndTime == nil &&
		req.Requester == nil && req.Phone == nil && req.GroupName == nil && req.Description == nil {
		return nil, errorf(ErrValidation, "no fields to update")
	}

	current, err := m.queryByID(ctx, id)
	if err == sql.ErrNoRows {
		return nil, errorf(ErrNotFound, "booking %s not found", id)
	}
	if err != nil {
		return nil, err
	}

	// Effective post-patch state.
	hallID := current.HallID
	date, start, end := current.Date, current.StartTime, current.EndTime

	sets := []string{}
	args := []any{}
	setArg := func(column string, val any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)+1))
		args = append(args, val)
	}

	if req.HallID != nil {
		if ok, err := m.hallExists(ctx, *req.HallID); err != nil {
			return nil, err
		} else if !ok {
			return nil, errorf(ErrInvalidHall, "hall %d does not exist", *req.HallID)
		}
		hallID = *req.HallID
		setArg("hall_id", hallID)
	}
	if req.Date != nil {
		normalized, derr := normalizeDate(*req.Date)
		if derr != nil {
			return nil, derr
		}
		date = normalized
		setArg("date", date)
	}
	if req.StartTime != nil {
		normalized, terr := normalizeTime(*req.StartTime)
		if terr != nil {
			return nil, terr
		}
		start = normalized
		setArg("start_time", start)
	}
	if req.EndTime != nil {
		normalized, terr := normalizeTime(*req.EndTime)
		if terr != nil {
			return nil, terr
		}
		end = normalized
		setArg("end_time", end)
	}
	if req.Requester != nil {
		trimmed := strings.TrimSpace(*req.Requester)
		if trimmed == "" {
			return nil, errorf(ErrValidation, "requester cannot be blanked")
		}
		setArg("requester", trimmed)
	}
	if req.Phone != nil {
		setArg("phone", optional(*req.Phone))
	}
	if req.GroupName != nil {
		setArg("group_name", optional(*req.GroupName))
	}
	if req.Description != nil {
		setArg("description", optional(*req.Description))
	}

	if end <= start {
		return nil, errorf(ErrOrdering, "end_time must be after start_time")
	}

	if conflict, cerr := m.findConflict(ctx, hallID, date, start, end, id); cerr != nil {
		return nil, cerr
	} else if conflict != nil {
		return nil, conflictError(conflict.Date, conflict.Requester)
	}

	args = append(args, id)
	_, err = m.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE bookings SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args)), args...)
	if isUniqueViolation(err) {
		return nil, conflictError(date, "")
	}
	if err != nil {
		return nil, err
	}

	return m.queryByID(ctx, id)
}

// delete removes the booking, or its whole series in series mode. Rows that
// store a secret hash require either the matching plaintext secret or a
// manage token scoped to the row (or its series); rows without a hash stay
// deletable with no credential at all.
func (m *Module) delete(ctx context.Context, id string, req *DeleteBookingRequest) (int64, error) {
	mode := req.Mode
	if mode == "" {
		mode = "single"
	}
	if mode != "single" && mode != "series" {
		return 0, errorf(ErrValidation, "mode must be single or series")
	}

	b, err := m.queryByID(ctx, id)
	if err == sql.ErrNoRows {
		return 0, errorf(ErrNotFound, "booking %s not found", id)
	}
	if err != nil {
		return 0, err
	}

	if b.SecretHash != nil && !m.authorized(b, req) {
		e := errorf(ErrForbidden, "this booking requires its edit secret to delete")
		if b.SecretHint != nil {
			e.SecretHint = *b.SecretHint
		}
		return 0, e
	}

	if mode == "single" {
		result, err := m.db.ExecContext(ctx, "DELETE FROM bookings WHERE id = $1", id)
		if err != nil {
			return 0, err
		}
		n, _ := result.RowsAffected()
		return n, nil
	}

	if b.SeriesID == nil {
		return 0, errorf(ErrNotASeries, "booking %s is not part of a series", id)
	}
	return m.deleteSeriesTx(ctx, *b.SeriesID)
}

// deleteSeriesTx removes every occurrence of the series and its parent row
// as one unit, so no orphan state can survive a crash.
func (m *Module) deleteSeriesTx(ctx context.Context, seriesID string) (int64, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, "DELETE FROM bookings WHERE series_id = $1", seriesID)
	if err != nil {
		return 0, err
	}
	n, _ := result.RowsAffected()

	if _, err := tx.ExecContext(ctx, "DELETE FROM booking_series WHERE id = $1", seriesID); err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// authorized reports whether the request carries a credential matching the
// booking: the plaintext edit secret, a manage token for the row itself, or
// a manage token for the row's series.
func (m *Module) authorized(b *Booking, req *DeleteBookingRequest) bool {
	if req.Secret != "" && verifySecret(*b.SecretHash, req.Secret) {
		return true
	}
	if req.Token == "" {
		return false
	}
	claims, err := m.issuer.Verify(req.Token)
	if err != nil {
		return false
	}
	if claims.Subject == b.ID {
		return true
	}
	return b.SeriesID != nil && claims.Subject == "series:"+*b.SeriesID
}
