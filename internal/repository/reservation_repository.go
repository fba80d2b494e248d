package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/equipment-lending/internal/model"
)

// ReservationRepo provides CRUD operations for the reservations table.
// start_date and end_date are DATE columns; every timestamp is stored in
// UTC (the DSN sets loc=UTC).
type ReservationRepo struct {
	q dbtx
}

const reservationColumns = `id, requester_id, item_id, start_date, end_date, quantity, status, decided_at, decision_note, created_at`

// scanReservation reads one row and folds the nullable decision columns
// into a model.Decision.
func scanReservation(s rowScanner) (*model.Reservation, error) {
	var (
		res       model.Reservation
		status    string
		decidedAt sql.NullTime
		note      sql.NullString
	)
	err := s.Scan(&res.ID, &res.RequesterID, &res.ItemID, &res.StartDate, &res.EndDate,
		&res.Quantity, &status, &decidedAt, &note, &res.CreatedAt)
	if err != nil {
		return nil, err
	}
	res.Status = model.ReservationStatus(status)
	res.StartDate = model.DateOnly(res.StartDate)
	res.EndDate = model.DateOnly(res.EndDate)
	if decidedAt.Valid {
		res.Decision = model.Decided{At: decidedAt.Time.UTC(), Note: note.String}
	} else {
		res.Decision = model.Undecided{}
	}
	return &res, nil
}

// decisionArgs is the inverse of the folding done in scanReservation.
func decisionArgs(d model.Decision) (sql.NullTime, sql.NullString) {
	at, note, ok := model.DecisionOf(d)
	if !ok {
		return sql.NullTime{}, sql.NullString{}
	}
	return sql.NullTime{Time: at, Valid: true}, sql.NullString{String: note, Valid: note != ""}
}

func (r *ReservationRepo) queryList(ctx context.Context, q string, args ...any) ([]model.Reservation, error) {
	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Reservation{}
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

// GetByID returns the reservation or ErrNotFound.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	res, err := scanReservation(r.q.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return res, nil
}

// Create inserts a reservation and populates its generated ID.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	const q = `INSERT INTO reservations (requester_id, item_id, start_date, end_date, quantity, status, decided_at, decision_note, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	at, note := decisionArgs(res.Decision)
	result, err := r.q.ExecContext(ctx, q, res.RequesterID, res.ItemID,
		res.StartDate.Format(model.DateLayout), res.EndDate.Format(model.DateLayout),
		res.Quantity, string(res.Status), at, note, res.CreatedAt.UTC())
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return nil
}

// Update persists status and decision. Requester, item, dates, quantity
// and creation time never change after creation.
func (r *ReservationRepo) Update(ctx context.Context, res *model.Reservation) error {
	const q = `UPDATE reservations SET status = ?, decided_at = ?, decision_note = ? WHERE id = ?`
	at, note := decisionArgs(res.Decision)
	result, err := r.q.ExecContext(ctx, q, string(res.Status), at, note, res.ID)
	if err != nil {
		return err
	}
	// MySQL reports changed rows, so zero does not prove absence; check
	// existence only in that case.
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		if _, err := r.GetByID(ctx, res.ID); err != nil {
			return err
		}
	}
	return nil
}

// List returns reservations matching f, newest first.
func (r *ReservationRepo) List(ctx context.Context, f model.ReservationFilter) ([]model.Reservation, error) {
	var (
		where []string
		args  []any
	)
	if f.RequesterID != 0 {
		where = append(where, "requester_id = ?")
		args = append(args, f.RequesterID)
	}
	if f.ItemID != 0 {
		where = append(where, "item_id = ?")
		args = append(args, f.ItemID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	q := `SELECT ` + reservationColumns + ` FROM reservations`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY id DESC`
	return r.queryList(ctx, q, args...)
}

// ListActiveOverlapping implements the inclusive overlap test
// start_date <= end AND end_date >= start.
func (r *ReservationRepo) ListActiveOverlapping(ctx context.Context, itemID uint64, statuses []model.ReservationStatus, start, end time.Time) ([]model.Reservation, error) {
	if len(statuses) == 0 {
		return []model.Reservation{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	q := `SELECT ` + reservationColumns + ` FROM reservations
WHERE item_id = ? AND status IN (` + placeholders + `) AND start_date <= ? AND end_date >= ?
ORDER BY id`
	args := make([]any, 0, len(statuses)+3)
	args = append(args, itemID)
	for _, s := range statuses {
		args = append(args, string(s))
	}
	args = append(args, end.Format(model.DateLayout), start.Format(model.DateLayout))
	return r.queryList(ctx, q, args...)
}

// CountActiveByItem counts APPROVED and ISSUED reservations of an item.
func (r *ReservationRepo) CountActiveByItem(ctx context.Context, itemID uint64) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE item_id = ? AND status IN (?, ?)`,
		itemID, string(model.StatusApproved), string(model.StatusIssued)).Scan(&n)
	return n, err
}
