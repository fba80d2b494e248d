package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/equipment-lending/internal/model"
)

// ItemRepo provides CRUD and counter operations for the items table.
type ItemRepo struct {
	q dbtx
}

const itemColumns = `id, name, category, condition_note, total_quantity, available_quantity, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(s rowScanner) (*model.Item, error) {
	var it model.Item
	if err := s.Scan(&it.ID, &it.Name, &it.Category, &it.ConditionNote,
		&it.TotalQuantity, &it.AvailableQuantity, &it.CreatedAt, &it.UpdatedAt); err != nil {
		return nil, err
	}
	return &it, nil
}

// GetByID returns the item or ErrNotFound.
func (r *ItemRepo) GetByID(ctx context.Context, id uint64) (*model.Item, error) {
	it, err := scanItem(r.q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return it, nil
}

// GetByIDForUpdate is GetByID with a row lock held until the surrounding
// transaction ends.
func (r *ItemRepo) GetByIDForUpdate(ctx context.Context, id uint64) (*model.Item, error) {
	it, err := scanItem(r.q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ? FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return it, nil
}

// List returns items ordered by name. A category filter takes precedence
// over AvailableOnly, matching the catalog's browse behaviour.
func (r *ItemRepo) List(ctx context.Context, f model.ItemFilter) ([]model.Item, error) {
	q := `SELECT ` + itemColumns + ` FROM items`
	var args []any
	switch {
	case strings.TrimSpace(f.Category) != "":
		q += ` WHERE LOWER(category) = ?`
		args = append(args, strings.ToLower(strings.TrimSpace(f.Category)))
	case f.AvailableOnly:
		q += ` WHERE available_quantity > 0`
	}
	q += ` ORDER BY name, id`

	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []model.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// Create inserts the item and fills in its generated ID and timestamps.
func (r *ItemRepo) Create(ctx context.Context, it *model.Item) error {
	const q = `INSERT INTO items (name, category, condition_note, total_quantity, available_quantity) VALUES (?, ?, ?, ?, ?)`
	res, err := r.q.ExecContext(ctx, q, it.Name, it.Category, it.ConditionNote, it.TotalQuantity, it.AvailableQuantity)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	// Query back the full row to populate timestamps.
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*it = *created
	return nil
}

// Update overwrites every editable column of an existing item.
func (r *ItemRepo) Update(ctx context.Context, it *model.Item) error {
	const q = `UPDATE items SET name = ?, category = ?, condition_note = ?, total_quantity = ?, available_quantity = ? WHERE id = ?`
	if _, err := r.q.ExecContext(ctx, q, it.Name, it.Category, it.ConditionNote, it.TotalQuantity, it.AvailableQuantity, it.ID); err != nil {
		return err
	}
	updated, err := r.GetByID(ctx, it.ID)
	if err != nil {
		return err
	}
	*it = *updated
	return nil
}

// Delete removes the item. The returned bool is false when no row matched.
func (r *ItemRepo) Delete(ctx context.Context, id uint64) (bool, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// AdjustAvailable applies delta in a single statement so concurrent
// callers never lose an update, and clamps into [0, total_quantity].
func (r *ItemRepo) AdjustAvailable(ctx context.Context, id uint64, delta int) error {
	const q = `UPDATE items
SET available_quantity = LEAST(GREATEST(available_quantity + ?, 0), total_quantity)
WHERE id = ?`
	_, err := r.q.ExecContext(ctx, q, delta, id)
	return err
}
