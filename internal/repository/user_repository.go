package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/equipment-lending/internal/model"
)

// UserRepo mirrors the 'users' table.
type UserRepo struct{ q dbtx }

const userColumns = `id, username, password_hash, display_name, role, created_at`

func scanUser(s rowScanner) (*model.User, error) {
	var u model.User
	var role string
	if err := s.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.DisplayName, &role, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}

// Create inserts the user and sets its ID. The caller hashes the password.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Username = strings.ToLower(strings.TrimSpace(u.Username))
	res, err := r.q.ExecContext(ctx,
		"INSERT INTO users (username, password_hash, display_name, role) VALUES (?,?,?,?)",
		u.Username, u.PasswordHash, u.DisplayName, string(u.Role))
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

// GetByUsername fetches a user by normalized username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	u, err := scanUser(r.q.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username=? LIMIT 1", username))
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	u, err := scanUser(r.q.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

// Count returns the number of accounts; the demo seeder only runs on zero.
func (r *UserRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n)
	return n, err
}
