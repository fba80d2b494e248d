package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// dbtx is the subset of *sql.DB and *sql.Tx used by the MySQL
// repositories, so the same code runs inside and outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// MySQLStore is the Store backed by MySQL.
type MySQLStore struct {
	db           *sql.DB
	tx           *sql.Tx
	items        *ItemRepo
	reservations *ReservationRepo
	users        *UserRepo
}

// NewMySQLStore returns a Store whose repositories run on db.
func NewMySQLStore(db *sql.DB) *MySQLStore {
	return newMySQLStore(db, nil)
}

func newMySQLStore(db *sql.DB, tx *sql.Tx) *MySQLStore {
	var q dbtx = db
	if tx != nil {
		q = tx
	}
	return &MySQLStore{
		db:           db,
		tx:           tx,
		items:        &ItemRepo{q: q},
		reservations: &ReservationRepo{q: q},
		users:        &UserRepo{q: q},
	}
}

// DB exposes the underlying pool for health checks and migrations.
func (s *MySQLStore) DB() *sql.DB { return s.db }

func (s *MySQLStore) Items() ItemRepository               { return s.items }
func (s *MySQLStore) Reservations() ReservationRepository { return s.reservations }
func (s *MySQLStore) Users() UserRepository               { return s.users }

// WithTx begins a transaction, runs fn and commits. Any error from fn, a
// panic or a failed commit leaves the database untouched.
func (s *MySQLStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(newMySQLStore(s.db, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// isDuplicate reports whether err is MySQL error 1062 (duplicate entry).
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

// notFound converts sql.ErrNoRows into ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
