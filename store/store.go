package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when the addressed product, user or cart does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidReference is returned when a cart operation names a product that does not exist.
	ErrInvalidReference = errors.New("invalid product reference")
	// ErrConflict is returned when a concurrent write lost on a unique constraint.
	ErrConflict = errors.New("conflicting write")
)

// maxTxAttempts bounds retries of transactions aborted by serialization failures or deadlocks.
const maxTxAttempts = 3

// ProductRow, CartRow, UserRow are simple structs representing DB rows
type ProductRow struct {
	ID          int64
	Name        string
	Description string
	Brand       string
	Price       decimal.Decimal
	Category    string
	CreatedAt   time.Time
	Available   bool
	Quantity    int
	ImageURL    sql.NullString
}

// CartRow is a cart item joined with the live product it references.
type CartRow struct {
	ProductID int64
	Name      string
	Price     decimal.Decimal
	ImageURL  sql.NullString
	Quantity  int
}

type UserRow struct {
	ID           int64
	Username     string
	PasswordHash string
	Roles        []string
	CreatedAt    time.Time
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore is a Store backed by Postgres. It keeps no state besides the pool:
// concurrent writers are arbitrated by transactions and unique constraints.
type PostgresStore struct {
	DB  *sql.DB
	Log *log.Logger
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	DB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := DB.Ping(); err != nil {
		_ = DB.Close()
		return nil, err
	}
	return &PostgresStore{DB: DB}, nil
}

func (s *PostgresStore) Close() error { return s.DB.Close() }

// Migrate applies the schema. Statements are idempotent.
func (s *PostgresStore) Migrate(ctx context.Context, schema string) error {
	_, err := s.DB.ExecContext(ctx, schema)
	return err
}

func (s *PostgresStore) logf(format string, args ...any) {
	if s.Log != nil {
		s.Log.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// withTx runs fn in a transaction, retrying a bounded number of times when Postgres
// aborts it with a serialization failure or deadlock.
func (s *PostgresStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.runTx(ctx, fn)
		if !isRetryable(err) {
			return classify(err)
		}
		s.logf("store: transaction attempt %d/%d aborted: %v", attempt, maxTxAttempts, err)
	}
	return fmt.Errorf("%w: %v", ErrConflict, err)
}

func (s *PostgresStore) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	// ensure rollback on early return
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func isRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code.Name() {
	case "serialization_failure", "deadlock_detected":
		return true
	}
	return false
}

// classify maps constraint violations onto the package's sentinel errors.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "unique_violation":
			return fmt.Errorf("%w: %s", ErrConflict, pqErr.Message)
		case "foreign_key_violation":
			return fmt.Errorf("%w: %s", ErrInvalidReference, pqErr.Message)
		}
	}
	return err
}
