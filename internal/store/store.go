package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"workshop-service/internal/apperr"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store is the Postgres implementation of Repository.
type Store struct {
	db *sqlx.DB
}

var _ Repository = (*Store)(nil)

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies the embedded schema files in name order. Every file is
// written to be re-runnable.
func (s *Store) Migrate(ctx context.Context) error {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		body, err := migrations.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return nil
}

// WithTx runs fn inside a read-committed transaction. Row locks taken with
// FOR UPDATE serialize concurrent writers on the same rows.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &txStore{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// txStore implements Tx on top of one *sqlx.Tx.
type txStore struct {
	tx *sqlx.Tx
}

var _ Tx = (*txStore)(nil)

// getOne runs a single-row query and maps sql.ErrNoRows onto a typed
// not-found error for entity/id.
func getOne(ctx context.Context, q sqlx.QueryerContext, dest interface{}, entity string, id int64, query string, args ...interface{}) error {
	err := sqlx.GetContext(ctx, q, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(entity, id)
	}
	return err
}

// findOne is getOne for optional rows: it reports found=false instead of an
// error.
func findOne(ctx context.Context, q sqlx.QueryerContext, dest interface{}, query string, args ...interface{}) (bool, error) {
	err := sqlx.GetContext(ctx, q, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// uniqueViolation maps a Postgres 23505 onto ErrDuplicate.
func uniqueViolation(err error, what string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return apperr.Precondition(apperr.ErrDuplicate, "%s already exists", what)
	}
	return err
}
