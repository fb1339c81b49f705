// Package database owns the Postgres connection pool and schema
// migrations shared by every repository in pkg/recorder and
// pkg/timeaccounting.
package database

import (
	"context"
	"database/sql"
	"embed"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	apperrors "github.com/obsdb/odb/internal/errors"
	"github.com/obsdb/odb/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Open connects to Postgres via pgx and wraps the pool in an *sqlx.DB
// for the struct-scanning convenience the repository layer relies on.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", cfg.DSN())
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "connecting to database")
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "database unreachable")
	}
	return db, nil
}

// Migrate applies every forward migration under migrations/ using goose,
// against the embedded SQL set (spec.md §6 "Persisted layout").
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "setting goose dialect")
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "applying migrations")
	}
	return nil
}

// NoTransaction is the marker type required by read-only repository
// methods, so that a transaction handle can never be accidentally
// omitted or nested (spec.md §5, §9 "Transactions as capabilities").
type NoTransaction struct{}

// Tx is the capability handle mutation APIs require. BeginTx returns
// one (an *sqlx.Tx wrapped to add CommitOrRollback), so repositories
// never reach for global connection state.
type Tx interface {
	sqlx.ExtContext
	CommitOrRollback(err *error)
}

// txHandle adapts an *sqlx.Tx to the Tx capability interface.
type txHandle struct {
	*sqlx.Tx
}

// CommitOrRollback commits tx unless *err is non-nil, in which case it
// rolls back. Intended for `defer tx.CommitOrRollback(&err)`.
func (t txHandle) CommitOrRollback(err *error) {
	if *err != nil {
		_ = t.Tx.Rollback()
		return
	}
	*err = t.Tx.Commit()
}

// BeginTx starts a new transaction, satisfying "every mutation that
// crosses more than one table executes inside a single database
// transaction" (spec.md §5).
func BeginTx(ctx context.Context, db *sqlx.DB) (Tx, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "beginning transaction")
	}
	return txHandle{Tx: tx}, nil
}
