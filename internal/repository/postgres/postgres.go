// Package postgres implements the document store on PostgreSQL through a
// pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/msomdec/snapgram/internal/domain"
	"github.com/msomdec/snapgram/internal/repository/postgres/migrations"
)

// DB wraps the pgx pool and hands out the repositories built on it.
type DB struct {
	Pool *pgxpool.Pool
}

var _ domain.Database = (*DB)(nil)

// New connects to the database at dsn and verifies the connection.
func New(ctx context.Context, dsn string, maxConns int32) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement
	cfg.ConnConfig.StatementCacheCapacity = 256

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &DB{Pool: pool}, nil
}

func (db *DB) Migrate(ctx context.Context) error {
	return migrations.Run(ctx, db.Pool)
}

func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

func (db *DB) Close() error {
	db.Pool.Close()
	return nil
}

func (db *DB) Accounts() domain.AccountRepository { return &accountRepo{db: db.Pool} }
func (db *DB) Sessions() domain.SessionRepository { return &sessionRepo{db: db.Pool} }
func (db *DB) Users() domain.UserRepository       { return &userRepo{db: db.Pool} }
func (db *DB) Posts() domain.PostRepository       { return &postRepo{db: db.Pool} }
func (db *DB) Saves() domain.SaveRepository       { return &saveRepo{db: db.Pool} }

// FileStore returns a FileStore that keeps file bytes in a BYTEA table.
func (db *DB) FileStore() domain.FileStore { return &fileStore{db: db.Pool} }

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// notFound maps pgx.ErrNoRows to domain.ErrNotFound and wraps everything else.
func notFound(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

// timestamp matches the microsecond precision of TIMESTAMPTZ so values returned
// to callers equal what a later read yields.
func timestamp() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
