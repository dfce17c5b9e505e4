package domain

import "context"

// Database defines lifecycle operations for the underlying document store.
// Each implementation (SQLite, Postgres) owns its own migration files and
// strategy, so the whole backend is swappable.
type Database interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error

	Accounts() AccountRepository
	Sessions() SessionRepository
	Users() UserRepository
	Posts() PostRepository
	Saves() SaveRepository
}
