package postgres

import (
	"context"
	"fmt"

	"github.com/msomdec/snapgram/internal/domain"
)

type accountRepo struct {
	db dbtx
}

func (r *accountRepo) Create(ctx context.Context, account *domain.Account) error {
	now := timestamp()
	if account.ID == "" {
		account.ID = domain.NewID()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO accounts (id, email, name, password_hash, created_at) VALUES ($1, $2, $3, $4, $5)`,
		account.ID, account.Email, account.Name, account.PasswordHash, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateEmail
		}
		return fmt.Errorf("insert account: %w", err)
	}
	account.CreatedAt = now
	return nil
}

func (r *accountRepo) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.getOne(ctx, "SELECT id, email, name, password_hash, created_at FROM accounts WHERE id = $1", id)
}

func (r *accountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.getOne(ctx, "SELECT id, email, name, password_hash, created_at FROM accounts WHERE email = $1", email)
}

func (r *accountRepo) getOne(ctx context.Context, query string, arg any) (*domain.Account, error) {
	a := &domain.Account{}
	err := r.db.QueryRow(ctx, query, arg).Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		return nil, notFound(err, "query account")
	}
	return a, nil
}

type sessionRepo struct {
	db dbtx
}

func (r *sessionRepo) Create(ctx context.Context, session *domain.Session) error {
	now := timestamp()
	_, err := r.db.Exec(ctx,
		`INSERT INTO sessions (id, account_id, created_at, expires_at) VALUES ($1, $2, $3, $4)`,
		session.ID, session.AccountID, now, session.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	session.CreatedAt = now
	return nil
}

func (r *sessionRepo) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	s := &domain.Session{}
	err := r.db.QueryRow(ctx,
		`SELECT id, account_id, created_at, expires_at, revoked_at FROM sessions WHERE id = $1`, id,
	).Scan(&s.ID, &s.AccountID, &s.CreatedAt, &s.ExpiresAt, &s.RevokedAt)
	if err != nil {
		return nil, notFound(err, "query session")
	}
	return s, nil
}

func (r *sessionRepo) Revoke(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE sessions SET revoked_at = $1 WHERE id = $2 AND revoked_at IS NULL`,
		timestamp(), id,
	)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
