package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/msomdec/snapgram/internal/domain"
)

type accountRepo struct {
	db *sql.DB
}

func (r *accountRepo) Create(ctx context.Context, account *domain.Account) error {
	now := time.Now().UTC()
	if account.ID == "" {
		account.ID = domain.NewID()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, email, name, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		account.ID, account.Email, account.Name, account.PasswordHash, now,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return domain.ErrDuplicateEmail
		}
		return fmt.Errorf("insert account: %w", err)
	}
	account.CreatedAt = now
	return nil
}

func (r *accountRepo) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.getOne(ctx, "SELECT id, email, name, password_hash, created_at FROM accounts WHERE id = ?", id)
}

func (r *accountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.getOne(ctx, "SELECT id, email, name, password_hash, created_at FROM accounts WHERE email = ?", email)
}

func (r *accountRepo) getOne(ctx context.Context, query string, arg any) (*domain.Account, error) {
	a := &domain.Account{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query account: %w", err)
	}
	return a, nil
}
