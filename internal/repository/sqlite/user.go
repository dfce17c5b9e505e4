package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/msomdec/snapgram/internal/domain"
)

const defaultUserListLimit = 25

const userColumns = `id, account_id, name, username, email, image_url, image_id, bio, created_at, updated_at`

// UserRepository implements domain.UserRepository using SQLite.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new SQLite-backed UserRepository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db.SqlDB}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	now := time.Now().UTC()
	if user.ID == "" {
		user.ID = domain.NewID()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, account_id, name, username, email, image_url, image_id, bio, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.AccountID, user.Name, user.Username, user.Email,
		user.ImageURL, user.ImageID, user.Bio, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query user by id: %w", err)
	}
	return user, nil
}

func (r *UserRepository) GetByAccountID(ctx context.Context, accountID string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE account_id = ?
		 ORDER BY created_at, id LIMIT 1`, accountID)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query user by account: %w", err)
	}
	return user, nil
}

func (r *UserRepository) List(ctx context.Context, opts domain.UserListOptions) ([]domain.User, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultUserListLimit
	}

	query := `SELECT ` + userColumns + ` FROM users`
	args := []any{}
	if opts.After != "" {
		if err := r.requireUser(ctx, opts.After); err != nil {
			return nil, err
		}
		query += ` WHERE created_at < (SELECT created_at FROM users WHERE id = ?)
		 OR (created_at = (SELECT created_at FROM users WHERE id = ?) AND id < ?)`
		args = append(args, opts.After, opts.After, opts.After)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET name = ?, bio = ?, image_url = ?, image_id = ?, updated_at = ?
		 WHERE id = ?`,
		user.Name, user.Bio, user.ImageURL, user.ImageID, now, user.ID,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}

	user.UpdatedAt = now
	return nil
}

func (r *UserRepository) requireUser(ctx context.Context, id string) error {
	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: cursor user %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("check cursor user: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*domain.User, error) {
	u := &domain.User{}
	err := s.Scan(&u.ID, &u.AccountID, &u.Name, &u.Username, &u.Email,
		&u.ImageURL, &u.ImageID, &u.Bio, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}
