package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/msomdec/snapgram/internal/domain"
)

const userColumns = `id, account_id, name, username, email, image_url, image_id, bio, created_at, updated_at`

type userRepo struct {
	db dbtx
}

func (r *userRepo) Create(ctx context.Context, user *domain.User) error {
	now := timestamp()
	if user.ID == "" {
		user.ID = domain.NewID()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (id, account_id, name, username, email, image_url, image_id, bio, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
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

func (r *userRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "query user by id")
	}
	return u, nil
}

func (r *userRepo) GetByAccountID(ctx context.Context, accountID string) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE account_id = $1 ORDER BY created_at, id LIMIT 1`, accountID))
	if err != nil {
		return nil, notFound(err, "query user by account")
	}
	return u, nil
}

func (r *userRepo) List(ctx context.Context, opts domain.UserListOptions) ([]domain.User, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 25
	}

	var (
		rows pgx.Rows
		err  error
	)
	if opts.After == "" {
		rows, err = r.db.Query(ctx,
			`SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	} else {
		var cursor time.Time
		if err := r.db.QueryRow(ctx, "SELECT created_at FROM users WHERE id = $1", opts.After).Scan(&cursor); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("%w: cursor user %s", domain.ErrNotFound, opts.After)
			}
			return nil, fmt.Errorf("load cursor: %w", err)
		}
		rows, err = r.db.Query(ctx,
			`SELECT `+userColumns+` FROM users WHERE (created_at, id) < ($1, $2)
			 ORDER BY created_at DESC, id DESC LIMIT $3`, cursor, opts.After, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *userRepo) Update(ctx context.Context, user *domain.User) error {
	now := timestamp()
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET name = $1, bio = $2, image_url = $3, image_id = $4, updated_at = $5 WHERE id = $6`,
		user.Name, user.Bio, user.ImageURL, user.ImageID, now, user.ID,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	user.UpdatedAt = now
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	u := &domain.User{}
	err := row.Scan(&u.ID, &u.AccountID, &u.Name, &u.Username, &u.Email,
		&u.ImageURL, &u.ImageID, &u.Bio, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}
