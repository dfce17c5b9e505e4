package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/msomdec/snapgram/internal/domain"
)

// saveRepo implements domain.SaveRepository using SQLite.
type saveRepo struct {
	db *sql.DB
}

func (r *saveRepo) Create(ctx context.Context, save *domain.Save) error {
	now := time.Now().UTC()
	if save.ID == "" {
		save.ID = domain.NewID()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO saves (id, user_id, post_id, created_at) VALUES (?, ?, ?, ?)`,
		save.ID, save.UserID, save.PostID, now,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return domain.ErrDuplicateSave
		}
		return fmt.Errorf("insert save: %w", err)
	}
	save.CreatedAt = now
	return nil
}

func (r *saveRepo) GetByID(ctx context.Context, id string) (*domain.Save, error) {
	s := &domain.Save{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, post_id, created_at FROM saves WHERE id = ?`, id,
	).Scan(&s.ID, &s.UserID, &s.PostID, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get save: %w", err)
	}
	return s, nil
}

func (r *saveRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM saves WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete save: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *saveRepo) ListByUser(ctx context.Context, userID string) ([]domain.Save, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, post_id, created_at FROM saves WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list saves: %w", err)
	}
	defer rows.Close()

	saves := []domain.Save{}
	for rows.Next() {
		var s domain.Save
		if err := rows.Scan(&s.ID, &s.UserID, &s.PostID, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan save: %w", err)
		}
		saves = append(saves, s)
	}
	return saves, rows.Err()
}
