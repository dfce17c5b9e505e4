package postgres

import (
	"context"
	"fmt"

	"github.com/msomdec/snapgram/internal/domain"
)

type saveRepo struct {
	db dbtx
}

func (r *saveRepo) Create(ctx context.Context, save *domain.Save) error {
	now := timestamp()
	if save.ID == "" {
		save.ID = domain.NewID()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO saves (id, user_id, post_id, created_at) VALUES ($1, $2, $3, $4)`,
		save.ID, save.UserID, save.PostID, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateSave
		}
		return fmt.Errorf("insert save: %w", err)
	}
	save.CreatedAt = now
	return nil
}

func (r *saveRepo) GetByID(ctx context.Context, id string) (*domain.Save, error) {
	s := &domain.Save{}
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, post_id, created_at FROM saves WHERE id = $1`, id,
	).Scan(&s.ID, &s.UserID, &s.PostID, &s.CreatedAt)
	if err != nil {
		return nil, notFound(err, "get save")
	}
	return s, nil
}

func (r *saveRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM saves WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete save: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *saveRepo) ListByUser(ctx context.Context, userID string) ([]domain.Save, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, post_id, created_at FROM saves WHERE user_id = $1
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

// fileStore implements domain.FileStore on a BYTEA table.
type fileStore struct {
	db dbtx
}

func (s *fileStore) Save(ctx context.Context, key string, data []byte) error {
	if key == "" {
		return fmt.Errorf("%w: empty storage key", domain.ErrInvalidInput)
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO file_blobs (storage_key, data) VALUES ($1, $2)
		 ON CONFLICT (storage_key) DO UPDATE SET data = excluded.data`,
		key, data,
	)
	if err != nil {
		return fmt.Errorf("save file blob: %w", err)
	}
	return nil
}

func (s *fileStore) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	if err := s.db.QueryRow(ctx, "SELECT data FROM file_blobs WHERE storage_key = $1", key).Scan(&data); err != nil {
		return nil, notFound(err, "get file blob")
	}
	return data, nil
}

func (s *fileStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.Exec(ctx, "DELETE FROM file_blobs WHERE storage_key = $1", key); err != nil {
		return fmt.Errorf("delete file blob: %w", err)
	}
	return nil
}
