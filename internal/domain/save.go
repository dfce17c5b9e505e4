package domain

import (
	"context"
	"time"
)

// Save records that a user bookmarked a post.
type Save struct {
	ID        string
	UserID    string
	PostID    string
	CreatedAt time.Time
}

type SaveRepository interface {
	// Create returns ErrDuplicateSave when the user already saved the post.
	Create(ctx context.Context, save *Save) error
	GetByID(ctx context.Context, id string) (*Save, error)
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]Save, error)
}
