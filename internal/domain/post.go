package domain

import (
	"context"
	"time"
)

// Creator is the subset of the creating user embedded in a post.
type Creator struct {
	ID       string
	Name     string
	Username string
	ImageURL string
}

type Post struct {
	ID        string
	CreatorID string
	Creator   *Creator
	Caption   string
	ImageURL  string
	ImageID   string
	Location  string
	Tags      []string
	Likes     []string // IDs of users who liked the post, no duplicates
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PostRepository defines persistence operations for posts and their likes.
type PostRepository interface {
	Create(ctx context.Context, post *Post) error
	GetByID(ctx context.Context, id string) (*Post, error)
	// Update writes caption, image, location and tags and bumps UpdatedAt.
	Update(ctx context.Context, post *Post) error
	Delete(ctx context.Context, id string) error

	// ListRecent returns the newest posts by creation time.
	ListRecent(ctx context.Context, limit int) ([]Post, error)
	// ListByUpdated returns posts ordered by UpdatedAt descending, starting
	// after the post with ID after when after is non-empty.
	ListByUpdated(ctx context.Context, limit int, after string) ([]Post, error)
	Search(ctx context.Context, term string) ([]Post, error)
	ListByCreator(ctx context.Context, creatorID string) ([]Post, error)
	ListLikedBy(ctx context.Context, userID string) ([]Post, error)
	ListSavedBy(ctx context.Context, userID string) ([]Post, error)

	// SetLikes replaces the whole like set of a post.
	SetLikes(ctx context.Context, postID string, userIDs []string) (*Post, error)
	// ToggleLike adds userID to the like set, or removes it when present,
	// in a single backend transaction.
	ToggleLike(ctx context.Context, postID, userID string) (*Post, error)
}
