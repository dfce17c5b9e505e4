package domain

import (
	"context"
	"time"
)

// User is the profile document that mirrors an Account.
type User struct {
	ID        string
	AccountID string
	Name      string
	Username  string
	Email     string
	ImageURL  string
	ImageID   string // Empty while the user still has the generated initials avatar
	Bio       string
	Saves     []Save // Populated only when resolving the current user
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserListOptions selects a window of users ordered by creation time, newest first.
type UserListOptions struct {
	Limit int
	After string // ID of the last user of the previous page
}

// UserRepository defines persistence operations for user documents.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	// GetByAccountID returns the first user whose AccountID matches.
	GetByAccountID(ctx context.Context, accountID string) (*User, error)
	List(ctx context.Context, opts UserListOptions) ([]User, error)
	Update(ctx context.Context, user *User) error
}
