package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/msomdec/snapgram/internal/domain"
)

// DefaultUsersLimit is the page size of Users when the caller gives none.
const DefaultUsersLimit = 25

// ListUsers selects a page of users, newest first.
type ListUsers struct {
	Limit int
	After string
}

// UserUpdate is the profile edit payload. ImageID and ImageURL carry the
// current avatar; File, when set, replaces it.
type UserUpdate struct {
	UserID   string
	Name     string
	Bio      string
	ImageID  string
	ImageURL string
	File     *domain.Upload
}

// UserService lists, fetches and edits user profiles.
type UserService struct {
	users  domain.UserRepository
	files  *FileService
	logger *slog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(users domain.UserRepository, files *FileService, logger *slog.Logger) *UserService {
	return &UserService{users: users, files: files, logger: logger.With("system", "users")}
}

func (s *UserService) Users(ctx context.Context, in ListUsers) ([]domain.User, error) {
	if in.Limit <= 0 {
		in.Limit = DefaultUsersLimit
	}
	users, err := s.users.List(ctx, domain.UserListOptions{Limit: in.Limit, After: in.After})
	if err != nil {
		return nil, fail(s.logger, "list users", err)
	}
	return orEmpty(users), nil
}

func (s *UserService) UserByID(ctx context.Context, id string) (*domain.User, error) {
	if id == "" {
		return nil, fail(s.logger, "get user", fmt.Errorf("%w: user id is required", domain.ErrInvalidInput))
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fail(s.logger, "get user", fmt.Errorf("get user %s: %w", id, err))
	}
	return user, nil
}

// UpdateUser writes the edited profile, with the same upload cleanup as
// PostService.UpdatePost. The initials avatar has no stored file, so there is
// nothing to purge when it is replaced.
func (s *UserService) UpdateUser(ctx context.Context, in UserUpdate) (*domain.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.UserID == "" || in.Name == "" {
		return nil, fail(s.logger, "update user", fmt.Errorf("%w: user id and name are required", domain.ErrInvalidInput))
	}

	user := &domain.User{
		ID:       in.UserID,
		Name:     in.Name,
		Bio:      strings.TrimSpace(in.Bio),
		ImageID:  in.ImageID,
		ImageURL: in.ImageURL,
	}

	var uploaded string
	if in.File != nil {
		fileID, err := s.files.Upload(ctx, in.File)
		if err != nil {
			return nil, fail(s.logger, "update user", err)
		}
		uploaded = fileID
		user.ImageID = fileID
		user.ImageURL = s.files.PreviewURL(fileID)
	}

	if err := s.users.Update(ctx, user); err != nil {
		if uploaded != "" {
			s.files.discard(ctx, uploaded, "user update failed")
		}
		return nil, fail(s.logger, "update user", fmt.Errorf("update user %s: %w", in.UserID, err))
	}

	if uploaded != "" && in.ImageID != "" && in.ImageID != uploaded {
		s.files.discard(ctx, in.ImageID, "avatar replaced")
	}
	return user, nil
}
