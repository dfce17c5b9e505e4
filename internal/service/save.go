package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/msomdec/snapgram/internal/domain"
)

// SaveService bookmarks posts for users.
type SaveService struct {
	saves  domain.SaveRepository
	posts  domain.PostRepository
	logger *slog.Logger
}

// NewSaveService creates a new SaveService.
func NewSaveService(saves domain.SaveRepository, posts domain.PostRepository, logger *slog.Logger) *SaveService {
	return &SaveService{saves: saves, posts: posts, logger: logger.With("system", "saves")}
}

// SavePost records that userID saved postID. Saving the same post twice
// returns domain.ErrDuplicateSave.
func (s *SaveService) SavePost(ctx context.Context, userID, postID string) (*domain.Save, error) {
	if userID == "" || postID == "" {
		return nil, fail(s.logger, "save post", fmt.Errorf("%w: user id and post id are required", domain.ErrInvalidInput))
	}
	save := &domain.Save{UserID: userID, PostID: postID}
	if err := s.saves.Create(ctx, save); err != nil {
		return nil, fail(s.logger, "save post", fmt.Errorf("save post %s: %w", postID, err))
	}
	return save, nil
}

// SaveByID returns a save record, so callers can check who owns it.
func (s *SaveService) SaveByID(ctx context.Context, saveID string) (*domain.Save, error) {
	if saveID == "" {
		return nil, fail(s.logger, "get save", fmt.Errorf("%w: save id is required", domain.ErrInvalidInput))
	}
	save, err := s.saves.GetByID(ctx, saveID)
	if err != nil {
		return nil, fail(s.logger, "get save", fmt.Errorf("get save %s: %w", saveID, err))
	}
	return save, nil
}

func (s *SaveService) DeleteSavedPost(ctx context.Context, saveID string) error {
	if saveID == "" {
		return fail(s.logger, "delete save", fmt.Errorf("%w: save id is required", domain.ErrInvalidInput))
	}
	if err := s.saves.Delete(ctx, saveID); err != nil {
		return fail(s.logger, "delete save", fmt.Errorf("delete save %s: %w", saveID, err))
	}
	return nil
}

// SavedPosts returns the posts a user saved, most recent save first.
func (s *SaveService) SavedPosts(ctx context.Context, userID string) ([]domain.Post, error) {
	if userID == "" {
		return nil, fail(s.logger, "saved posts", fmt.Errorf("%w: user id is required", domain.ErrInvalidInput))
	}
	posts, err := s.posts.ListSavedBy(ctx, userID)
	if err != nil {
		return nil, fail(s.logger, "saved posts", err)
	}
	return orEmpty(posts), nil
}
