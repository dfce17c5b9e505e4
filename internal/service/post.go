package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/msomdec/snapgram/internal/domain"
)

// Feed window sizes.
const (
	RecentPostsLimit = 20
	FeedPageSize     = 9
)

// NewPost is the post creation payload. Tags is the raw comma-separated string.
type NewPost struct {
	CreatorID string
	Caption   string
	Location  string
	Tags      string
	File      *domain.Upload
}

// PostUpdate is the post edit payload. ImageID and ImageURL carry the
// current image; File, when set, replaces it.
type PostUpdate struct {
	PostID   string
	Caption  string
	Location string
	Tags     string
	ImageID  string
	ImageURL string
	File     *domain.Upload
}

// PostService implements post creation, editing, deletion, feeds and likes.
type PostService struct {
	posts  domain.PostRepository
	files  *FileService
	logger *slog.Logger
}

// NewPostService creates a new PostService.
func NewPostService(posts domain.PostRepository, files *FileService, logger *slog.Logger) *PostService {
	return &PostService{posts: posts, files: files, logger: logger.With("system", "posts")}
}

// CreatePost uploads the image, then writes the post. The upload is deleted
// if the write fails.
func (s *PostService) CreatePost(ctx context.Context, in NewPost) (*domain.Post, error) {
	if in.CreatorID == "" {
		return nil, fail(s.logger, "create post", fmt.Errorf("%w: creator is required", domain.ErrInvalidInput))
	}
	if in.File == nil {
		return nil, fail(s.logger, "create post", fmt.Errorf("%w: image file is required", domain.ErrInvalidInput))
	}

	fileID, err := s.files.Upload(ctx, in.File)
	if err != nil {
		return nil, fail(s.logger, "create post", err)
	}

	post := &domain.Post{
		CreatorID: in.CreatorID,
		Caption:   strings.TrimSpace(in.Caption),
		ImageID:   fileID,
		ImageURL:  s.files.PreviewURL(fileID),
		Location:  strings.TrimSpace(in.Location),
		Tags:      NormalizeTags(in.Tags),
	}
	if err := s.posts.Create(ctx, post); err != nil {
		s.files.discard(ctx, fileID, "post write failed")
		return nil, fail(s.logger, "create post", fmt.Errorf("create post: %w", err))
	}
	return post, nil
}

// UpdatePost writes the edited fields. A new image is uploaded first and
// deleted if the write fails; the replaced image is purged once the write
// succeeds.
func (s *PostService) UpdatePost(ctx context.Context, in PostUpdate) (*domain.Post, error) {
	if in.PostID == "" {
		return nil, fail(s.logger, "update post", fmt.Errorf("%w: post id is required", domain.ErrInvalidInput))
	}
	if in.File == nil && in.ImageID == "" {
		return nil, fail(s.logger, "update post", fmt.Errorf("%w: image is required", domain.ErrInvalidInput))
	}

	post := &domain.Post{
		ID:       in.PostID,
		Caption:  strings.TrimSpace(in.Caption),
		ImageID:  in.ImageID,
		ImageURL: in.ImageURL,
		Location: strings.TrimSpace(in.Location),
		Tags:     NormalizeTags(in.Tags),
	}

	var uploaded string
	if in.File != nil {
		fileID, err := s.files.Upload(ctx, in.File)
		if err != nil {
			return nil, fail(s.logger, "update post", err)
		}
		uploaded = fileID
		post.ImageID = fileID
		post.ImageURL = s.files.PreviewURL(fileID)
	}

	if err := s.posts.Update(ctx, post); err != nil {
		if uploaded != "" {
			s.files.discard(ctx, uploaded, "post update failed")
		}
		return nil, fail(s.logger, "update post", fmt.Errorf("update post %s: %w", in.PostID, err))
	}

	if uploaded != "" && in.ImageID != "" && in.ImageID != uploaded {
		s.files.discard(ctx, in.ImageID, "image replaced")
	}
	return post, nil
}

// DeletePost deletes the post record, then its stored image. Both ids are
// required before anything is deleted.
func (s *PostService) DeletePost(ctx context.Context, postID, imageID string) error {
	if postID == "" || imageID == "" {
		return fail(s.logger, "delete post",
			fmt.Errorf("%w: post id and image id are required", domain.ErrInvalidInput))
	}

	if err := s.posts.Delete(ctx, postID); err != nil {
		return fail(s.logger, "delete post", fmt.Errorf("delete post %s: %w", postID, err))
	}
	if err := s.files.Delete(ctx, imageID); err != nil {
		return fail(s.logger, "delete post", err)
	}
	return nil
}

func (s *PostService) PostByID(ctx context.Context, id string) (*domain.Post, error) {
	if id == "" {
		return nil, fail(s.logger, "get post", fmt.Errorf("%w: post id is required", domain.ErrInvalidInput))
	}
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, fail(s.logger, "get post", fmt.Errorf("get post %s: %w", id, err))
	}
	return post, nil
}

// RecentPosts returns the newest posts by creation time.
func (s *PostService) RecentPosts(ctx context.Context) ([]domain.Post, error) {
	posts, err := s.posts.ListRecent(ctx, RecentPostsLimit)
	if err != nil {
		return nil, fail(s.logger, "recent posts", err)
	}
	return orEmpty(posts), nil
}

// InfinitePosts returns one feed page ordered by last update, starting after
// the post with id cursor when cursor is non-empty.
func (s *PostService) InfinitePosts(ctx context.Context, cursor string) ([]domain.Post, error) {
	posts, err := s.posts.ListByUpdated(ctx, FeedPageSize, cursor)
	if err != nil {
		return nil, fail(s.logger, "infinite posts", err)
	}
	return orEmpty(posts), nil
}

// SearchPosts matches term against post captions.
func (s *PostService) SearchPosts(ctx context.Context, term string) ([]domain.Post, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fail(s.logger, "search posts", fmt.Errorf("%w: search term is required", domain.ErrInvalidInput))
	}
	posts, err := s.posts.Search(ctx, term)
	if err != nil {
		return nil, fail(s.logger, "search posts", err)
	}
	return orEmpty(posts), nil
}

// UserPosts returns the posts a user created, newest first.
func (s *PostService) UserPosts(ctx context.Context, userID string) ([]domain.Post, error) {
	if userID == "" {
		return nil, fail(s.logger, "user posts", fmt.Errorf("%w: user id is required", domain.ErrInvalidInput))
	}
	posts, err := s.posts.ListByCreator(ctx, userID)
	if err != nil {
		return nil, fail(s.logger, "user posts", err)
	}
	return orEmpty(posts), nil
}

// LikedPosts returns the posts a user liked, most recent like first.
func (s *PostService) LikedPosts(ctx context.Context, userID string) ([]domain.Post, error) {
	if userID == "" {
		return nil, fail(s.logger, "liked posts", fmt.Errorf("%w: user id is required", domain.ErrInvalidInput))
	}
	posts, err := s.posts.ListLikedBy(ctx, userID)
	if err != nil {
		return nil, fail(s.logger, "liked posts", err)
	}
	return orEmpty(posts), nil
}

// SetLikes replaces the whole like set of a post. Duplicate ids are dropped
// and first-appearance order kept. Concurrent callers overwrite each other.
func (s *PostService) SetLikes(ctx context.Context, postID string, likes []string) (*domain.Post, error) {
	if postID == "" {
		return nil, fail(s.logger, "set likes", fmt.Errorf("%w: post id is required", domain.ErrInvalidInput))
	}
	post, err := s.posts.SetLikes(ctx, postID, dedupe(likes))
	if err != nil {
		return nil, fail(s.logger, "set likes", fmt.Errorf("set likes on %s: %w", postID, err))
	}
	return post, nil
}

// SetLikesAs replaces the like set on behalf of actorID. The replacement may
// only add or remove actorID itself; any other change is ErrForbidden.
func (s *PostService) SetLikesAs(ctx context.Context, actorID, postID string, likes []string) (*domain.Post, error) {
	if actorID == "" || postID == "" {
		return nil, fail(s.logger, "set likes",
			fmt.Errorf("%w: user id and post id are required", domain.ErrInvalidInput))
	}
	current, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, fail(s.logger, "set likes", fmt.Errorf("get post %s: %w", postID, err))
	}

	likes = dedupe(likes)
	for _, id := range symmetricDifference(current.Likes, likes) {
		if id != actorID {
			return nil, fail(s.logger, "set likes",
				fmt.Errorf("%w: user %s may not change the like of %s", domain.ErrForbidden, actorID, id))
		}
	}
	return s.SetLikes(ctx, postID, likes)
}

func symmetricDifference(a, b []string) []string {
	var diff []string
	for _, id := range a {
		if !slices.Contains(b, id) {
			diff = append(diff, id)
		}
	}
	for _, id := range b {
		if !slices.Contains(a, id) {
			diff = append(diff, id)
		}
	}
	return diff
}

// ToggleLike adds userID to the post's likes, or removes it when present,
// in one backend transaction.
func (s *PostService) ToggleLike(ctx context.Context, postID, userID string) (*domain.Post, error) {
	if postID == "" || userID == "" {
		return nil, fail(s.logger, "toggle like",
			fmt.Errorf("%w: post id and user id are required", domain.ErrInvalidInput))
	}
	post, err := s.posts.ToggleLike(ctx, postID, userID)
	if err != nil {
		return nil, fail(s.logger, "toggle like", fmt.Errorf("toggle like on %s: %w", postID, err))
	}
	return post, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
