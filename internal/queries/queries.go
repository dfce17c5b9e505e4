// Package queries binds the gateway operations to the cache: every read is a
// cached query and every write a mutation with a fixed set of invalidated
// keys.
package queries

import (
	"context"
	"strconv"
	"strings"

	"github.com/msomdec/snapgram/internal/cache"
	"github.com/msomdec/snapgram/internal/domain"
	"github.com/msomdec/snapgram/internal/service"
)

// Query names. A key is the name followed by the query's parameters.
const (
	GetCurrentUser   = "getCurrentUser"
	GetUsers         = "getUsers"
	GetUserByID      = "getUserById"
	GetInfinitePosts = "getInfinitePosts"
	GetRecentPosts   = "getRecentPosts"
	GetPostByID      = "getPostById"
	GetUserPosts     = "getUserPosts"
	GetLikedPosts    = "getLikedPosts"
	GetSavedPosts    = "getSavedPosts"
	SearchPosts      = "searchPosts"
)

// Auth is the part of the auth gateway the queries use.
type Auth interface {
	CreateUserAccount(ctx context.Context, in service.NewAccount) (*domain.User, error)
	SignIn(ctx context.Context, email, password string) (string, *domain.Session, error)
	SignOut(ctx context.Context, token string) error
	CurrentUser(ctx context.Context, token string) (*domain.User, error)
	ValidateToken(token string) error
}

type Posts interface {
	CreatePost(ctx context.Context, in service.NewPost) (*domain.Post, error)
	UpdatePost(ctx context.Context, in service.PostUpdate) (*domain.Post, error)
	DeletePost(ctx context.Context, postID, imageID string) error
	PostByID(ctx context.Context, id string) (*domain.Post, error)
	RecentPosts(ctx context.Context) ([]domain.Post, error)
	InfinitePosts(ctx context.Context, cursor string) ([]domain.Post, error)
	SearchPosts(ctx context.Context, term string) ([]domain.Post, error)
	UserPosts(ctx context.Context, userID string) ([]domain.Post, error)
	LikedPosts(ctx context.Context, userID string) ([]domain.Post, error)
	SetLikesAs(ctx context.Context, actorID, postID string, likes []string) (*domain.Post, error)
	ToggleLike(ctx context.Context, postID, userID string) (*domain.Post, error)
}

type Saves interface {
	SavePost(ctx context.Context, userID, postID string) (*domain.Save, error)
	SaveByID(ctx context.Context, saveID string) (*domain.Save, error)
	DeleteSavedPost(ctx context.Context, saveID string) error
	SavedPosts(ctx context.Context, userID string) ([]domain.Post, error)
}

type Users interface {
	Users(ctx context.Context, in service.ListUsers) ([]domain.User, error)
	UserByID(ctx context.Context, id string) (*domain.User, error)
	UpdateUser(ctx context.Context, in service.UserUpdate) (*domain.User, error)
}

// Client runs the gateway operations through a cache.Client.
type Client struct {
	cache *cache.Client
	auth  Auth
	posts Posts
	saves Saves
	users Users
}

// New creates a Client over the given cache and gateway services.
func New(c *cache.Client, auth Auth, posts Posts, saves Saves, users Users) *Client {
	return &Client{cache: c, auth: auth, posts: posts, saves: saves, users: users}
}

// Cache returns the underlying cache, for subscribing to invalidations.
func (c *Client) Cache() *cache.Client { return c.cache }

// CurrentUser resolves the user behind token. The token is validated on
// every call, so an expired session is rejected even while its user is
// cached.
func (c *Client) CurrentUser(ctx context.Context, token string) (*domain.User, error) {
	if token != "" {
		if err := c.auth.ValidateToken(token); err != nil {
			return nil, err
		}
	}
	return cache.Query[*domain.User]{
		Key:      cache.NewKey(GetCurrentUser, token),
		Fetch:    func(ctx context.Context) (*domain.User, error) { return c.auth.CurrentUser(ctx, token) },
		Disabled: token == "",
	}.Run(ctx, c.cache)
}

func (c *Client) Users(ctx context.Context, in service.ListUsers) ([]domain.User, error) {
	return cache.Query[[]domain.User]{
		Key:   cache.NewKey(GetUsers, strconv.Itoa(in.Limit), in.After),
		Fetch: func(ctx context.Context) ([]domain.User, error) { return c.users.Users(ctx, in) },
	}.Run(ctx, c.cache)
}

func (c *Client) UserByID(ctx context.Context, id string) (*domain.User, error) {
	return cache.Query[*domain.User]{
		Key:      cache.NewKey(GetUserByID, id),
		Fetch:    func(ctx context.Context) (*domain.User, error) { return c.users.UserByID(ctx, id) },
		Disabled: id == "",
	}.Run(ctx, c.cache)
}

func (c *Client) RecentPosts(ctx context.Context) ([]domain.Post, error) {
	return cache.Query[[]domain.Post]{
		Key:   cache.NewKey(GetRecentPosts),
		Fetch: c.posts.RecentPosts,
	}.Run(ctx, c.cache)
}

func (c *Client) feed() cache.InfiniteQuery[domain.Post] {
	return cache.InfiniteQuery[domain.Post]{
		Key:       cache.NewKey(GetInfinitePosts),
		FetchPage: c.posts.InfinitePosts,
		Cursor:    func(p domain.Post) string { return p.ID },
	}
}

// InfinitePosts returns the loaded pages of the feed, loading the first one
// when needed.
func (c *Client) InfinitePosts(ctx context.Context) ([][]domain.Post, error) {
	return c.feed().Run(ctx, c.cache)
}

// NextPostsPage loads one more feed page. It returns cache.ErrNoMorePages,
// without a backend call, when the last loaded page was empty.
func (c *Client) NextPostsPage(ctx context.Context) ([][]domain.Post, error) {
	return c.feed().FetchNextPage(ctx, c.cache)
}

func (c *Client) PostByID(ctx context.Context, id string) (*domain.Post, error) {
	return cache.Query[*domain.Post]{
		Key:      cache.NewKey(GetPostByID, id),
		Fetch:    func(ctx context.Context) (*domain.Post, error) { return c.posts.PostByID(ctx, id) },
		Disabled: id == "",
	}.Run(ctx, c.cache)
}

func (c *Client) UserPosts(ctx context.Context, userID string) ([]domain.Post, error) {
	return cache.Query[[]domain.Post]{
		Key:      cache.NewKey(GetUserPosts, userID),
		Fetch:    func(ctx context.Context) ([]domain.Post, error) { return c.posts.UserPosts(ctx, userID) },
		Disabled: userID == "",
	}.Run(ctx, c.cache)
}

func (c *Client) LikedPosts(ctx context.Context, userID string) ([]domain.Post, error) {
	return cache.Query[[]domain.Post]{
		Key:      cache.NewKey(GetLikedPosts, userID),
		Fetch:    func(ctx context.Context) ([]domain.Post, error) { return c.posts.LikedPosts(ctx, userID) },
		Disabled: userID == "",
	}.Run(ctx, c.cache)
}

func (c *Client) SavedPosts(ctx context.Context, userID string) ([]domain.Post, error) {
	return cache.Query[[]domain.Post]{
		Key:      cache.NewKey(GetSavedPosts, userID),
		Fetch:    func(ctx context.Context) ([]domain.Post, error) { return c.saves.SavedPosts(ctx, userID) },
		Disabled: userID == "",
	}.Run(ctx, c.cache)
}

// SearchPosts is disabled for a blank term, so typing into an empty search
// box never reaches the backend.
func (c *Client) SearchPosts(ctx context.Context, term string) ([]domain.Post, error) {
	term = strings.TrimSpace(term)
	return cache.Query[[]domain.Post]{
		Key:      cache.NewKey(SearchPosts, term),
		Fetch:    func(ctx context.Context) ([]domain.Post, error) { return c.posts.SearchPosts(ctx, term) },
		Disabled: term == "",
	}.Run(ctx, c.cache)
}

// SaveByID is an uncached lookup used for ownership checks.
func (c *Client) SaveByID(ctx context.Context, saveID string) (*domain.Save, error) {
	return c.saves.SaveByID(ctx, saveID)
}
