package queries

import (
	"context"

	"github.com/msomdec/snapgram/internal/cache"
	"github.com/msomdec/snapgram/internal/domain"
	"github.com/msomdec/snapgram/internal/service"
)

func keys(k ...cache.Key) []cache.Key { return k }

func name(n string) cache.Key { return cache.Key{n} }

// likeKeys is shared by both like mutations.
func likeKeys(postID string) []cache.Key {
	return keys(cache.NewKey(GetPostByID, postID), name(GetRecentPosts), name(GetInfinitePosts),
		name(GetCurrentUser), name(GetLikedPosts))
}

func saveKeys() []cache.Key {
	return keys(name(GetRecentPosts), name(GetInfinitePosts), name(GetCurrentUser), name(GetSavedPosts))
}

func (c *Client) CreateUserAccount(ctx context.Context, in service.NewAccount) (*domain.User, error) {
	return cache.Mutation[service.NewAccount, *domain.User]{
		Name:        "createUserAccount",
		Do:          c.auth.CreateUserAccount,
		Invalidates: func(service.NewAccount, *domain.User) []cache.Key { return keys(name(GetUsers)) },
	}.Run(ctx, c.cache, in)
}

type credentials struct{ email, password string }

type signedIn struct {
	token   string
	session *domain.Session
}

// SignIn touches no cached query.
func (c *Client) SignIn(ctx context.Context, email, password string) (string, *domain.Session, error) {
	out, err := cache.Mutation[credentials, signedIn]{
		Name: "signIn",
		Do: func(ctx context.Context, in credentials) (signedIn, error) {
			token, session, err := c.auth.SignIn(ctx, in.email, in.password)
			return signedIn{token: token, session: session}, err
		},
	}.Run(ctx, c.cache, credentials{email: email, password: password})
	if err != nil {
		return "", nil, err
	}
	return out.token, out.session, nil
}

// SignOut drops the signed-out session's current user entry.
func (c *Client) SignOut(ctx context.Context, token string) error {
	_, err := cache.Mutation[string, struct{}]{
		Name: "signOut",
		Do: func(ctx context.Context, token string) (struct{}, error) {
			return struct{}{}, c.auth.SignOut(ctx, token)
		},
		Removes: func(token string, _ struct{}) []cache.Key { return keys(cache.NewKey(GetCurrentUser, token)) },
	}.Run(ctx, c.cache, token)
	return err
}

func (c *Client) CreatePost(ctx context.Context, in service.NewPost) (*domain.Post, error) {
	return cache.Mutation[service.NewPost, *domain.Post]{
		Name: "createPost",
		Do:   c.posts.CreatePost,
		Invalidates: func(in service.NewPost, _ *domain.Post) []cache.Key {
			return keys(name(GetRecentPosts), name(GetInfinitePosts), cache.NewKey(GetUserPosts, in.CreatorID))
		},
	}.Run(ctx, c.cache, in)
}

type postEdit struct {
	service.PostUpdate
	creatorID string
}

// UpdatePost edits a post created by creatorID.
func (c *Client) UpdatePost(ctx context.Context, creatorID string, in service.PostUpdate) (*domain.Post, error) {
	return cache.Mutation[postEdit, *domain.Post]{
		Name: "updatePost",
		Do: func(ctx context.Context, in postEdit) (*domain.Post, error) {
			return c.posts.UpdatePost(ctx, in.PostUpdate)
		},
		Invalidates: func(in postEdit, _ *domain.Post) []cache.Key {
			return keys(cache.NewKey(GetPostByID, in.PostID), name(GetRecentPosts), name(GetInfinitePosts),
				cache.NewKey(GetUserPosts, in.creatorID), name(SearchPosts))
		},
	}.Run(ctx, c.cache, postEdit{PostUpdate: in, creatorID: creatorID})
}

type postRef struct{ postID, imageID string }

func (c *Client) DeletePost(ctx context.Context, postID, imageID string) error {
	_, err := cache.Mutation[postRef, struct{}]{
		Name: "deletePost",
		Do: func(ctx context.Context, in postRef) (struct{}, error) {
			return struct{}{}, c.posts.DeletePost(ctx, in.postID, in.imageID)
		},
		// Likes and saves of the post are deleted with it.
		Invalidates: func(in postRef, _ struct{}) []cache.Key {
			return keys(cache.NewKey(GetPostByID, in.postID), name(GetRecentPosts), name(GetInfinitePosts),
				name(GetUserPosts), name(SearchPosts), name(GetLikedPosts), name(GetSavedPosts), name(GetCurrentUser))
		},
	}.Run(ctx, c.cache, postRef{postID: postID, imageID: imageID})
	return err
}

type like struct{ postID, userID string }

// ToggleLike adds or removes one user's like in a single backend transaction.
func (c *Client) ToggleLike(ctx context.Context, postID, userID string) (*domain.Post, error) {
	return cache.Mutation[like, *domain.Post]{
		Name: "likePost",
		Do: func(ctx context.Context, in like) (*domain.Post, error) {
			return c.posts.ToggleLike(ctx, in.postID, in.userID)
		},
		Invalidates: func(in like, _ *domain.Post) []cache.Key { return likeKeys(in.postID) },
	}.Run(ctx, c.cache, like{postID: postID, userID: userID})
}

type likeSet struct {
	actorID string
	postID  string
	likes   []string
}

// SetLikes replaces the whole like set on behalf of actorID, who may only
// change their own like. Concurrent callers overwrite each other; ToggleLike
// does not have that race.
func (c *Client) SetLikes(ctx context.Context, actorID, postID string, likes []string) (*domain.Post, error) {
	return cache.Mutation[likeSet, *domain.Post]{
		Name: "setLikes",
		Do: func(ctx context.Context, in likeSet) (*domain.Post, error) {
			return c.posts.SetLikesAs(ctx, in.actorID, in.postID, in.likes)
		},
		Invalidates: func(in likeSet, _ *domain.Post) []cache.Key { return likeKeys(in.postID) },
	}.Run(ctx, c.cache, likeSet{actorID: actorID, postID: postID, likes: likes})
}

type saveRef struct{ userID, postID string }

func (c *Client) SavePost(ctx context.Context, userID, postID string) (*domain.Save, error) {
	return cache.Mutation[saveRef, *domain.Save]{
		Name: "savePost",
		Do: func(ctx context.Context, in saveRef) (*domain.Save, error) {
			return c.saves.SavePost(ctx, in.userID, in.postID)
		},
		Invalidates: func(saveRef, *domain.Save) []cache.Key { return saveKeys() },
	}.Run(ctx, c.cache, saveRef{userID: userID, postID: postID})
}

func (c *Client) DeleteSavedPost(ctx context.Context, saveID string) error {
	_, err := cache.Mutation[string, struct{}]{
		Name: "deleteSavedPost",
		Do: func(ctx context.Context, saveID string) (struct{}, error) {
			return struct{}{}, c.saves.DeleteSavedPost(ctx, saveID)
		},
		Invalidates: func(string, struct{}) []cache.Key { return saveKeys() },
	}.Run(ctx, c.cache, saveID)
	return err
}

func (c *Client) UpdateUser(ctx context.Context, in service.UserUpdate) (*domain.User, error) {
	return cache.Mutation[service.UserUpdate, *domain.User]{
		Name: "updateUser",
		Do:   c.users.UpdateUser,
		Invalidates: func(in service.UserUpdate, _ *domain.User) []cache.Key {
			return keys(name(GetCurrentUser), cache.NewKey(GetUserByID, in.UserID), name(GetUsers))
		},
	}.Run(ctx, c.cache, in)
}
