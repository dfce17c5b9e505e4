package handler

import (
	"errors"
	"net/http"
	"slices"

	"github.com/msomdec/snapgram/internal/cache"
	"github.com/msomdec/snapgram/internal/domain"
	"github.com/msomdec/snapgram/internal/queries"
	"github.com/msomdec/snapgram/internal/service"
)

// PostHandler handles post feeds, post CRUD, likes and saves.
type PostHandler struct {
	q         *queries.Client
	maxUpload int64
}

// NewPostHandler creates a new PostHandler. maxUpload is the image size limit
// in bytes.
func NewPostHandler(q *queries.Client, maxUpload int64) *PostHandler {
	return &PostHandler{q: q, maxUpload: maxUpload}
}

// HandleFeed returns every loaded page of the infinite feed.
// GET /api/posts
// Response: {"pages": [[...]], "hasNextPage": bool}
func (h *PostHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	pages, err := h.q.InfinitePosts(r.Context())
	if err != nil {
		writeServiceError(w, "infinite posts", err)
		return
	}
	writeFeed(w, pages)
}

// HandleNextPage loads one more page of the infinite feed.
// POST /api/posts/next
// Response: {"pages": [[...]], "hasNextPage": bool}
func (h *PostHandler) HandleNextPage(w http.ResponseWriter, r *http.Request) {
	pages, err := h.q.NextPostsPage(r.Context())
	if errors.Is(err, cache.ErrNoMorePages) {
		pages, err = h.q.InfinitePosts(r.Context())
	}
	if err != nil {
		writeServiceError(w, "next posts page", err)
		return
	}
	writeFeed(w, pages)
}

func writeFeed(w http.ResponseWriter, pages [][]domain.Post) {
	writeJSON(w, http.StatusOK, map[string]any{
		"pages":       toPageDTOs(pages),
		"hasNextPage": cache.HasNextPage(pages),
	})
}

// HandleRecent returns the newest posts.
// GET /api/posts/recent
func (h *PostHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	posts, err := h.q.RecentPosts(r.Context())
	if err != nil {
		writeServiceError(w, "recent posts", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": toPostDTOs(posts)})
}

// HandleSearch searches captions. A blank term returns an empty result
// without reaching the backend.
// GET /api/posts/search?q=
func (h *PostHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	posts, err := h.q.SearchPosts(r.Context(), r.URL.Query().Get("q"))
	if errors.Is(err, cache.ErrDisabled) {
		writeJSON(w, http.StatusOK, map[string]any{"posts": []PostDTO{}})
		return
	}
	if err != nil {
		writeServiceError(w, "search posts", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": toPostDTOs(posts)})
}

// HandleGet returns one post. A signed-in caller also gets likedByMe.
// GET /api/posts/{id}
func (h *PostHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	post, err := h.q.PostByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "get post", err)
		return
	}
	resp := map[string]any{"post": toPostDTO(post)}
	if user := UserFromContext(r.Context()); user != nil {
		resp["likedByMe"] = slices.Contains(post.Likes, user.ID)
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleCreate creates a post from a multipart form with fields file,
// caption, location and tags.
// POST /api/posts
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}

	if err := parseUploadForm(w, r, h.maxUpload); err != nil {
		writeServiceError(w, "create post", err)
		return
	}
	file, err := formUpload(r, "file")
	if err != nil {
		writeServiceError(w, "create post", err)
		return
	}

	post, err := h.q.CreatePost(r.Context(), service.NewPost{
		CreatorID: user.ID,
		Caption:   r.FormValue("caption"),
		Location:  r.FormValue("location"),
		Tags:      r.FormValue("tags"),
		File:      file,
	})
	if err != nil {
		writeServiceError(w, "create post", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"post": toPostDTO(post)})
}

// HandleUpdate edits a post the current user created. The file field is
// optional.
// PUT /api/posts/{id}
func (h *PostHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}

	// Other users' posts are reported as not found.
	post, err := h.q.PostByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "get post", err)
		return
	}
	if post.CreatorID != user.ID {
		writeError(w, http.StatusNotFound, "Not found.")
		return
	}

	if err := parseUploadForm(w, r, h.maxUpload); err != nil {
		writeServiceError(w, "update post", err)
		return
	}
	file, err := formUpload(r, "file")
	if err != nil {
		writeServiceError(w, "update post", err)
		return
	}

	updated, err := h.q.UpdatePost(r.Context(), post.CreatorID, service.PostUpdate{
		PostID:   post.ID,
		Caption:  r.FormValue("caption"),
		Location: r.FormValue("location"),
		Tags:     r.FormValue("tags"),
		ImageID:  post.ImageID,
		ImageURL: post.ImageURL,
		File:     file,
	})
	if err != nil {
		writeServiceError(w, "update post", err)
		return
	}
	updated.CreatorID = post.CreatorID
	updated.Creator = post.Creator
	updated.Likes = post.Likes
	updated.CreatedAt = post.CreatedAt
	writeJSON(w, http.StatusOK, map[string]any{"post": toPostDTO(updated)})
}

// HandleDelete deletes a post the current user created together with its
// image. Both the post id and the imageId query parameter are required.
// DELETE /api/posts/{id}?imageId=
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}

	postID, imageID := r.PathValue("id"), r.URL.Query().Get("imageId")
	if postID == "" || imageID == "" {
		writeError(w, http.StatusUnprocessableEntity, "post id and imageId are required")
		return
	}

	post, err := h.q.PostByID(r.Context(), postID)
	if err != nil {
		writeServiceError(w, "get post", err)
		return
	}
	if post.CreatorID != user.ID {
		writeError(w, http.StatusNotFound, "Not found.")
		return
	}
	if post.ImageID != imageID {
		writeError(w, http.StatusUnprocessableEntity, "imageId does not match the post")
		return
	}

	if err := h.q.DeletePost(r.Context(), postID, imageID); err != nil {
		writeServiceError(w, "delete post", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleToggleLike likes the post for the current user, or removes the like.
// POST /api/posts/{id}/like
func (h *PostHandler) HandleToggleLike(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}

	post, err := h.q.ToggleLike(r.Context(), r.PathValue("id"), user.ID)
	if err != nil {
		writeServiceError(w, "toggle like", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"post": toPostDTO(post)})
}

// HandleSetLikes replaces the whole like set of a post. The new set may
// differ from the current one only in the caller's own like.
// PUT /api/posts/{id}/likes
// Request: {"likes": ["userId", ...]}
func (h *PostHandler) HandleSetLikes(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}

	var req struct {
		Likes []string `json:"likes"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	post, err := h.q.SetLikes(r.Context(), user.ID, r.PathValue("id"), req.Likes)
	if err != nil {
		writeServiceError(w, "set likes", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"post": toPostDTO(post)})
}

// HandleSave saves the post for the current user.
// POST /api/posts/{id}/save
func (h *PostHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}

	save, err := h.q.SavePost(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "save post", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"save": toSaveDTO(save)})
}
