package handler

import (
	"net/http"
	"strconv"

	"github.com/msomdec/snapgram/internal/queries"
	"github.com/msomdec/snapgram/internal/service"
)

// maxUsersLimit caps the limit query parameter of the user list.
const maxUsersLimit = 100

// UserHandler handles user listing, profiles and profile edits.
type UserHandler struct {
	q         *queries.Client
	maxUpload int64
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(q *queries.Client, maxUpload int64) *UserHandler {
	return &UserHandler{q: q, maxUpload: maxUpload}
}

// HandleList returns a page of users, newest first.
// GET /api/users?limit=&after=
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := service.DefaultUsersLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxUsersLimit)
	}

	users, err := h.q.Users(r.Context(), service.ListUsers{Limit: limit, After: r.URL.Query().Get("after")})
	if err != nil {
		writeServiceError(w, "list users", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": toUserDTOs(users)})
}

// HandleGet returns one user's profile.
// GET /api/users/{id}
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.q.UserByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "get user", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": toUserDTO(user)})
}

// HandlePosts returns the posts a user created.
// GET /api/users/{id}/posts
func (h *UserHandler) HandlePosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.q.UserPosts(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "user posts", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": toPostDTOs(posts)})
}

// HandleLiked returns the posts a user liked.
// GET /api/users/{id}/liked
func (h *UserHandler) HandleLiked(w http.ResponseWriter, r *http.Request) {
	posts, err := h.q.LikedPosts(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "liked posts", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": toPostDTOs(posts)})
}

// HandleUpdate edits the current user's own profile from a multipart form
// with fields name, bio and an optional file.
// PUT /api/users/{id}
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	current := UserFromContext(r.Context())
	if current == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}
	if r.PathValue("id") != current.ID {
		writeError(w, http.StatusForbidden, "You can only edit your own profile.")
		return
	}

	if err := parseUploadForm(w, r, h.maxUpload); err != nil {
		writeServiceError(w, "update user", err)
		return
	}
	file, err := formUpload(r, "file")
	if err != nil {
		writeServiceError(w, "update user", err)
		return
	}

	updated, err := h.q.UpdateUser(r.Context(), service.UserUpdate{
		UserID:   current.ID,
		Name:     r.FormValue("name"),
		Bio:      r.FormValue("bio"),
		ImageID:  current.ImageID,
		ImageURL: current.ImageURL,
		File:     file,
	})
	if err != nil {
		writeServiceError(w, "update user", err)
		return
	}
	updated.AccountID = current.AccountID
	updated.Username = current.Username
	updated.Email = current.Email
	updated.CreatedAt = current.CreatedAt
	writeJSON(w, http.StatusOK, map[string]any{"user": toAccountDTO(updated)})
}
