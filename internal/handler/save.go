package handler

import (
	"net/http"

	"github.com/msomdec/snapgram/internal/queries"
)

// SaveHandler handles the current user's saved posts.
type SaveHandler struct {
	q *queries.Client
}

// NewSaveHandler creates a new SaveHandler.
func NewSaveHandler(q *queries.Client) *SaveHandler {
	return &SaveHandler{q: q}
}

// HandleList returns the posts the current user saved.
// GET /api/saved
func (h *SaveHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}

	posts, err := h.q.SavedPosts(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, "saved posts", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": toPostDTOs(posts)})
}

// HandleDelete removes one of the current user's saves.
// DELETE /api/saves/{id}
func (h *SaveHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}

	save, err := h.q.SaveByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "get save", err)
		return
	}
	if save.UserID != user.ID {
		writeError(w, http.StatusNotFound, "Not found.")
		return
	}

	if err := h.q.DeleteSavedPost(r.Context(), save.ID); err != nil {
		writeServiceError(w, "delete save", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
