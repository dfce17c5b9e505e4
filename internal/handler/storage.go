package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/msomdec/snapgram/internal/media"
	"github.com/msomdec/snapgram/internal/service"
)

// StorageHandler serves stored files, their previews and generated avatars.
type StorageHandler struct {
	files *service.FileService
}

// NewStorageHandler creates a new StorageHandler.
func NewStorageHandler(files *service.FileService) *StorageHandler {
	return &StorageHandler{files: files}
}

// HandleFile serves the stored bytes of a file.
// GET /storage/files/{id}
func (h *StorageHandler) HandleFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := h.files.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "serve file", err)
		return
	}
	writeImage(w, contentType, data)
}

// HandlePreview serves a file scaled to fit within width x height.
// GET /storage/files/{id}/preview?width=&height=&quality=
func (h *StorageHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	opts := media.PreviewOptions{}
	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"width", &opts.Width},
		{"height", &opts.Height},
		{"quality", &opts.Quality},
	} {
		v := query.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, p.name+" must be a non-negative integer")
			return
		}
		*p.dst = n
	}

	data, _, err := h.files.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "serve preview", err)
		return
	}

	preview, contentType, err := media.Preview(data, opts)
	if err != nil {
		if errors.Is(err, media.ErrUnsupportedFormat) {
			writeError(w, http.StatusUnsupportedMediaType, "File is not a previewable image.")
			return
		}
		if errors.Is(err, media.ErrTooLarge) {
			writeError(w, http.StatusUnprocessableEntity, "Image is too large to preview.")
			return
		}
		slog.Error("render preview", "file_id", r.PathValue("id"), "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}
	writeImage(w, contentType, preview)
}

// HandleAvatar renders an initials avatar for the name query parameter.
// GET /avatars/initials?name=
func (h *StorageHandler) HandleAvatar(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if err := media.Avatar(r.URL.Query().Get("name")).Render(r.Context(), w); err != nil {
		slog.Error("render avatar", "error", err)
	}
}

// writeImage writes immutable file bytes. File ids are never reused, so the
// response can be cached indefinitely.
func writeImage(w http.ResponseWriter, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}
