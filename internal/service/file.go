package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/msomdec/snapgram/internal/domain"
	"github.com/msomdec/snapgram/internal/media"
)

// Content types accepted for uploads, detected from the bytes rather than
// trusted from the client.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// FileService stores uploaded images and serves them back by file id.
type FileService struct {
	files   domain.FileStore
	urls    URLBuilder
	maxSize int64
	logger  *slog.Logger
}

// NewFileService creates a new FileService. maxSize is the upload limit in bytes.
func NewFileService(files domain.FileStore, urls URLBuilder, maxSize int64, logger *slog.Logger) *FileService {
	return &FileService{files: files, urls: urls, maxSize: maxSize, logger: logger.With("system", "files")}
}

// Upload validates and stores an image and returns its new file id.
func (s *FileService) Upload(ctx context.Context, upload *domain.Upload) (string, error) {
	if upload == nil || len(upload.Data) == 0 {
		return "", fmt.Errorf("%w: image file is required", domain.ErrInvalidInput)
	}
	if s.maxSize > 0 && int64(len(upload.Data)) > s.maxSize {
		return "", fmt.Errorf("%w: image exceeds %d bytes", domain.ErrInvalidInput, s.maxSize)
	}
	if ct := http.DetectContentType(upload.Data); !allowedImageTypes[ct] {
		return "", fmt.Errorf("%w: unsupported image type %s", domain.ErrInvalidInput, ct)
	}
	if _, err := media.CheckDimensions(upload.Data); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	id := domain.NewID()
	if err := s.files.Save(ctx, id, upload.Data); err != nil {
		return "", fmt.Errorf("upload file: %w", err)
	}
	s.logger.Debug("file uploaded", "file_id", id, "filename", upload.Filename, "size", len(upload.Data))
	return id, nil
}

// PreviewURL derives the preview URL for a stored file.
func (s *FileService) PreviewURL(fileID string) string {
	return s.urls.FilePreview(fileID)
}

// Get returns the stored bytes of a file and their detected content type.
func (s *FileService) Get(ctx context.Context, fileID string) ([]byte, string, error) {
	if fileID == "" {
		return nil, "", fmt.Errorf("%w: file id is required", domain.ErrInvalidInput)
	}
	data, err := s.files.Get(ctx, fileID)
	if err != nil {
		return nil, "", fmt.Errorf("get file %s: %w", fileID, err)
	}
	return data, http.DetectContentType(data), nil
}

// Delete removes a stored file.
func (s *FileService) Delete(ctx context.Context, fileID string) error {
	if err := s.files.Delete(ctx, fileID); err != nil {
		return fmt.Errorf("delete file %s: %w", fileID, err)
	}
	return nil
}

// discard deletes a file whose owning record was never written, or that a
// record no longer references. Failures are logged, not returned.
func (s *FileService) discard(ctx context.Context, fileID, reason string) {
	if err := s.files.Delete(ctx, fileID); err != nil {
		s.logger.Error("file cleanup failed", "file_id", fileID, "reason", reason, "error", err)
		return
	}
	s.logger.Info("file cleaned up", "file_id", fileID, "reason", reason)
}
