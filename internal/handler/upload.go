package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/msomdec/snapgram/internal/domain"
)

// multipartOverhead is allowed on top of the upload limit for the other form
// fields and part headers.
const multipartOverhead = 1 << 20

// parseUploadForm parses a multipart body no larger than maxUpload plus
// overhead.
func parseUploadForm(w http.ResponseWriter, r *http.Request, maxUpload int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(maxUpload + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: upload exceeds %d bytes", domain.ErrInvalidInput, maxUpload)
		}
		return fmt.Errorf("%w: invalid multipart form", domain.ErrInvalidInput)
	}
	return nil
}

// formUpload reads the file in field. It returns nil without error when the
// form has no such file.
func formUpload(r *http.Request, field string) (*domain.Upload, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrInvalidInput, field, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return &domain.Upload{
		Filename:    header.Filename,
		ContentType: http.DetectContentType(data),
		Data:        data,
	}, nil
}
