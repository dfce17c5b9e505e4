package service

import (
	"errors"
	"log/slog"

	"github.com/msomdec/snapgram/internal/domain"
)

// fail logs a gateway failure once and returns it unchanged. Rejections the
// caller caused are logged at info, backend failures at error.
func fail(logger *slog.Logger, op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrDuplicateEmail),
		errors.Is(err, domain.ErrDuplicateSave):
		logger.Info("operation rejected", "op", op, "error", err)
	default:
		logger.Error("operation failed", "op", op, "error", err)
	}
	return err
}
