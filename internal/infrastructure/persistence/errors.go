package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/erp/distribution/internal/domain/shared"
	"gorm.io/gorm"
)

// translate maps a GORM/driver error onto the domain error kinds.
// Domain errors pass through; anything unrecognised means the store itself
// failed and is reported as UpstreamUnavailable.
func translate(err error, resource string) error {
	if err == nil {
		return nil
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return shared.NewNotFoundError(resource)
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return shared.NewConcurrencyConflictError(resource).WithCause(err)
	case errors.Is(err, context.Canceled):
		return err
	}
	return shared.NewUpstreamUnavailableError(err)
}

// isUniqueViolation catches drivers that do not implement error translation
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

// lockResult interprets the outcome of a version-guarded UPDATE
func lockResult(result *gorm.DB, resource string) error {
	if result.Error != nil {
		return translate(result.Error, resource)
	}
	if result.RowsAffected == 0 {
		return shared.NewConcurrencyConflictError(resource)
	}
	return nil
}
