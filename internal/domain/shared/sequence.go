package shared

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SequenceRepository hands out per-tenant, per-prefix, per-year counters.
// Next must run inside the caller's transaction so that a rolled back
// document does not burn a number.
type SequenceRepository interface {
	Next(ctx context.Context, tenantID uuid.UUID, prefix string, year int) (int64, error)
}

// FormatDocumentNumber renders PREFIX + year + 6-digit sequence, e.g. SO2024000123
func FormatDocumentNumber(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s%d%06d", strings.ToUpper(prefix), year, seq)
}

// NextDocumentNumber draws the next number for prefix in the year of at
func NextDocumentNumber(ctx context.Context, seqs SequenceRepository, tenantID uuid.UUID, prefix string, at time.Time) (string, error) {
	if err := RequireTenant(tenantID); err != nil {
		return "", err
	}
	if strings.TrimSpace(prefix) == "" {
		return "", NewValidationError("INVALID_PREFIX", "Document prefix is required")
	}
	year := at.Year()
	seq, err := seqs.Next(ctx, tenantID, strings.ToUpper(prefix), year)
	if err != nil {
		return "", err
	}
	return FormatDocumentNumber(prefix, year, seq), nil
}
