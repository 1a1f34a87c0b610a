package persistence

import (
	"context"
	"time"

	"github.com/erp/distribution/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSequenceRepository implements shared.SequenceRepository with an upsert
// on document_sequences. Called inside a transaction, the row lock it takes
// serialises number allocation per (tenant, prefix, year).
type GormSequenceRepository struct {
	db *gorm.DB
}

// NewGormSequenceRepository creates a new GormSequenceRepository
func NewGormSequenceRepository(db *gorm.DB) *GormSequenceRepository {
	return &GormSequenceRepository{db: db}
}

const nextSequenceSQL = `INSERT INTO document_sequences (tenant_id, prefix, year, last_value, updated_at)
VALUES (?, ?, ?, 1, ?)
ON CONFLICT (tenant_id, prefix, year)
DO UPDATE SET last_value = document_sequences.last_value + 1, updated_at = excluded.updated_at
RETURNING last_value`

// Next increments and returns the counter
func (r *GormSequenceRepository) Next(ctx context.Context, tenantID uuid.UUID, prefix string, year int) (int64, error) {
	var next int64
	if err := r.db.WithContext(ctx).
		Raw(nextSequenceSQL, tenantID, prefix, year, time.Now()).
		Scan(&next).Error; err != nil {
		return 0, translate(err, "Document sequence")
	}
	return next, nil
}

var _ shared.SequenceRepository = (*GormSequenceRepository)(nil)
