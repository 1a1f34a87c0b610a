package persistence

import (
	"context"
	"time"

	"github.com/erp/distribution/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const outboxResource = "Outbox entry"

// GormOutboxRepository implements shared.OutboxRepository using GORM
type GormOutboxRepository struct {
	db *gorm.DB
}

// NewGormOutboxRepository creates a new GormOutboxRepository
func NewGormOutboxRepository(db *gorm.DB) *GormOutboxRepository {
	return &GormOutboxRepository{db: db}
}

// Save inserts one or more entries
func (r *GormOutboxRepository) Save(ctx context.Context, entries ...*shared.OutboxEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return translate(r.db.WithContext(ctx).Create(entries).Error, outboxResource)
}

// FindByID loads one entry
func (r *GormOutboxRepository) FindByID(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	var entry shared.OutboxEntry
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error; err != nil {
		return nil, translate(err, outboxResource)
	}
	return &entry, nil
}

// FindDue returns entries ready for dispatch, oldest first
func (r *GormOutboxRepository) FindDue(ctx context.Context, now, staleBefore time.Time, limit int) ([]*shared.OutboxEntry, error) {
	var entries []*shared.OutboxEntry
	err := dueEntries(r.db.WithContext(ctx), now, staleBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&entries).Error
	return entries, translate(err, outboxResource)
}

// Claim marks the entry processing if it is still due. The conditional
// update makes concurrent workers race on the row rather than on memory.
func (r *GormOutboxRepository) Claim(ctx context.Context, entry *shared.OutboxEntry, now, staleBefore time.Time) (bool, error) {
	result := dueEntries(r.db.WithContext(ctx).Model(&shared.OutboxEntry{}), now, staleBefore).
		Where("id = ?", entry.ID).
		Updates(map[string]interface{}{
			"status":     shared.OutboxStatusProcessing,
			"updated_at": now,
		})
	if result.Error != nil {
		return false, translate(result.Error, outboxResource)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	entry.Status = shared.OutboxStatusProcessing
	entry.UpdatedAt = now
	return true, nil
}

func dueEntries(db *gorm.DB, now, staleBefore time.Time) *gorm.DB {
	return db.Where(
		"status = ? OR (status = ? AND (next_retry_at IS NULL OR next_retry_at <= ?)) OR (status = ? AND updated_at < ?)",
		shared.OutboxStatusPending,
		shared.OutboxStatusFailed, now,
		shared.OutboxStatusProcessing, staleBefore,
	)
}

// Update writes the dispatch outcome of an entry
func (r *GormOutboxRepository) Update(ctx context.Context, entry *shared.OutboxEntry) error {
	err := r.db.WithContext(ctx).Model(&shared.OutboxEntry{}).
		Where("id = ?", entry.ID).
		Updates(map[string]interface{}{
			"status":        entry.Status,
			"retry_count":   entry.RetryCount,
			"last_error":    entry.LastError,
			"next_retry_at": entry.NextRetryAt,
			"processed_at":  entry.ProcessedAt,
			"updated_at":    entry.UpdatedAt,
		}).Error
	return translate(err, outboxResource)
}

// DeleteSentBefore removes dispatched entries processed before the cutoff
func (r *GormOutboxRepository) DeleteSentBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status = ? AND processed_at < ?", shared.OutboxStatusSent, before).
		Delete(&shared.OutboxEntry{})
	return result.RowsAffected, translate(result.Error, outboxResource)
}

// CountByStatus returns the number of entries per status
func (r *GormOutboxRepository) CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error) {
	type statusCount struct {
		Status shared.OutboxStatus
		Count  int64
	}
	var rows []statusCount
	if err := r.db.WithContext(ctx).
		Model(&shared.OutboxEntry{}).
		Select("status, count(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, translate(err, outboxResource)
	}
	counts := make(map[shared.OutboxStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

var _ shared.OutboxRepository = (*GormOutboxRepository)(nil)
