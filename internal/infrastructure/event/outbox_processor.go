package event

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/erp/distribution/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OutboxProcessorConfig holds configuration for the outbox processor
type OutboxProcessorConfig struct {
	BatchSize        int
	PollInterval     time.Duration
	ClaimTimeout     time.Duration
	CleanupRetention time.Duration
}

// DefaultOutboxProcessorConfig returns default configuration
func DefaultOutboxProcessorConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:        100,
		PollInterval:     5 * time.Second,
		ClaimTimeout:     time.Minute,
		CleanupRetention: 7 * 24 * time.Hour,
	}
}

// OutboxProcessorOption configures an OutboxProcessor
type OutboxProcessorOption func(*OutboxProcessor)

// WithOutboxClock replaces time.Now, for tests that step through retries
func WithOutboxClock(now func() time.Time) OutboxProcessorOption {
	return func(p *OutboxProcessor) {
		p.now = now
	}
}

// OutboxProcessor dispatches staged events to the publisher. Services call
// Relay right after their transaction commits; the poll loop picks up
// whatever that missed, failed or crashed on.
type OutboxProcessor struct {
	repo       shared.OutboxRepository
	publisher  shared.EventPublisher
	serializer *EventSerializer
	config     OutboxProcessorConfig
	logger     *zap.Logger
	now        func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOutboxProcessor creates a new outbox processor
func NewOutboxProcessor(
	repo shared.OutboxRepository,
	publisher shared.EventPublisher,
	serializer *EventSerializer,
	config OutboxProcessorConfig,
	logger *zap.Logger,
	opts ...OutboxProcessorOption,
) *OutboxProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultOutboxProcessorConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.ClaimTimeout <= 0 {
		config.ClaimTimeout = defaults.ClaimTimeout
	}
	p := &OutboxProcessor{
		repo:       repo,
		publisher:  publisher,
		serializer: serializer,
		config:     config,
		logger:     logger.Named("outbox"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Stage serializes an event into a pending entry. The caller saves it in
// the transaction that produced the event.
func (p *OutboxProcessor) Stage(event shared.DomainEvent) (*shared.OutboxEntry, error) {
	if !p.serializer.IsRegistered(event.EventType()) {
		return nil, fmt.Errorf("event type %s is not registered for the outbox", event.EventType())
	}
	payload, err := p.serializer.Serialize(event)
	if err != nil {
		return nil, err
	}
	entry := shared.NewOutboxEntry(event.TenantID(), event, payload)
	now := p.now()
	entry.CreatedAt, entry.UpdatedAt = now, now
	return entry, nil
}

// Relay dispatches committed entries now. Failures stay in the table for
// the poll loop.
func (p *OutboxProcessor) Relay(ctx context.Context, entryIDs ...uuid.UUID) {
	for _, id := range entryIDs {
		entry, err := p.repo.FindByID(ctx, id)
		if err != nil {
			p.logger.Warn("load outbox entry", zap.String("entry_id", id.String()), zap.Error(err))
			continue
		}
		p.process(ctx, entry)
	}
}

// ProcessPending dispatches one batch of due entries and returns how many
// were sent
func (p *OutboxProcessor) ProcessPending(ctx context.Context) (int, error) {
	now := p.now()
	entries, err := p.repo.FindDue(ctx, now, now.Add(-p.config.ClaimTimeout), p.config.BatchSize)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, entry := range entries {
		if p.process(ctx, entry) {
			sent++
		}
	}
	return sent, nil
}

// process claims and dispatches one entry, reporting whether it was sent
func (p *OutboxProcessor) process(ctx context.Context, entry *shared.OutboxEntry) bool {
	now := p.now()
	claimed, err := p.repo.Claim(ctx, entry, now, now.Add(-p.config.ClaimTimeout))
	if err != nil {
		p.logger.Error("claim outbox entry", zap.String("entry_id", entry.ID.String()), zap.Error(err))
		return false
	}
	if !claimed {
		return false
	}

	event, err := p.serializer.Deserialize(entry.EventType, entry.Payload)
	if err == nil {
		err = p.publisher.Publish(ctx, event)
	}
	if err != nil {
		entry.MarkFailed(err.Error(), p.now())
		fields := []zap.Field{
			zap.String("event_id", entry.EventID.String()),
			zap.String("event_type", entry.EventType),
			zap.String("aggregate_id", entry.AggregateID.String()),
			zap.Int("retry_count", entry.RetryCount),
			zap.Error(err),
		}
		if entry.IsDead() {
			p.logger.Error("outbox entry is dead", fields...)
		} else {
			p.logger.Warn("outbox dispatch failed", append(fields, zap.Timep("next_retry_at", entry.NextRetryAt))...)
		}
		if updateErr := p.repo.Update(ctx, entry); updateErr != nil {
			p.logger.Error("update outbox entry", zap.String("entry_id", entry.ID.String()), zap.Error(updateErr))
		}
		return false
	}

	entry.MarkSent(p.now())
	if err := p.repo.Update(ctx, entry); err != nil {
		// the claim times out and handlers see the event again; they dedup by event ID
		p.logger.Error("mark outbox entry sent", zap.String("entry_id", entry.ID.String()), zap.Error(err))
		return true
	}
	p.logger.Debug("outbox entry sent",
		zap.String("event_id", entry.EventID.String()),
		zap.String("event_type", entry.EventType),
	)
	return true
}

// Start runs the poll loop until Stop
func (p *OutboxProcessor) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.loop(ctx)

	p.logger.Info("outbox processor started",
		zap.Int("batch_size", p.config.BatchSize),
		zap.Duration("poll_interval", p.config.PollInterval),
	)
	return nil
}

// Stop ends the poll loop and waits for the current batch
func (p *OutboxProcessor) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.logger.Info("outbox processor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *OutboxProcessor) loop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.ProcessPending(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("process outbox", zap.Error(err))
			}
			p.cleanup(ctx)
		}
	}
}

func (p *OutboxProcessor) cleanup(ctx context.Context) {
	if p.config.CleanupRetention <= 0 {
		return
	}
	cutoff := p.now().Add(-p.config.CleanupRetention)
	deleted, err := p.repo.DeleteSentBefore(ctx, cutoff)
	if err != nil {
		p.logger.Warn("clean up outbox", zap.Error(err))
		return
	}
	if deleted > 0 {
		p.logger.Info("cleaned up outbox entries", zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
	}
}

var _ shared.OutboxRelay = (*OutboxProcessor)(nil)
