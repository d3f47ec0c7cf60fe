package outbox

import (
	"context"
	"errors"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/messaging"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/persistence"
)

// Config controls one relay pass
type Config struct {
	BatchSize  int
	MaxRetries int // 0 retries forever
}

// RelayResult summarizes one relay pass
type RelayResult struct {
	Sent     int
	Failed   int
	Deferred int // held back behind an earlier failure for the same key
}

// Relay moves committed outbox rows to the broker.
// Rows are sent oldest first; once a key fails, later rows with that key wait for the next pass.
type Relay struct {
	uow          persistence.UnitOfWork
	publisher    messaging.EventPublisher
	timeProvider coreport.TimeProvider
	logger       coreport.Logger
	cfg          Config
}

// NewRelay creates a relay
func NewRelay(
	uow persistence.UnitOfWork,
	publisher messaging.EventPublisher,
	timeProvider coreport.TimeProvider,
	logger coreport.Logger,
	cfg Config,
) *Relay {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Relay{
		uow:          uow,
		publisher:    publisher,
		timeProvider: timeProvider,
		logger:       logger,
		cfg:          cfg,
	}
}

// RelayOnce publishes up to one batch of pending messages
func (r *Relay) RelayOnce(ctx context.Context) (RelayResult, error) {
	var result RelayResult

	repo := r.uow.GetOutboxRepository(ctx)
	pending, err := repo.ListPending(ctx, r.cfg.BatchSize)
	if err != nil {
		return result, err
	}

	blocked := make(map[string]struct{})
	for _, msg := range pending {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if _, ok := blocked[msg.Key]; ok {
			result.Deferred++
			continue
		}

		if err := r.publisher.Publish(ctx, msg.Topic, msg.Key, msg.Payload); err != nil {
			if errors.Is(err, context.Canceled) {
				return result, err
			}
			blocked[msg.Key] = struct{}{}
			result.Failed++
			r.recordFailure(ctx, repo, msg, err)
			continue
		}

		if err := repo.MarkSent(ctx, msg.ID, r.timeProvider.Now()); err != nil {
			// delivered; the next pass sends it again
			r.logger.Error("Failed to mark outbox message sent", map[string]any{
				"message_id":  msg.ID,
				"message_key": msg.MessageKey,
				"error":       err.Error(),
			})
			blocked[msg.Key] = struct{}{}
			continue
		}
		result.Sent++
	}

	if result.Sent > 0 || result.Failed > 0 {
		r.logger.Info("Outbox relay pass finished", map[string]any{
			"sent":     result.Sent,
			"failed":   result.Failed,
			"deferred": result.Deferred,
		})
	}
	return result, nil
}

func (r *Relay) recordFailure(ctx context.Context, repo persistence.OutboxRepository, msg *entity.OutboxMessage, cause error) {
	fields := map[string]any{
		"message_id":  msg.ID,
		"message_key": msg.MessageKey,
		"topic":       msg.Topic,
		"attempt":     msg.Retries + 1,
		"error":       cause.Error(),
	}
	if r.cfg.MaxRetries > 0 && msg.Retries+1 >= r.cfg.MaxRetries {
		r.logger.Error("Outbox message gave up after max retries", fields)
	} else {
		r.logger.Warn("Failed to publish outbox message", fields)
	}

	if err := repo.MarkFailedAttempt(ctx, msg.ID, cause.Error(), r.cfg.MaxRetries); err != nil {
		r.logger.Error("Failed to record outbox failure", map[string]any{
			"message_id": msg.ID,
			"error":      err.Error(),
		})
	}
}
