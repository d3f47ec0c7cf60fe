package persistence

import (
	"context"
	"time"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
)

// OutboxRepository stores events awaiting publication
type OutboxRepository interface {
	// Create inserts a pending message
	Create(ctx context.Context, msg *entity.OutboxMessage) error

	// ListPending returns pending messages, oldest first
	ListPending(ctx context.Context, limit int) ([]*entity.OutboxMessage, error)

	// MarkSent flags a message as delivered
	MarkSent(ctx context.Context, id uint64, at time.Time) error

	// MarkFailedAttempt records a delivery failure; the message becomes failed
	// once its retry count reaches maxRetries
	MarkFailedAttempt(ctx context.Context, id uint64, reason string, maxRetries int) error
}
