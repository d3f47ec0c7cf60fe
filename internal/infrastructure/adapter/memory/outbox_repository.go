package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
)

type outboxRepository struct {
	store *Store
	tx    *memTx
}

func (r *outboxRepository) Create(_ context.Context, msg *entity.OutboxMessage) error {
	msg.ID = r.store.nextOutboxID.Add(1)
	if msg.Status == "" {
		msg.Status = entity.OutboxPending
	}

	if r.tx != nil {
		r.tx.outbox[msg.ID] = cloneMessage(msg)
		return nil
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.outbox[msg.ID] = cloneMessage(msg)
	return nil
}

func (r *outboxRepository) ListPending(_ context.Context, limit int) ([]*entity.OutboxMessage, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var pending []*entity.OutboxMessage
	for _, msg := range r.store.outbox {
		if msg.Status == entity.OutboxPending {
			pending = append(pending, cloneMessage(msg))
		}
	}

	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (r *outboxRepository) MarkSent(_ context.Context, id uint64, at time.Time) error {
	return r.update(id, func(msg *entity.OutboxMessage) {
		msg.Status = entity.OutboxSent
		sentAt := at
		msg.SentAt = &sentAt
	})
}

func (r *outboxRepository) MarkFailedAttempt(_ context.Context, id uint64, reason string, maxRetries int) error {
	return r.update(id, func(msg *entity.OutboxMessage) {
		msg.Retries++
		msg.LastError = reason
		if maxRetries > 0 && msg.Retries >= maxRetries {
			msg.Status = entity.OutboxFailed
		}
	})
}

func (r *outboxRepository) update(id uint64, apply func(msg *entity.OutboxMessage)) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	msg, ok := r.store.outbox[id]
	if !ok {
		return fmt.Errorf("outbox message %d not found", id)
	}
	apply(msg)
	return nil
}
