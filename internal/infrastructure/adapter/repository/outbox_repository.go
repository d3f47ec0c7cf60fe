package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/model"
)

// OutboxRepository implements persistence.OutboxRepository using GORM
type OutboxRepository struct {
	db     *gorm.DB
	logger coreport.Logger
}

// NewOutboxRepository creates a new OutboxRepository instance
func NewOutboxRepository(db *gorm.DB, logger coreport.Logger) *OutboxRepository {
	return &OutboxRepository{
		db:     db,
		logger: logger,
	}
}

func messageToEntity(m *model.OutboxMessage) *entity.OutboxMessage {
	return &entity.OutboxMessage{
		ID:         m.ID,
		MessageKey: m.MessageKey,
		Topic:      m.Topic,
		Key:        m.Key,
		Payload:    m.Payload,
		Status:     entity.OutboxStatus(m.Status),
		Retries:    m.Retries,
		LastError:  m.LastError,
		CreatedAt:  m.CreatedAt,
		SentAt:     m.SentAt,
	}
}

// Create stores a message in the current transaction
func (r *OutboxRepository) Create(ctx context.Context, msg *entity.OutboxMessage) error {
	status := msg.Status
	if status == "" {
		status = entity.OutboxPending
	}

	m := model.OutboxMessage{
		MessageKey: msg.MessageKey,
		Topic:      msg.Topic,
		Key:        msg.Key,
		Payload:    msg.Payload,
		Status:     string(status),
		CreatedAt:  msg.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		r.logger.Error("Failed to store outbox message", map[string]any{
			"message_key": msg.MessageKey,
			"topic":       msg.Topic,
			"error":       err.Error(),
		})
		return fmt.Errorf("%w: %s", errs.ErrDatabaseConnection, err.Error())
	}

	msg.ID = m.ID
	msg.Status = status
	return nil
}

// ListPending returns pending messages in insertion order
func (r *OutboxRepository) ListPending(ctx context.Context, limit int) ([]*entity.OutboxMessage, error) {
	var models []model.OutboxMessage
	query := r.db.WithContext(ctx).
		Where("status = ?", string(entity.OutboxPending)).
		Order("id")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("%w: %s", errs.ErrDatabaseConnection, err.Error())
	}

	messages := make([]*entity.OutboxMessage, 0, len(models))
	for i := range models {
		messages = append(messages, messageToEntity(&models[i]))
	}
	return messages, nil
}

// MarkSent records a successful publish
func (r *OutboxRepository) MarkSent(ctx context.Context, id uint64, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":  string(entity.OutboxSent),
			"sent_at": at,
		})
	return r.checkUpdate(result, id)
}

// MarkFailedAttempt counts a failed publish and gives up after maxRetries
func (r *OutboxRepository) MarkFailedAttempt(ctx context.Context, id uint64, reason string, maxRetries int) error {
	status := gorm.Expr("status")
	if maxRetries > 0 {
		status = gorm.Expr("CASE WHEN retries + 1 >= ? THEN ? ELSE status END", maxRetries, string(entity.OutboxFailed))
	}

	result := r.db.WithContext(ctx).Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"retries":    gorm.Expr("retries + 1"),
			"last_error": reason,
			"status":     status,
		})
	return r.checkUpdate(result, id)
}

func (r *OutboxRepository) checkUpdate(result *gorm.DB, id uint64) error {
	if result.Error != nil {
		return fmt.Errorf("%w: %s", errs.ErrDatabaseConnection, result.Error.Error())
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("outbox message %d not found", id)
	}
	return nil
}
