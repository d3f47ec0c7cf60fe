package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/persistence"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/repository"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

// Context keys
const txKey contextKey = "tx"

// UnitOfWork implements the unit of work pattern for database transactions
type UnitOfWork struct {
	db             *gorm.DB
	logger         coreport.Logger
	classifier     *repository.ErrorClassifier
	isolationLevel string
	lockTimeout    time.Duration
}

var _ persistence.UnitOfWork = (*UnitOfWork)(nil)

// NewUnitOfWork creates a new UnitOfWork instance. An empty isolation level keeps the
// server default; a zero lockTimeout waits for row locks indefinitely.
func NewUnitOfWork(db *gorm.DB, logger coreport.Logger, isolationLevel string, lockTimeout time.Duration) *UnitOfWork {
	return &UnitOfWork{
		db:             db,
		logger:         logger,
		classifier:     repository.NewErrorClassifier(),
		isolationLevel: strings.ToUpper(isolationLevel),
		lockTimeout:    lockTimeout,
	}
}

// Begin starts a new database transaction
func (u *UnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	if tx, ok := ctx.Value(txKey).(*gorm.DB); ok && tx != nil {
		return ctx, fmt.Errorf("transaction already in progress")
	}

	tx := u.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		u.logger.Error("Failed to begin transaction", map[string]any{"error": tx.Error.Error()})
		return ctx, fmt.Errorf("%w: failed to begin transaction: %s", errs.ErrDatabaseConnection, tx.Error.Error())
	}

	if u.isolationLevel != "" {
		if err := tx.Exec("SET TRANSACTION ISOLATION LEVEL " + u.isolationLevel).Error; err != nil {
			tx.Rollback()
			u.logger.Error("Failed to set transaction isolation level", map[string]any{
				"isolation_level": u.isolationLevel,
				"error":           err.Error(),
			})
			return ctx, fmt.Errorf("failed to set transaction isolation level: %w", err)
		}
	}

	if u.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", u.lockTimeout.Milliseconds())
		if err := tx.Exec(stmt).Error; err != nil {
			tx.Rollback()
			u.logger.Error("Failed to set lock timeout", map[string]any{"error": err.Error()})
			return ctx, fmt.Errorf("failed to set lock timeout: %w", err)
		}
	}

	return context.WithValue(ctx, txKey, tx), nil
}

// Commit commits the current transaction. A serialization failure reported at commit
// time comes back as ErrAccountLocked so the caller can retry the whole transaction.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	tx, ok := ctx.Value(txKey).(*gorm.DB)
	if !ok || tx == nil {
		return errs.ErrNoTransaction
	}

	if err := tx.Commit().Error; err != nil {
		if u.classifier.IsLockError(err) {
			u.logger.Warn("Transaction lost a serialization race", map[string]any{"error": err.Error()})
			return fmt.Errorf("%w: %s", errs.ErrAccountLocked, err.Error())
		}
		u.logger.Error("Failed to commit transaction", map[string]any{"error": err.Error()})
		return fmt.Errorf("%w: failed to commit transaction: %s", errs.ErrDatabaseConnection, err.Error())
	}

	return nil
}

// Rollback rolls back the current transaction
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	tx, ok := ctx.Value(txKey).(*gorm.DB)
	if !ok || tx == nil {
		return errs.ErrNoTransaction
	}

	err := tx.Rollback().Error
	if err != nil && strings.Contains(err.Error(), "already been committed or rolled back") {
		u.logger.Warn("Transaction has already been committed or rolled back", map[string]any{
			"error": err.Error(),
		})
		return nil
	}
	if err != nil {
		u.logger.Error("Failed to rollback transaction", map[string]any{
			"error": err.Error(),
		})
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	return nil
}

// GetAccountRepository returns an account repository in the current transaction
func (u *UnitOfWork) GetAccountRepository(ctx context.Context) persistence.AccountRepository {
	return repository.NewAccountRepository(u.getDbFromContext(ctx), u.logger)
}

// GetLedgerRepository returns a ledger repository in the current transaction
func (u *UnitOfWork) GetLedgerRepository(ctx context.Context) persistence.LedgerRepository {
	return repository.NewLedgerRepository(u.getDbFromContext(ctx), u.logger)
}

// GetOutboxRepository returns an outbox repository in the current transaction
func (u *UnitOfWork) GetOutboxRepository(ctx context.Context) persistence.OutboxRepository {
	return repository.NewOutboxRepository(u.getDbFromContext(ctx), u.logger)
}

// getDbFromContext retrieves the database instance from context
func (u *UnitOfWork) getDbFromContext(ctx context.Context) *gorm.DB {
	tx, ok := ctx.Value(txKey).(*gorm.DB)
	if ok && tx != nil {
		return tx.WithContext(ctx)
	}
	return u.db.WithContext(ctx)
}
