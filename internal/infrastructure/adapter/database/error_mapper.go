package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	domainErr "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/repository"
)

// EntityType represents the type of entity for errors mapping
type EntityType string

const (
	// EntityTypeAccount represents the account entity
	EntityTypeAccount EntityType = "account"
	// EntityTypeLedgerEntry represents the ledger entry entity
	EntityTypeLedgerEntry EntityType = "ledger_entry"
)

// ErrorMapper maps database errors to domain errors
type ErrorMapper struct {
	classifier *repository.ErrorClassifier
}

// NewErrorMapper creates a new ErrorMapper
func NewErrorMapper() *ErrorMapper {
	return &ErrorMapper{classifier: repository.NewErrorClassifier()}
}

// MapError maps a database error to a domain error
func (m *ErrorMapper) MapError(err error, operation string) error {
	if err == nil {
		return nil
	}

	switch m.classifier.Classify(err) {
	case repository.LockError:
		return fmt.Errorf("%w: %s", domainErr.ErrAccountLocked, err.Error())
	case repository.DuplicateKeyError:
		if m.classifier.IsFingerprintViolation(err) {
			return domainErr.ErrTrialAlreadyUsed
		}
		return domainErr.ErrDuplicateAccount
	case repository.ConstraintError:
		return fmt.Errorf("%w: %s", domainErr.ErrConstraintViolation, err.Error())
	case repository.ConnectionError:
		return fmt.Errorf("%w: %s", domainErr.ErrDatabaseConnection, err.Error())
	case repository.TransientError:
		return fmt.Errorf("%w: %s operation timed out", domainErr.ErrDatabaseConnection, operation)
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domainErr.ErrAccountNotFound
	}
	return fmt.Errorf("%w: %s failed", domainErr.ErrInternalServer, operation)
}

// MapEntityNotFoundError maps database errors to specific entity not found errors
func (m *ErrorMapper) MapEntityNotFoundError(err error, entityType EntityType) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		if entityType == EntityTypeLedgerEntry {
			return domainErr.ErrEntryNotFound
		}
		return domainErr.ErrAccountNotFound
	}

	return m.MapError(err, string(entityType))
}

// IsRetryable reports errors worth retrying the whole operation for
func (m *ErrorMapper) IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	switch m.classifier.Classify(err) {
	case repository.LockError, repository.TransientError, repository.ConnectionError:
		return true
	}
	return false
}
