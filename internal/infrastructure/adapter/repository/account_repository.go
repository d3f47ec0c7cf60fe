package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/model"
)

// AccountRepository implements persistence.AccountRepository using GORM
type AccountRepository struct {
	db              *gorm.DB
	logger          coreport.Logger
	errorClassifier *ErrorClassifier
}

// NewAccountRepository creates a new AccountRepository instance
func NewAccountRepository(db *gorm.DB, logger coreport.Logger) *AccountRepository {
	return &AccountRepository{
		db:              db,
		logger:          logger,
		errorClassifier: NewErrorClassifier(),
	}
}

func accountToModel(account *entity.Account) model.Account {
	return model.Account{
		ID:                account.ID,
		Balance:           account.Balance(),
		TrialGranted:      account.TrialGranted,
		TrialExpiresAt:    account.TrialExpiresAt,
		TrialReclaimed:    account.TrialReclaimed,
		SignupFingerprint: account.SignupFingerprint,
		CreatedAt:         account.CreatedAt,
		UpdatedAt:         account.UpdatedAt,
	}
}

func accountToEntity(m *model.Account) *entity.Account {
	account := entity.RestoreAccount(m.ID, m.Balance, m.CreatedAt, m.UpdatedAt)
	account.TrialGranted = m.TrialGranted
	account.TrialExpiresAt = m.TrialExpiresAt
	account.TrialReclaimed = m.TrialReclaimed
	account.SignupFingerprint = m.SignupFingerprint
	return account
}

// handleDatabaseError standardizes database error handling
func (r *AccountRepository) handleDatabaseError(operation string, err error, accountID string) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errs.ErrAccountNotFound
	case r.errorClassifier.IsFingerprintViolation(err):
		r.logger.Warn("Signup fingerprint already used by another trial", map[string]any{
			"account_id": accountID,
		})
		return errs.ErrTrialAlreadyUsed
	case r.errorClassifier.IsDuplicateKeyError(err):
		return errs.ErrDuplicateAccount
	case r.errorClassifier.IsLockError(err):
		r.logger.Warn("Account is locked by another transaction", map[string]any{
			"account_id": accountID,
			"error":      err.Error(),
		})
		return fmt.Errorf("%w: %s", errs.ErrAccountLocked, err.Error())
	case r.errorClassifier.IsConstraintError(err):
		return fmt.Errorf("%w: %s", errs.ErrConstraintViolation, err.Error())
	}

	r.logger.Error(fmt.Sprintf("Database error when %s", operation), map[string]any{
		"account_id": accountID,
		"error":      err.Error(),
	})
	return fmt.Errorf("%w: %s", errs.ErrDatabaseConnection, err.Error())
}

// GetByID reads an account without locking it
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*entity.Account, error) {
	var m model.Account
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, r.handleDatabaseError("getting account", err, id)
	}
	return accountToEntity(&m), nil
}

// LockByID reads an account with SELECT ... FOR UPDATE. The row stays locked until the
// surrounding transaction ends.
func (r *AccountRepository) LockByID(ctx context.Context, id string) (*entity.Account, error) {
	if !inTransaction(r.db) {
		return nil, errs.ErrNoTransaction
	}

	r.logger.Debug("Locking account row", map[string]any{
		"account_id": id,
	})

	var m model.Account
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&m).Error
	if err != nil {
		return nil, r.handleDatabaseError("locking account", err, id)
	}
	return accountToEntity(&m), nil
}

// Create inserts a new account
func (r *AccountRepository) Create(ctx context.Context, account *entity.Account) error {
	m := accountToModel(account)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return r.handleDatabaseError("creating account", err, account.ID)
	}
	return nil
}

// Update writes the balance and trial state of an account
func (r *AccountRepository) Update(ctx context.Context, account *entity.Account) error {
	result := r.db.WithContext(ctx).Model(&model.Account{}).
		Where("id = ?", account.ID).
		Updates(map[string]interface{}{
			"balance":            account.Balance(),
			"trial_granted":      account.TrialGranted,
			"trial_expires_at":   account.TrialExpiresAt,
			"trial_reclaimed":    account.TrialReclaimed,
			"signup_fingerprint": account.SignupFingerprint,
			"updated_at":         account.UpdatedAt,
		})
	if result.Error != nil {
		return r.handleDatabaseError("updating account", result.Error, account.ID)
	}
	if result.RowsAffected == 0 {
		return errs.ErrAccountNotFound
	}
	return nil
}

// FingerprintInUse reports whether another account already received a trial with the fingerprint
func (r *AccountRepository) FingerprintInUse(ctx context.Context, fingerprint string, excludeID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Account{}).
		Where("trial_granted = ? AND lower(signup_fingerprint) = ? AND id <> ?",
			true, strings.ToLower(strings.TrimSpace(fingerprint)), excludeID).
		Count(&count).Error
	if err != nil {
		return false, r.handleDatabaseError("checking fingerprint", err, excludeID)
	}
	return count > 0, nil
}

// ListExpiredTrials returns accounts whose trial window closed and whose credit was not reclaimed yet
func (r *AccountRepository) ListExpiredTrials(ctx context.Context, now time.Time, limit int) ([]string, error) {
	var ids []string
	query := r.db.WithContext(ctx).Model(&model.Account{}).
		Where("trial_granted = ? AND trial_reclaimed = ? AND trial_expires_at < ?", true, false, now).
		Order("trial_expires_at, id")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Pluck("id", &ids).Error; err != nil {
		return nil, r.handleDatabaseError("listing expired trials", err, "")
	}
	return ids, nil
}
