package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/persistence"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/model"
)

// LedgerRepository implements persistence.LedgerRepository using GORM
type LedgerRepository struct {
	db              *gorm.DB
	logger          coreport.Logger
	errorClassifier *ErrorClassifier
}

// NewLedgerRepository creates a new LedgerRepository instance
func NewLedgerRepository(db *gorm.DB, logger coreport.Logger) *LedgerRepository {
	return &LedgerRepository{
		db:              db,
		logger:          logger,
		errorClassifier: NewErrorClassifier(),
	}
}

func entryToModel(e *entity.LedgerEntry) model.LedgerEntry {
	var metadata datatypes.JSONMap
	if len(e.Metadata) > 0 {
		metadata = datatypes.JSONMap(e.Metadata)
	}
	return model.LedgerEntry{
		ID:             e.ID,
		AccountID:      e.AccountID,
		Amount:         e.Amount,
		BalanceAfter:   e.BalanceAfter,
		Kind:           string(e.Kind),
		ServiceType:    string(e.ServiceType),
		ReferenceID:    e.ReferenceID,
		RelatedEntryID: e.RelatedEntryID,
		Status:         string(e.Status),
		Description:    e.Description,
		Metadata:       metadata,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func entryToEntity(m *model.LedgerEntry) *entity.LedgerEntry {
	var metadata map[string]any
	if len(m.Metadata) > 0 {
		metadata = map[string]any(m.Metadata)
	}
	return &entity.LedgerEntry{
		ID:             m.ID,
		AccountID:      m.AccountID,
		Amount:         m.Amount,
		BalanceAfter:   m.BalanceAfter,
		Kind:           entity.EntryKind(m.Kind),
		ServiceType:    entity.ServiceType(m.ServiceType),
		ReferenceID:    m.ReferenceID,
		RelatedEntryID: m.RelatedEntryID,
		Status:         entity.EntryStatus(m.Status),
		Description:    m.Description,
		Metadata:       metadata,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func entriesToEntities(models []model.LedgerEntry) []*entity.LedgerEntry {
	entries := make([]*entity.LedgerEntry, 0, len(models))
	for i := range models {
		entries = append(entries, entryToEntity(&models[i]))
	}
	return entries
}

func (r *LedgerRepository) handleDatabaseError(operation string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errs.ErrEntryNotFound
	case r.errorClassifier.IsLockError(err):
		return fmt.Errorf("%w: %s", errs.ErrAccountLocked, err.Error())
	case r.errorClassifier.IsConstraintError(err):
		r.logger.Error("Ledger constraint violated", map[string]any{
			"operation": operation,
			"error":     err.Error(),
		})
		return fmt.Errorf("%w: %s", errs.ErrConstraintViolation, err.Error())
	}

	r.logger.Error(fmt.Sprintf("Database error when %s", operation), map[string]any{
		"error": err.Error(),
	})
	return fmt.Errorf("%w: %s", errs.ErrDatabaseConnection, err.Error())
}

// Create appends an entry and sets its generated ID
func (r *LedgerRepository) Create(ctx context.Context, entry *entity.LedgerEntry) error {
	m := entryToModel(entry)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return r.handleDatabaseError("creating ledger entry", err)
	}
	entry.ID = m.ID
	return nil
}

// GetByID returns a single entry
func (r *LedgerRepository) GetByID(ctx context.Context, id uint64) (*entity.LedgerEntry, error) {
	var m model.LedgerEntry
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, r.handleDatabaseError("getting ledger entry", err)
	}
	return entryToEntity(&m), nil
}

// UpdateSettlement moves a reserved entry to its terminal state. The status guard makes a
// second settlement of the same entry a no-op that reports InvalidReservationState.
func (r *LedgerRepository) UpdateSettlement(ctx context.Context, entry *entity.LedgerEntry) error {
	result := r.db.WithContext(ctx).Model(&model.LedgerEntry{}).
		Where("id = ? AND status = ?", entry.ID, string(entity.StatusReserved)).
		Updates(map[string]interface{}{
			"amount":     entry.Amount,
			"status":     string(entry.Status),
			"updated_at": entry.UpdatedAt,
		})
	if result.Error != nil {
		return r.handleDatabaseError("settling ledger entry", result.Error)
	}
	if result.RowsAffected == 0 {
		return errs.NewInvalidReservationStateError(entry.ID, "", "entry is not reserved")
	}
	return nil
}

// ListByAccount returns one page of entries, newest first, and the total count
func (r *LedgerRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*entity.LedgerEntry, int64, error) {
	db := r.db.WithContext(ctx)

	var total int64
	if err := db.Model(&model.LedgerEntry{}).Where("account_id = ?", accountID).Count(&total).Error; err != nil {
		return nil, 0, r.handleDatabaseError("counting ledger entries", err)
	}

	var models []model.LedgerEntry
	err := db.Where("account_id = ?", accountID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&models).Error
	if err != nil {
		return nil, 0, r.handleDatabaseError("listing ledger entries", err)
	}
	return entriesToEntities(models), total, nil
}

// FindByReference returns entries tied to an external job, oldest first
func (r *LedgerRepository) FindByReference(ctx context.Context, referenceID string) ([]*entity.LedgerEntry, error) {
	var models []model.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("reference_id = ?", referenceID).
		Order("created_at, id").
		Find(&models).Error
	if err != nil {
		return nil, r.handleDatabaseError("finding ledger entries by reference", err)
	}
	return entriesToEntities(models), nil
}

const trialUsageQuery = `
SELECT
	COALESCE(SUM(CASE WHEN kind = ? THEN amount ELSE 0 END), 0) AS granted,
	COALESCE(SUM(CASE WHEN kind = ? AND status <> ? AND created_at <= ? THEN -amount ELSE 0 END), 0) AS used,
	COALESCE(SUM(CASE WHEN kind = ? THEN -amount ELSE 0 END), 0) AS expired,
	COALESCE(SUM(CASE WHEN kind = ? AND status = ? AND created_at <= ? THEN -amount ELSE 0 END), 0) AS pending
FROM ledger_entries
WHERE account_id = ?`

// TrialUsage sums trial grants, usage recorded up to trialEnd that was not refunded,
// earlier expirations, and the part of that usage still reserved for an account
func (r *LedgerRepository) TrialUsage(ctx context.Context, accountID string, trialEnd time.Time) (persistence.TrialUsage, error) {
	var usage persistence.TrialUsage
	err := r.db.WithContext(ctx).Raw(trialUsageQuery,
		string(entity.KindTrialGrant),
		string(entity.KindUsage), string(entity.StatusRefunded), trialEnd,
		string(entity.KindExpiration),
		string(entity.KindUsage), string(entity.StatusReserved), trialEnd,
		accountID,
	).Scan(&usage).Error
	if err != nil {
		return usage, r.handleDatabaseError("summing trial usage", err)
	}
	return usage, nil
}

// ListStaleReservations returns IDs of reserved entries created before the cutoff, oldest first
func (r *LedgerRepository) ListStaleReservations(ctx context.Context, before time.Time, limit int) ([]uint64, error) {
	var ids []uint64
	query := r.db.WithContext(ctx).Model(&model.LedgerEntry{}).
		Where("status = ? AND created_at < ?", string(entity.StatusReserved), before).
		Order("created_at, id")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Pluck("id", &ids).Error; err != nil {
		return nil, r.handleDatabaseError("listing stale reservations", err)
	}
	return ids, nil
}

const sumByAccountQuery = `
SELECT
	COALESCE(SUM(CASE WHEN e.kind = ? AND r.status = ? THEN 0 ELSE e.amount END), 0) AS total,
	COUNT(*) AS entries
FROM ledger_entries e
LEFT JOIN ledger_entries r ON r.id = e.related_entry_id
WHERE e.account_id = ?`

type ledgerSum struct {
	Total   int64
	Entries int64
}

// SumByAccount replays the log of an account. A refund tied to a completed reservation is
// left out because the reservation amount was already rewritten to the net charge.
func (r *LedgerRepository) SumByAccount(ctx context.Context, accountID string) (int64, int64, error) {
	var sum ledgerSum
	err := r.db.WithContext(ctx).Raw(sumByAccountQuery,
		string(entity.KindRefund), string(entity.StatusCompleted), accountID,
	).Scan(&sum).Error
	if err != nil {
		return 0, 0, r.handleDatabaseError("summing ledger", err)
	}
	return sum.Total, sum.Entries, nil
}
