package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	cacheport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/cache"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/usecase"
)

// History paging bounds
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// GetBalance returns the current balance. Reads do not take the account lock and may be
// served from the cache, which lags a just-committed write at most until invalidation.
func (s *Service) GetBalance(ctx context.Context, accountID string) (int64, error) {
	if strings.TrimSpace(accountID) == "" {
		return 0, errs.ErrInvalidAccountID
	}

	if s.cache != nil {
		balance, err := s.cache.Get(ctx, accountID)
		if err == nil {
			return balance, nil
		}
		if !errors.Is(err, cacheport.ErrCacheMiss) {
			s.logger.Warn("Balance cache read failed, falling back to store", map[string]any{
				"account_id": accountID,
				"error":      err.Error(),
			})
		}
	}

	account, err := s.uow.GetAccountRepository(ctx).GetByID(ctx, accountID)
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, accountID, account.Balance()); err != nil {
			s.logger.Warn("Failed to cache balance", map[string]any{
				"account_id": accountID,
				"error":      err.Error(),
			})
		}
	}
	return account.Balance(), nil
}

// GetHistory returns entries newest first. limit is clamped to [1, 100] with 0 meaning 20.
func (s *Service) GetHistory(ctx context.Context, accountID string, limit, offset int) (*usecase.HistoryPage, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, errs.ErrInvalidAccountID
	}
	limit = clampLimit(limit)
	if offset < 0 {
		offset = 0
	}

	if _, err := s.uow.GetAccountRepository(ctx).GetByID(ctx, accountID); err != nil {
		return nil, err
	}

	entries, total, err := s.uow.GetLedgerRepository(ctx).ListByAccount(ctx, accountID, limit, offset)
	if err != nil {
		s.logger.Error("Failed to list ledger entries", map[string]any{
			"account_id": accountID,
			"error":      err.Error(),
		})
		return nil, err
	}

	return &usecase.HistoryPage{
		Entries: entries,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	}, nil
}

// GetEntry returns a single ledger entry
func (s *Service) GetEntry(ctx context.Context, entryID uint64) (*entity.LedgerEntry, error) {
	return s.uow.GetLedgerRepository(ctx).GetByID(ctx, entryID)
}

// FindByReference returns the entries tied to an external job, oldest first
func (s *Service) FindByReference(ctx context.Context, referenceID string) ([]*entity.LedgerEntry, error) {
	if strings.TrimSpace(referenceID) == "" {
		return nil, fmt.Errorf("%w: reference ID is required", errs.ErrInvalidRequest)
	}
	return s.uow.GetLedgerRepository(ctx).FindByReference(ctx, referenceID)
}

// VerifyAccount replays the log of an account and compares it with the stored balance.
// A partially confirmed reservation already carries its net charge, so the refund entry
// written for it is not counted a second time.
func (s *Service) VerifyAccount(ctx context.Context, accountID string) (*usecase.AuditReport, error) {
	report := &usecase.AuditReport{AccountID: accountID}

	err := s.withTransaction(ctx, "verify_account", func(txCtx context.Context) error {
		account, err := s.uow.GetAccountRepository(txCtx).LockByID(txCtx, accountID)
		if err != nil {
			return err
		}

		sum, count, err := s.uow.GetLedgerRepository(txCtx).SumByAccount(txCtx, accountID)
		if err != nil {
			return err
		}

		report.Balance = account.Balance()
		report.LedgerSum = sum
		report.EntryCount = count
		report.Consistent = sum == account.Balance()
		report.CheckedAt = s.timeProvider.Now()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !report.Consistent {
		s.logger.Error("Ledger does not match balance", map[string]any{
			"account_id":  accountID,
			"balance":     entity.FormatCredits(report.Balance),
			"ledger_sum":  entity.FormatCredits(report.LedgerSum),
			"entry_count": report.EntryCount,
		})
	}
	return report, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}
