package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/usecase"
)

// CreateAccount registers a new account with a zero balance
func (s *Service) CreateAccount(ctx context.Context, accountID string) (*entity.Account, error) {
	account, err := entity.NewAccount(strings.TrimSpace(accountID), s.timeProvider)
	if err != nil {
		return nil, err
	}

	if err := s.uow.GetAccountRepository(ctx).Create(ctx, account); err != nil {
		if !errors.Is(err, errs.ErrDuplicateAccount) {
			s.logger.Error("Failed to create account", map[string]any{
				"account_id": account.ID,
				"error":      err.Error(),
			})
		}
		return nil, err
	}

	s.logger.Info("Account created", map[string]any{
		"account_id": account.ID,
	})
	return account, nil
}

// ApplyMutation is the atomic mutation primitive: it locks the account row, checks the
// balance, writes the new balance and appends the entry, all in one transaction.
func (s *Service) ApplyMutation(ctx context.Context, req usecase.MutationRequest) (*entity.LedgerEntry, error) {
	if err := validateMutation(req); err != nil {
		return nil, err
	}

	var entry *entity.LedgerEntry
	err := s.withTransaction(ctx, "apply_mutation", func(txCtx context.Context) error {
		account, err := s.uow.GetAccountRepository(txCtx).LockByID(txCtx, req.AccountID)
		if err != nil {
			return err
		}

		entry, err = s.applyLocked(txCtx, account, req, nil)
		return err
	})
	if err != nil {
		if errs.IsInsufficientCreditsError(err) {
			s.logger.Info("Mutation rejected", logFieldsOf(err))
		} else {
			s.logger.Error("Mutation failed", map[string]any{
				"account_id": req.AccountID,
				"kind":       req.Kind,
				"delta":      req.Delta,
				"error":      err.Error(),
			})
		}
		return nil, err
	}

	s.invalidateBalance(ctx, req.AccountID)

	s.logger.Info("Ledger entry recorded", map[string]any{
		"account_id":    entry.AccountID,
		"entry_id":      entry.ID,
		"kind":          entry.Kind,
		"status":        entry.Status,
		"amount":        entity.FormatCredits(entry.Amount),
		"balance_after": entity.FormatCredits(entry.BalanceAfter),
		"reference_id":  entry.ReferenceID,
	})
	return entry, nil
}

// applyLocked changes the balance of an account the caller already holds the lock on and
// appends the matching entry. No other code writes balances or inserts entries.
func (s *Service) applyLocked(
	txCtx context.Context,
	account *entity.Account,
	req usecase.MutationRequest,
	relatedEntryID *uint64,
) (*entity.LedgerEntry, error) {
	newBalance, err := account.ApplyDelta(req.Delta, s.timeProvider)
	if err != nil {
		return nil, err
	}

	if err := s.uow.GetAccountRepository(txCtx).Update(txCtx, account); err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = entity.StatusCompleted
	}

	now := s.timeProvider.Now()
	entry := &entity.LedgerEntry{
		AccountID:      account.ID,
		Amount:         req.Delta,
		BalanceAfter:   newBalance,
		Kind:           req.Kind,
		ServiceType:    req.ServiceType,
		ReferenceID:    req.ReferenceID,
		RelatedEntryID: relatedEntryID,
		Status:         status,
		Description:    req.Description,
		Metadata:       req.Metadata,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.uow.GetLedgerRepository(txCtx).Create(txCtx, entry); err != nil {
		return nil, err
	}

	if err := s.recordEvent(txCtx, EventEntryCreated, entry); err != nil {
		return nil, err
	}

	return entry, nil
}

// Purchase credits a paid top-up
func (s *Service) Purchase(ctx context.Context, accountID string, amount int64, referenceID, description string) (*entity.LedgerEntry, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: purchase amount must be positive", errs.ErrInvalidAmount)
	}
	if description == "" {
		description = "Credit purchase"
	}

	return s.ApplyMutation(ctx, usecase.MutationRequest{
		AccountID:   accountID,
		Delta:       amount,
		Kind:        entity.KindPurchase,
		Status:      entity.StatusCompleted,
		ReferenceID: referenceID,
		Description: description,
	})
}

// AdminAdjust applies a signed manual correction. A negative adjustment still cannot
// take the balance below zero.
func (s *Service) AdminAdjust(ctx context.Context, accountID string, delta int64, description string) (*entity.LedgerEntry, error) {
	if delta == 0 {
		return nil, fmt.Errorf("%w: adjustment cannot be zero", errs.ErrInvalidAmount)
	}
	if description == "" {
		description = "Manual adjustment"
	}

	return s.ApplyMutation(ctx, usecase.MutationRequest{
		AccountID:   accountID,
		Delta:       delta,
		Kind:        entity.KindAdminAdjustment,
		Status:      entity.StatusCompleted,
		Description: description,
	})
}

func validateMutation(req usecase.MutationRequest) error {
	if strings.TrimSpace(req.AccountID) == "" {
		return errs.ErrInvalidAccountID
	}
	if req.Delta == 0 {
		return fmt.Errorf("%w: delta cannot be zero", errs.ErrInvalidAmount)
	}

	switch req.Kind {
	case entity.KindTrialGrant, entity.KindPurchase, entity.KindUsage,
		entity.KindRefund, entity.KindAdminAdjustment, entity.KindExpiration:
	default:
		return fmt.Errorf("%w: unknown entry kind %q", errs.ErrInvalidRequest, req.Kind)
	}

	switch req.Status {
	case "", entity.StatusCompleted:
	case entity.StatusReserved:
		if req.Kind != entity.KindUsage || req.Delta > 0 {
			return fmt.Errorf("%w: only usage deductions can be reserved", errs.ErrInvalidRequest)
		}
	default:
		return fmt.Errorf("%w: new entries must be reserved or completed", errs.ErrInvalidRequest)
	}

	if req.ServiceType != entity.ServiceNone && !req.ServiceType.IsValid() {
		return fmt.Errorf("%w: %q", errs.ErrInvalidServiceType, req.ServiceType)
	}
	return nil
}
