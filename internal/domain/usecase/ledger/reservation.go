package ledger

import (
	"context"
	"fmt"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/usecase"
)

// Reserve holds funds before a job starts. On InsufficientCredits nothing is written
// and the job must not start.
func (s *Service) Reserve(ctx context.Context, req usecase.ReserveRequest) (uint64, error) {
	if req.Amount <= 0 {
		return 0, fmt.Errorf("%w: reservation amount must be positive", errs.ErrInvalidAmount)
	}

	entry, err := s.ApplyMutation(ctx, usecase.MutationRequest{
		AccountID:   req.AccountID,
		Delta:       -req.Amount,
		Kind:        entity.KindUsage,
		Status:      entity.StatusReserved,
		ServiceType: req.ServiceType,
		ReferenceID: req.ReferenceID,
		Description: req.Description,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return 0, err
	}
	return entry.ID, nil
}

// Confirm settles a reservation as completed. AsReserved keeps the held amount;
// AtActual below the held amount refunds the difference with a new entry.
// Charging more than was reserved is refused.
func (s *Service) Confirm(ctx context.Context, entryID uint64, settlement usecase.Settlement) error {
	if !settlement.IsValid() {
		return fmt.Errorf("%w: settlement must be AsReserved or AtActual", errs.ErrInvalidRequest)
	}
	actual, explicit := settlement.Actual()
	if explicit && actual < 0 {
		return fmt.Errorf("%w: actual amount cannot be negative", errs.ErrInvalidAmount)
	}

	var refunded int64
	err := s.settle(ctx, entryID, "confirm", func(txCtx context.Context, account *entity.Account, entry *entity.LedgerEntry) error {
		refunded = 0
		reserved := entry.ReservedAmount()
		if !explicit {
			actual = reserved
		}
		if actual > reserved {
			return errs.NewInvalidReservationStateError(entry.ID, string(entry.Status),
				fmt.Sprintf("actual amount %s exceeds reserved amount %s",
					entity.FormatCredits(actual), entity.FormatCredits(reserved)))
		}

		if actual < reserved {
			refunded = reserved - actual
			if _, err := s.applyLocked(txCtx, account, usecase.MutationRequest{
				AccountID:   account.ID,
				Delta:       refunded,
				Kind:        entity.KindRefund,
				Status:      entity.StatusCompleted,
				ServiceType: entry.ServiceType,
				ReferenceID: entry.ReferenceID,
				Description: fmt.Sprintf("Partial refund of reservation #%d", entry.ID),
			}, &entry.ID); err != nil {
				return err
			}
			entry.Amount = -actual
		}

		entry.Status = entity.StatusCompleted
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Reservation confirmed", map[string]any{
		"entry_id": entryID,
		"actual":   entity.FormatCredits(actual),
		"refunded": entity.FormatCredits(refunded),
	})
	return nil
}

// Cancel releases a reservation in full and marks it refunded
func (s *Service) Cancel(ctx context.Context, entryID uint64) error {
	released, err := s.cancel(ctx, entryID, "")
	if err != nil {
		return err
	}

	s.logger.Info("Reservation cancelled", map[string]any{
		"entry_id": entryID,
		"released": entity.FormatCredits(released),
	})
	return nil
}

func (s *Service) cancel(ctx context.Context, entryID uint64, reason string) (int64, error) {
	var released int64
	err := s.settle(ctx, entryID, "cancel", func(txCtx context.Context, account *entity.Account, entry *entity.LedgerEntry) error {
		released = entry.ReservedAmount()

		var metadata map[string]any
		if reason != "" {
			metadata = map[string]any{"reason": reason}
		}

		if _, err := s.applyLocked(txCtx, account, usecase.MutationRequest{
			AccountID:   account.ID,
			Delta:       released,
			Kind:        entity.KindRefund,
			Status:      entity.StatusCompleted,
			ServiceType: entry.ServiceType,
			ReferenceID: entry.ReferenceID,
			Description: fmt.Sprintf("Refund of cancelled reservation #%d", entry.ID),
			Metadata:    metadata,
		}, &entry.ID); err != nil {
			return err
		}

		entry.Status = entity.StatusRefunded
		return nil
	})
	return released, err
}

// settle moves a reservation to a terminal status. The account row is locked first and
// the entry re-read under that lock, so two settlements of one entry cannot both pass.
func (s *Service) settle(
	ctx context.Context,
	entryID uint64,
	operation string,
	apply func(txCtx context.Context, account *entity.Account, entry *entity.LedgerEntry) error,
) error {
	var accountID string
	err := s.withTransaction(ctx, operation, func(txCtx context.Context) error {
		ledgerRepo := s.uow.GetLedgerRepository(txCtx)

		entry, err := loadReservation(txCtx, ledgerRepo.GetByID, entryID)
		if err != nil {
			return err
		}

		account, err := s.uow.GetAccountRepository(txCtx).LockByID(txCtx, entry.AccountID)
		if err != nil {
			return err
		}

		entry, err = loadReservation(txCtx, ledgerRepo.GetByID, entryID)
		if err != nil {
			return err
		}
		accountID = entry.AccountID

		if err := apply(txCtx, account, entry); err != nil {
			return err
		}

		entry.UpdatedAt = s.timeProvider.Now()
		if err := ledgerRepo.UpdateSettlement(txCtx, entry); err != nil {
			return err
		}
		return s.recordEvent(txCtx, EventEntrySettled, entry)
	})
	if err != nil {
		if errs.IsInvalidReservationStateError(err) {
			s.logger.Warn("Settlement refused", logFieldsOf(err))
		} else {
			s.logger.Error("Settlement failed", map[string]any{
				"operation": operation,
				"entry_id":  entryID,
				"error":     err.Error(),
			})
		}
		return err
	}

	s.invalidateBalance(ctx, accountID)
	return nil
}

func loadReservation(
	ctx context.Context,
	get func(ctx context.Context, id uint64) (*entity.LedgerEntry, error),
	entryID uint64,
) (*entity.LedgerEntry, error) {
	entry, err := get(ctx, entryID)
	if err != nil {
		if errs.IsNotFoundError(err) {
			return nil, errs.NewInvalidReservationStateError(entryID, "", "entry not found")
		}
		return nil, err
	}
	if !entry.IsReserved() {
		return nil, errs.NewInvalidReservationStateError(entryID, string(entry.Status), "entry is not reserved")
	}
	return entry, nil
}
