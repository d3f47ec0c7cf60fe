package ledger

import (
	"context"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/usecase"
)

// ExpireTrial reclaims the unused trial credit of one account whose trial window has closed.
// The remainder is trial grants minus usage recorded up to the trial end minus earlier
// expirations, capped at the current balance. The account is flagged reclaimed in the same
// transaction, so running it again deducts nothing.
// While usage from the trial window is still reserved the account is left untouched and
// picked up again by a later sweep once those reservations settle.
func (s *Service) ExpireTrial(ctx context.Context, accountID string) (int64, error) {
	var (
		deducted int64
		pending  int64
	)
	err := s.withTransaction(ctx, "expire_trial", func(txCtx context.Context) error {
		deducted, pending = 0, 0
		accounts := s.uow.GetAccountRepository(txCtx)

		account, err := accounts.LockByID(txCtx, accountID)
		if err != nil {
			return err
		}
		if !account.TrialExpired(s.timeProvider.Now()) {
			return nil
		}

		usage, err := s.uow.GetLedgerRepository(txCtx).TrialUsage(txCtx, account.ID, *account.TrialExpiresAt)
		if err != nil {
			return err
		}

		if usage.Pending > 0 {
			pending = usage.Pending
			return nil
		}

		remaining := usage.Remaining()
		deducted = min(remaining, account.Balance())
		account.TrialReclaimed = true

		if deducted <= 0 {
			deducted = 0
			return accounts.Update(txCtx, account)
		}

		_, err = s.applyLocked(txCtx, account, usecase.MutationRequest{
			AccountID:   account.ID,
			Delta:       -deducted,
			Kind:        entity.KindExpiration,
			Status:      entity.StatusCompleted,
			Description: "Unused trial credit expired",
			Metadata: map[string]any{
				"trial_expires_at": account.TrialExpiresAt,
				"trial_granted":    entity.FormatCredits(usage.Granted),
				"trial_used":       entity.FormatCredits(usage.Used),
				"trial_remaining":  entity.FormatCredits(remaining),
			},
		}, nil)
		return err
	})
	if err != nil {
		return 0, err
	}

	if pending > 0 {
		s.logger.Debug("Trial expiry deferred until reservations settle", map[string]any{
			"account_id": accountID,
			"reserved":   entity.FormatCredits(pending),
		})
	}
	if deducted > 0 {
		s.invalidateBalance(ctx, accountID)
		s.logger.Info("Trial credit expired", map[string]any{
			"account_id": accountID,
			"amount":     entity.FormatCredits(deducted),
		})
	}
	return deducted, nil
}

// SweepExpiredTrials reclaims unused trial credit from up to batchSize accounts.
// A failing account is logged and does not stop the batch.
func (s *Service) SweepExpiredTrials(ctx context.Context, batchSize int) (usecase.SweepResult, error) {
	var result usecase.SweepResult

	ids, err := s.uow.GetAccountRepository(ctx).ListExpiredTrials(ctx, s.timeProvider.Now(), batchSize)
	if err != nil {
		return result, err
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		result.Scanned++

		deducted, err := s.ExpireTrial(ctx, id)
		if err != nil {
			result.Failed++
			s.logger.Error("Failed to expire trial", map[string]any{
				"account_id": id,
				"error":      err.Error(),
			})
			continue
		}

		if deducted > 0 {
			result.Processed++
			result.Reclaimed += deducted
		} else {
			result.Skipped++
		}
	}

	if result.Scanned > 0 {
		s.logger.Info("Trial expiry sweep finished", map[string]any{
			"scanned":   result.Scanned,
			"processed": result.Processed,
			"skipped":   result.Skipped,
			"failed":    result.Failed,
			"reclaimed": entity.FormatCredits(result.Reclaimed),
		})
	}
	return result, nil
}

// SweepStaleReservations cancels reservations older than the reservation TTL through the
// normal cancel path. Entries settled concurrently are skipped.
func (s *Service) SweepStaleReservations(ctx context.Context, batchSize int) (usecase.SweepResult, error) {
	var result usecase.SweepResult
	if s.cfg.ReservationTTL <= 0 {
		return result, nil
	}

	cutoff := s.timeProvider.Now().Add(-s.cfg.ReservationTTL)
	ids, err := s.uow.GetLedgerRepository(ctx).ListStaleReservations(ctx, cutoff, batchSize)
	if err != nil {
		return result, err
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		result.Scanned++

		released, err := s.cancel(ctx, id, "reservation_expired")
		switch {
		case err == nil:
			result.Processed++
			result.Reclaimed += released
		case errs.IsInvalidReservationStateError(err):
			result.Skipped++
		default:
			result.Failed++
			s.logger.Error("Failed to cancel stale reservation", map[string]any{
				"entry_id": id,
				"error":    err.Error(),
			})
		}
	}

	if result.Scanned > 0 {
		s.logger.Info("Stale reservation sweep finished", map[string]any{
			"cutoff":    cutoff,
			"scanned":   result.Scanned,
			"processed": result.Processed,
			"skipped":   result.Skipped,
			"failed":    result.Failed,
			"released":  entity.FormatCredits(result.Reclaimed),
		})
	}
	return result, nil
}
