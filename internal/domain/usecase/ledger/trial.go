package ledger

import (
	"context"
	"strings"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/usecase"
)

// GrantTrial applies the one-time trial grant. The eligibility check and the grant run in
// the same transaction under the account lock. A second call for the same account is a no-op.
// A fingerprint already used by another granted account fails with ErrTrialAlreadyUsed,
// unless it is a loopback or placeholder value.
func (s *Service) GrantTrial(ctx context.Context, accountID, fingerprint string) error {
	if strings.TrimSpace(accountID) == "" {
		return errs.ErrInvalidAccountID
	}
	fingerprint = strings.TrimSpace(fingerprint)

	granted := false
	err := s.withTransaction(ctx, "grant_trial", func(txCtx context.Context) error {
		granted = false
		accounts := s.uow.GetAccountRepository(txCtx)

		account, err := accounts.LockByID(txCtx, accountID)
		if err != nil {
			return err
		}
		if account.TrialGranted {
			return nil
		}

		if !s.isPlaceholderFingerprint(fingerprint) {
			inUse, err := accounts.FingerprintInUse(txCtx, fingerprint, accountID)
			if err != nil {
				return err
			}
			if inUse {
				return errs.ErrTrialAlreadyUsed
			}
		}

		account.MarkTrialGranted(fingerprint, s.cfg.TrialDuration, s.timeProvider)
		granted = true

		if s.cfg.TrialAmount <= 0 {
			return accounts.Update(txCtx, account)
		}

		_, err = s.applyLocked(txCtx, account, usecase.MutationRequest{
			AccountID:   account.ID,
			Delta:       s.cfg.TrialAmount,
			Kind:        entity.KindTrialGrant,
			Status:      entity.StatusCompleted,
			Description: "Trial credit grant",
			Metadata: map[string]any{
				"trial_expires_at": account.TrialExpiresAt,
			},
		}, nil)
		return err
	})
	if err != nil {
		if errs.IsTrialAlreadyUsedError(err) {
			s.logger.Warn("Trial refused, fingerprint already used", map[string]any{
				"account_id":  accountID,
				"fingerprint": fingerprint,
			})
		} else {
			s.logger.Error("Trial grant failed", map[string]any{
				"account_id": accountID,
				"error":      err.Error(),
			})
		}
		return err
	}

	if !granted {
		s.logger.Debug("Trial already granted, nothing to do", map[string]any{
			"account_id": accountID,
		})
		return nil
	}

	s.invalidateBalance(ctx, accountID)
	s.logger.Info("Trial granted", map[string]any{
		"account_id":  accountID,
		"amount":      entity.FormatCredits(s.cfg.TrialAmount),
		"fingerprint": fingerprint,
	})
	return nil
}
