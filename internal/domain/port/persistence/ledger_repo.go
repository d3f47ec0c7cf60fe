package persistence

import (
	"context"
	"time"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
)

// TrialUsage aggregates the entries that determine how much trial credit is left.
// All values are absolute amounts in hundredths of a credit.
type TrialUsage struct {
	Granted int64 // sum of trial_grant entries
	Used    int64 // |sum| of reserved or completed usage entries created at or before the trial end
	Expired int64 // |sum| of expiration entries already recorded
	Pending int64 // part of Used still reserved, not yet confirmed or cancelled
}

// Remaining returns the unused trial credit, never below zero
func (u TrialUsage) Remaining() int64 {
	remaining := u.Granted - u.Used - u.Expired
	if remaining < 0 {
		return 0
	}
	return remaining
}

// LedgerRepository stores the append-only transaction log
type LedgerRepository interface {
	// Create inserts a new entry and fills its ID and timestamps
	Create(ctx context.Context, entry *entity.LedgerEntry) error

	// GetByID retrieves an entry
	//
	// Possible errors:
	// - ErrEntryNotFound: If the entry doesn't exist
	GetByID(ctx context.Context, id uint64) (*entity.LedgerEntry, error)

	// UpdateSettlement persists the amount and status of a settled reservation.
	// BalanceAfter is never rewritten.
	//
	// Possible errors:
	// - InvalidReservationStateError: If the entry is no longer reserved
	UpdateSettlement(ctx context.Context, entry *entity.LedgerEntry) error

	// ListByAccount returns a page of entries, newest first, and the total count
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*entity.LedgerEntry, int64, error)

	// FindByReference returns all entries tied to an external reference, oldest first
	FindByReference(ctx context.Context, referenceID string) ([]*entity.LedgerEntry, error)

	// TrialUsage sums the trial-relevant entries of an account
	TrialUsage(ctx context.Context, accountID string, trialEnd time.Time) (TrialUsage, error)

	// ListStaleReservations returns IDs of reserved entries created before the cutoff, oldest first
	ListStaleReservations(ctx context.Context, before time.Time, limit int) ([]uint64, error)

	// SumByAccount replays the log of an account and returns the sum and the number of entries.
	// A refund whose related reservation is completed is not summed: the reservation amount
	// already holds the net charge after a partial confirm.
	SumByAccount(ctx context.Context, accountID string) (int64, int64, error)
}
