package usecase

import (
	"context"
	"time"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
)

// MutationRequest is the input of the atomic mutation primitive.
// Delta is signed and expressed in hundredths of a credit.
type MutationRequest struct {
	AccountID   string
	Delta       int64
	Kind        entity.EntryKind
	Status      entity.EntryStatus
	ServiceType entity.ServiceType
	ReferenceID string
	Description string
	Metadata    map[string]any
}

// ReserveRequest holds funds for a job whose final cost is not yet known
type ReserveRequest struct {
	AccountID   string
	Amount      int64
	ServiceType entity.ServiceType
	ReferenceID string
	Description string
	Metadata    map[string]any
}

// Settlement tells Confirm how to price a reservation. The zero value is not valid;
// use AsReserved or AtActual.
type Settlement struct {
	actual   int64
	explicit bool
	set      bool
}

// AsReserved settles a reservation at exactly the amount that was held
func AsReserved() Settlement {
	return Settlement{set: true}
}

// AtActual settles a reservation at the given final cost
func AtActual(amount int64) Settlement {
	return Settlement{actual: amount, explicit: true, set: true}
}

// Actual returns the final cost and whether one was given
func (s Settlement) Actual() (int64, bool) {
	return s.actual, s.explicit
}

// IsValid reports whether the settlement was built with a constructor
func (s Settlement) IsValid() bool {
	return s.set
}

// SweepResult summarizes one pass of a periodic sweep
type SweepResult struct {
	Scanned   int
	Processed int
	Skipped   int
	Failed    int
	Reclaimed int64 // hundredths of a credit taken back or released
}

// AuditReport compares an account balance with the replayed log
type AuditReport struct {
	AccountID  string
	Balance    int64
	LedgerSum  int64
	EntryCount int64
	Consistent bool
	CheckedAt  time.Time
}

// HistoryPage is one page of an account's ledger
type HistoryPage struct {
	Entries []*entity.LedgerEntry
	Total   int64
	Limit   int
	Offset  int
}

// LedgerUseCase defines the operations collaborators call on the credit ledger
type LedgerUseCase interface {
	// CreateAccount registers a new account with a zero balance
	CreateAccount(ctx context.Context, accountID string) (*entity.Account, error)

	// ApplyMutation changes a balance and appends the matching entry in one transaction
	ApplyMutation(ctx context.Context, req MutationRequest) (*entity.LedgerEntry, error)

	// GetBalance returns the current balance in hundredths of a credit
	GetBalance(ctx context.Context, accountID string) (int64, error)

	// GetHistory returns the newest entries first
	GetHistory(ctx context.Context, accountID string, limit, offset int) (*HistoryPage, error)

	// GetEntry returns a single ledger entry
	GetEntry(ctx context.Context, entryID uint64) (*entity.LedgerEntry, error)

	// FindByReference returns the entries tied to an external job
	FindByReference(ctx context.Context, referenceID string) ([]*entity.LedgerEntry, error)

	// Reserve holds funds before a job starts and returns the reservation entry ID
	Reserve(ctx context.Context, req ReserveRequest) (uint64, error)

	// Confirm settles a reservation as completed
	Confirm(ctx context.Context, entryID uint64, settlement Settlement) error

	// Cancel releases a reservation in full
	Cancel(ctx context.Context, entryID uint64) error

	// GrantTrial applies the one-time trial grant
	GrantTrial(ctx context.Context, accountID, fingerprint string) error

	// Purchase credits a paid top-up
	Purchase(ctx context.Context, accountID string, amount int64, referenceID, description string) (*entity.LedgerEntry, error)

	// AdminAdjust applies a signed manual correction
	AdminAdjust(ctx context.Context, accountID string, delta int64, description string) (*entity.LedgerEntry, error)

	// ExpireTrial reclaims the unused trial credit of one account
	ExpireTrial(ctx context.Context, accountID string) (int64, error)

	// SweepExpiredTrials reclaims unused trial credit from a batch of accounts
	SweepExpiredTrials(ctx context.Context, batchSize int) (SweepResult, error)

	// SweepStaleReservations cancels reservations older than the configured TTL
	SweepStaleReservations(ctx context.Context, batchSize int) (SweepResult, error)

	// VerifyAccount replays the log and compares it with the stored balance
	VerifyAccount(ctx context.Context, accountID string) (*AuditReport, error)
}
