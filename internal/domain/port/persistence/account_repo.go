package persistence

import (
	"context"
	"time"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
)

// AccountRepository stores balances and trial state
type AccountRepository interface {
	// GetByID retrieves an account without locking it
	//
	// Possible errors:
	// - ErrAccountNotFound: If the account doesn't exist
	// - ErrDatabaseConnection: If database connection fails
	GetByID(ctx context.Context, id string) (*entity.Account, error)

	// LockByID retrieves an account and holds an exclusive row lock until the
	// surrounding transaction ends. Must be called inside a unit of work.
	//
	// Possible errors:
	// - ErrNoTransaction: If ctx carries no transaction
	// - ErrAccountNotFound: If the account doesn't exist
	// - ErrAccountLocked: If the lock could not be taken (deadlock, serialization failure)
	LockByID(ctx context.Context, id string) (*entity.Account, error)

	// Create inserts a new account
	//
	// Possible errors:
	// - ErrDuplicateAccount: If an account with the same ID already exists
	Create(ctx context.Context, account *entity.Account) error

	// Update persists balance and trial fields of a locked account
	//
	// Possible errors:
	// - ErrAccountNotFound: If the account doesn't exist
	// - ErrTrialAlreadyUsed: If another granted account already holds the fingerprint
	Update(ctx context.Context, account *entity.Account) error

	// FingerprintInUse reports whether an account other than excludeID received a
	// trial with the given fingerprint
	FingerprintInUse(ctx context.Context, fingerprint string, excludeID string) (bool, error)

	// ListExpiredTrials returns IDs of accounts whose trial closed before now and
	// has not been reclaimed yet
	ListExpiredTrials(ctx context.Context, now time.Time, limit int) ([]string, error)
}
