package entity

import (
	"strings"
	"time"

	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
)

// Account is the credit-holding extension of a user record
type Account struct {
	ID                string     // External user identifier
	balance           int64      // Hundredths of a credit, never negative (private)
	TrialGranted      bool       // Whether the one-time trial grant was applied
	TrialExpiresAt    *time.Time // End of the trial window, nil until granted
	TrialReclaimed    bool       // Whether the expiry sweep already processed this trial
	SignupFingerprint string     // IP or equivalent recorded when the trial was granted
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewAccount creates an account with a zero balance
func NewAccount(id string, timeProvider coreport.TimeProvider) (*Account, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errs.ErrInvalidAccountID
	}

	now := timeProvider.Now()
	return &Account{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// RestoreAccount rebuilds an account from storage
func RestoreAccount(id string, balance int64, createdAt, updatedAt time.Time) *Account {
	return &Account{
		ID:        id,
		balance:   balance,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
}

// Balance returns the current balance in hundredths of a credit
func (a *Account) Balance() int64 {
	return a.balance
}

// FormattedBalance returns the balance as a string with 2 decimal places
func (a *Account) FormattedBalance() string {
	return FormatCredits(a.balance)
}

// SetBalance updates the balance directly (for repositories)
func (a *Account) SetBalance(balance int64, timeProvider coreport.TimeProvider) {
	a.balance = balance
	a.UpdatedAt = timeProvider.Now()
}

// ApplyDelta computes the balance after a signed change.
// A deduction the balance cannot cover returns an InsufficientCreditsError and leaves the account untouched.
func (a *Account) ApplyDelta(delta int64, timeProvider coreport.TimeProvider) (int64, error) {
	if delta < 0 && a.balance+delta < 0 {
		return a.balance, errs.NewInsufficientCreditsError(a.ID, -delta, a.balance)
	}

	a.balance += delta
	a.UpdatedAt = timeProvider.Now()
	return a.balance, nil
}

// MarkTrialGranted records the trial window and fingerprint
func (a *Account) MarkTrialGranted(fingerprint string, duration time.Duration, timeProvider coreport.TimeProvider) {
	now := timeProvider.Now()
	expiresAt := now.Add(duration)
	a.TrialGranted = true
	a.TrialExpiresAt = &expiresAt
	a.SignupFingerprint = fingerprint
	a.UpdatedAt = now
}

// TrialExpired reports whether a granted, unreclaimed trial window has closed
func (a *Account) TrialExpired(now time.Time) bool {
	return a.TrialGranted && !a.TrialReclaimed && a.TrialExpiresAt != nil && a.TrialExpiresAt.Before(now)
}
