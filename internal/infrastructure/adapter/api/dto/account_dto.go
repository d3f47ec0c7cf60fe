package dto

import (
	"time"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
)

// CreateAccountRequest represents the API request for registering an account
type CreateAccountRequest struct {
	AccountID string `json:"accountId" binding:"required,max=128"`
}

// AccountResponse represents an account in API responses
type AccountResponse struct {
	AccountID      string     `json:"accountId"`
	Balance        string     `json:"balance"`
	TrialGranted   bool       `json:"trialGranted"`
	TrialExpiresAt *time.Time `json:"trialExpiresAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// NewAccountResponse maps an account entity to its API shape
func NewAccountResponse(a *entity.Account) AccountResponse {
	return AccountResponse{
		AccountID:      a.ID,
		Balance:        a.FormattedBalance(),
		TrialGranted:   a.TrialGranted,
		TrialExpiresAt: a.TrialExpiresAt,
		CreatedAt:      a.CreatedAt,
	}
}

// TrialRequest represents the API request for the one-time trial grant.
// An empty fingerprint falls back to the client IP.
type TrialRequest struct {
	Fingerprint string `json:"fingerprint"`
}

// PurchaseRequest represents a paid top-up
type PurchaseRequest struct {
	Amount      string `json:"amount" binding:"required"`
	ReferenceID string `json:"referenceId" binding:"required"`
	Description string `json:"description"`
}

// AdjustmentRequest represents a signed manual correction by an operator
type AdjustmentRequest struct {
	Delta       string `json:"delta" binding:"required"`
	Description string `json:"description" binding:"required"`
}

// AuditResponse reports whether the stored balance matches the replayed log
type AuditResponse struct {
	AccountID  string    `json:"accountId"`
	Balance    string    `json:"balance"`
	LedgerSum  string    `json:"ledgerSum"`
	EntryCount int64     `json:"entryCount"`
	Consistent bool      `json:"consistent"`
	CheckedAt  time.Time `json:"checkedAt"`
}
