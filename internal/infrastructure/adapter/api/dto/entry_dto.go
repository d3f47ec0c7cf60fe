package dto

import (
	"time"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
)

// EntryResponse represents a ledger entry. Amounts are signed decimal strings.
type EntryResponse struct {
	ID             uint64         `json:"id"`
	AccountID      string         `json:"accountId"`
	Amount         string         `json:"amount"`
	BalanceAfter   string         `json:"balanceAfter"`
	Kind           string         `json:"kind"`
	ServiceType    string         `json:"serviceType,omitempty"`
	ReferenceID    string         `json:"referenceId,omitempty"`
	RelatedEntryID *uint64        `json:"relatedEntryId,omitempty"`
	Status         string         `json:"status"`
	Description    string         `json:"description,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// NewEntryResponse maps a ledger entry to its API shape
func NewEntryResponse(e *entity.LedgerEntry) EntryResponse {
	return EntryResponse{
		ID:             e.ID,
		AccountID:      e.AccountID,
		Amount:         entity.FormatCredits(e.Amount),
		BalanceAfter:   entity.FormatCredits(e.BalanceAfter),
		Kind:           string(e.Kind),
		ServiceType:    string(e.ServiceType),
		ReferenceID:    e.ReferenceID,
		RelatedEntryID: e.RelatedEntryID,
		Status:         string(e.Status),
		Description:    e.Description,
		Metadata:       e.Metadata,
		CreatedAt:      e.CreatedAt,
	}
}

// HistoryResponse is one page of an account's ledger, newest first
type HistoryResponse struct {
	AccountID string          `json:"accountId"`
	Entries   []EntryResponse `json:"entries"`
	Total     int64           `json:"total"`
	Limit     int             `json:"limit"`
	Offset    int             `json:"offset"`
}
