package entity

import "time"

// OutboxStatus tracks delivery of a pending event
type OutboxStatus string

// Outbox statuses
const (
	OutboxPending OutboxStatus = "pending"
	OutboxSent    OutboxStatus = "sent"
	OutboxFailed  OutboxStatus = "failed"
)

// OutboxMessage is an event written in the same transaction as the ledger change it describes
type OutboxMessage struct {
	ID         uint64
	MessageKey string
	Topic      string
	Key        string
	Payload    []byte
	Status     OutboxStatus
	Retries    int
	LastError  string
	CreatedAt  time.Time
	SentAt     *time.Time
}

// LedgerEvent is the payload published for every committed ledger change
type LedgerEvent struct {
	EventType      string         `json:"eventType"`
	EntryID        uint64         `json:"entryId"`
	AccountID      string         `json:"accountId"`
	Amount         string         `json:"amount"`
	BalanceAfter   string         `json:"balanceAfter"`
	Kind           EntryKind      `json:"kind"`
	Status         EntryStatus    `json:"status"`
	ServiceType    ServiceType    `json:"serviceType,omitempty"`
	ReferenceID    string         `json:"referenceId,omitempty"`
	RelatedEntryID *uint64        `json:"relatedEntryId,omitempty"`
	OccurredAt     time.Time      `json:"occurredAt"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// NewLedgerEvent builds the event payload for an entry
func NewLedgerEvent(eventType string, e *LedgerEntry, at time.Time) LedgerEvent {
	return LedgerEvent{
		EventType:      eventType,
		EntryID:        e.ID,
		AccountID:      e.AccountID,
		Amount:         FormatCredits(e.Amount),
		BalanceAfter:   FormatCredits(e.BalanceAfter),
		Kind:           e.Kind,
		Status:         e.Status,
		ServiceType:    e.ServiceType,
		ReferenceID:    e.ReferenceID,
		RelatedEntryID: e.RelatedEntryID,
		OccurredAt:     at,
		Metadata:       e.Metadata,
	}
}
