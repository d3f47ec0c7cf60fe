package entity

import (
	"time"
)

// EntryKind classifies what caused a balance change
type EntryKind string

// Entry kinds
const (
	KindTrialGrant      EntryKind = "trial_grant"
	KindPurchase        EntryKind = "purchase"
	KindUsage           EntryKind = "usage"
	KindRefund          EntryKind = "refund"
	KindAdminAdjustment EntryKind = "admin_adjustment"
	KindExpiration      EntryKind = "expiration"
)

// EntryStatus defines possible status values for a ledger entry
type EntryStatus string

// EntryStatus constants
const (
	StatusReserved  EntryStatus = "reserved"
	StatusCompleted EntryStatus = "completed"
	StatusRefunded  EntryStatus = "refunded"
)

// IsTerminal reports whether no further transition is allowed from the status
func (s EntryStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRefunded
}

// LedgerEntry is one balance-affecting event. Amount is a signed delta in hundredths
// of a credit; BalanceAfter is the account balance at the moment the entry was written.
type LedgerEntry struct {
	ID             uint64
	AccountID      string
	Amount         int64
	BalanceAfter   int64
	Kind           EntryKind
	ServiceType    ServiceType
	ReferenceID    string
	RelatedEntryID *uint64 // refund entries point at the reservation they settle
	Status         EntryStatus
	Description    string
	Metadata       map[string]any
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsReserved reports whether the entry still holds funds awaiting settlement
func (e *LedgerEntry) IsReserved() bool {
	return e.Status == StatusReserved
}

// ReservedAmount returns the positive amount held by a usage entry
func (e *LedgerEntry) ReservedAmount() int64 {
	if e.Amount < 0 {
		return -e.Amount
	}
	return e.Amount
}
