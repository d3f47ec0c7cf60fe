package model

import (
	"time"

	"gorm.io/datatypes"
)

// LedgerEntry represents one row of the append-only credit log.
// Only Amount, Status and UpdatedAt change after insert, when a reservation settles.
type LedgerEntry struct {
	ID             uint64            `gorm:"primaryKey;autoIncrement"`
	AccountID      string            `gorm:"not null;size:64"`
	Amount         int64             `gorm:"not null"`
	BalanceAfter   int64             `gorm:"not null;check:chk_ledger_entries_balance_after,balance_after >= 0"`
	Kind           string            `gorm:"not null;size:32"`
	ServiceType    string            `gorm:"size:64"`
	ReferenceID    string            `gorm:"size:255"`
	RelatedEntryID *uint64           `gorm:"index"`
	Status         string            `gorm:"not null;size:16"`
	Description    string            `gorm:"type:text"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt      time.Time         `gorm:"not null"`
	UpdatedAt      time.Time         `gorm:"not null"`
}

// TableName specifies the table name for LedgerEntry
func (LedgerEntry) TableName() string {
	return "ledger_entries"
}
