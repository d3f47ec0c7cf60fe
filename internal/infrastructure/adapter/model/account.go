package model

import (
	"time"
)

// Account represents the database model for credit accounts
type Account struct {
	ID                string     `gorm:"primaryKey;size:64"`
	Balance           int64      `gorm:"not null;check:chk_accounts_balance_non_negative,balance >= 0"` // hundredths of a credit
	TrialGranted      bool       `gorm:"not null"`
	TrialExpiresAt    *time.Time `gorm:"index"`
	TrialReclaimed    bool       `gorm:"not null"`
	SignupFingerprint string     `gorm:"size:255"`
	CreatedAt         time.Time  `gorm:"not null"`
	UpdatedAt         time.Time  `gorm:"not null"`
}

// TableName specifies the table name for Account
func (Account) TableName() string {
	return "accounts"
}
