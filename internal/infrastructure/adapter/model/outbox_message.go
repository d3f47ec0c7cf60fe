package model

import (
	"time"
)

// OutboxMessage is an event waiting to be relayed to the broker
type OutboxMessage struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	MessageKey string    `gorm:"uniqueIndex;not null;size:64"`
	Topic      string    `gorm:"not null;size:255"`
	Key        string    `gorm:"size:255"`
	Payload    []byte    `gorm:"type:bytea;not null"`
	Status     string    `gorm:"not null;size:16"`
	Retries    int       `gorm:"not null"`
	LastError  string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"not null"`
	SentAt     *time.Time
}

// TableName specifies the table name for OutboxMessage
func (OutboxMessage) TableName() string {
	return "outbox_messages"
}
