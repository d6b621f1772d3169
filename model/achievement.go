package model

import "time"

// Achievement is a one-time milestone earned by an account.
// The unique index on (account_id, key) makes grants idempotent.
type Achievement struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID int64     `gorm:"uniqueIndex:idx_account_achievement;not null" json:"account_id"`
	Key       string    `gorm:"uniqueIndex:idx_account_achievement;size:64;not null" json:"key"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	EarnedAt  time.Time `gorm:"autoCreateTime" json:"earned_at"`
}
