package model

import "time"

// Quest is the single daily assigned activity for an account.
//
// The composite unique index on (account_id, quest_date) is the authority for
// the at-most-one-quest-per-day rule: a concurrent fetch-or-create that loses
// the insert race hits the constraint and falls back to reading the winner.
type Quest struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID    int64      `gorm:"uniqueIndex:idx_account_day;not null" json:"account_id"`
	QuestDate    string     `gorm:"uniqueIndex:idx_account_day;size:10;not null" json:"quest_date"` // YYYY-MM-DD, server-local
	Title        string     `gorm:"size:64;not null" json:"title"`
	Description  string     `gorm:"size:255" json:"description"`
	BaseReps     int        `gorm:"default:10" json:"base_reps"`
	BaseDuration int        `gorm:"default:20" json:"base_duration"` // minutes
	Completed    bool       `gorm:"default:false" json:"completed"`
	CompletedAt  *time.Time `json:"completed_at"`
	Quote        string     `gorm:"size:255" json:"quote"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
}
