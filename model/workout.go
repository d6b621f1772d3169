package model

import "time"

// Workout is one logged training session.
type Workout struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID int64     `gorm:"index:idx_workout_account;not null" json:"account_id"`
	Name      string    `gorm:"size:64;not null" json:"name"`
	Sets      int       `gorm:"default:0" json:"sets"`
	Reps      int       `gorm:"default:0" json:"reps"`
	Duration  int       `gorm:"default:0" json:"duration"` // minutes
	Date      string    `gorm:"size:10" json:"date"`       // YYYY-MM-DD, server-local
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
