package model

import "time"

// Meal is one logged meal.
type Meal struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID int64     `gorm:"index:idx_meal_account;not null" json:"account_id"`
	Name      string    `gorm:"size:64;not null" json:"name"`
	Calories  int       `gorm:"default:0" json:"calories"`
	Date      string    `gorm:"size:10" json:"date"` // YYYY-MM-DD, server-local
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
