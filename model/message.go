package model

import "time"

// Message is one chat message in the global room.
// SenderName is denormalized so history survives account renames.
type Message struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SenderID   *int64    `gorm:"index:idx_message_sender" json:"sender_id"`
	SenderName string    `gorm:"size:32;not null" json:"sender_name"`
	Content    string    `gorm:"size:500;not null" json:"content"`
	CreatedAt  time.Time `gorm:"index:idx_message_created;autoCreateTime:milli" json:"created_at"`
}
