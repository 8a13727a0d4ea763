package models

import (
	"time"
)

// Message roles as stored in chat_history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatRecord is one durable transcript entry, keyed by (username, subject).
type ChatRecord struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Username  string    `json:"username" gorm:"index:idx_chat_history_key"`
	Subject   string    `json:"subject" gorm:"index:idx_chat_history_key"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName keeps the historical table name
func (ChatRecord) TableName() string {
	return "chat_history"
}
