package models

import (
	"time"

	"gorm.io/gorm"
)

type Notification struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	RecipientID uint           `gorm:"not null;index:idx_notif_recipient_read;uniqueIndex:idx_notif_event_recipient,priority:2" json:"recipient_id"`
	SenderID    *uint          `gorm:"index" json:"sender_id,omitempty"`
	Type        string         `gorm:"size:50;not null;index" json:"type"`
	Title       string         `gorm:"size:255;not null" json:"title"`
	Message     string         `gorm:"type:text" json:"message"`
	Link        string         `gorm:"size:512" json:"link,omitempty"`
	TaskID      *uint          `gorm:"index" json:"task_id,omitempty"`
	ProjectID   *uint          `gorm:"index" json:"project_id,omitempty"`
	IsRead      bool           `gorm:"default:false;index:idx_notif_recipient_read" json:"is_read"`
	ReadAt      *time.Time     `json:"read_at"`
	EventID     *string        `gorm:"size:64;uniqueIndex:idx_notif_event_recipient,priority:1" json:"-"`
	CreatedAt   time.Time      `json:"created_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Notification) TableName() string {
	return "notifications"
}
