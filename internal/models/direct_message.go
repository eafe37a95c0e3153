package models

import (
	"time"

	"gorm.io/gorm"
)

// FileMeta describes an uploaded attachment.
type FileMeta struct {
	URL      string `gorm:"size:512" json:"url,omitempty"`
	Name     string `gorm:"size:255" json:"name,omitempty"`
	MimeType string `gorm:"size:100" json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// DirectMessage is a one-to-one chat message. Status only moves forward:
// sent -> delivered -> read, and read may be reached directly from sent.
type DirectMessage struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	SenderID    uint           `gorm:"not null;index:idx_dm_pair" json:"sender_id"`
	RecipientID uint           `gorm:"not null;index:idx_dm_pair;index" json:"recipient_id"`
	Content     string         `gorm:"type:text" json:"content"`
	Kind        string         `gorm:"size:20;not null;default:text" json:"kind"`
	File        FileMeta       `gorm:"embedded;embeddedPrefix:file_" json:"file"`
	Status      string         `gorm:"size:20;not null;default:sent;index" json:"status"`
	DeliveredAt *time.Time     `json:"delivered_at"`
	ReadAt      *time.Time     `json:"read_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (DirectMessage) TableName() string {
	return "direct_messages"
}
