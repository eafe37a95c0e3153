package models

import (
	"time"

	"gorm.io/gorm"
)

// GroupMessage is posted to a project. RecipientID turns it into a message
// addressed to a single member inside the project conversation.
type GroupMessage struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	ProjectID   uint           `gorm:"not null;index" json:"project_id"`
	SenderID    uint           `gorm:"not null;index" json:"sender_id"`
	Body        string         `gorm:"type:text" json:"body"`
	RecipientID *uint          `gorm:"index" json:"recipient_id,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	Attachments []GroupMessageAttachment `gorm:"foreignKey:MessageID" json:"attachments,omitempty"`
	ReadBy      []GroupMessageRead       `gorm:"foreignKey:MessageID" json:"read_by,omitempty"`
}

func (GroupMessage) TableName() string {
	return "group_messages"
}

type GroupMessageAttachment struct {
	ID        uint     `gorm:"primaryKey" json:"-"`
	MessageID uint     `gorm:"not null;index" json:"-"`
	File      FileMeta `gorm:"embedded;embeddedPrefix:file_" json:"file"`
}

func (GroupMessageAttachment) TableName() string {
	return "group_message_attachments"
}

// GroupMessageRead is a read receipt; the composite key keeps one row per user.
type GroupMessageRead struct {
	MessageID uint      `gorm:"primaryKey" json:"-"`
	UserID    uint      `gorm:"primaryKey" json:"user_id"`
	ReadAt    time.Time `gorm:"not null" json:"read_at"`
}

func (GroupMessageRead) TableName() string {
	return "group_message_reads"
}
