package models

import (
	"time"

	"taskhub/internal/domain"

	"gorm.io/gorm"
)

// User is the slice of the account record this service reads: identity,
// role and the device token used for offline pushes.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"size:120;not null" json:"name"`
	Email     string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Role      string         `gorm:"size:20;not null;default:MEMBER;index" json:"role"` // MEMBER | ADMIN
	FCMToken  string         `gorm:"size:512" json:"-"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsAdmin() bool { return u.Role == domain.RoleAdmin }
