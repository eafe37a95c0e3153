package models

import (
	"time"

	"gorm.io/gorm"
)

type Project struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"size:255;not null" json:"name"`
	OwnerID   uint           `gorm:"not null;index" json:"owner_id"`
	Archived  bool           `gorm:"default:false;index" json:"archived"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Members []ProjectMember `gorm:"foreignKey:ProjectID" json:"members,omitempty"`
}

func (Project) TableName() string {
	return "projects"
}

// ProjectMember links a user to a project. The owner is not required to have a row.
type ProjectMember struct {
	ProjectID uint      `gorm:"primaryKey" json:"project_id"`
	UserID    uint      `gorm:"primaryKey;index" json:"user_id"`
	Role      string    `gorm:"size:20;not null;default:member" json:"role"`
	JoinedAt  time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

func (ProjectMember) TableName() string {
	return "project_members"
}
