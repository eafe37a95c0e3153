package models

import (
	"time"

	"taskhub/internal/domain"

	"gorm.io/gorm"
)

type Task struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Title      string         `gorm:"size:255;not null" json:"title"`
	ProjectID  *uint          `gorm:"index" json:"project_id"`
	CreatorID  uint           `gorm:"not null;index" json:"creator_id"`
	AssigneeID *uint          `gorm:"index" json:"assignee_id"`
	Status     string         `gorm:"size:20;not null;default:todo;index" json:"status"`
	Archived   bool           `gorm:"default:false;index" json:"archived"`
	DueDate    *time.Time     `gorm:"index" json:"due_date"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`

	Reminders []TaskReminder `gorm:"foreignKey:TaskID" json:"reminders,omitempty"`
}

func (Task) TableName() string {
	return "tasks"
}

func (t *Task) IsCompleted() bool { return t.Status == domain.TaskStatusCompleted }

// HasReminder reports whether the threshold is already recorded on the task.
func (t *Task) HasReminder(threshold string) bool {
	for _, r := range t.Reminders {
		if r.Threshold == threshold {
			return true
		}
	}
	return false
}

// TaskReminder records that a threshold fired for a task. The unique index on
// (task_id, threshold) is what makes recording a compare-and-append.
type TaskReminder struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	TaskID    uint      `gorm:"not null;uniqueIndex:idx_task_reminder" json:"task_id"`
	Threshold string    `gorm:"size:16;not null;uniqueIndex:idx_task_reminder" json:"threshold"` // 24h, 3h, 1h, overdue
	SentAt    time.Time `gorm:"not null" json:"sent_at"`
}

func (TaskReminder) TableName() string {
	return "task_reminders"
}
