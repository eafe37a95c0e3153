package repository

import (
	"context"

	"taskhub/internal/domain"
	"taskhub/internal/models"

	"gorm.io/gorm"
)

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, t *models.Task) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *TaskRepository) GetByID(ctx context.Context, id uint) (*models.Task, error) {
	var t models.Task
	if err := r.db.WithContext(ctx).Preload("Reminders").First(&t, id).Error; err != nil {
		return nil, notFound(err, "task")
	}
	return &t, nil
}

// ListOutstanding returns every non-completed, non-archived task that has a
// due date, with its recorded reminders.
func (r *TaskRepository) ListOutstanding(ctx context.Context) ([]models.Task, error) {
	var list []models.Task
	err := r.db.WithContext(ctx).
		Preload("Reminders").
		Where("status <> ? AND archived = ? AND due_date IS NOT NULL", domain.TaskStatusCompleted, false).
		Order("due_date").
		Find(&list).Error
	return list, err
}
