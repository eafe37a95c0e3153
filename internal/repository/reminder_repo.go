package repository

import (
	"context"
	"time"

	"taskhub/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReminderRepository struct {
	db *gorm.DB
}

func NewReminderRepository(db *gorm.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

// Claim appends the threshold to the task's reminder record unless it is
// already there. It returns true only for the caller whose insert landed, so
// two concurrent claims for the same (task, threshold) cannot both win.
func (r *ReminderRepository) Claim(ctx context.Context, taskID uint, threshold string, at time.Time) (bool, error) {
	rec := models.TaskReminder{TaskID: taskID, Threshold: threshold, SentAt: at}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rec)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Release drops a claim whose notification could not be created, so the
// next tick can retry it.
func (r *ReminderRepository) Release(ctx context.Context, taskID uint, threshold string) error {
	return r.db.WithContext(ctx).
		Where("task_id = ? AND threshold = ?", taskID, threshold).
		Delete(&models.TaskReminder{}).Error
}

func (r *ReminderRepository) ListByTask(ctx context.Context, taskID uint) ([]models.TaskReminder, error) {
	var list []models.TaskReminder
	err := r.db.WithContext(ctx).Where("task_id = ?", taskID).Order("sent_at").Find(&list).Error
	return list, err
}
