package repository

import (
	"context"
	"fmt"
	"time"

	"taskhub/internal/domain"
	"taskhub/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts one notification. A notification carrying an event ID is
// written at most once per recipient; a repeat returns domain.ErrDuplicate.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.EventID == nil {
		return r.db.WithContext(ctx).Create(n).Error
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(n)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("notification for event %s: %w", *n.EventID, domain.ErrDuplicate)
	}
	return nil
}

// CreateBatch inserts all notifications in one statement: either every
// recipient gets a record or none does. When the batch carries an event ID
// and any recipient already has it, domain.ErrDuplicate is returned and the
// rows that were missing are still written.
func (r *NotificationRepository) CreateBatch(ctx context.Context, list []models.Notification) error {
	if len(list) == 0 {
		return nil
	}
	if list[0].EventID == nil {
		return r.db.WithContext(ctx).Create(&list).Error
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&list)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected < int64(len(list)) {
		return fmt.Errorf("event %s already recorded for %d of %d recipients: %w",
			*list[0].EventID, int64(len(list))-res.RowsAffected, len(list), domain.ErrDuplicate)
	}
	return nil
}

func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID uint, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	var list []models.Notification
	q := r.db.WithContext(ctx).Where("recipient_id = ?", recipientID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	err := q.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

func (r *NotificationRepository) CountUnread(ctx context.Context, recipientID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).Count(&n).Error
	return n, err
}

// MarkRead flips the read flag on one notification. Marking an already read
// notification is not an error; an unknown or foreign one is.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, recipientID uint, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ? AND is_read = ?", id, recipientID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	if res.Error != nil || res.RowsAffected > 0 {
		return res.Error
	}
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("notification %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipientID uint, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	return res.RowsAffected, res.Error
}

func (r *NotificationRepository) Delete(ctx context.Context, id, recipientID uint) error {
	res := r.db.WithContext(ctx).Where("id = ? AND recipient_id = ?", id, recipientID).Delete(&models.Notification{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("notification %d: %w", id, domain.ErrNotFound)
	}
	return nil
}
