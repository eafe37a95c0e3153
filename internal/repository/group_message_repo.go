package repository

import (
	"context"
	"time"

	"taskhub/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GroupMessageRepository struct {
	db *gorm.DB
}

func NewGroupMessageRepository(db *gorm.DB) *GroupMessageRepository {
	return &GroupMessageRepository{db: db}
}

// Create stores the message together with its attachments.
func (r *GroupMessageRepository) Create(ctx context.Context, m *models.GroupMessage) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *GroupMessageRepository) GetByID(ctx context.Context, id uint) (*models.GroupMessage, error) {
	var m models.GroupMessage
	err := r.db.WithContext(ctx).Preload("Attachments").Preload("ReadBy").First(&m, id).Error
	if err != nil {
		return nil, notFound(err, "project message")
	}
	return &m, nil
}

// ListByProject returns messages visible to userID: broadcast messages plus
// targeted ones the user sent or received. Newest first.
func (r *GroupMessageRepository) ListByProject(ctx context.Context, projectID, userID uint, limit, offset int) ([]models.GroupMessage, error) {
	var list []models.GroupMessage
	err := r.db.WithContext(ctx).
		Preload("Attachments").Preload("ReadBy").
		Where("project_id = ?", projectID).
		Where("recipient_id IS NULL OR recipient_id = ? OR sender_id = ?", userID, userID).
		Order("created_at DESC, id DESC").Limit(limit).Offset(offset).
		Find(&list).Error
	return list, err
}

// MarkProjectRead appends a read receipt for userID to every message in the
// project they can see and have not read yet. Existing receipts are kept as is.
func (r *GroupMessageRepository) MarkProjectRead(ctx context.Context, projectID, userID uint, at time.Time) (int64, error) {
	db := r.db.WithContext(ctx)
	read := db.Model(&models.GroupMessageRead{}).Select("message_id").Where("user_id = ?", userID)

	var ids []uint
	err := db.Model(&models.GroupMessage{}).
		Where("project_id = ? AND sender_id <> ?", projectID, userID).
		Where("recipient_id IS NULL OR recipient_id = ?", userID).
		Where("id NOT IN (?)", read).
		Pluck("id", &ids).Error
	if err != nil || len(ids) == 0 {
		return 0, err
	}
	receipts := make([]models.GroupMessageRead, 0, len(ids))
	for _, id := range ids {
		receipts = append(receipts, models.GroupMessageRead{MessageID: id, UserID: userID, ReadAt: at})
	}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&receipts)
	return res.RowsAffected, res.Error
}

func (r *GroupMessageRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.GroupMessage{}, id).Error
}
