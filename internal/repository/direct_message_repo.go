package repository

import (
	"context"
	"time"

	"taskhub/internal/domain"
	"taskhub/internal/models"

	"gorm.io/gorm"
)

type DirectMessageRepository struct {
	db *gorm.DB
}

func NewDirectMessageRepository(db *gorm.DB) *DirectMessageRepository {
	return &DirectMessageRepository{db: db}
}

// UnreadCount is the number of unread messages from one sender.
type UnreadCount struct {
	SenderID uint  `json:"sender_id"`
	Unread   int64 `json:"unread"`
}

func (r *DirectMessageRepository) Create(ctx context.Context, m *models.DirectMessage) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *DirectMessageRepository) GetByID(ctx context.Context, id uint) (*models.DirectMessage, error) {
	var m models.DirectMessage
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, notFound(err, "message")
	}
	return &m, nil
}

// MarkDelivered moves a message from sent to delivered. Messages already
// delivered or read are left alone, so the status never regresses.
func (r *DirectMessageRepository) MarkDelivered(ctx context.Context, id uint, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.DirectMessage{}).
		Where("id = ? AND status = ?", id, domain.MessageStatusSent).
		Updates(map[string]interface{}{"status": domain.MessageStatusDelivered, "delivered_at": at})
	return res.RowsAffected == 1, res.Error
}

// MarkReadFrom marks every unread message from sender to recipient as read
// with one shared timestamp. Running it again with nothing unread affects 0 rows.
func (r *DirectMessageRepository) MarkReadFrom(ctx context.Context, senderID, recipientID uint, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.DirectMessage{}).
		Where("sender_id = ? AND recipient_id = ? AND status <> ?", senderID, recipientID, domain.MessageStatusRead).
		Updates(map[string]interface{}{"status": domain.MessageStatusRead, "read_at": at})
	return res.RowsAffected, res.Error
}

// ListConversation returns messages exchanged between two users, newest first.
func (r *DirectMessageRepository) ListConversation(ctx context.Context, userID, otherID uint, limit, offset int) ([]models.DirectMessage, error) {
	var list []models.DirectMessage
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)", userID, otherID, otherID, userID).
		Order("created_at DESC, id DESC").Limit(limit).Offset(offset).
		Find(&list).Error
	return list, err
}

// UnreadBySender groups the recipient's unread messages by sender.
func (r *DirectMessageRepository) UnreadBySender(ctx context.Context, recipientID uint) ([]UnreadCount, error) {
	var list []UnreadCount
	err := r.db.WithContext(ctx).Model(&models.DirectMessage{}).
		Select("sender_id, COUNT(*) AS unread").
		Where("recipient_id = ? AND status <> ?", recipientID, domain.MessageStatusRead).
		Group("sender_id").Order("sender_id").
		Scan(&list).Error
	return list, err
}

func (r *DirectMessageRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.DirectMessage{}, id).Error
}
