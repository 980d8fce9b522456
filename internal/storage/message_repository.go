package storage

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"stayprivate/internal/models"
)

// MessageRepository 定义了消息数据操作的接口。
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	// ListConversation 返回两个用户之间的全部消息，按创建时间升序。
	ListConversation(ctx context.Context, userA, userB string) ([]models.Message, error)
	// MarkConversationRead 把 ids 中 sender 发给 recipient 的未读消息标记为已读，返回更新条数。
	MarkConversationRead(ctx context.Context, recipientID, senderID string, ids []string) (int64, error)
	// ListRecent 返回用户发送或接收的最近 limit 条消息，按创建时间降序。
	ListRecent(ctx context.Context, userID string, limit int) ([]models.Message, error)
	CountUnread(ctx context.Context, recipientID string) (int64, error)
}

// gormMessageRepository 使用 GORM 实现 MessageRepository。
type gormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository 创建一个新的基于 GORM 的 MessageRepository。
func NewGormMessageRepository(db *gorm.DB) MessageRepository {
	return &gormMessageRepository{db: db}
}

// Create 在数据库中创建一条新的消息记录。
func (r *gormMessageRepository) Create(ctx context.Context, message *models.Message) error {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	return translateGormError(r.db.WithContext(ctx).Create(message).Error, "create message")
}

func (r *gormMessageRepository) ListConversation(ctx context.Context, userA, userB string) ([]models.Message, error) {
	messages := []models.Message{}
	err := r.db.WithContext(ctx).
		Where(r.db.Where("sender_id = ? AND recipient_id = ?", userA, userB).
			Or("sender_id = ? AND recipient_id = ?", userB, userA)).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, translateGormError(err, "list conversation")
	}
	return messages, nil
}

func (r *gormMessageRepository) MarkConversationRead(ctx context.Context, recipientID, senderID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id IN ? AND recipient_id = ? AND sender_id = ? AND is_read = ?", ids, recipientID, senderID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, translateGormError(res.Error, "mark conversation read")
	}
	return res.RowsAffected, nil
}

func (r *gormMessageRepository) ListRecent(ctx context.Context, userID string, limit int) ([]models.Message, error) {
	messages := []models.Message{}
	q := r.db.WithContext(ctx).
		Where("sender_id = ? OR recipient_id = ?", userID, userID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&messages).Error; err != nil {
		return nil, translateGormError(err, "list recent messages")
	}
	return messages, nil
}

func (r *gormMessageRepository) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&count).Error
	if err != nil {
		return 0, translateGormError(err, "count unread")
	}
	return count, nil
}
