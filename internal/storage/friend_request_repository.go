package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"stayprivate/internal/models"
)

// FriendRequestRepository defines the interface for friend request data operations.
type FriendRequestRepository interface {
	// Create inserts a pending request. A second record for the same unordered pair fails with ErrDuplicate.
	Create(ctx context.Context, request *models.FriendRequest) error
	GetByID(ctx context.Context, requestID string) (*models.FriendRequest, error)
	// FindByPair returns the request for the unordered pair {a, b}, in either direction.
	FindByPair(ctx context.Context, a, b string) (*models.FriendRequest, error)
	// UpdateStatus moves a request from one status to another. It returns ErrNotFound when no
	// request with that id is currently in the from status.
	UpdateStatus(ctx context.Context, requestID string, from, to models.FriendRequestStatus, now time.Time) error
	// Reopen turns a rejected request back into a pending one with the given direction.
	Reopen(ctx context.Context, requestID, senderID, receiverID string, now time.Time) error
	// ListPending returns pending requests addressed to (incoming) or sent by (outgoing) the user, newest first.
	ListPending(ctx context.Context, userID string, direction models.RequestDirection) ([]models.FriendRequest, error)
	ListAccepted(ctx context.Context, userID string) ([]models.FriendRequest, error)
}

type gormFriendRequestRepository struct {
	db *gorm.DB
}

func NewGormFriendRequestRepository(db *gorm.DB) FriendRequestRepository {
	return &gormFriendRequestRepository{db: db}
}

func (r *gormFriendRequestRepository) Create(ctx context.Context, request *models.FriendRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	request.PairKey = models.PairKey(request.SenderID, request.ReceiverID)
	if request.Status == "" {
		request.Status = models.FriendRequestStatusPending
	}
	return translateGormError(r.db.WithContext(ctx).Create(request).Error, "create friend request")
}

func (r *gormFriendRequestRepository) GetByID(ctx context.Context, requestID string) (*models.FriendRequest, error) {
	var request models.FriendRequest
	if err := r.db.WithContext(ctx).Where("id = ?", requestID).First(&request).Error; err != nil {
		return nil, translateGormError(err, "get friend request")
	}
	return &request, nil
}

// FindByPair looks the pair up through the canonical pair key, which covers both directions.
func (r *gormFriendRequestRepository) FindByPair(ctx context.Context, a, b string) (*models.FriendRequest, error) {
	var request models.FriendRequest
	err := r.db.WithContext(ctx).
		Where("pair_key = ?", models.PairKey(a, b)).
		First(&request).Error
	if err != nil {
		return nil, translateGormError(err, "find friend request by pair")
	}
	return &request, nil
}

func (r *gormFriendRequestRepository) UpdateStatus(ctx context.Context, requestID string, from, to models.FriendRequestStatus, now time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.FriendRequest{}).
		Where("id = ? AND status = ?", requestID, from).
		Updates(map[string]interface{}{"status": to, "updated_at": now})
	if res.Error != nil {
		return translateGormError(res.Error, "update friend request status")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormFriendRequestRepository) Reopen(ctx context.Context, requestID, senderID, receiverID string, now time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.FriendRequest{}).
		Where("id = ? AND status = ?", requestID, models.FriendRequestStatusRejected).
		Updates(map[string]interface{}{
			"sender_id":   senderID,
			"receiver_id": receiverID,
			"status":      models.FriendRequestStatusPending,
			"updated_at":  now,
		})
	if res.Error != nil {
		return translateGormError(res.Error, "reopen friend request")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormFriendRequestRepository) ListPending(ctx context.Context, userID string, direction models.RequestDirection) ([]models.FriendRequest, error) {
	column := "receiver_id"
	if direction == models.DirectionOutgoing {
		column = "sender_id"
	}
	requests := []models.FriendRequest{}
	err := r.db.WithContext(ctx).
		Where(column+" = ? AND status = ?", userID, models.FriendRequestStatusPending).
		Order("created_at DESC").
		Find(&requests).Error
	if err != nil {
		return nil, translateGormError(err, "list pending friend requests")
	}
	return requests, nil
}

func (r *gormFriendRequestRepository) ListAccepted(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	requests := []models.FriendRequest{}
	err := r.db.WithContext(ctx).
		Where("status = ?", models.FriendRequestStatusAccepted).
		Where(r.db.Where("sender_id = ?", userID).Or("receiver_id = ?", userID)).
		Order("created_at ASC").
		Find(&requests).Error
	if err != nil {
		return nil, translateGormError(err, "list accepted friend requests")
	}
	return requests, nil
}
