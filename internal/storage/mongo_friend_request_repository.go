package storage

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"stayprivate/internal/models"
)

const friendRequestsCollection = "friendrequests"

type mongoFriendRequestRepository struct {
	coll *mongo.Collection
}

func NewMongoFriendRequestRepository(db *mongo.Database) FriendRequestRepository {
	return &mongoFriendRequestRepository{coll: db.Collection(friendRequestsCollection)}
}

func (r *mongoFriendRequestRepository) Create(ctx context.Context, request *models.FriendRequest) error {
	if request.ID == "" {
		request.ID = primitive.NewObjectID().Hex()
	}
	request.PairKey = models.PairKey(request.SenderID, request.ReceiverID)
	if request.Status == "" {
		request.Status = models.FriendRequestStatusPending
	}
	_, err := r.coll.InsertOne(ctx, request)
	return translateMongoError(err, "insert friend request")
}

func (r *mongoFriendRequestRepository) GetByID(ctx context.Context, requestID string) (*models.FriendRequest, error) {
	return r.findOne(ctx, bson.M{"_id": requestID}, "find friend request")
}

func (r *mongoFriendRequestRepository) FindByPair(ctx context.Context, a, b string) (*models.FriendRequest, error) {
	return r.findOne(ctx, bson.M{"pairKey": models.PairKey(a, b)}, "find friend request by pair")
}

func (r *mongoFriendRequestRepository) findOne(ctx context.Context, filter bson.M, op string) (*models.FriendRequest, error) {
	var request models.FriendRequest
	if err := r.coll.FindOne(ctx, filter).Decode(&request); err != nil {
		return nil, translateMongoError(err, op)
	}
	return &request, nil
}

func (r *mongoFriendRequestRepository) UpdateStatus(ctx context.Context, requestID string, from, to models.FriendRequestStatus, now time.Time) error {
	filter := bson.M{"_id": requestID, "status": from}
	update := bson.M{"$set": bson.M{"status": to, "updatedAt": now}}
	return r.conditionalUpdate(ctx, filter, update, "update friend request status")
}

func (r *mongoFriendRequestRepository) Reopen(ctx context.Context, requestID, senderID, receiverID string, now time.Time) error {
	filter := bson.M{"_id": requestID, "status": models.FriendRequestStatusRejected}
	update := bson.M{"$set": bson.M{
		"senderId":   senderID,
		"receiverId": receiverID,
		"status":     models.FriendRequestStatusPending,
		"updatedAt":  now,
	}}
	return r.conditionalUpdate(ctx, filter, update, "reopen friend request")
}

func (r *mongoFriendRequestRepository) conditionalUpdate(ctx context.Context, filter, update bson.M, op string) error {
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return translateMongoError(err, op)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoFriendRequestRepository) ListPending(ctx context.Context, userID string, direction models.RequestDirection) ([]models.FriendRequest, error) {
	field := "receiverId"
	if direction == models.DirectionOutgoing {
		field = "senderId"
	}
	filter := bson.M{field: userID, "status": models.FriendRequestStatusPending}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return r.find(ctx, filter, opts, "list pending friend requests")
}

func (r *mongoFriendRequestRepository) ListAccepted(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	filter := bson.M{
		"status": models.FriendRequestStatusAccepted,
		"$or": bson.A{
			bson.M{"senderId": userID},
			bson.M{"receiverId": userID},
		},
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	return r.find(ctx, filter, opts, "list accepted friend requests")
}

func (r *mongoFriendRequestRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions, op string) ([]models.FriendRequest, error) {
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, translateMongoError(err, op)
	}
	requests := []models.FriendRequest{}
	if err := cursor.All(ctx, &requests); err != nil {
		return nil, translateMongoError(err, op)
	}
	return requests, nil
}
