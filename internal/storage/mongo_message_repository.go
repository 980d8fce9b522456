package storage

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"stayprivate/internal/models"
)

const messagesCollection = "messages"

type mongoMessageRepository struct {
	coll *mongo.Collection
}

func NewMongoMessageRepository(db *mongo.Database) MessageRepository {
	return &mongoMessageRepository{coll: db.Collection(messagesCollection)}
}

func (r *mongoMessageRepository) Create(ctx context.Context, message *models.Message) error {
	if message.ID == "" {
		message.ID = primitive.NewObjectID().Hex()
	}
	_, err := r.coll.InsertOne(ctx, message)
	return translateMongoError(err, "insert message")
}

func (r *mongoMessageRepository) ListConversation(ctx context.Context, userA, userB string) ([]models.Message, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"senderId": userA, "recipientId": userB},
		bson.M{"senderId": userB, "recipientId": userA},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	return r.find(ctx, filter, opts, "list conversation")
}

func (r *mongoMessageRepository) MarkConversationRead(ctx context.Context, recipientID, senderID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	filter := bson.M{"_id": bson.M{"$in": ids}, "recipientId": recipientID, "senderId": senderID, "isRead": false}
	res, err := r.coll.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"isRead": true}})
	if err != nil {
		return 0, translateMongoError(err, "mark conversation read")
	}
	return res.ModifiedCount, nil
}

func (r *mongoMessageRepository) ListRecent(ctx context.Context, userID string, limit int) ([]models.Message, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"senderId": userID},
		bson.M{"recipientId": userID},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, filter, opts, "list recent messages")
}

func (r *mongoMessageRepository) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"recipientId": recipientID, "isRead": false})
	if err != nil {
		return 0, translateMongoError(err, "count unread")
	}
	return n, nil
}

func (r *mongoMessageRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions, op string) ([]models.Message, error) {
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, translateMongoError(err, op)
	}
	messages := []models.Message{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, translateMongoError(err, op)
	}
	return messages, nil
}
