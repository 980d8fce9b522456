package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"stayprivate/internal/config"
)

// InitMongo connects to MongoDB, retrying the initial handshake up to MaxRetry times.
func InitMongo(ctx context.Context, cfg config.MongoConfig, log *zap.Logger) (*mongo.Client, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo uri is required")
	}
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout)
		opts.SetServerSelectionTimeout(cfg.ConnectTimeout)
	}

	attempts := cfg.MaxRetry
	if attempts < 1 {
		attempts = 1
	}

	var (
		cli *mongo.Client
		err error
	)
	for i := 0; i < attempts; i++ {
		cli, err = connectMongo(ctx, opts)
		if err == nil {
			return cli, nil
		}
		log.Warn("mongo connect failed", zap.Int("attempt", i+1), zap.Error(err))
		if ctx.Err() != nil {
			break
		}
		time.Sleep(time.Second / 2)
	}
	return nil, errors.Wrap(err, "failed to connect to MongoDB")
}

func connectMongo(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error) {
	cli, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := cli.Ping(ctx, nil); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, err
	}
	return cli, nil
}

// EnsureMongoIndexes creates the indexes the repositories rely on. It is safe to call repeatedly.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		friendRequestsCollection: {
			{Keys: bson.D{{Key: "pairKey", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "senderId", Value: 1}, {Key: "receiverId", Value: 1}}},
			{Keys: bson.D{{Key: "receiverId", Value: 1}, {Key: "status", Value: 1}}},
		},
		messagesCollection: {
			{Keys: bson.D{{Key: "senderId", Value: 1}, {Key: "recipientId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "recipientId", Value: 1}, {Key: "isRead", Value: 1}}},
		},
	}
	for coll, idx := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, idx); err != nil {
			return errors.Wrapf(err, "create indexes on %s", coll)
		}
	}
	return nil
}
