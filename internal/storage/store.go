package storage

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"stayprivate/internal/config"
)

// Store bundles the repositories of one backend together with its lifecycle hooks.
type Store struct {
	Users    UserRepository
	Requests FriendRequestRepository
	Messages MessageRepository

	ping  func(ctx context.Context) error
	close func(ctx context.Context) error
}

// Open connects to the backend selected by DATABASE.TYPE and prepares its schema or indexes.
func Open(ctx context.Context, cfg config.Config, log *zap.Logger) (*Store, error) {
	switch cfg.Database.Type {
	case "mongo":
		cli, err := InitMongo(ctx, cfg.Mongo, log)
		if err != nil {
			return nil, err
		}
		db := cli.Database(cfg.Mongo.Database)
		if err := EnsureMongoIndexes(ctx, db); err != nil {
			_ = cli.Disconnect(ctx)
			return nil, err
		}
		return NewMongoStore(cli, db), nil
	case "postgres", "sqlite":
		db, err := InitDB(cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := AutoMigrateTables(db); err != nil {
			return nil, err
		}
		return NewGormStore(db), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Database.Type)
	}
}

// NewGormStore wires the GORM repositories over db.
func NewGormStore(db *gorm.DB) *Store {
	return &Store{
		Users:    NewGormUserRepository(db),
		Requests: NewGormFriendRequestRepository(db),
		Messages: NewGormMessageRepository(db),
		ping: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		close: func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	}
}

// NewMongoStore wires the MongoDB repositories over db.
func NewMongoStore(cli *mongo.Client, db *mongo.Database) *Store {
	return &Store{
		Users:    NewMongoUserRepository(db),
		Requests: NewMongoFriendRequestRepository(db),
		Messages: NewMongoMessageRepository(db),
		ping: func(ctx context.Context) error {
			return cli.Ping(ctx, nil)
		},
		close: cli.Disconnect,
	}
}

// Ping reports whether the backend is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}
