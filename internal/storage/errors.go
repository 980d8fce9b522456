package storage

import (
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when the addressed record does not exist, or when a
	// conditional update found no record in the expected state.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert violates a unique index.
	ErrDuplicate = errors.New("duplicate record")
)

// translateGormError maps GORM sentinels onto the storage sentinels and wraps anything else.
func translateGormError(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return errors.Wrap(err, op)
	}
}

func translateMongoError(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	default:
		return errors.Wrap(err, op)
	}
}
