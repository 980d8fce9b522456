package models

import (
	"time"
)

// BaseModel defines the common fields for all models.
// IDs are opaque strings: a hex ObjectID on the document store, a UUID on the relational stores.
type BaseModel struct {
	ID        string    `bson:"_id,omitempty" gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt time.Time `bson:"createdAt" gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Touch stamps CreatedAt (when unset) and UpdatedAt with now.
func (b *BaseModel) Touch(now time.Time) {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
