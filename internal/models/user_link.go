package models

import "time"

// LinkKind names one of the two per-user id sets.
type LinkKind string

const (
	LinkFriends LinkKind = "friends"
	LinkBlocked LinkKind = "blockedUsers"
)

// UserLink is one member of a user's friends or blockedUsers set on the relational stores.
// The composite primary key makes insertion idempotent.
type UserLink struct {
	OwnerID   string    `gorm:"primaryKey;type:varchar(36)"`
	Kind      LinkKind  `gorm:"primaryKey;type:varchar(20)"`
	TargetID  string    `gorm:"primaryKey;type:varchar(36);index"`
	CreatedAt time.Time `gorm:"not null"`
}

func (UserLink) TableName() string {
	return "user_links"
}
