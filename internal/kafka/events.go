package kafka

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// RelationshipEventType names a relationship lifecycle transition.
type RelationshipEventType string

const (
	EventRequestSubmitted RelationshipEventType = "friend_request.submitted"
	EventRequestAccepted  RelationshipEventType = "friend_request.accepted"
	EventRequestRejected  RelationshipEventType = "friend_request.rejected"
	EventRequestBlocked   RelationshipEventType = "friend_request.blocked"
	EventFriendRemoved    RelationshipEventType = "friend.removed"
)

// RelationshipEvent is the payload published on the relationship topic.
// For friend.removed, SenderID is the user who removed and RequestID is empty.
type RelationshipEvent struct {
	Type       RelationshipEventType `json:"type"`
	RequestID  string                `json:"requestId,omitempty"`
	SenderID   string                `json:"senderId"`
	ReceiverID string                `json:"receiverId"`
	Timestamp  time.Time             `json:"timestamp"`
}

func (e RelationshipEvent) Encode() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, "encode relationship event")
	}
	return b, nil
}

func DecodeRelationshipEvent(b []byte) (RelationshipEvent, error) {
	var e RelationshipEvent
	if err := json.Unmarshal(b, &e); err != nil {
		return e, errors.Wrap(err, "decode relationship event")
	}
	if e.Type == "" || e.SenderID == "" || e.ReceiverID == "" {
		return e, errors.New("relationship event missing type or participants")
	}
	return e, nil
}
