package models

import "time"

// Message 代表两个好友之间的一条私信。
type Message struct {
	ID          string    `bson:"_id,omitempty" gorm:"primaryKey;type:varchar(36)" json:"id"`
	SenderID    string    `bson:"senderId" gorm:"type:varchar(36);not null;index:idx_message_pair,priority:1" json:"senderId"`
	RecipientID string    `bson:"recipientId" gorm:"type:varchar(36);not null;index:idx_message_pair,priority:2;index:idx_message_unread,priority:1" json:"recipientId"`
	Content     string    `bson:"content" gorm:"type:text;not null" json:"content"`
	IsRead      bool      `bson:"isRead" gorm:"not null;default:false;index:idx_message_unread,priority:2" json:"isRead"`
	CreatedAt   time.Time `bson:"createdAt" gorm:"not null;index" json:"createdAt"`
}

// TableName 指定 Message 模型的表名。
func (Message) TableName() string {
	return "messages"
}

// PartnerOf returns the other participant of the message as seen by userID.
func (m *Message) PartnerOf(userID string) string {
	if m.SenderID == userID {
		return m.RecipientID
	}
	return m.SenderID
}

// ConversationSummary 是会话列表中的一项：对方资料、最后一条消息和未读数。
type ConversationSummary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	AvatarURL   string   `json:"avatarUrl,omitempty"`
	LastMessage *Message `json:"lastMessage"`
	UnreadCount int      `json:"unreadCount"`
}
