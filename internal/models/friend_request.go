package models

// FriendRequestStatus 定义好友请求的状态
type FriendRequestStatus string

const (
	FriendRequestStatusPending  FriendRequestStatus = "pending"
	FriendRequestStatusAccepted FriendRequestStatus = "accepted"
	FriendRequestStatusRejected FriendRequestStatus = "rejected"
	FriendRequestStatusBlocked  FriendRequestStatus = "blocked"
)

// FriendAction 是接收者对好友请求的处理动作。
type FriendAction string

const (
	FriendActionAccept FriendAction = "accept"
	FriendActionReject FriendAction = "reject"
	FriendActionBlock  FriendAction = "block"
)

// RequestDirection 区分收到的和发出的请求。
type RequestDirection int

const (
	DirectionIncoming RequestDirection = iota
	DirectionOutgoing
)

// FriendRequest 代表一个好友请求记录。每个无序用户对最多一条，由 PairKey 唯一索引保证。
type FriendRequest struct {
	BaseModel  `bson:",inline"`
	SenderID   string              `bson:"senderId" gorm:"type:varchar(36);not null;index" json:"senderId"`
	ReceiverID string              `bson:"receiverId" gorm:"type:varchar(36);not null;index:idx_friend_request_receiver_status,priority:1" json:"receiverId"`
	Status     FriendRequestStatus `bson:"status" gorm:"type:varchar(20);not null;default:'pending';index:idx_friend_request_receiver_status,priority:2" json:"status"`
	PairKey    string              `bson:"pairKey" gorm:"type:varchar(80);uniqueIndex;not null" json:"-"`
}

// TableName 指定 FriendRequest 模型的表名。
func (FriendRequest) TableName() string {
	return "friend_requests"
}

// Involves reports whether userID is the sender or the receiver.
func (r *FriendRequest) Involves(userID string) bool {
	return r.SenderID == userID || r.ReceiverID == userID
}

// PairKey returns the canonical key of the unordered pair {a, b}.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// FriendRequestView 是列表接口返回的请求，附带对方的资料。
type FriendRequestView struct {
	FriendRequest
	Sender   *Contact `json:"sender,omitempty"`
	Receiver *Contact `json:"receiver,omitempty"`
}
