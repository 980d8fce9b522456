package services

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"stayprivate/internal/apperr"
	"stayprivate/internal/kafka"
	"stayprivate/internal/models"
	"stayprivate/internal/storage"
)

// RelationshipService 管理好友请求的生命周期，并维护每个用户的 friends / blockedUsers 集合。
//
// 接受请求时的两次 friends 写入不是原子的。每次写入都是幂等的集合插入，
// 对已接受的用户对重新提交请求（或调用 ReconcilePair / SyncFriends）会补齐缺失的一侧。
type RelationshipService interface {
	SubmitRequest(ctx context.Context, senderID, receiverID string) (*models.FriendRequest, error)
	RespondToRequest(ctx context.Context, requestID, responderID string, action models.FriendAction) (*models.FriendRequest, error)
	RemoveFriend(ctx context.Context, selfID, otherID string) error
	ListContacts(ctx context.Context, selfID string) ([]models.Contact, error)
	ListIncoming(ctx context.Context, selfID string) ([]models.FriendRequestView, error)
	ListOutgoing(ctx context.Context, selfID string) ([]models.FriendRequestView, error)
	// SyncFriends 对调用者参与的所有已接受请求重新执行 friends 集合插入。
	SyncFriends(ctx context.Context, selfID string) (*SyncResult, error)
	// ReconcilePair 在用户对的请求为 accepted 时补齐双方的 friends 集合，否则什么都不做。
	ReconcilePair(ctx context.Context, userA, userB string) error
}

// SyncResult 是 SyncFriends 的结果。
type SyncResult struct {
	Synced  int      `json:"synced"`
	Friends []string `json:"friends"`
}

type submitRequestInput struct {
	SenderID   string `validate:"required"`
	ReceiverID string `validate:"required"`
}

type removeFriendInput struct {
	SelfID  string `validate:"required"`
	OtherID string `validate:"required"`
}

type respondInput struct {
	RequestID   string `validate:"required"`
	ResponderID string `validate:"required"`
	Action      string `validate:"required"`
}

type relationshipService struct {
	users    storage.UserRepository
	requests storage.FriendRequestRepository
	events   EventPublisher
	log      *zap.Logger
	now      func() time.Time
}

// NewRelationshipService 创建一个新的 RelationshipService 实例。
func NewRelationshipService(
	users storage.UserRepository,
	requests storage.FriendRequestRepository,
	events EventPublisher,
	log *zap.Logger,
) RelationshipService {
	return &relationshipService{
		users:    users,
		requests: requests,
		events:   events,
		log:      log.Named("relationships"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SubmitRequest 创建好友请求。
//
//   - 已经是好友：Conflict/AlreadyFriends
//   - 无记录：创建 pending 请求
//   - accepted：走修复路径，幂等补齐双方 friends 集合，原样返回记录
//   - pending（任一方向）：Conflict/RequestAlreadyPending
//   - rejected：原记录以新的方向重新打开为 pending
//   - blocked：Conflict/RelationshipBlocked
func (s *relationshipService) SubmitRequest(ctx context.Context, senderID, receiverID string) (*models.FriendRequest, error) {
	if err := validateInput(submitRequestInput{SenderID: senderID, ReceiverID: receiverID}); err != nil {
		return nil, err
	}
	if senderID == receiverID {
		return nil, apperr.New(apperr.KindInvalidInput, apperr.ReasonSelfRequestNotAllowed, "不能添加自己为好友")
	}

	sender, err := s.activeUser(ctx, senderID, apperr.ReasonUserNotFound, "用户不存在")
	if err != nil {
		return nil, err
	}
	if _, err := s.activeUser(ctx, receiverID, apperr.ReasonReceiverNotFound, "接收用户不存在"); err != nil {
		return nil, err
	}
	if sender.IsFriendOf(receiverID) {
		return nil, apperr.New(apperr.KindConflict, apperr.ReasonAlreadyFriends, "你们已经是好友了")
	}

	existing, err := s.requests.FindByPair(ctx, senderID, receiverID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return s.createRequest(ctx, senderID, receiverID)
	case err != nil:
		return nil, apperr.Unavailable(err, "读取好友请求失败")
	}

	switch existing.Status {
	case models.FriendRequestStatusAccepted:
		s.log.Info("reconciling accepted pair on resubmission",
			zap.String("requestId", existing.ID),
			zap.String("senderId", existing.SenderID),
			zap.String("receiverId", existing.ReceiverID))
		if err := s.ensureFriends(ctx, existing.SenderID, existing.ReceiverID); err != nil {
			return nil, err
		}
		return existing, nil
	case models.FriendRequestStatusPending:
		return nil, apperr.New(apperr.KindConflict, apperr.ReasonRequestAlreadyPending, "已存在待处理的好友请求")
	case models.FriendRequestStatusRejected:
		return s.reopenRequest(ctx, existing, senderID, receiverID)
	case models.FriendRequestStatusBlocked:
		return nil, apperr.New(apperr.KindConflict, apperr.ReasonRelationshipBlocked, "无法向该用户发送好友请求")
	default:
		return nil, apperr.New(apperr.KindInternal, apperr.ReasonInternal, "未知的好友请求状态")
	}
}

func (s *relationshipService) createRequest(ctx context.Context, senderID, receiverID string) (*models.FriendRequest, error) {
	request := &models.FriendRequest{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     models.FriendRequestStatusPending,
	}
	request.Touch(s.now())

	if err := s.requests.Create(ctx, request); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			// 另一个并发请求先写入了同一用户对
			return nil, apperr.Wrap(err, apperr.KindConflict, apperr.ReasonRequestAlreadyPending, "已存在待处理的好友请求")
		}
		return nil, apperr.Unavailable(err, "保存好友请求失败")
	}

	s.log.Info("friend request created",
		zap.String("requestId", request.ID),
		zap.String("senderId", senderID),
		zap.String("receiverId", receiverID))
	s.publish(ctx, kafka.EventRequestSubmitted, request)
	return request, nil
}

func (s *relationshipService) reopenRequest(ctx context.Context, existing *models.FriendRequest, senderID, receiverID string) (*models.FriendRequest, error) {
	now := s.now()
	if err := s.requests.Reopen(ctx, existing.ID, senderID, receiverID, now); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// 状态已被并发修改
			return nil, apperr.Wrap(err, apperr.KindConflict, apperr.ReasonRequestAlreadyPending, "已存在待处理的好友请求")
		}
		return nil, apperr.Unavailable(err, "重新打开好友请求失败")
	}

	reopened := *existing
	reopened.SenderID = senderID
	reopened.ReceiverID = receiverID
	reopened.Status = models.FriendRequestStatusPending
	reopened.UpdatedAt = now

	s.log.Info("rejected friend request reopened",
		zap.String("requestId", reopened.ID),
		zap.String("senderId", senderID),
		zap.String("receiverId", receiverID))
	s.publish(ctx, kafka.EventRequestSubmitted, &reopened)
	return &reopened, nil
}

// RespondToRequest 处理接收者对请求的 accept / reject / block。
func (s *relationshipService) RespondToRequest(ctx context.Context, requestID, responderID string, action models.FriendAction) (*models.FriendRequest, error) {
	if err := validateInput(respondInput{RequestID: requestID, ResponderID: responderID, Action: string(action)}); err != nil {
		return nil, err
	}
	switch action {
	case models.FriendActionAccept, models.FriendActionReject, models.FriendActionBlock:
	default:
		return nil, apperr.New(apperr.KindInvalidInput, apperr.ReasonInvalidAction, "无效的操作，应为 accept、reject 或 block")
	}

	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, apperr.ReasonRequestNotFound, "好友请求不存在")
		}
		return nil, apperr.Unavailable(err, "读取好友请求失败")
	}
	if request.ReceiverID != responderID {
		return nil, apperr.New(apperr.KindForbidden, apperr.ReasonNotRequestReceiver, "您不是此好友请求的接收者")
	}

	if request.Status != models.FriendRequestStatusPending {
		if request.Status == models.FriendRequestStatusAccepted && action == models.FriendActionAccept {
			// 重复接受：重新执行两次集合插入，修复上次可能的部分失败
			if err := s.ensureFriends(ctx, request.SenderID, request.ReceiverID); err != nil {
				return nil, err
			}
			return request, nil
		}
		return nil, apperr.New(apperr.KindConflict, apperr.ReasonRequestNotPending, "该好友请求不是待处理状态")
	}

	switch action {
	case models.FriendActionAccept:
		if err := s.transition(ctx, request, models.FriendRequestStatusAccepted); err != nil {
			return nil, err
		}
		if err := s.ensureFriends(ctx, request.SenderID, request.ReceiverID); err != nil {
			return nil, err
		}
		s.publish(ctx, kafka.EventRequestAccepted, request)
	case models.FriendActionReject:
		if err := s.transition(ctx, request, models.FriendRequestStatusRejected); err != nil {
			return nil, err
		}
		s.publish(ctx, kafka.EventRequestRejected, request)
	case models.FriendActionBlock:
		if err := s.users.AddToSet(ctx, request.ReceiverID, models.LinkBlocked, request.SenderID); err != nil {
			return nil, s.setWriteError(err)
		}
		if err := s.transition(ctx, request, models.FriendRequestStatusBlocked); err != nil {
			return nil, err
		}
		s.publish(ctx, kafka.EventRequestBlocked, request)
	}

	s.log.Info("friend request answered",
		zap.String("requestId", request.ID),
		zap.String("action", string(action)),
		zap.String("status", string(request.Status)))
	return request, nil
}

// transition 以 pending 为前置条件更新状态，成功后同步修改 request。
func (s *relationshipService) transition(ctx context.Context, request *models.FriendRequest, to models.FriendRequestStatus) error {
	now := s.now()
	if err := s.requests.UpdateStatus(ctx, request.ID, models.FriendRequestStatusPending, to, now); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.Wrap(err, apperr.KindConflict, apperr.ReasonRequestNotPending, "该好友请求不是待处理状态")
		}
		return apperr.Unavailable(err, "更新好友请求状态失败")
	}
	request.Status = to
	request.UpdatedAt = now
	return nil
}

// RemoveFriend 从双方的 friends 集合中互相移除。请求记录保持不变。
func (s *relationshipService) RemoveFriend(ctx context.Context, selfID, otherID string) error {
	if err := validateInput(removeFriendInput{SelfID: selfID, OtherID: otherID}); err != nil {
		return err
	}
	if selfID == otherID {
		return apperr.New(apperr.KindInvalidInput, apperr.ReasonSelfRemoveNotAllowed, "不能移除自己")
	}

	for _, pair := range [][2]string{{selfID, otherID}, {otherID, selfID}} {
		err := s.users.Pull(ctx, pair[0], models.LinkFriends, pair[1])
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return apperr.Unavailable(err, "移除好友失败")
		}
	}

	s.log.Info("friend removed", zap.String("userId", selfID), zap.String("friendId", otherID))
	s.events.Publish(ctx, kafka.RelationshipEvent{
		Type:       kafka.EventFriendRemoved,
		SenderID:   selfID,
		ReceiverID: otherID,
		Timestamp:  s.now(),
	})
	return nil
}

func (s *relationshipService) ListContacts(ctx context.Context, selfID string) ([]models.Contact, error) {
	self, err := s.existingUser(ctx, selfID)
	if err != nil {
		return nil, err
	}
	users, err := s.users.GetByIDs(ctx, self.Friends)
	if err != nil {
		return nil, apperr.Unavailable(err, "读取好友列表失败")
	}

	byID := make(map[string]*models.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}
	contacts := make([]models.Contact, 0, len(self.Friends))
	for _, id := range self.Friends {
		if u, ok := byID[id]; ok {
			contacts = append(contacts, u.Contact())
		}
	}
	return contacts, nil
}

func (s *relationshipService) ListIncoming(ctx context.Context, selfID string) ([]models.FriendRequestView, error) {
	return s.listPending(ctx, selfID, models.DirectionIncoming)
}

func (s *relationshipService) ListOutgoing(ctx context.Context, selfID string) ([]models.FriendRequestView, error) {
	return s.listPending(ctx, selfID, models.DirectionOutgoing)
}

func (s *relationshipService) listPending(ctx context.Context, selfID string, direction models.RequestDirection) ([]models.FriendRequestView, error) {
	if selfID == "" {
		return nil, apperr.New(apperr.KindUnauthenticated, apperr.ReasonUnauthenticated, "未登录")
	}
	requests, err := s.requests.ListPending(ctx, selfID, direction)
	if err != nil {
		return nil, apperr.Unavailable(err, "读取好友请求失败")
	}

	ids := make([]string, 0, len(requests))
	for _, r := range requests {
		if direction == models.DirectionIncoming {
			ids = append(ids, r.SenderID)
		} else {
			ids = append(ids, r.ReceiverID)
		}
	}
	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Unavailable(err, "读取用户资料失败")
	}
	contacts := make(map[string]models.Contact, len(users))
	for i := range users {
		contacts[users[i].ID] = users[i].Contact()
	}

	views := make([]models.FriendRequestView, 0, len(requests))
	for _, r := range requests {
		view := models.FriendRequestView{FriendRequest: r}
		if direction == models.DirectionIncoming {
			if c, ok := contacts[r.SenderID]; ok {
				view.Sender = &c
			}
		} else if c, ok := contacts[r.ReceiverID]; ok {
			view.Receiver = &c
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *relationshipService) SyncFriends(ctx context.Context, selfID string) (*SyncResult, error) {
	if _, err := s.existingUser(ctx, selfID); err != nil {
		return nil, err
	}
	accepted, err := s.requests.ListAccepted(ctx, selfID)
	if err != nil {
		return nil, apperr.Unavailable(err, "读取已接受的好友请求失败")
	}

	synced := 0
	for _, r := range accepted {
		if err := s.ensureFriends(ctx, r.SenderID, r.ReceiverID); err != nil {
			if apperr.KindOf(err) == apperr.KindNotFound {
				s.log.Warn("skipping accepted request with missing user", zap.String("requestId", r.ID))
				continue
			}
			return nil, err
		}
		synced++
	}

	self, err := s.existingUser(ctx, selfID)
	if err != nil {
		return nil, err
	}
	s.log.Info("friends synced", zap.String("userId", selfID), zap.Int("synced", synced))
	return &SyncResult{Synced: synced, Friends: self.Friends}, nil
}

func (s *relationshipService) ReconcilePair(ctx context.Context, userA, userB string) error {
	request, err := s.requests.FindByPair(ctx, userA, userB)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return apperr.Unavailable(err, "读取好友请求失败")
	}
	if request.Status != models.FriendRequestStatusAccepted {
		return nil
	}
	return s.ensureFriends(ctx, request.SenderID, request.ReceiverID)
}

// ensureFriends 幂等地把两人加入彼此的 friends 集合。
func (s *relationshipService) ensureFriends(ctx context.Context, a, b string) error {
	if err := s.users.AddToSet(ctx, b, models.LinkFriends, a); err != nil {
		return s.setWriteError(err)
	}
	if err := s.users.AddToSet(ctx, a, models.LinkFriends, b); err != nil {
		return s.setWriteError(err)
	}
	return nil
}

func (s *relationshipService) setWriteError(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.Wrap(err, apperr.KindNotFound, apperr.ReasonUserNotFound, "用户不存在")
	}
	return apperr.Unavailable(err, "更新好友集合失败")
}

// activeUser 读取用户，不存在或已停用时返回 NotFound 和给定的 reason。
func (s *relationshipService) activeUser(ctx context.Context, id, reason, message string) (*models.User, error) {
	return loadActiveUser(ctx, s.users, id, reason, message)
}

func (s *relationshipService) existingUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, apperr.ReasonUserNotFound, "用户不存在")
		}
		return nil, apperr.Unavailable(err, "读取用户失败")
	}
	return user, nil
}

func (s *relationshipService) publish(ctx context.Context, typ kafka.RelationshipEventType, r *models.FriendRequest) {
	s.events.Publish(ctx, kafka.RelationshipEvent{
		Type:       typ,
		RequestID:  r.ID,
		SenderID:   r.SenderID,
		ReceiverID: r.ReceiverID,
		Timestamp:  s.now(),
	})
}

func loadActiveUser(ctx context.Context, users storage.UserRepository, id, reason, message string) (*models.User, error) {
	user, err := users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, reason, message)
		}
		return nil, apperr.Unavailable(err, "读取用户失败")
	}
	if !user.IsActive {
		return nil, apperr.New(apperr.KindNotFound, reason, message)
	}
	return user, nil
}
