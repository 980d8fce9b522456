package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"stayprivate/internal/apperr"
	"stayprivate/internal/config"
	"stayprivate/internal/models"
	"stayprivate/internal/storage"
)

// MessagingService 处理好友之间的私信。只有互为好友的用户之间才能收发消息。
type MessagingService interface {
	Send(ctx context.Context, senderID, recipientID, content string) (*models.Message, error)
	// FetchConversation 按时间升序返回两人之间的全部消息，并把其中对方发给自己的未读消息标记为已读。
	FetchConversation(ctx context.Context, selfID, otherID string) ([]models.Message, error)
	// ListConversations 基于最近的消息窗口返回会话列表，最新的在前。
	ListConversations(ctx context.Context, selfID string) ([]models.ConversationSummary, error)
	UnreadCount(ctx context.Context, selfID string) (int64, error)
}

type sendMessageInput struct {
	SenderID    string `validate:"required"`
	RecipientID string `validate:"required"`
	Content     string `validate:"required"`
}

type messagingService struct {
	users    storage.UserRepository
	messages storage.MessageRepository
	cfg      config.MessagingConfig
	log      *zap.Logger
	now      func() time.Time
}

// NewMessagingService 创建一个新的 MessagingService 实例。
func NewMessagingService(
	users storage.UserRepository,
	messages storage.MessageRepository,
	cfg config.MessagingConfig,
	log *zap.Logger,
) MessagingService {
	return &messagingService{
		users:    users,
		messages: messages,
		cfg:      cfg,
		log:      log.Named("messaging"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *messagingService) Send(ctx context.Context, senderID, recipientID, content string) (*models.Message, error) {
	if err := validateInput(sendMessageInput{SenderID: senderID, RecipientID: recipientID, Content: content}); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.New(apperr.KindInvalidInput, apperr.ReasonInvalidContent, "消息内容不能为空")
	}
	if s.cfg.MaxContentLength > 0 && utf8.RuneCountInString(content) > s.cfg.MaxContentLength {
		return nil, apperr.New(apperr.KindInvalidInput, apperr.ReasonInvalidContent, "消息内容过长")
	}
	if senderID == recipientID {
		return nil, apperr.New(apperr.KindInvalidInput, apperr.ReasonSelfMessageNotAllowed, "不能给自己发送消息")
	}

	if _, err := loadActiveUser(ctx, s.users, recipientID, apperr.ReasonRecipientNotFound, "接收用户不存在"); err != nil {
		return nil, err
	}
	sender, err := s.users.GetByID(ctx, senderID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, apperr.ReasonUserNotFound, "用户不存在")
		}
		return nil, apperr.Unavailable(err, "读取用户失败")
	}
	if !sender.IsFriendOf(recipientID) {
		return nil, apperr.New(apperr.KindForbidden, apperr.ReasonNotFriends, "只能给好友发送消息")
	}

	message := &models.Message{
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     content,
		IsRead:      false,
		CreatedAt:   s.now(),
	}
	if err := s.messages.Create(ctx, message); err != nil {
		return nil, apperr.Unavailable(err, "保存消息失败")
	}

	s.log.Debug("message stored",
		zap.String("messageId", message.ID),
		zap.String("senderId", senderID),
		zap.String("recipientId", recipientID))
	return message, nil
}

func (s *messagingService) FetchConversation(ctx context.Context, selfID, otherID string) ([]models.Message, error) {
	self, err := s.users.GetByID(ctx, selfID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, apperr.ReasonUserNotFound, "用户不存在")
		}
		return nil, apperr.Unavailable(err, "读取用户失败")
	}
	if !self.IsFriendOf(otherID) {
		return nil, apperr.New(apperr.KindForbidden, apperr.ReasonNotFriends, "只能查看与好友的会话")
	}

	messages, err := s.messages.ListConversation(ctx, selfID, otherID)
	if err != nil {
		return nil, apperr.Unavailable(err, "读取会话失败")
	}

	// 只标记本次返回的消息，读取之后到达的新消息保持未读
	unread := make([]string, 0)
	for _, m := range messages {
		if m.RecipientID == selfID && !m.IsRead {
			unread = append(unread, m.ID)
		}
	}
	if len(unread) == 0 {
		return messages, nil
	}
	if _, err := s.messages.MarkConversationRead(ctx, selfID, otherID, unread); err != nil {
		return nil, apperr.Unavailable(err, "标记已读失败")
	}
	for i := range messages {
		if messages[i].RecipientID == selfID {
			messages[i].IsRead = true
		}
	}
	return messages, nil
}

func (s *messagingService) ListConversations(ctx context.Context, selfID string) ([]models.ConversationSummary, error) {
	if selfID == "" {
		return nil, apperr.New(apperr.KindUnauthenticated, apperr.ReasonUnauthenticated, "未登录")
	}
	recent, err := s.messages.ListRecent(ctx, selfID, s.cfg.ConversationWindow)
	if err != nil {
		return nil, apperr.Unavailable(err, "读取最近消息失败")
	}

	// recent 已按时间降序，每个对方第一次出现的消息就是最后一条
	order := make([]string, 0)
	latest := make(map[string]*models.Message)
	unread := make(map[string]int)
	for i := range recent {
		m := &recent[i]
		partner := m.PartnerOf(selfID)
		if _, seen := latest[partner]; !seen {
			latest[partner] = m
			order = append(order, partner)
		}
		if m.RecipientID == selfID && !m.IsRead {
			unread[partner]++
		}
	}

	partners, err := s.users.GetByIDs(ctx, order)
	if err != nil {
		return nil, apperr.Unavailable(err, "读取会话对象失败")
	}
	byID := make(map[string]*models.User, len(partners))
	for i := range partners {
		byID[partners[i].ID] = &partners[i]
	}

	summaries := make([]models.ConversationSummary, 0, len(order))
	for _, id := range order {
		u, ok := byID[id]
		if !ok {
			continue
		}
		summaries = append(summaries, models.ConversationSummary{
			ID:          u.ID,
			Name:        u.Name,
			AvatarURL:   u.AvatarURL,
			LastMessage: latest[id],
			UnreadCount: unread[id],
		})
	}
	return summaries, nil
}

func (s *messagingService) UnreadCount(ctx context.Context, selfID string) (int64, error) {
	if selfID == "" {
		return 0, apperr.New(apperr.KindUnauthenticated, apperr.ReasonUnauthenticated, "未登录")
	}
	n, err := s.messages.CountUnread(ctx, selfID)
	if err != nil {
		return 0, apperr.Unavailable(err, "读取未读数失败")
	}
	return n, nil
}
