package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"stayprivate/internal/apperr"
	"stayprivate/internal/models"
	"stayprivate/internal/storage"
)

func TestSendFetchRoundTripMarksRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createUser(t, "Alice", "alice@example.com")
	b := f.createUser(t, "Bob", "bob@example.com")
	f.befriend(t, a, b)

	sent, err := f.msg.Send(ctx, a.ID, b.ID, "  hello ")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if sent.IsRead || sent.Content != "hello" {
		t.Fatalf("sent = %+v", sent)
	}

	// 发送者查看会话不会把消息标为已读
	own, err := f.msg.FetchConversation(ctx, a.ID, b.ID)
	if err != nil {
		t.Fatalf("FetchConversation(a): %v", err)
	}
	if len(own) != 1 || own[0].IsRead {
		t.Fatalf("sender view = %+v", own)
	}

	for i := 0; i < 2; i++ {
		got, err := f.msg.FetchConversation(ctx, b.ID, a.ID)
		if err != nil {
			t.Fatalf("FetchConversation(b) #%d: %v", i, err)
		}
		if len(got) != 1 || got[0].ID != sent.ID || !got[0].IsRead {
			t.Fatalf("fetch #%d = %+v", i, got)
		}
	}

	n, err := f.msg.UnreadCount(ctx, b.ID)
	if err != nil {
		t.Fatalf("UnreadCount: %v", err)
	}
	if n != 0 {
		t.Errorf("unread = %d, want 0", n)
	}
}

func TestSendToNonFriendIsForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createUser(t, "Alice", "alice@example.com")
	b := f.createUser(t, "Bob", "bob@example.com")

	_, err := f.msg.Send(ctx, a.ID, b.ID, "hi")
	assertAppErr(t, err, apperr.KindForbidden, apperr.ReasonNotFriends)

	msgs, err := f.store.Messages.ListConversation(ctx, a.ID, b.ID)
	if err != nil {
		t.Fatalf("ListConversation: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("stored %d messages, want 0", len(msgs))
	}

	_, err = f.msg.FetchConversation(ctx, a.ID, b.ID)
	assertAppErr(t, err, apperr.KindForbidden, apperr.ReasonNotFriends)
}

func TestSendAfterRemoveFriendIsForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createUser(t, "Alice", "alice@example.com")
	b := f.createUser(t, "Bob", "bob@example.com")
	f.befriend(t, a, b)

	if err := f.rel.RemoveFriend(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("RemoveFriend: %v", err)
	}
	_, err := f.msg.Send(ctx, a.ID, b.ID, "still there?")
	assertAppErr(t, err, apperr.KindForbidden, apperr.ReasonNotFriends)
}

func TestSendValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createUser(t, "Alice", "alice@example.com")
	b := f.createUser(t, "Bob", "bob@example.com")
	f.befriend(t, a, b)

	tests := []struct {
		name      string
		sender    string
		recipient string
		content   string
		kind      apperr.Kind
		reason    string
	}{
		{"empty content", a.ID, b.ID, "", apperr.KindInvalidInput, apperr.ReasonValidationFailed},
		{"blank content", a.ID, b.ID, "   \n", apperr.KindInvalidInput, apperr.ReasonInvalidContent},
		{"too long", a.ID, b.ID, strings.Repeat("x", 5001), apperr.KindInvalidInput, apperr.ReasonInvalidContent},
		{"to self", a.ID, a.ID, "hi", apperr.KindInvalidInput, apperr.ReasonSelfMessageNotAllowed},
		{"unknown recipient", a.ID, "missing", "hi", apperr.KindNotFound, apperr.ReasonRecipientNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.msg.Send(ctx, tt.sender, tt.recipient, tt.content)
			assertAppErr(t, err, tt.kind, tt.reason)
		})
	}

	if _, err := f.msg.Send(ctx, a.ID, b.ID, strings.Repeat("é", 5000)); err != nil {
		t.Errorf("5000 runes rejected: %v", err)
	}
}

func TestListConversationsGroupsByPartner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createUser(t, "Alice", "alice@example.com")
	b := f.createUser(t, "Bob", "bob@example.com")
	c := f.createUser(t, "Carol", "carol@example.com")
	f.befriend(t, a, b)
	f.befriend(t, a, c)

	send := func(from, to, content string) {
		t.Helper()
		if _, err := f.msg.Send(ctx, from, to, content); err != nil {
			t.Fatalf("Send %q: %v", content, err)
		}
	}
	send(b.ID, a.ID, "b1")
	send(b.ID, a.ID, "b2")
	send(a.ID, c.ID, "c1")
	send(c.ID, a.ID, "c2")
	send(a.ID, b.ID, "b3")

	convs, err := f.msg.ListConversations(ctx, a.ID)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("conversations = %+v", convs)
	}
	if convs[0].ID != b.ID || convs[0].LastMessage.Content != "b3" || convs[0].UnreadCount != 2 {
		t.Errorf("first = %+v (last %+v)", convs[0], convs[0].LastMessage)
	}
	if convs[1].ID != c.ID || convs[1].LastMessage.Content != "c2" || convs[1].UnreadCount != 1 {
		t.Errorf("second = %+v (last %+v)", convs[1], convs[1].LastMessage)
	}

	n, err := f.msg.UnreadCount(ctx, a.ID)
	if err != nil {
		t.Fatalf("UnreadCount: %v", err)
	}
	if n != 3 {
		t.Errorf("unread = %d, want 3", n)
	}
}

func TestListConversationsIsBoundedByWindow(t *testing.T) {
	f := newFixture(t)
	f.msg.cfg.ConversationWindow = 3
	ctx := context.Background()
	a := f.createUser(t, "Alice", "alice@example.com")
	b := f.createUser(t, "Bob", "bob@example.com")
	c := f.createUser(t, "Carol", "carol@example.com")
	f.befriend(t, a, b)
	f.befriend(t, a, c)

	if _, err := f.msg.Send(ctx, c.ID, a.ID, "old"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := f.msg.Send(ctx, b.ID, a.ID, "recent"); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}

	// c 的会话落在窗口之外
	convs, err := f.msg.ListConversations(ctx, a.ID)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(convs) != 1 || convs[0].ID != b.ID || convs[0].UnreadCount != 3 {
		t.Errorf("conversations = %+v", convs)
	}
}

// lateArrival 在读取会话之后、标记已读之前插入一条新消息。
type lateArrival struct {
	storage.MessageRepository
	late *models.Message
}

func (r *lateArrival) ListConversation(ctx context.Context, userA, userB string) ([]models.Message, error) {
	messages, err := r.MessageRepository.ListConversation(ctx, userA, userB)
	if err != nil || r.late == nil {
		return messages, err
	}
	if err := r.MessageRepository.Create(ctx, r.late); err != nil {
		return nil, err
	}
	r.late = nil
	return messages, nil
}

func TestFetchConversationLeavesLaterMessagesUnread(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createUser(t, "Alice", "alice@example.com")
	b := f.createUser(t, "Bob", "bob@example.com")
	f.befriend(t, a, b)

	if _, err := f.msg.Send(ctx, a.ID, b.ID, "first"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	f.msg.messages = &lateArrival{
		MessageRepository: f.store.Messages,
		late:              &models.Message{SenderID: a.ID, RecipientID: b.ID, Content: "late", CreatedAt: f.clock.Add(time.Minute)},
	}

	got, err := f.msg.FetchConversation(ctx, b.ID, a.ID)
	if err != nil {
		t.Fatalf("FetchConversation: %v", err)
	}
	if len(got) != 1 || got[0].Content != "first" || !got[0].IsRead {
		t.Fatalf("fetched = %+v", got)
	}

	n, err := f.msg.UnreadCount(ctx, b.ID)
	if err != nil {
		t.Fatalf("UnreadCount: %v", err)
	}
	if n != 1 {
		t.Errorf("unread = %d, want 1", n)
	}
}
