package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"stayprivate/internal/apperr"
	"stayprivate/internal/auth"
	"stayprivate/internal/config"
	"stayprivate/internal/kafka"
	"stayprivate/internal/models"
	"stayprivate/internal/storage"
	"stayprivate/internal/storage/storagetest"
)

func init() {
	auth.PasswordCost = 4
}

type sentMessage struct {
	topic   string
	key     string
	payload []byte
}

// recordingProducer 记录所有发送的消息，fail 不为空时返回该错误。
type recordingProducer struct {
	mu   sync.Mutex
	sent []sentMessage
	fail error
}

func (p *recordingProducer) SendMessage(_ context.Context, topic string, key []byte, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.sent = append(p.sent, sentMessage{topic: topic, key: string(key), payload: payload})
	return nil
}

func (p *recordingProducer) Close() {}

func (p *recordingProducer) events(t *testing.T) []kafka.RelationshipEvent {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]kafka.RelationshipEvent, 0, len(p.sent))
	for _, m := range p.sent {
		e, err := kafka.DecodeRelationshipEvent(m.payload)
		if err != nil {
			t.Fatalf("decode event: %v", err)
		}
		out = append(out, e)
	}
	return out
}

type fixture struct {
	store    *storage.Store
	producer *recordingProducer
	rel      *relationshipService
	msg      *messagingService
	users    *userService
	auth     *authService
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zap.NewNop()
	store := storagetest.NewStore(t)
	producer := &recordingProducer{}
	events := NewKafkaEventPublisher(producer, "relationships-test", log)

	f := &fixture{
		store:    store,
		producer: producer,
		clock:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	now := func() time.Time {
		f.clock = f.clock.Add(time.Second)
		return f.clock
	}

	f.rel = NewRelationshipService(store.Users, store.Requests, events, log).(*relationshipService)
	f.rel.now = now
	f.msg = NewMessagingService(store.Users, store.Messages, config.MessagingConfig{
		MaxContentLength:   5000,
		ConversationWindow: 100,
	}, log).(*messagingService)
	f.msg.now = now
	f.users = NewUserService(store.Users, config.SearchConfig{MinQueryLength: 2, Limit: 20}, log).(*userService)
	f.users.now = now
	f.auth = NewAuthService(store.Users, config.AuthConfig{
		JWTSecretKey: "test-secret",
		JWTExpiry:    time.Hour,
		CookieName:   "auth_token",
	}, nil, log).(*authService)
	f.auth.now = now
	return f
}

func (f *fixture) createUser(t *testing.T, name, email string) *models.User {
	t.Helper()
	u := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: "x",
		Role:         models.RoleUser,
		IsActive:     true,
	}
	u.Touch(f.clock)
	if err := f.store.Users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

func (f *fixture) reload(t *testing.T, id string) *models.User {
	t.Helper()
	u, err := f.store.Users.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reload user %s: %v", id, err)
	}
	return u
}

// befriend 走完整的请求和接受流程。
func (f *fixture) befriend(t *testing.T, a, b *models.User) {
	t.Helper()
	ctx := context.Background()
	req, err := f.rel.SubmitRequest(ctx, a.ID, b.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.rel.RespondToRequest(ctx, req.ID, b.ID, models.FriendActionAccept); err != nil {
		t.Fatalf("accept: %v", err)
	}
}

func assertAppErr(t *testing.T, err error, kind apperr.Kind, reason string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s/%s, got nil", kind, reason)
	}
	if got := apperr.KindOf(err); got != kind {
		t.Fatalf("kind = %s, want %s (err: %v)", got, kind, err)
	}
	if got := apperr.ReasonOf(err); got != reason {
		t.Fatalf("reason = %s, want %s (err: %v)", got, reason, err)
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
