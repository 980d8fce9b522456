package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"stayprivate/internal/apperr"
	"stayprivate/internal/kafka"
	"stayprivate/internal/models"
	"stayprivate/internal/storage"
)

func TestSubmitAndAcceptMakesFriendsSymmetric(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createUser(t, "Alice", "alice@example.com")
	b := f.createUser(t, "Bob", "bob@example.com")

	req, err := f.rel.SubmitRequest(ctx, a.ID, b.ID)
	if err != nil {
		t.Fatalf("SubmitRequest: %v", err)
	}
	if req.Status != models.FriendRequestStatusPending {
		t.Fatalf("status = %s, want pending", req.Status)
	}

	accepted, err := f.rel.RespondToRequest(ctx, req.ID, b.ID, models.FriendActionAccept)
	if err != nil {
		t.Fatalf("RespondToRequest: %v", err)
	}
	if accepted.Status != models.FriendRequestStatusAccepted {
		t.Fatalf("status = %s, want accepted", accepted.Status)
	}

	if !f.reload(t, a.ID).IsFriendOf(b.ID) {
		t.Error("a.friends does not contain b")
	}
	if !f.reload(t, b.ID).IsFriendOf(a.ID) {
		t.Error("b.friends does not contain a")
	}

	events := f.producer.events(t)
	if len(events) != 2 {
		t.Fatalf("published %d events, want 2", len(events))
	}
	if events[0].Type != kafka.EventRequestSubmitted || events[1].Type != kafka.EventRequestAccepted {
		t.Errorf("event types = %s, %s", events[0].Type, events[1].Type)
	}
	if events[1].RequestID != req.ID {
		t.Errorf("accepted event request id = %q, want %q", events[1].RequestID, req.ID)
	}
	if got, want := f.producer.sent[0].key, models.PairKey(a.ID, b.ID); got != want {
		t.Errorf("event key = %q, want %q", got, want)
	}
}

func TestSubmitRequestToSelfIsRejected(t *testing.T) {
	f := newFixture(t)
	a := f.createUser(t, "Alice", "alice@example.com")

	_, err := f.rel.SubmitRequest(context.Background(), a.ID, a.ID)
	assertAppErr(t, err, apperr.KindInvalidInput, apperr.ReasonSelfRequestNotAllowed)

	if _, err := f.store.Requests.FindByPair(context.Background(), a.ID, a.ID); err == nil {
		t.Error("self request was stored")
	}
}

func TestSubmitRequestWhenAlreadyFriends(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createUser(t, "Alice", "alice@example.com")
	b := f.createUser(t, "Bob", "bob@example.com")
	f.befriend(t, a, b)

	before, err := f.store.Requests.FindByPair(ctx, a.ID, b.ID)
	if err != nil {
		t.Fatalf("FindByPair: %v", err)
	}

	for _, pair := range [][2]string{{a.ID, b.ID}, {b.ID, a.ID}} {
		_, err := f.rel.SubmitRequest(ctx, pair[0], pair[1])
		assertAppErr(t, err, apperr.KindConflict, apperr.ReasonAlreadyFriends)
	}

	after, err := f.store.Requests.FindByPair(ctx, a.ID, b.ID)
	if err != nil {
		t.Fatalf("FindByPair: %v", err)
	}
	if after.ID != before.ID || after.Status != models.FriendRequestStatusAccepted {
		t.Errorf("request changed: before %+v, after %+v", before, after)
	}
}

func TestSubmitRequestWhilePendingInEitherDirection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createUser(t, "Alice", "alice@example.com")
	b := f.createUser(t, "Bob", "bob@example.com")

	if _, err := f.rel.SubmitRequest(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("SubmitRequest: %v", err)
	}
	_, err := f.rel.SubmitRequest(ctx, a.ID, b.ID)
	assertAppErr(t, err, apperr.KindConflict, apperr.ReasonRequestAlreadyPending)
	_, err = f.rel.SubmitRequest(ctx, b.ID, a.ID)
	assertAppErr(t, err, apperr.KindConflict, apperr.ReasonRequestAlreadyPending)
}

func TestSubmitRequestUnknownOrInactiveReceiver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createUser(t, "Alice", "alice@example.com")
	b := f.createUser(t, "Bob", "bob@example.com")

	_, err := f.rel.SubmitRequest(ctx, a.ID, "missing")
	assertAppErr(t, err, apperr.KindNotFound, apperr.ReasonReceiverNotFound)

	if err := f.store.Users.SetActive(ctx, b.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	_, err = f.rel.SubmitRequest(ctx, a.ID, b.ID)
	assertAppErr(t, err, apperr.KindNotFound, apperr.ReasonReceiverNotFound)

	_, err = f.rel.SubmitRequest(ctx, "missing", a.ID)
	assertAppErr(t, err, apperr.KindNotFound, apperr.ReasonUserNotFound)

	_, err = f.rel.SubmitRequest(ctx, "", a.ID)
	assertAppErr(t, err, apperr.KindInvalidInput, apperr.ReasonValidationFailed)
}

func TestRejectedRequestIsReopenedWithNewDirection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createUser(t, "Alice", "alice@example.com")
	b := f.createUser(t, "Bob", "bob@example.com")

	req, err := f.rel.SubmitRequest(ctx, a.ID, b.ID)
	if err != nil {
		t.Fatalf("SubmitRequest: %v", err)
	}
	if _, err := f.rel.RespondToRequest(ctx, req.ID, b.ID, models.FriendActionReject); err != nil {
		t.Fatalf("reject: %v", err)
	}

	reopened, err := f.rel.SubmitRequest(ctx, b.ID, a.ID)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if reopened.ID != req.ID {
		t.Errorf("reopened id = %s, want %s", reopened.ID, req.ID)
	}
	if reopened.SenderID != b.ID || reopened.ReceiverID != a.ID || reopened.Status != models.FriendRequestStatusPending {
		t.Errorf("reopened = %+v", reopened)
	}

	stored, err := f.store.Requests.GetByID(ctx, req.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.SenderID != b.ID || stored.Status != models.FriendRequestStatusPending {
		t.Errorf("stored = %+v", stored)
	}

	// 新方向上只有 a 可以响应
	_, err = f.rel.RespondToRequest(ctx, req.ID, b.ID, models.FriendActionAccept)
	assertAppErr(t, err, apperr.KindForbidden, apperr.ReasonNotRequestReceiver)
	if _, err := f.rel.RespondToRequest(ctx, req.ID, a.ID, models.FriendActionAccept); err != nil {
		t.Fatalf("accept reopened: %v", err)
	}
}

func TestBlockIsTerminalAndHidesSenderFromSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createUser(t, "Alice", "alice@example.com")
	c := f.createUser(t, "Carol", "carol@example.com")

	req, err := f.rel.SubmitRequest(ctx, c.ID, a.ID)
	if err != nil {
		t.Fatalf("SubmitRequest: %v", err)
	}
	blocked, err := f.rel.RespondToRequest(ctx, req.ID, a.ID, models.FriendActionBlock)
	if err != nil {
		t.Fatalf("block: %v", err)
	}
	if blocked.Status != models.FriendRequestStatusBlocked {
		t.Fatalf("status = %s, want blocked", blocked.Status)
	}
	if !f.reload(t, a.ID).HasBlocked(c.ID) {
		t.Error("c not in a.blockedUsers")
	}

	results, err := f.users.Search(ctx, a.ID, "carol")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range results {
		if r.ID == c.ID {
			t.Error("blocked user returned by search")
		}
	}

	for _, pair := range [][2]string{{c.ID, a.ID}, {a.ID, c.ID}} {
		_, err := f.rel.SubmitRequest(ctx, pair[0], pair[1])
		assertAppErr(t, err, apperr.KindConflict, apperr.ReasonRelationshipBlocked)
	}
	_, err = f.rel.RespondToRequest(ctx, req.ID, a.ID, models.FriendActionAccept)
	assertAppErr(t, err, apperr.KindConflict, apperr.ReasonRequestNotPending)
}

func TestRespondToRequestValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createUser(t, "Alice", "alice@example.com")
	b := f.createUser(t, "Bob", "bob@example.com")
	req, err := f.rel.SubmitRequest(ctx, a.ID, b.ID)
	if err != nil {
		t.Fatalf("SubmitRequest: %v", err)
	}

	tests := []struct {
		name      string
		requestID string
		responder string
		action    models.FriendAction
		kind      apperr.Kind
		reason    string
	}{
		{"unknown action", req.ID, b.ID, "ignore", apperr.KindInvalidInput, apperr.ReasonInvalidAction},
		{"missing request", "nope", b.ID, models.FriendActionAccept, apperr.KindNotFound, apperr.ReasonRequestNotFound},
		{"sender responds", req.ID, a.ID, models.FriendActionAccept, apperr.KindForbidden, apperr.ReasonNotRequestReceiver},
		{"empty action", req.ID, b.ID, "", apperr.KindInvalidInput, apperr.ReasonValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.rel.RespondToRequest(ctx, tt.requestID, tt.responder, tt.action)
			assertAppErr(t, err, tt.kind, tt.reason)
		})
	}

	stored, err := f.store.Requests.GetByID(ctx, req.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != models.FriendRequestStatusPending {
		t.Errorf("status = %s after failed responses, want pending", stored.Status)
	}
}

func TestRejectThenRespondAgainIsNotPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createUser(t, "Alice", "alice@example.com")
	b := f.createUser(t, "Bob", "bob@example.com")
	req, _ := f.rel.SubmitRequest(ctx, a.ID, b.ID)

	if _, err := f.rel.RespondToRequest(ctx, req.ID, b.ID, models.FriendActionReject); err != nil {
		t.Fatalf("reject: %v", err)
	}
	_, err := f.rel.RespondToRequest(ctx, req.ID, b.ID, models.FriendActionAccept)
	assertAppErr(t, err, apperr.KindConflict, apperr.ReasonRequestNotPending)
	if f.reload(t, a.ID).IsFriendOf(b.ID) {
		t.Error("rejected pair became friends")
	}
}

func TestReconciliationIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createUser(t, "Alice", "alice@example.com")
	b := f.createUser(t, "Bob", "bob@example.com")
	req, _ := f.rel.SubmitRequest(ctx, a.ID, b.ID)
	if _, err := f.rel.RespondToRequest(ctx, req.ID, b.ID, models.FriendActionAccept); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// 模拟第二次写入失败：a 侧缺失
	if err := f.store.Users.Pull(ctx, a.ID, models.LinkFriends, b.ID); err != nil {
		t.Fatalf("Pull: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := f.rel.RespondToRequest(ctx, req.ID, b.ID, models.FriendActionAccept); err != nil {
			t.Fatalf("re-accept %d: %v", i, err)
		}
		if err := f.rel.ReconcilePair(ctx, a.ID, b.ID); err != nil {
			t.Fatalf("ReconcilePair %d: %v", i, err)
		}
	}

	ua, ub := f.reload(t, a.ID), f.reload(t, b.ID)
	if len(ua.Friends) != 1 || ua.Friends[0] != b.ID {
		t.Errorf("a.friends = %v", ua.Friends)
	}
	if len(ub.Friends) != 1 || ub.Friends[0] != a.ID {
		t.Errorf("b.friends = %v", ub.Friends)
	}
}

func TestRemoveFriendThenResubmitTakesReconciliationPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createUser(t, "Alice", "alice@example.com")
	b := f.createUser(t, "Bob", "bob@example.com")
	f.befriend(t, a, b)

	if err := f.rel.RemoveFriend(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("RemoveFriend: %v", err)
	}
	if f.reload(t, a.ID).IsFriendOf(b.ID) || f.reload(t, b.ID).IsFriendOf(a.ID) {
		t.Fatal("friendship not removed on both sides")
	}
	// 再次移除不报错
	if err := f.rel.RemoveFriend(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("second RemoveFriend: %v", err)
	}

	// accepted 记录被保留，重新提交直接恢复好友关系，而不是产生新的 pending 请求
	req, err := f.rel.SubmitRequest(ctx, a.ID, b.ID)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if req.Status != models.FriendRequestStatusAccepted {
		t.Errorf("status = %s, want accepted", req.Status)
	}
	if !f.reload(t, a.ID).IsFriendOf(b.ID) || !f.reload(t, b.ID).IsFriendOf(a.ID) {
		t.Error("friendship not restored by reconciliation")
	}
}

func TestRemoveFriendSelf(t *testing.T) {
	f := newFixture(t)
	a := f.createUser(t, "Alice", "alice@example.com")
	err := f.rel.RemoveFriend(context.Background(), a.ID, a.ID)
	assertAppErr(t, err, apperr.KindInvalidInput, apperr.ReasonSelfRemoveNotAllowed)
}

func TestListContactsAndPendingRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createUser(t, "Alice", "alice@example.com")
	b := f.createUser(t, "Bob", "bob@example.com")
	c := f.createUser(t, "Carol", "carol@example.com")
	d := f.createUser(t, "Dave", "dave@example.com")

	f.befriend(t, a, b)
	if _, err := f.rel.SubmitRequest(ctx, c.ID, a.ID); err != nil {
		t.Fatalf("submit c->a: %v", err)
	}
	if _, err := f.rel.SubmitRequest(ctx, a.ID, d.ID); err != nil {
		t.Fatalf("submit a->d: %v", err)
	}

	contacts, err := f.rel.ListContacts(ctx, a.ID)
	if err != nil {
		t.Fatalf("ListContacts: %v", err)
	}
	if len(contacts) != 1 || contacts[0].ID != b.ID || contacts[0].Email != b.Email {
		t.Errorf("contacts = %+v", contacts)
	}

	incoming, err := f.rel.ListIncoming(ctx, a.ID)
	if err != nil {
		t.Fatalf("ListIncoming: %v", err)
	}
	if len(incoming) != 1 || incoming[0].Sender == nil || incoming[0].Sender.ID != c.ID {
		t.Errorf("incoming = %+v", incoming)
	}

	outgoing, err := f.rel.ListOutgoing(ctx, a.ID)
	if err != nil {
		t.Fatalf("ListOutgoing: %v", err)
	}
	if len(outgoing) != 1 || outgoing[0].Receiver == nil || outgoing[0].Receiver.ID != d.ID {
		t.Errorf("outgoing = %+v", outgoing)
	}
}

func TestSyncFriendsRepairsAcceptedPairs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createUser(t, "Alice", "alice@example.com")
	b := f.createUser(t, "Bob", "bob@example.com")
	c := f.createUser(t, "Carol", "carol@example.com")
	f.befriend(t, a, b)
	f.befriend(t, c, a)

	for _, id := range []string{b.ID, c.ID} {
		if err := f.store.Users.Pull(ctx, a.ID, models.LinkFriends, id); err != nil {
			t.Fatalf("Pull: %v", err)
		}
	}
	if err := f.store.Users.Pull(ctx, c.ID, models.LinkFriends, a.ID); err != nil {
		t.Fatalf("Pull: %v", err)
	}

	res, err := f.rel.SyncFriends(ctx, a.ID)
	if err != nil {
		t.Fatalf("SyncFriends: %v", err)
	}
	if res.Synced != 2 {
		t.Errorf("synced = %d, want 2", res.Synced)
	}
	if len(res.Friends) != 2 || !contains(res.Friends, b.ID) || !contains(res.Friends, c.ID) {
		t.Errorf("friends = %v", res.Friends)
	}
	if !f.reload(t, c.ID).IsFriendOf(a.ID) {
		t.Error("c.friends not repaired")
	}
}

func TestReconcilePairIgnoresNonAcceptedPairs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createUser(t, "Alice", "alice@example.com")
	b := f.createUser(t, "Bob", "bob@example.com")

	if err := f.rel.ReconcilePair(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("ReconcilePair without request: %v", err)
	}
	if _, err := f.rel.SubmitRequest(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("SubmitRequest: %v", err)
	}
	if err := f.rel.ReconcilePair(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("ReconcilePair pending: %v", err)
	}
	if f.reload(t, a.ID).IsFriendOf(b.ID) {
		t.Error("pending pair reconciled into friends")
	}
}

func TestPublishFailureDoesNotFailSubmit(t *testing.T) {
	f := newFixture(t)
	f.producer.fail = errors.New("broker down")
	a := f.createUser(t, "Alice", "alice@example.com")
	b := f.createUser(t, "Bob", "bob@example.com")

	if _, err := f.rel.SubmitRequest(context.Background(), a.ID, b.ID); err != nil {
		t.Fatalf("SubmitRequest with failing producer: %v", err)
	}
}

// racingRequests 模拟并发：FindByPair 看不到另一个请求刚写入的记录。
type racingRequests struct {
	storage.FriendRequestRepository
}

func (racingRequests) FindByPair(context.Context, string, string) (*models.FriendRequest, error) {
	return nil, storage.ErrNotFound
}

// flakyUsers 让第 failOn 次 AddToSet 调用失败一次。
type flakyUsers struct {
	storage.UserRepository
	calls  int
	failOn int
}

func (u *flakyUsers) AddToSet(ctx context.Context, ownerID string, kind models.LinkKind, targetID string) error {
	u.calls++
	if u.calls == u.failOn {
		return errors.New("connection reset")
	}
	return u.UserRepository.AddToSet(ctx, ownerID, kind, targetID)
}

func (f *fixture) relationshipWith(users storage.UserRepository, requests storage.FriendRequestRepository) *relationshipService {
	svc := NewRelationshipService(users, requests, f.rel.events, zap.NewNop()).(*relationshipService)
	svc.now = f.rel.now
	return svc
}

func TestConcurrentReverseSubmitIsPendingConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createUser(t, "Alice", "alice@example.com")
	b := f.createUser(t, "Bob", "bob@example.com")

	if _, err := f.rel.SubmitRequest(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("SubmitRequest: %v", err)
	}

	racing := f.relationshipWith(f.store.Users, racingRequests{f.store.Requests})
	_, err := racing.SubmitRequest(ctx, b.ID, a.ID)
	assertAppErr(t, err, apperr.KindConflict, apperr.ReasonRequestAlreadyPending)

	outgoing, err := f.rel.ListOutgoing(ctx, a.ID)
	if err != nil {
		t.Fatalf("ListOutgoing: %v", err)
	}
	if len(outgoing) != 1 || outgoing[0].ReceiverID != b.ID {
		t.Errorf("outgoing = %+v", outgoing)
	}
}

func TestAcceptWithFailedSecondWriteIsUnavailableAndRecoverable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createUser(t, "Alice", "alice@example.com")
	b := f.createUser(t, "Bob", "bob@example.com")

	req, err := f.rel.SubmitRequest(ctx, a.ID, b.ID)
	if err != nil {
		t.Fatalf("SubmitRequest: %v", err)
	}

	flaky := f.relationshipWith(&flakyUsers{UserRepository: f.store.Users, failOn: 2}, f.store.Requests)
	_, err = flaky.RespondToRequest(ctx, req.ID, b.ID, models.FriendActionAccept)
	assertAppErr(t, err, apperr.KindUnavailable, apperr.ReasonStoreUnavailable)

	stored, err := f.store.Requests.GetByID(ctx, req.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != models.FriendRequestStatusAccepted {
		t.Fatalf("status = %s, want accepted", stored.Status)
	}
	ua, ub := f.reload(t, a.ID), f.reload(t, b.ID)
	if ua.IsFriendOf(b.ID) == ub.IsFriendOf(a.ID) {
		t.Fatalf("expected one-sided friendship, a=%v b=%v", ua.Friends, ub.Friends)
	}

	// 重新提交走修复路径
	again, err := f.rel.SubmitRequest(ctx, a.ID, b.ID)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if again.ID != req.ID || again.Status != models.FriendRequestStatusAccepted {
		t.Errorf("resubmit = %+v", again)
	}
	if !f.reload(t, a.ID).IsFriendOf(b.ID) || !f.reload(t, b.ID).IsFriendOf(a.ID) {
		t.Error("friends sets not restored")
	}
}

func TestRemoveFriendValidationNamesFields(t *testing.T) {
	f := newFixture(t)
	a := f.createUser(t, "Alice", "alice@example.com")

	err := f.rel.RemoveFriend(context.Background(), a.ID, "")
	assertAppErr(t, err, apperr.KindInvalidInput, apperr.ReasonValidationFailed)
	if msg := apperr.MessageOf(err); !strings.Contains(msg, "OtherID") {
		t.Errorf("message = %q, want it to name OtherID", msg)
	}
}
