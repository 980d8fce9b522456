package apperr

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
)

func TestKindAndReasonSurviveWrapping(t *testing.T) {
	base := New(KindConflict, ReasonAlreadyFriends, "已经是好友")
	wrapped := errors.Wrap(base, "submit request")

	if got := KindOf(wrapped); got != KindConflict {
		t.Fatalf("KindOf = %v, want Conflict", got)
	}
	if got := ReasonOf(wrapped); got != ReasonAlreadyFriends {
		t.Fatalf("ReasonOf = %q, want %q", got, ReasonAlreadyFriends)
	}
}

func TestPlainErrorIsInternal(t *testing.T) {
	err := errors.New("boom")
	if KindOf(err) != KindInternal {
		t.Fatalf("plain error should be internal")
	}
	if ReasonOf(err) != ReasonInternal {
		t.Fatalf("plain error reason = %q", ReasonOf(err))
	}
	if HTTPStatus(err) != http.StatusInternalServerError {
		t.Fatalf("plain error status = %d", HTTPStatus(err))
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindUnauthenticated: http.StatusUnauthorized,
		KindNotFound:        http.StatusNotFound,
		KindForbidden:       http.StatusForbidden,
		KindConflict:        http.StatusConflict,
		KindInvalidInput:    http.StatusBadRequest,
		KindUnavailable:     http.StatusServiceUnavailable,
	}
	for kind, want := range cases {
		if got := HTTPStatus(New(kind, "r", "m")); got != want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", kind, got, want)
		}
	}
}

func TestUnavailableKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Unavailable(errors.Wrap(cause, "find user"), "存储不可用")
	if !errors.Is(err, cause) {
		t.Fatalf("errors.Is should reach the wrapped cause")
	}
	if ReasonOf(err) != ReasonStoreUnavailable {
		t.Fatalf("reason = %q", ReasonOf(err))
	}
}
