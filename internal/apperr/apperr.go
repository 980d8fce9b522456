// Package apperr 定义了服务层对外暴露的错误分类。
// 每个错误都带有一个 Kind（决定 HTTP 状态码）和一个稳定的 Reason 字符串（供客户端区分具体原因）。
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind 是错误的大类。
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindNotFound
	KindForbidden
	KindConflict
	KindInvalidInput
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "Unauthenticated"
	case KindNotFound:
		return "NotFound"
	case KindForbidden:
		return "Forbidden"
	case KindConflict:
		return "Conflict"
	case KindInvalidInput:
		return "InvalidInput"
	case KindUnavailable:
		return "Unavailable"
	default:
		return "Internal"
	}
}

// 稳定的原因字符串，客户端依赖这些值，不要随意修改。
const (
	ReasonUnauthenticated       = "Unauthenticated"
	ReasonInvalidToken          = "InvalidToken"
	ReasonInvalidCredentials    = "InvalidCredentials"
	ReasonAccountDisabled       = "AccountDisabled"
	ReasonEmailTaken            = "EmailTaken"
	ReasonValidationFailed      = "ValidationFailed"
	ReasonUserNotFound          = "UserNotFound"
	ReasonReceiverNotFound      = "ReceiverNotFound"
	ReasonRecipientNotFound     = "RecipientNotFound"
	ReasonRequestNotFound       = "RequestNotFound"
	ReasonSelfRequestNotAllowed = "SelfRequestNotAllowed"
	ReasonSelfMessageNotAllowed = "SelfMessageNotAllowed"
	ReasonSelfRemoveNotAllowed  = "SelfRemoveNotAllowed"
	ReasonAlreadyFriends        = "AlreadyFriends"
	ReasonRequestAlreadyPending = "RequestAlreadyPending"
	ReasonRelationshipBlocked   = "RelationshipBlocked"
	ReasonRequestNotPending     = "RequestNotPending"
	ReasonNotRequestReceiver    = "NotRequestReceiver"
	ReasonInvalidAction         = "InvalidAction"
	ReasonNotFriends            = "NotFriends"
	ReasonInvalidContent        = "InvalidContent"
	ReasonStoreUnavailable      = "StoreUnavailable"
	ReasonInternal              = "InternalError"
)

// Error 是带分类信息的应用错误。
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s/%s: %s: %v", e.Kind, e.Reason, e.Message, e.Err)
	}
	return fmt.Sprintf("%s/%s: %s", e.Kind, e.Reason, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New 创建一个不包含底层错误的应用错误。
func New(kind Kind, reason, message string) *Error {
	return &Error{Kind: kind, Reason: reason, Message: message}
}

// Wrap 用分类信息包装一个底层错误。
func Wrap(err error, kind Kind, reason, message string) *Error {
	return &Error{Kind: kind, Reason: reason, Message: message, Err: err}
}

// Unavailable 把存储层故障包装成可重试的错误。
func Unavailable(err error, message string) *Error {
	return Wrap(err, KindUnavailable, ReasonStoreUnavailable, message)
}

// KindOf 返回错误链中第一个应用错误的 Kind，不是应用错误时返回 KindInternal。
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// ReasonOf 返回错误链中第一个应用错误的 Reason。
func ReasonOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Reason
	}
	return ReasonInternal
}

// MessageOf 返回可以展示给用户的错误描述。
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "服务器内部错误"
}

// HTTPStatus 把错误映射到 HTTP 状态码。
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
