package auth

import (
	"context"
	"time"
)

// TokenBlacklist 定义了已吊销 Token 的存储接口，以 jti 为键。
type TokenBlacklist interface {
	// Add 将 jti 加入黑名单，Token 原本过期之后条目可以被清理。
	Add(ctx context.Context, jti string, originalTokenExpTime time.Time) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}
