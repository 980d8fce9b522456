package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"stayprivate/internal/apperr"
	"stayprivate/internal/auth"
	"stayprivate/internal/config"
)

// contextKey 是用于在 context.Context 中存储值的自定义类型，以避免键冲突。
type contextKey string

const (
	// UserIDKey 是用于在上下文中存储用户ID的键。
	UserIDKey contextKey = "userID"
	// ClaimsKey 存储完整的 JWT 声明，登出时需要其中的 jti 和过期时间。
	ClaimsKey contextKey = "claims"
)

// TokenFromRequest 依次从 Authorization: Bearer 头和认证 Cookie 中取出 Token。
func TokenFromRequest(r *http.Request, cookieName string) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookie, err := r.Cookie(cookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// AuthMiddleware 验证 JWT 并把调用者身份放入请求上下文。
func AuthMiddleware(authCfg config.AuthConfig, blacklist auth.TokenBlacklist, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := TokenFromRequest(r, authCfg.CookieName)
			if tokenString == "" {
				writeUnauthenticated(w, apperr.ReasonUnauthenticated, "请求未包含授权令牌")
				return
			}

			claims, err := auth.ValidateToken(r.Context(), tokenString, authCfg.JWTSecretKey, blacklist)
			if err != nil {
				if !errors.Is(err, auth.ErrTokenInvalid) && !errors.Is(err, auth.ErrTokenRevoked) {
					// 黑名单不可用时不能当作未登录处理
					log.Error("token validation failed", zap.Error(err))
					writeError(w, http.StatusServiceUnavailable, apperr.ReasonStoreUnavailable, "服务暂时不可用，请稍后重试")
					return
				}
				writeUnauthenticated(w, apperr.ReasonInvalidToken, "令牌无效或已过期")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserIDFromContext 从上下文中获取用户ID。
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok && userID != ""
}

// GetClaimsFromContext 从上下文中获取 JWT 声明。
func GetClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*auth.Claims)
	return claims, ok
}

// WithUserID returns a copy of ctx carrying userID, as the middleware would set it.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

func writeUnauthenticated(w http.ResponseWriter, reason, message string) {
	writeError(w, http.StatusUnauthorized, reason, message)
}

func writeError(w http.ResponseWriter, status int, reason, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"ok":      false,
		"error":   reason,
		"message": message,
	})
}
