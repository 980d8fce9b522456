package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"stayprivate/internal/config"
)

const issuer = "stayprivate-api"

var (
	ErrTokenInvalid = errors.New("令牌无效")
	ErrTokenRevoked = errors.New("令牌已被吊销")
)

// Claims 是 JWT 中的自定义声明，嵌入了 jwt.RegisteredClaims。
// Subject 与 UserID 相同，ID (jti) 用于登出时加入黑名单。
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken 为指定用户生成一个新的 JWT。
func GenerateToken(userID, email, role string, authCfg config.AuthConfig) (string, *Claims, error) {
	jwtID, err := uuid.NewRandom()
	if err != nil {
		return "", nil, errors.Wrap(err, "生成 JWT ID 失败")
	}

	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(authCfg.JWTExpiry)),
			ID:        jwtID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(authCfg.JWTSecretKey))
	if err != nil {
		return "", nil, errors.Wrap(err, "生成 JWT 失败")
	}
	return tokenString, claims, nil
}

// ValidateToken 验证 JWT 的签名和有效期，并在提供 blacklist 时检查是否已被吊销。
func ValidateToken(ctx context.Context, tokenString string, jwtKey string, blacklist TokenBlacklist) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(jwtKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, errors.Wrap(ErrTokenInvalid, err.Error())
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}

	if blacklist != nil {
		if claims.ID == "" {
			return nil, errors.Wrap(ErrTokenInvalid, "缺少 jti")
		}
		revoked, err := blacklist.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			// 黑名单不可用时拒绝请求
			return nil, errors.Wrap(err, "检查 Token 黑名单失败")
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}

	return claims, nil
}
