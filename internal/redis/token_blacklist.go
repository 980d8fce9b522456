package redis

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"stayprivate/internal/auth"
	"stayprivate/internal/config"
)

const blacklistKeyPrefix = "bl:jti:"

// NewClient 根据配置创建 Redis 客户端并检查连通性。
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "无法连接到 Redis %s", cfg.Addr)
	}
	return client, nil
}

// redisTokenBlacklist 是 auth.TokenBlacklist 接口的 Redis 实现
type redisTokenBlacklist struct {
	client redis.Cmdable
}

// NewRedisTokenBlacklist 创建一个新的 redisTokenBlacklist 实例。
func NewRedisTokenBlacklist(client redis.Cmdable) auth.TokenBlacklist {
	return &redisTokenBlacklist{client: client}
}

// Add 将 jti 写入 Redis，过期时间与 Token 本身一致，之后条目自动消失。
func (r *redisTokenBlacklist) Add(ctx context.Context, jti string, originalTokenExpTime time.Time) error {
	ttl := time.Until(originalTokenExpTime)
	if ttl <= 0 {
		// 已过期的 Token 会被 JWT 校验拒绝
		return nil
	}
	if err := r.client.Set(ctx, blacklistKeyPrefix+jti, "revoked", ttl).Err(); err != nil {
		return errors.Wrapf(err, "添加到 Redis 黑名单失败 jti=%s", jti)
	}
	return nil
}

func (r *redisTokenBlacklist) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, blacklistKeyPrefix+jti).Result()
	if err != nil {
		return false, errors.Wrapf(err, "从 Redis 黑名单检查失败 jti=%s", jti)
	}
	return n > 0, nil
}
