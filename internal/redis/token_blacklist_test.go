package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"stayprivate/internal/config"
)

// Needs a disposable Redis at REDIS_TEST_ADDR.
func TestRedisTokenBlacklist(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	ctx := context.Background()
	client, err := NewClient(ctx, config.RedisConfig{Addr: addr})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	bl := NewRedisTokenBlacklist(client)
	jti := uuid.NewString()

	revoked, err := bl.IsBlacklisted(ctx, jti)
	if err != nil || revoked {
		t.Fatalf("fresh jti revoked=%v err=%v", revoked, err)
	}
	if err := bl.Add(ctx, jti, time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	revoked, err = bl.IsBlacklisted(ctx, jti)
	if err != nil || !revoked {
		t.Fatalf("after Add revoked=%v err=%v", revoked, err)
	}
	ttl := client.TTL(ctx, blacklistKeyPrefix+jti).Val()
	if ttl <= 0 || ttl > time.Minute {
		t.Fatalf("ttl = %v", ttl)
	}

	expired := uuid.NewString()
	if err := bl.Add(ctx, expired, time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("Add expired: %v", err)
	}
	if revoked, _ := bl.IsBlacklisted(ctx, expired); revoked {
		t.Fatalf("expired token should not be stored")
	}
}
