package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const revokedKeyPrefix = "auth:revoked:"

// RevocationCache keeps revocation markers in Redis so the bearer
// middleware can reject a revoked token without hitting Postgres. The
// ledger stays authoritative: cache misses and Redis outages fall through
// to it, so the cache is only ever a fast path.
type RevocationCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRevocationCache builds the cache. A nil client disables it.
func NewRevocationCache(client *redis.Client, logger *zap.Logger) *RevocationCache {
	return &RevocationCache{client: client, logger: logger}
}

// MarkRevoked records a revocation marker that lives until the token's
// natural expiry. Failures are logged, never surfaced: the ledger write
// has already happened.
func (c *RevocationCache) MarkRevoked(ctx context.Context, token string, ttl time.Duration) {
	if c == nil || c.client == nil || ttl <= 0 {
		return
	}
	if err := c.client.Set(ctx, revokedKey(token), 1, ttl).Err(); err != nil {
		c.logger.Warn("revocation cache write failed", zap.Error(err))
	}
}

// IsRevoked reports whether a revocation marker exists. Errors read as
// "not revoked" so the caller falls back to the ledger.
func (c *RevocationCache) IsRevoked(ctx context.Context, token string) bool {
	if c == nil || c.client == nil {
		return false
	}
	n, err := c.client.Exists(ctx, revokedKey(token)).Result()
	if err != nil {
		c.logger.Warn("revocation cache read failed", zap.Error(err))
		return false
	}
	return n > 0
}

func revokedKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return revokedKeyPrefix + hex.EncodeToString(sum[:])
}
