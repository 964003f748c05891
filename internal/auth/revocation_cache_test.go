package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestCache(t *testing.T) (*RevocationCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRevocationCache(client, zap.NewNop()), mr
}

func TestRevocationCacheMarkAndCheck(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	assert.False(t, cache.IsRevoked(ctx, "token-a"))

	cache.MarkRevoked(ctx, "token-a", time.Minute)
	assert.True(t, cache.IsRevoked(ctx, "token-a"))
	assert.False(t, cache.IsRevoked(ctx, "token-b"))
}

func TestRevocationCacheMarkerLapsesWithNaturalExpiry(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	cache.MarkRevoked(ctx, "token-a", time.Minute)
	mr.FastForward(2 * time.Minute)

	// The marker is only needed until the token would have expired on its
	// own; afterwards the ledger row (or its absence) answers.
	assert.False(t, cache.IsRevoked(ctx, "token-a"))
}

func TestRevocationCacheNilClient(t *testing.T) {
	cache := NewRevocationCache(nil, zap.NewNop())
	ctx := context.Background()

	// Degrades to "not revoked" so callers fall back to the ledger.
	cache.MarkRevoked(ctx, "token-a", time.Minute)
	assert.False(t, cache.IsRevoked(ctx, "token-a"))
}

func TestRevocationCacheRedisDown(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	cache.MarkRevoked(ctx, "token-a", time.Minute)
	mr.Close()

	assert.False(t, cache.IsRevoked(ctx, "token-a"))
}
