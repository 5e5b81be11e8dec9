package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goRedis "github.com/redis/go-redis/v9"

	"goinvault/internal/observability/metrics"
)

// DefaultNonceTTL bounds how long a consumed claim nonce is remembered.
// Message nonces are epoch milliseconds, so a day of history is far
// beyond any window in which a replayed signature could look fresh.
const DefaultNonceTTL = 24 * time.Hour

// Client wraps go-redis and exposes the consumed-nonce replay guard.
type Client struct {
	rdb      *goRedis.Client
	nonceTTL time.Duration
}

// New creates a Redis client and verifies connectivity.
func New(addr string) (*Client, error) {
	rdb := goRedis.NewClient(&goRedis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Client{rdb: rdb, nonceTTL: DefaultNonceTTL}, nil
}

// Close shuts down the underlying Redis client.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// ConsumeNonce atomically records a (claimant, nonce) pair and reports
// whether it was fresh. A second call with the same pair returns false,
// which the settlement service turns into a replay rejection.
func (c *Client) ConsumeNonce(ctx context.Context, claimant string, nonce int64) (bool, error) {
	start := time.Now()
	defer metrics.ObserveRedisOperation("consume_nonce", time.Since(start))
	fresh, err := c.rdb.SetNX(ctx, c.NonceKey(claimant, nonce), 1, c.nonceTTL).Result()
	if err != nil {
		return false, fmt.Errorf("record consumed nonce: %w", err)
	}
	return fresh, nil
}

// NonceKey returns the Redis key guarding one claim nonce. Addresses
// are lowercased so checksummed and plain hex spellings collide.
func (c *Client) NonceKey(claimant string, nonce int64) string {
	return fmt.Sprintf("claim:%s:nonce:%d", strings.ToLower(claimant), nonce)
}
