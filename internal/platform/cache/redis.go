package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPingTimeout = 5 * time.Second

// New connects to Redis and verifies the connection. Sessions are the only
// tenant, so a single client is shared by the HTTP stack.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	return Open(ctx, &redis.Options{Addr: addr}, defaultPingTimeout)
}

// Open is New with explicit client options and ping timeout.
func Open(ctx context.Context, opts *redis.Options, timeout time.Duration) (*redis.Client, error) {
	client := redis.NewClient(opts)
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: ping %s: %w", opts.Addr, err)
	}
	return client, nil
}
