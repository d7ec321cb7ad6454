package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// ResolveSession maps a bearer token to a user id. The hosted auth system
// writes these keys; an unknown token resolves to an empty user id, not an
// error.
func (c *Client) ResolveSession(ctx context.Context, token string) (string, error) {
	userID, err := c.rdb.Get(ctx, fmt.Sprintf("session:%s", token)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return userID, nil
}

// ClaimWebhookEvent claims a provider event delivery exactly once. Returns
// true when this delivery is the first one seen. The claim is advisory: the
// conditional order transition stays the real idempotency guard, this just
// short-circuits obvious redeliveries.
func (c *Client) ClaimWebhookEvent(ctx context.Context, provider, eventID string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("webhook:%s:%s", provider, eventID), "1", ttl).Result()
}
