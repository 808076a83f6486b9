// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

package server

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RateLimiter enforces a fixed-window request budget per API key. The
// window is one minute; the counter key carries the minute stamp so
// stale windows expire on their own.
type RateLimiter struct {
	client    *redis.Client
	perMinute int
}

// NewRateLimiter creates a limiter over an existing redis client.
func NewRateLimiter(client *redis.Client, perMinute int) *RateLimiter {
	return &RateLimiter{client: client, perMinute: perMinute}
}

// Allow reports whether the key may make another request this minute.
func (rl *RateLimiter) Allow(ctx context.Context, keyID string) (bool, error) {
	now := time.Now()
	counterKey := fmt.Sprintf("ratelimit:%s:%d", keyID, now.Unix()/60)

	count, err := rl.client.Incr(ctx, counterKey).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit counter failed: %w", err)
	}
	if count == 1 {
		// First hit in this window owns the expiry.
		if err := rl.client.Expire(ctx, counterKey, 2*time.Minute).Err(); err != nil {
			return false, fmt.Errorf("rate limit expiry failed: %w", err)
		}
	}
	return count <= int64(rl.perMinute), nil
}
