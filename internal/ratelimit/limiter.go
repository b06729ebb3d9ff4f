// Package ratelimit provides redis-backed fixed-window limits for abuse-prone
// auth endpoints: per-IP request caps and per-email cooldowns.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	ipLimitWindow  = 15 * time.Minute
	ipLimitMax     = 10
	emailCooldown  = 2 * time.Minute
	defaultPurpose = "general"
)

// Limiter tracks request counts in Redis
type Limiter struct {
	client *redis.Client
}

func NewLimiter(client *redis.Client) *Limiter {
	return &Limiter{client: client}
}

func ipKey(ip, purpose string) string {
	return fmt.Sprintf("ratelimit:ip:%s:%s", purpose, ip)
}

// Email addresses are hashed before use as keys to keep PII out of Redis.
func emailKey(email string) string {
	sum := sha256.Sum256([]byte(email))
	return fmt.Sprintf("ratelimit:email:%s", hex.EncodeToString(sum[:]))
}

// CheckIPRateLimit reports whether the IP has exceeded the general window.
func (l *Limiter) CheckIPRateLimit(ctx context.Context, ip string) (bool, error) {
	return l.CheckIPRateLimitWithPurpose(ctx, ip, defaultPurpose)
}

// CheckIPRateLimitWithPurpose reports whether the IP has exceeded the window
// for a specific endpoint purpose.
func (l *Limiter) CheckIPRateLimitWithPurpose(ctx context.Context, ip, purpose string) (bool, error) {
	count, err := l.client.Get(ctx, ipKey(ip, purpose)).Int()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read rate limit counter: %w", err)
	}

	return count >= ipLimitMax, nil
}

// RecordIPRequest counts a request against the general window.
func (l *Limiter) RecordIPRequest(ctx context.Context, ip string) error {
	return l.RecordIPRequestWithPurpose(ctx, ip, defaultPurpose)
}

// RecordIPRequestWithPurpose counts a request against a purpose-scoped window.
func (l *Limiter) RecordIPRequestWithPurpose(ctx context.Context, ip, purpose string) error {
	key := ipKey(ip, purpose)

	pipe := l.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ipLimitWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record request: %w", err)
	}

	return nil
}

// CheckEmailCooldown reports whether an email-sending action for this address
// is still on cooldown.
func (l *Limiter) CheckEmailCooldown(ctx context.Context, email string) (bool, error) {
	exists, err := l.client.Exists(ctx, emailKey(email)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check email cooldown: %w", err)
	}

	return exists > 0, nil
}

// SetEmailCooldown starts the cooldown window for an address.
func (l *Limiter) SetEmailCooldown(ctx context.Context, email string) error {
	if err := l.client.Set(ctx, emailKey(email), "1", emailCooldown).Err(); err != nil {
		return fmt.Errorf("failed to set email cooldown: %w", err)
	}

	return nil
}
