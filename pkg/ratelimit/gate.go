// Package ratelimit implements a shared request gate for OFS rate limits.
// OFS signals throttling through 429 responses with a Retry-After header;
// the gate stores the cooldown deadline in Redis so all client instances
// back off together instead of each discovering the limit separately.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Redis key for the shared cooldown deadline (unix seconds).
const RedisKeyBlockedUntil = "ofs:ratelimit:blocked_until"

// DefaultCooldown is applied when a 429 response carries no Retry-After header.
const DefaultCooldown = 30 * time.Second

// Prometheus metrics for the rate-limit gate.
var (
	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ofs_rate_limit_blocks_total",
		Help: "Total number of requests blocked during an active cooldown",
	})

	rateLimitTripsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ofs_rate_limit_trips_total",
		Help: "Total number of cooldowns recorded from 429 responses",
	})

	rateLimitCooldownSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ofs_rate_limit_cooldown_seconds",
		Help: "Duration of the most recently recorded cooldown in seconds",
	})
)

// Gate blocks requests while a shared cooldown is active.
type Gate struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewGate creates a rate-limit gate backed by Redis.
func NewGate(redisClient *redis.Client, logger zerolog.Logger) *Gate {
	return &Gate{
		redis:  redisClient,
		logger: logger,
	}
}

// Allow reports whether a request may proceed. It returns false while the
// shared cooldown deadline lies in the future.
func (g *Gate) Allow(ctx context.Context) (bool, error) {
	deadline, err := g.redis.Get(ctx, RedisKeyBlockedUntil).Int64()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("get cooldown deadline: %w", err)
	}

	until := time.Unix(deadline, 0)
	if time.Now().Before(until) {
		rateLimitBlocksTotal.Inc()
		g.logger.Warn().
			Time("blocked_until", until).
			Msg("Request blocked by active cooldown")
		return false, nil
	}
	return true, nil
}

// Trip records a cooldown of the given duration, typically parsed from a
// Retry-After header. Non-positive durations fall back to DefaultCooldown.
func (g *Gate) Trip(ctx context.Context, cooldown time.Duration) error {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}

	deadline := time.Now().Add(cooldown).Unix()
	if err := g.redis.Set(ctx, RedisKeyBlockedUntil, deadline, cooldown).Err(); err != nil {
		return fmt.Errorf("set cooldown deadline: %w", err)
	}

	rateLimitTripsTotal.Inc()
	rateLimitCooldownSeconds.Set(cooldown.Seconds())
	g.logger.Warn().
		Dur("cooldown", cooldown).
		Msg("Rate limit tripped, cooldown recorded")
	return nil
}

// Reset clears any active cooldown. Intended for tests and manual recovery.
func (g *Gate) Reset(ctx context.Context) error {
	if err := g.redis.Del(ctx, RedisKeyBlockedUntil).Err(); err != nil {
		return fmt.Errorf("clear cooldown deadline: %w", err)
	}
	return nil
}
