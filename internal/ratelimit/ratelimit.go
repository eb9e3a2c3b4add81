package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/nimasrn/gpu-savings-gateway/internal/model"
	"github.com/nimasrn/gpu-savings-gateway/pkg/logger"
	"github.com/nimasrn/gpu-savings-gateway/pkg/redis"
)

const (
	DefaultWindow = time.Hour
	keyPrefix     = "rl:cust:"
)

type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter is a fixed-window per-customer request counter. The limit comes from
// the customer's tier; a zero limit is unlimited.
type Limiter struct {
	redis  redis.RedisAdapter
	window time.Duration
	now    func() time.Time
}

func New(adapter redis.RedisAdapter, window time.Duration) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{redis: adapter, window: window, now: time.Now}
}

// Allow counts one request for c. Redis failures allow the request.
func (l *Limiter) Allow(ctx context.Context, c *model.Customer) Decision {
	limit := model.LimitsFor(c.Tier).RequestsPerHour
	if limit == model.Unlimited {
		return Decision{Allowed: true}
	}

	now := l.now()
	slot := now.UnixNano() / int64(l.window)
	key := keyPrefix + strconv.FormatInt(c.ID, 10) + ":" + strconv.FormatInt(slot, 10)

	n, err := l.redis.IncrWithTTL(ctx, key, 2*l.window)
	if err != nil {
		logger.Warn("rate limit check failed, allowing request", "customer_id", c.ID, "error", err)
		return Decision{Allowed: true, Limit: limit, Remaining: limit}
	}

	d := Decision{Allowed: n <= int64(limit), Limit: limit}
	if remaining := int64(limit) - n; remaining > 0 {
		d.Remaining = int(remaining)
	}
	if !d.Allowed {
		d.RetryAfter = time.Duration((slot+1)*int64(l.window) - now.UnixNano())
	}
	return d
}
