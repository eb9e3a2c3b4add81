package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/gpu-savings-gateway/internal/model"
	"github.com/nimasrn/gpu-savings-gateway/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*miniredis.Miniredis, *Limiter) {
	mr := miniredis.RunT(t)
	adapter, err := redis.NewRedisAdapter(t.Name()+"-"+mr.Addr(), "", &redis.Options{Addrs: []string{mr.Addr()}})
	require.NoError(t, err)
	return mr, New(adapter, time.Hour)
}

func TestLimiter_FreeTier(t *testing.T) {
	_, l := setup(t)
	fixed := time.Date(2026, 1, 1, 10, 15, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }
	ctx := context.Background()
	c := &model.Customer{ID: 1, Tier: model.TierFree}

	for i := 0; i < 100; i++ {
		d := l.Allow(ctx, c)
		require.True(t, d.Allowed, "request %d", i+1)
	}
	d := l.Allow(ctx, c)
	assert.False(t, d.Allowed)
	assert.Equal(t, 100, d.Limit)
	assert.Zero(t, d.Remaining)
	assert.Equal(t, 45*time.Minute, d.RetryAfter)

	l.now = func() time.Time { return fixed.Add(time.Hour) }
	assert.True(t, l.Allow(ctx, c).Allowed, "next window starts fresh")
}

func TestLimiter_CustomersAreIndependent(t *testing.T) {
	_, l := setup(t)
	ctx := context.Background()
	a := &model.Customer{ID: 1, Tier: model.TierFree}
	b := &model.Customer{ID: 2, Tier: model.TierFree}

	for i := 0; i < 100; i++ {
		l.Allow(ctx, a)
	}
	assert.False(t, l.Allow(ctx, a).Allowed)
	d := l.Allow(ctx, b)
	assert.True(t, d.Allowed)
	assert.Equal(t, 99, d.Remaining)
}

func TestLimiter_EnterpriseIsUnlimited(t *testing.T) {
	mr, l := setup(t)
	d := l.Allow(context.Background(), &model.Customer{ID: 3, Tier: model.TierEnterprise})
	assert.True(t, d.Allowed)
	assert.Empty(t, mr.Keys())
}

func TestLimiter_FailsOpen(t *testing.T) {
	mr, l := setup(t)
	mr.Close()
	d := l.Allow(context.Background(), &model.Customer{ID: 4, Tier: model.TierFree})
	assert.True(t, d.Allowed)
}
