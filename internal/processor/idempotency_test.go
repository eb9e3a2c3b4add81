package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/gpu-savings-gateway/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	t.Helper()
	mr := miniredis.RunT(t)
	adapter, err := redis.NewRedisAdapter(t.Name()+"-"+mr.Addr(), "", &redis.Options{Addrs: []string{mr.Addr()}})
	require.NoError(t, err)
	return mr, adapter
}

func TestIdempotency_AcquireFirstAttempt(t *testing.T) {
	mr, adapter := setupRedis(t)
	svc := NewIdempotencyService(adapter, DefaultIdempotencyConfig())

	claim, err := svc.Acquire(context.Background(), "ev-1")
	require.NoError(t, err)
	assert.Equal(t, "ev-1", claim.EventID)
	assert.Equal(t, 0, claim.RetryCount)
	assert.False(t, claim.IsRetry())
	assert.True(t, claim.held)
	assert.True(t, mr.Exists("lock:ev-1"))
}

func TestIdempotency_ConcurrentAcquire(t *testing.T) {
	_, adapter := setupRedis(t)
	svc := NewIdempotencyService(adapter, DefaultIdempotencyConfig())
	ctx := context.Background()

	_, err := svc.Acquire(ctx, "ev-2")
	require.NoError(t, err)

	second, err := svc.Acquire(ctx, "ev-2")
	assert.ErrorIs(t, err, ErrLockAcquireFailed)
	assert.Nil(t, second)
}

func TestIdempotency_LockExpires(t *testing.T) {
	mr, adapter := setupRedis(t)
	cfg := DefaultIdempotencyConfig()
	cfg.LockTTL = time.Second
	svc := NewIdempotencyService(adapter, cfg)
	ctx := context.Background()

	_, err := svc.Acquire(ctx, "ev-3")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	_, err = svc.Acquire(ctx, "ev-3")
	assert.NoError(t, err)
}

func TestIdempotency_MarkSuccess(t *testing.T) {
	mr, adapter := setupRedis(t)
	svc := NewIdempotencyService(adapter, DefaultIdempotencyConfig())
	ctx := context.Background()

	claim, err := svc.Acquire(ctx, "ev-4")
	require.NoError(t, err)
	require.NoError(t, svc.MarkFailure(ctx, claim, errors.New("boom")))

	claim, err = svc.Acquire(ctx, "ev-4")
	require.NoError(t, err)
	require.NoError(t, svc.MarkSuccess(ctx, claim))

	done, err := svc.IsProcessed(ctx, "ev-4")
	require.NoError(t, err)
	assert.True(t, done)
	assert.False(t, mr.Exists("lock:ev-4"))
	assert.False(t, mr.Exists("retry:ev-4"))

	_, err = svc.Acquire(ctx, "ev-4")
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestIdempotency_MarkFailureCountsRetries(t *testing.T) {
	_, adapter := setupRedis(t)
	svc := NewIdempotencyService(adapter, DefaultIdempotencyConfig())
	ctx := context.Background()

	claim, err := svc.Acquire(ctx, "ev-5")
	require.NoError(t, err)
	require.NoError(t, svc.MarkFailure(ctx, claim, nil))

	claim, err = svc.Acquire(ctx, "ev-5")
	require.NoError(t, err)
	assert.Equal(t, 1, claim.RetryCount)
	assert.True(t, claim.IsRetry())

	n, err := svc.RetryCount(ctx, "ev-5")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIdempotency_MaxRetriesExceeded(t *testing.T) {
	_, adapter := setupRedis(t)
	cfg := DefaultIdempotencyConfig()
	cfg.MaxRetries = 2
	svc := NewIdempotencyService(adapter, cfg)
	ctx := context.Background()

	for i := 0; i < cfg.MaxRetries; i++ {
		claim, err := svc.Acquire(ctx, "ev-6")
		require.NoError(t, err)
		require.NoError(t, svc.MarkFailure(ctx, claim, nil))
	}

	claim, err := svc.Acquire(ctx, "ev-6")
	assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
	assert.Nil(t, claim)
}

func TestIdempotency_Release(t *testing.T) {
	_, adapter := setupRedis(t)
	svc := NewIdempotencyService(adapter, DefaultIdempotencyConfig())
	ctx := context.Background()

	claim, err := svc.Acquire(ctx, "ev-7")
	require.NoError(t, err)
	require.NoError(t, svc.Release(ctx, claim))
	assert.False(t, claim.held)
	require.NoError(t, svc.Release(ctx, claim))

	_, err = svc.Acquire(ctx, "ev-7")
	assert.NoError(t, err)
}
