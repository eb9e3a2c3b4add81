package helpers

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/gpu-savings-gateway/internal/auth"
	"github.com/nimasrn/gpu-savings-gateway/internal/model"
	"github.com/nimasrn/gpu-savings-gateway/internal/repository"
	"github.com/nimasrn/gpu-savings-gateway/pkg/pg"
	"github.com/nimasrn/gpu-savings-gateway/pkg/redis"
	"github.com/stretchr/testify/require"
)

func SetupTestDB(t *testing.T) *pg.DB {
	return repository.SetupTestDB(t)
}

// SetupTestRedis starts a miniredis bound to the test lifetime. The adapter
// name is unique per test because adapters are cached by name.
func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr := miniredis.RunT(t)

	adapter, err := redis.NewRedisAdapter(t.Name()+"-"+mr.Addr(), "", &redis.Options{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

// CreateTestCustomer inserts a customer on tier with a freshly generated key.
func CreateTestCustomer(t *testing.T, db *pg.DB, email string, tier model.Tier) *model.Customer {
	key, err := auth.GenerateAPIKey()
	require.NoError(t, err)

	c, err := repository.NewCustomerRepository(db).Create(context.Background(), &model.Customer{
		Email:  email,
		Tier:   tier,
		APIKey: key,
	})
	require.NoError(t, err)
	c.APIKey = key
	return c
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func Ptr[T any](v T) *T {
	return &v
}
