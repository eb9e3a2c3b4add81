package services

import (
	"context"
	"errors"
	"testing"

	"github.com/nimasrn/gpu-savings-gateway/internal/repository"
	"github.com/stretchr/testify/assert"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthService_Check(t *testing.T) {
	ctx := context.Background()

	t.Run("sqlite database", func(t *testing.T) {
		r := NewHealthService(repository.SetupTestDB(t), nil).Check(ctx)
		assert.True(t, r.Healthy())
		assert.Equal(t, "connected", r.Database)
		assert.Empty(t, r.Cache)
	})

	t.Run("cache down", func(t *testing.T) {
		ok := pingFunc(func(context.Context) error { return nil })
		down := pingFunc(func(context.Context) error { return errors.New("dial tcp: refused") })

		r := NewHealthService(ok, down).Check(ctx)
		assert.False(t, r.Healthy())
		assert.Equal(t, "connected", r.Database)
		assert.Contains(t, r.Cache, "refused")
	})
}
