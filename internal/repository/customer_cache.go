package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/nimasrn/gpu-savings-gateway/internal/model"
	"github.com/nimasrn/gpu-savings-gateway/pkg/logger"
	"github.com/nimasrn/gpu-savings-gateway/pkg/redis"
)

const customerCachePrefix = "customer:key:"

type CustomerByKey interface {
	GetByAPIKey(ctx context.Context, apiKey string) (*model.Customer, error)
}

// CachedCustomerLookup is a read-through redis cache in front of the customer
// api key lookup. Only hits are cached. Redis failures fall through to the store.
type CachedCustomerLookup struct {
	store CustomerByKey
	cache redis.RedisAdapter
	ttl   time.Duration
}

func NewCachedCustomerLookup(store CustomerByKey, cache redis.RedisAdapter, ttl time.Duration) *CachedCustomerLookup {
	return &CachedCustomerLookup{store: store, cache: cache, ttl: ttl}
}

func (c *CachedCustomerLookup) GetByAPIKey(ctx context.Context, apiKey string) (*model.Customer, error) {
	key := cacheKey(apiKey)

	b, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		var cu model.Customer
		if jerr := json.Unmarshal(b, &cu); jerr == nil {
			cu.APIKey = apiKey
			return &cu, nil
		}
		logger.Warn("dropping undecodable cached customer", "key", key)
		_ = c.cache.Del(ctx, key)
	case !errors.Is(err, redis.NilError):
		logger.Warn("customer cache read failed", "error", err)
	}

	cu, err := c.store.GetByAPIKey(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	if b, err := json.Marshal(cu); err == nil {
		if err := c.cache.Set(ctx, key, b, c.ttl); err != nil {
			logger.Warn("customer cache write failed", "error", err)
		}
	}
	return cu, nil
}

// Invalidate drops the cached entry for apiKey.
func (c *CachedCustomerLookup) Invalidate(ctx context.Context, apiKey string) error {
	return c.cache.Del(ctx, cacheKey(apiKey))
}

// keys are stored hashed so raw credentials never appear in redis
func cacheKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return customerCachePrefix + hex.EncodeToString(sum[:])
}
