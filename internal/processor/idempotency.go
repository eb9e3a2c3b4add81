package processor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nimasrn/gpu-savings-gateway/pkg/logger"
	"github.com/nimasrn/gpu-savings-gateway/pkg/redis"
)

var (
	ErrAlreadyProcessed   = errors.New("event already processed")
	ErrLockAcquireFailed  = errors.New("failed to acquire processing lock")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
)

type IdempotencyConfig struct {
	LockTTL      time.Duration
	ProcessedTTL time.Duration
	MaxRetries   int

	RetryKeyPrefix     string
	LockKeyPrefix      string
	ProcessedKeyPrefix string
}

func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		LockTTL:            30 * time.Second,
		ProcessedTTL:       24 * time.Hour,
		MaxRetries:         3,
		RetryKeyPrefix:     "retry:",
		LockKeyPrefix:      "lock:",
		ProcessedKeyPrefix: "processed:",
	}
}

// IdempotencyService guards usage events so that each one produces its
// alerts at most once, even when the stream redelivers it.
type IdempotencyService struct {
	redis  redis.RedisAdapter
	config IdempotencyConfig
}

func NewIdempotencyService(redisAdapter redis.RedisAdapter, config IdempotencyConfig) *IdempotencyService {
	return &IdempotencyService{
		redis:  redisAdapter,
		config: config,
	}
}

// Claim is a held processing lock for one event.
type Claim struct {
	EventID    string
	RetryCount int
	held       bool
}

func (c *Claim) IsRetry() bool { return c.RetryCount > 0 }

func (s *IdempotencyService) processedKey(id string) string { return s.config.ProcessedKeyPrefix + id }
func (s *IdempotencyService) lockKey(id string) string      { return s.config.LockKeyPrefix + id }
func (s *IdempotencyService) retryKey(id string) string     { return s.config.RetryKeyPrefix + id }

// Acquire returns ErrAlreadyProcessed for finished events, ErrMaxRetriesExceeded
// once the retry budget is spent and ErrLockAcquireFailed when another
// consumer holds the lock.
func (s *IdempotencyService) Acquire(ctx context.Context, eventID string) (*Claim, error) {
	done, err := s.IsProcessed(ctx, eventID)
	if err != nil {
		// a failed marker lookup must not stall the stream; the alert insert is idempotent
		logger.Warn("failed to check processed marker", "event_id", eventID, "error", err)
	} else if done {
		return nil, ErrAlreadyProcessed
	}

	retries, err := s.RetryCount(ctx, eventID)
	if err != nil {
		logger.Warn("failed to read retry counter", "event_id", eventID, "error", err)
	}
	if retries >= s.config.MaxRetries {
		return nil, fmt.Errorf("%w: event_id=%s, retries=%d", ErrMaxRetriesExceeded, eventID, retries)
	}

	token := []byte(strconv.FormatInt(time.Now().UnixNano(), 10))
	ok, err := s.redis.SetNX(ctx, s.lockKey(eventID), token, s.config.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLockAcquireFailed, err)
	}
	if !ok {
		return nil, ErrLockAcquireFailed
	}

	logger.Debug("processing lock acquired", "event_id", eventID, "retry_count", retries)
	return &Claim{EventID: eventID, RetryCount: retries, held: true}, nil
}

// MarkSuccess writes the long-lived processed marker and clears the lock and
// retry counter.
func (s *IdempotencyService) MarkSuccess(ctx context.Context, c *Claim) error {
	if err := s.redis.Set(ctx, s.processedKey(c.EventID), []byte("1"), s.config.ProcessedTTL); err != nil {
		return fmt.Errorf("failed to mark as processed: %w", err)
	}
	if err := s.redis.Del(ctx, s.lockKey(c.EventID), s.retryKey(c.EventID)); err != nil {
		logger.Warn("failed to clean up processing keys", "event_id", c.EventID, "error", err)
	}
	c.held = false
	return nil
}

// MarkFailure bumps the retry counter and frees the lock so a redelivery can
// take it.
func (s *IdempotencyService) MarkFailure(ctx context.Context, c *Claim, reason error) error {
	next := c.RetryCount + 1
	if err := s.redis.Set(ctx, s.retryKey(c.EventID), []byte(strconv.Itoa(next)), s.config.ProcessedTTL); err != nil {
		logger.Error("failed to increment retry counter", "event_id", c.EventID, "error", err)
	}
	if err := s.Release(ctx, c); err != nil {
		return err
	}
	logger.Warn("event processing failed, will retry",
		"event_id", c.EventID,
		"retry_count", next,
		"max_retries", s.config.MaxRetries,
		"reason", reason)
	return nil
}

func (s *IdempotencyService) Release(ctx context.Context, c *Claim) error {
	if c == nil || !c.held {
		return nil
	}
	if err := s.redis.Del(ctx, s.lockKey(c.EventID)); err != nil {
		logger.Warn("failed to release lock", "event_id", c.EventID, "error", err)
		return err
	}
	c.held = false
	return nil
}

func (s *IdempotencyService) RetryCount(ctx context.Context, eventID string) (int, error) {
	b, err := s.redis.Get(ctx, s.retryKey(eventID))
	if err != nil {
		if errors.Is(err, redis.NilError) {
			return 0, nil
		}
		return 0, err
	}
	n, _ := strconv.Atoi(string(b))
	return n, nil
}

func (s *IdempotencyService) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	n, err := s.redis.Exist(ctx, s.processedKey(eventID))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
