package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nimasrn/gpu-savings-gateway/pkg/logger"
	"github.com/nimasrn/gpu-savings-gateway/pkg/redis"
)

const (
	fieldData        = "data"
	fieldPublishedAt = "published_at"
	metaPrefix       = "meta_"
	reclaimBatch     = 100
)

// Event is one stream entry handed to a Handler.
type Event struct {
	ID          string
	Data        []byte
	Metadata    map[string]string
	PublishedAt time.Time
	// Deliveries is how many times the entry was handed out, this one included.
	Deliveries int64
}

// Handler processes one event. A nil return acknowledges it; an error leaves
// it pending so it is reclaimed after the visibility timeout.
type Handler func(ctx context.Context, ev *Event) error

type Config struct {
	Name              string
	Group             string
	Consumer          string
	MaxRetries        int
	VisibilityTimeout time.Duration
	PollInterval      time.Duration
	BatchSize         int64
	MaxLen            int64
	DeadLetters       bool
}

type Stats struct {
	Length    int64
	Pending   int64
	Consumers int64
	Processed int64
	Failed    int64
	Dead      int64
}

// Stream publishes to and consumes from one redis stream through a consumer group.
type Stream struct {
	adapter redis.RedisAdapter
	config  Config
	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	processed atomic.Int64
	failed    atomic.Int64
	dead      atomic.Int64
}

func New(adapter redis.RedisAdapter, config Config) (*Stream, error) {
	if config.Name == "" {
		return nil, errors.New("stream name is required")
	}
	if config.Group == "" {
		config.Group = "default-group"
	}
	if config.Consumer == "" {
		config.Consumer = fmt.Sprintf("consumer-%d", time.Now().UnixNano())
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.VisibilityTimeout == 0 {
		config.VisibilityTimeout = 30 * time.Second
	}
	if config.PollInterval == 0 {
		config.PollInterval = time.Second
	}
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Stream{
		adapter: adapter,
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
	}

	err := adapter.XGroupCreateMkStream(ctx, config.Name, config.Group, "0")
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		cancel()
		return nil, fmt.Errorf("create consumer group %s: %w", config.Group, err)
	}
	return s, nil
}

func (s *Stream) Name() string { return s.config.Name }

// DeadLetterName is the stream receiving entries that exhausted their retries.
func (s *Stream) DeadLetterName() string { return s.config.Name + ":dlq" }

func (s *Stream) Publish(ctx context.Context, data []byte, metadata map[string]string) (string, error) {
	values := map[string]interface{}{
		fieldData:        string(data),
		fieldPublishedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	for k, v := range metadata {
		values[metaPrefix+k] = v
	}

	id, err := s.adapter.XAdd(ctx, s.config.Name, s.config.MaxLen, values)
	if err != nil {
		return "", fmt.Errorf("publish to %s: %w", s.config.Name, err)
	}
	return id, nil
}

func (s *Stream) PublishJSON(ctx context.Context, v interface{}, metadata map[string]string) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	return s.Publish(ctx, b, metadata)
}

// Consume starts the polling loop in the background.
func (s *Stream) Consume(handler Handler) error {
	if handler == nil {
		return errors.New("stream handler is required")
	}
	if s.handler != nil {
		return errors.New("stream is already consuming")
	}
	s.handler = handler

	s.wg.Add(1)
	go s.loop()
	return nil
}

func (s *Stream) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.readNew()
			s.reclaim()
		}
	}
}

func (s *Stream) readNew() {
	msgs, err := s.adapter.XReadGroup(s.ctx, s.config.Group, s.config.Consumer, s.config.Name, s.config.BatchSize, 0)
	if err != nil {
		if !errors.Is(err, redis.NilError) && s.ctx.Err() == nil {
			logger.Warn("[stream] read failed", "stream", s.config.Name, "error", err)
		}
		return
	}
	for _, m := range msgs {
		ev := toEvent(m)
		ev.Deliveries = 1
		s.handle(ev)
	}
}

// reclaim takes over entries left pending longer than the visibility timeout.
// Entries already delivered MaxRetries times are dead-lettered instead.
func (s *Stream) reclaim() {
	pending, err := s.adapter.XPendingIdle(s.ctx, s.config.Name, s.config.Group, s.config.VisibilityTimeout, reclaimBatch)
	if err != nil || len(pending) == 0 {
		return
	}

	deliveries := make(map[string]int64, len(pending))
	var ids []string
	for _, p := range pending {
		if p.RetryCount >= int64(s.config.MaxRetries) {
			s.deadLetter(p.ID, p.RetryCount)
			continue
		}
		deliveries[p.ID] = p.RetryCount + 1
		ids = append(ids, p.ID)
	}
	if len(ids) == 0 {
		return
	}

	msgs, err := s.adapter.XClaim(s.ctx, s.config.Name, s.config.Group, s.config.Consumer, s.config.VisibilityTimeout, ids...)
	if err != nil {
		logger.Warn("[stream] claim failed", "stream", s.config.Name, "error", err)
		return
	}
	for _, m := range msgs {
		ev := toEvent(m)
		ev.Deliveries = deliveries[m.ID]
		s.handle(ev)
	}
}

func (s *Stream) handle(ev *Event) {
	ctx, cancel := context.WithTimeout(s.ctx, s.config.VisibilityTimeout)
	defer cancel()

	if err := s.handler(ctx, ev); err != nil {
		s.failed.Add(1)
		logger.Warn("[stream] handler failed, entry stays pending",
			"stream", s.config.Name, "id", ev.ID, "deliveries", ev.Deliveries, "error", err)
		return
	}
	if err := s.ack(ev.ID); err != nil {
		logger.Error("[stream] ack failed", "stream", s.config.Name, "id", ev.ID, "error", err)
		return
	}
	s.processed.Add(1)
}

func (s *Stream) ack(id string) error {
	return s.adapter.XAck(s.ctx, s.config.Name, s.config.Group, id)
}

func (s *Stream) deadLetter(id string, deliveries int64) {
	if s.config.DeadLetters {
		msgs, err := s.adapter.XClaim(s.ctx, s.config.Name, s.config.Group, s.config.Consumer, s.config.VisibilityTimeout, id)
		if err != nil || len(msgs) == 0 {
			logger.Warn("[stream] could not load entry for dead-lettering", "id", id, "error", err)
			return
		}
		values := map[string]interface{}{
			"original_id":     id,
			"original_stream": s.config.Name,
			"deliveries":      deliveries,
			"failed_at":       time.Now().UTC().Format(time.RFC3339Nano),
		}
		for k, v := range msgs[0].Values {
			values[k] = v
		}
		if _, err := s.adapter.XAdd(s.ctx, s.DeadLetterName(), 0, values); err != nil {
			logger.Error("[stream] dead-letter publish failed", "id", id, "error", err)
			return
		}
	}
	if err := s.ack(id); err != nil {
		logger.Error("[stream] ack of dead entry failed", "id", id, "error", err)
		return
	}
	s.dead.Add(1)
	logger.Warn("[stream] entry exhausted its retries", "stream", s.config.Name, "id", id, "deliveries", deliveries)
}

func toEvent(m redis.StreamMessage) *Event {
	ev := &Event{ID: m.ID, Metadata: make(map[string]string)}
	for k, v := range m.Values {
		str, _ := v.(string)
		switch {
		case k == fieldData:
			ev.Data = []byte(str)
		case k == fieldPublishedAt:
			if ts, err := time.Parse(time.RFC3339Nano, str); err == nil {
				ev.PublishedAt = ts
			}
		case strings.HasPrefix(k, metaPrefix):
			ev.Metadata[strings.TrimPrefix(k, metaPrefix)] = str
		}
	}
	return ev
}

// Stop cancels the loop and waits up to timeout for the in-flight batch.
func (s *Stream) Stop(timeout time.Duration) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.New("timeout waiting for stream consumer to stop")
	}
}

func (s *Stream) Stats(ctx context.Context) (*Stats, error) {
	length, err := s.adapter.XLen(ctx, s.config.Name)
	if err != nil {
		return nil, err
	}
	st := &Stats{
		Length:    length,
		Processed: s.processed.Load(),
		Failed:    s.failed.Load(),
		Dead:      s.dead.Load(),
	}
	if pending, consumers, err := s.adapter.XPendingCount(ctx, s.config.Name, s.config.Group); err == nil {
		st.Pending = pending
		st.Consumers = consumers
	}
	return st, nil
}
