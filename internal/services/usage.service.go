package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/gpu-savings-gateway/internal/model"
	"github.com/nimasrn/gpu-savings-gateway/internal/usage"
	"github.com/nimasrn/gpu-savings-gateway/pkg/logger"
	"github.com/nimasrn/gpu-savings-gateway/pkg/prom"
)

type UsageStore interface {
	RecordBatch(ctx context.Context, customerID int64, readings []*model.GPUReading, batchSavings float64) error
	List(ctx context.Context, f model.UsageFilter) ([]*model.GPUReading, int64, error)
}

type EventPublisher interface {
	PublishJSON(ctx context.Context, v interface{}, metadata map[string]string) (string, error)
}

// CustomerCache drops a cached customer whose running totals have moved.
type CustomerCache interface {
	Invalidate(ctx context.Context, apiKey string) error
}

type UsageService struct {
	store    UsageStore
	events   EventPublisher
	cache    CustomerCache
	maxBatch int
}

// NewUsageService builds the ingestion pipeline. events may be nil, in which
// case no usage events are published.
func NewUsageService(store UsageStore, events EventPublisher, maxBatch int) *UsageService {
	return &UsageService{
		store:    store,
		events:   events,
		maxBatch: maxBatch,
	}
}

// WithCustomerCache makes a recorded batch evict the customer's cached
// profile so the next lookup sees the new total_savings.
func (s *UsageService) WithCustomerCache(c CustomerCache) *UsageService {
	s.cache = c
	return s
}

// Ingest validates, gates, classifies and records one batch for an already
// authenticated customer. Every error is one of the usage package's kinds.
func (s *UsageService) Ingest(ctx context.Context, customer *model.Customer, raw []usage.RawReading) (*model.UsageSummary, error) {
	start := time.Now()
	summary, err := s.ingest(ctx, customer, raw)
	if err != nil {
		prom.IncIngestRejected(string(usage.CodeOf(err)))
		return nil, err
	}
	prom.ObserveIngestDuration(time.Since(start).Seconds(), string(customer.Tier))
	return summary, nil
}

func (s *UsageService) ingest(ctx context.Context, customer *model.Customer, raw []usage.RawReading) (*model.UsageSummary, error) {
	readings, err := usage.Validate(raw, s.maxBatch)
	if err != nil {
		return nil, err
	}
	for _, r := range readings {
		if r.MemoryOvercommitted() {
			logger.Warn("gpu reports more memory used than installed",
				"customer_id", customer.ID, "gpu_index", r.GPUIndex, "mem_used", r.MemUsed, "mem_total", r.MemTotal)
		}
	}

	if err := usage.CheckTier(customer.Tier, len(readings)); err != nil {
		return nil, err
	}

	classified := usage.ClassifyAll(readings)
	hourly, monthly := usage.Summarize(classified)

	rows := make([]*model.GPUReading, len(classified))
	for i, c := range classified {
		rows[i] = c.ToModel(customer.ID)
	}

	if err := s.store.RecordBatch(ctx, customer.ID, rows, hourly); err != nil {
		logger.Error("failed to record usage batch", "customer_id", customer.ID, "readings", len(rows), "error", err)
		return nil, &usage.PersistenceError{Err: err}
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, customer.APIKey); err != nil {
			logger.Warn("failed to invalidate cached customer", "customer_id", customer.ID, "error", err)
		}
	}

	idle := idleReadings(rows)
	prom.AddUsageReadings(string(model.ClassificationIdle), len(idle))
	prom.AddUsageReadings(string(model.ClassificationActive), len(rows)-len(idle))
	prom.ObserveBatchSavings(hourly)

	s.publishIdle(ctx, customer, idle)

	return &model.UsageSummary{
		Status:                 "success",
		GPUsMonitored:          len(rows),
		PotentialHourlySavings: hourly,
		MonthlyProjection:      monthly,
		Tier:                   customer.Tier,
	}, nil
}

// publishIdle emits a usage event after commit. Failure is logged only; the
// batch is already recorded.
func (s *UsageService) publishIdle(ctx context.Context, customer *model.Customer, idle []*model.GPUReading) {
	if s.events == nil || len(idle) == 0 || !model.LimitsFor(customer.Tier).RealtimeAlerts {
		return
	}
	ev := model.UsageEvent{
		EventID:      uuid.NewString(),
		CustomerID:   customer.ID,
		Tier:         customer.Tier,
		IdleReadings: idle,
		CreatedAt:    time.Now().UTC(),
	}
	meta := map[string]string{"event_id": ev.EventID, "tier": string(ev.Tier)}
	if _, err := s.events.PublishJSON(ctx, ev, meta); err != nil {
		logger.Warn("failed to publish usage event", "customer_id", customer.ID, "event_id", ev.EventID, "error", err)
	}
}

func idleReadings(rows []*model.GPUReading) []*model.GPUReading {
	var out []*model.GPUReading
	for _, r := range rows {
		if r.Classification == model.ClassificationIdle {
			out = append(out, r)
		}
	}
	return out
}

func (s *UsageService) ListReadings(ctx context.Context, f model.UsageFilter) ([]*model.GPUReading, int64, error) {
	return s.store.List(ctx, f)
}
