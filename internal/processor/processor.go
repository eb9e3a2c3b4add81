package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nimasrn/gpu-savings-gateway/internal/stream"
	"github.com/nimasrn/gpu-savings-gateway/pkg/logger"
	"github.com/nimasrn/gpu-savings-gateway/pkg/prom"
	"github.com/nimasrn/gpu-savings-gateway/pkg/redis"
	"github.com/nimasrn/gpu-savings-gateway/pkg/worker"
)

const ProcessingTimeout = time.Second * 5
const HealthInterval = time.Second * 30
const ShutdownTimeout = time.Minute

// lagWarnThreshold is the pending-entry count above which the health check warns.
const lagWarnThreshold = 10000

// Processor handles one stream event. A nil return acknowledges it.
type Processor interface {
	Process(ctx context.Context, ev *stream.Event) error
	GetType() string
}

// DeliveryStats describes forwarding of processed events to an external endpoint.
type DeliveryStats struct {
	SuccessRate  float64
	AvgLatencyMs int64
	CircuitOpen  bool
}

// DeliveryReporter is implemented by processors that forward their results.
// ok is false when forwarding is disabled.
type DeliveryReporter interface {
	DeliveryStats() (stats DeliveryStats, ok bool)
}

type Options struct {
	Stream    stream.Config
	Consumers int
	Workers   int
	// ReportInterval is how often metrics are logged. Zero disables the reporter.
	ReportInterval time.Duration
}

// ProcessorService runs Consumers stream readers that hand every event to a
// shared worker pool and wait for its result before acknowledging.
type ProcessorService struct {
	adapter   redis.RedisAdapter
	options   Options
	streams   []*stream.Stream
	processor Processor
	metrics   *ServiceMetrics
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	worker    *worker.WorkerManager
}

func NewProcessorService(adapter redis.RedisAdapter, processor Processor, opts Options) (*ProcessorService, error) {
	if processor == nil {
		return nil, errors.New("processor is required")
	}
	if opts.Consumers <= 0 {
		opts.Consumers = 1
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ProcessorService{
		adapter:   adapter,
		options:   opts,
		processor: processor,
		metrics:   NewServiceMetrics(),
		ctx:       ctx,
		cancel:    cancel,
		worker:    worker.NewWorkerManager(opts.Workers*4, opts.Workers, nil),
	}, nil
}

func (s *ProcessorService) Metrics() *ServiceMetrics {
	return s.metrics
}

// Start starts the worker pool and the stream consumers.
func (s *ProcessorService) Start() error {
	logger.Info("starting processor service", "type", s.processor.GetType())

	s.worker.SetWorker(s.workerHandler)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.worker.Start(); err != nil {
			logger.Info("worker manager stopped", "reason", err)
		}
	}()

	for i := 0; i < s.options.Consumers; i++ {
		cfg := s.options.Stream
		cfg.Consumer = fmt.Sprintf("%s-instance-%d", cfg.Consumer, i)

		st, err := stream.New(s.adapter, cfg)
		if err != nil {
			return fmt.Errorf("failed to create stream consumer %d: %w", i, err)
		}
		if err := st.Consume(s.eventHandler); err != nil {
			return fmt.Errorf("failed to start consumer %d: %w", i, err)
		}
		s.streams = append(s.streams, st)
	}

	if s.options.ReportInterval > 0 {
		s.wg.Add(2)
		go s.every(s.options.ReportInterval, s.reportMetrics)
		go s.every(HealthInterval, s.performHealthCheck)
	}

	logger.Info("processor service started", "consumers", len(s.streams), "workers", s.worker.Size())
	return nil
}

func (s *ProcessorService) every(interval time.Duration, fn func()) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fn()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *ProcessorService) reportMetrics() {
	m := s.metrics.Snapshot()
	logger.Info("processor metrics",
		"total_processed", m.TotalProcessed,
		"total_failed", m.TotalFailed,
		"rate_per_second", m.RatePerSecond,
		"avg_duration_ms", m.AvgDuration.Milliseconds(),
		"uptime_seconds", m.Uptime.Seconds())

	backlog := s.worker.GetUnreadCount()
	prom.SetProcessorBacklog(s.processor.GetType(), backlog)
	logger.Info("worker pool", "workers", s.worker.Size(), "backlog", backlog)

	if r, ok := s.processor.(DeliveryReporter); ok {
		if d, enabled := r.DeliveryStats(); enabled {
			prom.SetWebhookStats(s.processor.GetType(), d.SuccessRate, d.AvgLatencyMs)
			logger.Info("webhook delivery",
				"success_rate", d.SuccessRate,
				"avg_latency_ms", d.AvgLatencyMs,
				"circuit_open", d.CircuitOpen)
		}
	}

	if len(s.streams) == 0 {
		return
	}
	if st, err := s.streams[0].Stats(s.ctx); err == nil {
		prom.SetStreamStats(s.streams[0].Name(), st.Length, st.Pending)
		logger.Info("stream stats", "stream", s.streams[0].Name(), "length", st.Length, "pending", st.Pending, "consumers", st.Consumers)
	}
}

func (s *ProcessorService) performHealthCheck() {
	if err := s.adapter.Ping(s.ctx); err != nil {
		logger.Error("health check failed: redis connection error", "error", err)
		return
	}
	if len(s.streams) == 0 {
		return
	}
	st, err := s.streams[0].Stats(s.ctx)
	if err != nil {
		logger.Warn("health check: stream stats unavailable", "error", err)
		return
	}
	if st.Pending > lagWarnThreshold {
		logger.Warn("health check: stream has high lag", "pending", st.Pending)
	}
}

// Stop stops the consumers, then the worker pool.
func (s *ProcessorService) Stop() {
	logger.Info("shutting down processor service...")

	var wg sync.WaitGroup
	for i, st := range s.streams {
		wg.Add(1)
		go func(index int, st *stream.Stream) {
			defer wg.Done()
			if err := st.Stop(ShutdownTimeout); err != nil {
				logger.Error("error stopping stream consumer", "consumer", index, "error", err)
			}
		}(i, st)
	}
	wg.Wait()

	s.cancel()
	s.worker.Exit()
	s.wg.Wait()

	s.reportMetrics()
	logger.Info("processor service stopped")
}

type job struct {
	ev     *stream.Event
	result chan error
	ctx    context.Context
}

// eventHandler hands the event to the pool and blocks for the outcome.
func (s *ProcessorService) eventHandler(ctx context.Context, ev *stream.Event) error {
	jobCtx, cancel := context.WithTimeout(ctx, ProcessingTimeout+time.Second)
	defer cancel()

	j := &job{ev: ev, result: make(chan error, 1), ctx: jobCtx}
	if err := s.worker.Enqueue(jobCtx, j); err != nil {
		return fmt.Errorf("enqueue event %s: %w", ev.ID, err)
	}

	select {
	case err := <-j.result:
		return err
	case <-jobCtx.Done():
		return fmt.Errorf("timeout waiting for worker to process event: %w", jobCtx.Err())
	}
}

func (s *ProcessorService) workerHandler(workerIndex int, v interface{}) {
	j, ok := v.(*job)
	if !ok {
		logger.Error("invalid job type in worker", "worker", workerIndex)
		return
	}
	if j.ctx.Err() != nil {
		logger.Warn("job context cancelled before processing started", "worker", workerIndex, "stream_id", j.ev.ID)
		return
	}

	start := time.Now()
	err := s.processor.Process(j.ctx, j.ev)
	if err != nil {
		s.metrics.RecordFailure()
		logger.Error("failed to process event", "worker", workerIndex, "stream_id", j.ev.ID, "deliveries", j.ev.Deliveries, "error", err)
	} else {
		s.metrics.RecordSuccess(time.Since(start))
	}

	// result is buffered; the sender never blocks
	j.result <- err
}
