package processor

import (
	"sync/atomic"
	"time"
)

// ServiceMetrics counts events handled by the worker pool since start or the
// last Reset.
type ServiceMetrics struct {
	totalProcessed  atomic.Int64
	totalFailed     atomic.Int64
	totalDurationNs atomic.Int64
	lastResetNs     atomic.Int64
}

type MetricsSnapshot struct {
	TotalProcessed int64
	TotalFailed    int64
	RatePerSecond  float64
	AvgDuration    time.Duration
	Uptime         time.Duration
}

func NewServiceMetrics() *ServiceMetrics {
	m := &ServiceMetrics{}
	m.lastResetNs.Store(time.Now().UnixNano())
	return m
}

func (m *ServiceMetrics) RecordSuccess(duration time.Duration) {
	m.totalProcessed.Add(1)
	m.totalDurationNs.Add(int64(duration))
}

func (m *ServiceMetrics) RecordFailure() {
	m.totalFailed.Add(1)
}

func (m *ServiceMetrics) Snapshot() MetricsSnapshot {
	processed := m.totalProcessed.Load()
	elapsed := time.Since(time.Unix(0, m.lastResetNs.Load()))

	s := MetricsSnapshot{
		TotalProcessed: processed,
		TotalFailed:    m.totalFailed.Load(),
		Uptime:         elapsed,
	}
	if secs := elapsed.Seconds(); secs > 0 {
		s.RatePerSecond = float64(processed) / secs
	}
	if processed > 0 {
		s.AvgDuration = time.Duration(m.totalDurationNs.Load() / processed)
	}
	return s
}

func (m *ServiceMetrics) Reset() {
	m.totalProcessed.Store(0)
	m.totalFailed.Store(0)
	m.totalDurationNs.Store(0)
	m.lastResetNs.Store(time.Now().UnixNano())
}
