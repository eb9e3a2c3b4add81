package processor

import (
	"context"
	"testing"
	"time"

	"github.com/nimasrn/gpu-savings-gateway/internal/notifier"
	"github.com/nimasrn/gpu-savings-gateway/internal/repository"
	"github.com/nimasrn/gpu-savings-gateway/internal/stream"
	"github.com/nimasrn/gpu-savings-gateway/pkg/prom"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() Options {
	return Options{
		Stream: stream.Config{
			Name:              "usage:events",
			Group:             "alerts",
			Consumer:          "test",
			MaxRetries:        3,
			VisibilityTimeout: time.Second,
			PollInterval:      10 * time.Millisecond,
			BatchSize:         10,
			MaxLen:            1000,
			DeadLetters:       true,
		},
		Consumers: 2,
		Workers:   4,
	}
}

func TestNewProcessorService_RequiresProcessor(t *testing.T) {
	_, adapter := setupRedis(t)
	_, err := NewProcessorService(adapter, nil, testOptions())
	assert.Error(t, err)
}

func TestProcessorService_EndToEnd(t *testing.T) {
	_, adapter := setupRedis(t)
	repo := repository.NewAlertRepository(repository.SetupTestDB(t))
	proc := NewAlertProcessor(repo, nil, NewIdempotencyService(adapter, DefaultIdempotencyConfig()))

	opts := testOptions()
	svc, err := NewProcessorService(adapter, proc, opts)
	require.NoError(t, err)
	require.NoError(t, svc.Start())

	publisher, err := stream.New(adapter, opts.Stream)
	require.NoError(t, err)

	ctx := context.Background()
	for _, id := range []string{"ev-a", "ev-b", "ev-c"} {
		_, err := publisher.PublishJSON(ctx, usageEvent(id), map[string]string{"event_id": id})
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		alerts, err := repo.ListByCustomer(ctx, 42, 100)
		return err == nil && len(alerts) == 6
	}, 3*time.Second, 20*time.Millisecond)

	svc.Stop()

	snap := svc.Metrics().Snapshot()
	assert.Equal(t, int64(3), snap.TotalProcessed)
	assert.Equal(t, int64(0), snap.TotalFailed)
}

func TestServiceMetrics(t *testing.T) {
	m := NewServiceMetrics()
	m.RecordSuccess(10 * time.Millisecond)
	m.RecordSuccess(30 * time.Millisecond)
	m.RecordFailure()

	s := m.Snapshot()
	assert.Equal(t, int64(2), s.TotalProcessed)
	assert.Equal(t, int64(1), s.TotalFailed)
	assert.Equal(t, 20*time.Millisecond, s.AvgDuration)

	m.Reset()
	assert.Equal(t, int64(0), m.Snapshot().TotalProcessed)
}

func TestProcessorService_ReportMetrics(t *testing.T) {
	require.NoError(t, prom.Create("localhost", "test", "gpu_optimizer_processor_test"))
	t.Cleanup(func() { prom.MetricSystemEnabled = false })

	_, adapter := setupRedis(t)
	n := notifier.New(notifier.DefaultConfig("http://127.0.0.1:1/hook", time.Second))
	n.Metrics().RecordSuccess(40)
	n.Metrics().RecordFailure()
	proc := NewAlertProcessor(repository.NewAlertRepository(repository.SetupTestDB(t)), n,
		NewIdempotencyService(adapter, DefaultIdempotencyConfig()))

	svc, err := NewProcessorService(adapter, proc, testOptions())
	require.NoError(t, err)
	svc.reportMetrics()

	success := prom.MetricCollectionGaugeVec[prom.SystemAlerts+prom.MetricAlertsWebhookSuccess]
	assert.Equal(t, 0.5, testutil.ToFloat64(success.WithLabelValues("idle_alert")))
	latency := prom.MetricCollectionGaugeVec[prom.SystemAlerts+prom.MetricAlertsWebhookLatency]
	assert.Equal(t, 40.0, testutil.ToFloat64(latency.WithLabelValues("idle_alert")))
	backlog := prom.MetricCollectionGaugeVec[prom.SystemProcessor+prom.MetricProcessorBacklog]
	assert.Equal(t, 0.0, testutil.ToFloat64(backlog.WithLabelValues("idle_alert")))
}
