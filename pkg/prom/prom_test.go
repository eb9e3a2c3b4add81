package prom

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainMetrics(t *testing.T) {
	require.NoError(t, Create("localhost", "test", "gpu_optimizer_test"))
	t.Cleanup(func() { MetricSystemEnabled = false })

	AddUsageReadings("idle", 3)
	AddUsageReadings("active", 1)
	IncIngestRejected("VALIDATION_ERROR")
	AddAlertsCreated(2)
	ObserveBatchSavings(1.25)
	SetStreamStats("usage:events", 10, 4)
	SetStreamStats("usage:events", 7, 2)
	SetProcessorBacklog("idle_alert", 5)
	SetWebhookStats("idle_alert", 0.75, 120)

	readings := MetricCollectionCounterVec[SystemUsage+MetricUsageReadingsTotal]
	assert.Equal(t, 3.0, testutil.ToFloat64(readings.WithLabelValues("idle")))
	assert.Equal(t, 1.0, testutil.ToFloat64(readings.WithLabelValues("active")))

	rejected := MetricCollectionCounterVec[SystemUsage+MetricUsageIngestRejected]
	assert.Equal(t, 1.0, testutil.ToFloat64(rejected.WithLabelValues("VALIDATION_ERROR")))

	assert.Equal(t, 2.0, testutil.ToFloat64(MetricCollectionCounters[SystemAlerts+MetricAlertsCreatedTotal]))
	assert.Equal(t, 1, testutil.CollectAndCount(MetricCollectionHistogram[SystemUsage+MetricUsageBatchSavingsHourly]))

	pending := MetricCollectionGaugeVec[SystemStream+MetricStreamPending]
	assert.Equal(t, 2.0, testutil.ToFloat64(pending.WithLabelValues("usage:events")))

	backlog := MetricCollectionGaugeVec[SystemProcessor+MetricProcessorBacklog]
	assert.Equal(t, 5.0, testutil.ToFloat64(backlog.WithLabelValues("idle_alert")))
	webhook := MetricCollectionGaugeVec[SystemAlerts+MetricAlertsWebhookSuccess]
	assert.Equal(t, 0.75, testutil.ToFloat64(webhook.WithLabelValues("idle_alert")))
}

func TestDisabledIsNoop(t *testing.T) {
	MetricSystemEnabled = false
	assert.NotPanics(t, func() {
		AddUsageReadings("idle", 1)
		IncNotifyFailures()
		ObserveIngestDuration(0.1, "free")
	})
}
