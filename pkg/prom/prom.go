package prom

import (
	"sync"

	xhttp "github.com/nimasrn/gpu-savings-gateway/pkg/http"
	"github.com/nimasrn/gpu-savings-gateway/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const (
	SystemUsage     = "usage"
	SystemAlerts    = "alerts"
	SystemStream    = "stream"
	SystemProcessor = "processor"
)

const (
	MetricUsageReadingsTotal      = "readings_total"
	MetricUsageIngestRejected     = "ingest_rejected_total"
	MetricUsageBatchSavingsHourly = "batch_savings_hourly"
	MetricUsageIngestDuration     = "ingest_duration_seconds"
	MetricAlertsCreatedTotal      = "created_total"
	MetricAlertsNotifyFailures    = "notify_failures_total"
	MetricStreamLength            = "length"
	MetricStreamPending           = "pending"
	MetricProcessorBacklog        = "backlog"
	MetricAlertsWebhookSuccess    = "webhook_success_ratio"
	MetricAlertsWebhookLatency    = "webhook_latency_ms"
)

// savings per batch in USD/hour
var savingsBuckets = []float64{0, 0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100}

var lockCreateMetricLock = &sync.Mutex{}
var namespace = "none"

var MetricSystemEnabled = false

var MetricCollectionCounters = make(map[string]prometheus.Counter)
var MetricCollectionCounterVec = make(map[string]*prometheus.CounterVec)
var MetricCollectionGaugeVec = make(map[string]*prometheus.GaugeVec)
var MetricCollectionHistogram = make(map[string]prometheus.Histogram)
var MetricCollectionHistogramVec = make(map[string]*prometheus.HistogramVec)

var defaultLabels prometheus.Labels

// Create registers every metric of the service. Call once per process.
func Create(host string, env string, nameSpace string) error {
	defaultLabels = make(prometheus.Labels)
	defaultLabels["env"] = env
	defaultLabels["instance"] = host
	namespace = nameSpace
	MetricSystemEnabled = true

	var err error
	hasError := func(e error) {
		if err == nil && e != nil {
			err = e
		}
	}

	hasError(createCounterVec(SystemUsage, MetricUsageReadingsTotal, "GPU readings recorded by classification.", []string{"classification"}))
	hasError(createCounterVec(SystemUsage, MetricUsageIngestRejected, "Rejected ingestion calls by error code.", []string{"code"}))
	hasError(createHistogram(SystemUsage, MetricUsageBatchSavingsHourly, "Potential hourly savings per accepted batch.", savingsBuckets))
	hasError(createHistogramVec(SystemUsage, MetricUsageIngestDuration, "Ingestion latency by tier.", []string{"tier"}))
	hasError(createCounter(SystemAlerts, MetricAlertsCreatedTotal, "Idle alerts stored."))
	hasError(createCounter(SystemAlerts, MetricAlertsNotifyFailures, "Failed webhook deliveries."))
	hasError(createGaugeVec(SystemStream, MetricStreamLength, "Entries in the stream.", []string{"stream"}))
	hasError(createGaugeVec(SystemStream, MetricStreamPending, "Delivered but unacknowledged entries.", []string{"stream"}))
	hasError(createGaugeVec(SystemProcessor, MetricProcessorBacklog, "Events queued for the worker pool.", []string{"processor"}))
	hasError(createGaugeVec(SystemAlerts, MetricAlertsWebhookSuccess, "Share of successful webhook attempts.", []string{"processor"}))
	hasError(createGaugeVec(SystemAlerts, MetricAlertsWebhookLatency, "Average latency of successful webhook calls.", []string{"processor"}))

	return err
}

// Handler exposes the default registry on a fasthttp route.
func Handler() xhttp.RequestHandler {
	return fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
}

func ListenAndServer(port string, url string) {
	s := xhttp.CreateServer()
	s.GET(url, Handler())
	logger.Info("[metrics-server] listening...", "url", url)
	if err := s.ListenAndServe(port); err != nil {
		logger.Panic("[metrics-server] http listen error", "error", err)
	}
}

func createCounter(subsystem, name, help string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	MetricCollectionCounters[subsystem+name] = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: defaultLabels,
	})
	return prometheus.Register(MetricCollectionCounters[subsystem+name])
}

func createCounterVec(subsystem, name, help string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	MetricCollectionCounterVec[subsystem+name] = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: defaultLabels,
	}, labels)
	return prometheus.Register(MetricCollectionCounterVec[subsystem+name])
}

func createHistogram(subsystem, name, help string, buckets []float64) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	MetricCollectionHistogram[subsystem+name] = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: defaultLabels,
		Buckets:     buckets,
	})
	return prometheus.Register(MetricCollectionHistogram[subsystem+name])
}

func createHistogramVec(subsystem, name, help string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	MetricCollectionHistogramVec[subsystem+name] = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: defaultLabels,
	}, labels)
	return prometheus.Register(MetricCollectionHistogramVec[subsystem+name])
}

func createGaugeVec(subsystem, name, help string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()

	MetricCollectionGaugeVec[subsystem+name] = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: defaultLabels,
	}, labels)
	return prometheus.Register(MetricCollectionGaugeVec[subsystem+name])
}

func IncCounter(subsystem, name string) {
	AddCounter(subsystem, name, 1)
}

func AddCounter(subsystem, name string, number float64) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionCounters[subsystem+name]; ok {
		v.Add(number)
		return
	}
	logger.Warn("[metrics-server] counter not found", "subsystem", subsystem, "name", name)
}

func SetGaugeVec(subsystem, name string, num float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionGaugeVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Set(num)
		return
	}
	logger.Warn("[metrics-server] gauge not found", "subsystem", subsystem, "name", name)
}

func AddCounterVec(subsystem, name string, num float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionCounterVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Add(num)
		return
	}
	logger.Warn("[metrics-server] counter vec not found", "subsystem", subsystem, "name", name)
}

func IncCounterVec(subsystem, name string, labelValues ...string) {
	AddCounterVec(subsystem, name, 1, labelValues...)
}

func AddHistogram(subsystem, name string, number float64) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionHistogram[subsystem+name]; ok {
		v.Observe(number)
		return
	}
	logger.Warn("[metrics-server] histogram not found", "subsystem", subsystem, "name", name)
}

func AddHistogramVec(subsystem, name string, number float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionHistogramVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Observe(number)
		return
	}
	logger.Warn("[metrics-server] histogram vec not found", "subsystem", subsystem, "name", name)
}

func AddUsageReadings(classification string, n int) {
	AddCounterVec(SystemUsage, MetricUsageReadingsTotal, float64(n), classification)
}

func IncIngestRejected(code string) {
	IncCounterVec(SystemUsage, MetricUsageIngestRejected, code)
}

func ObserveBatchSavings(hourly float64) {
	AddHistogram(SystemUsage, MetricUsageBatchSavingsHourly, hourly)
}

func ObserveIngestDuration(seconds float64, tier string) {
	AddHistogramVec(SystemUsage, MetricUsageIngestDuration, seconds, tier)
}

func AddAlertsCreated(n int) {
	AddCounter(SystemAlerts, MetricAlertsCreatedTotal, float64(n))
}

func IncNotifyFailures() {
	IncCounter(SystemAlerts, MetricAlertsNotifyFailures)
}

func SetStreamStats(stream string, length, pending int64) {
	SetGaugeVec(SystemStream, MetricStreamLength, float64(length), stream)
	SetGaugeVec(SystemStream, MetricStreamPending, float64(pending), stream)
}

func SetProcessorBacklog(processor string, n int64) {
	SetGaugeVec(SystemProcessor, MetricProcessorBacklog, float64(n), processor)
}

func SetWebhookStats(processor string, successRate float64, avgLatencyMs int64) {
	SetGaugeVec(SystemAlerts, MetricAlertsWebhookSuccess, successRate, processor)
	SetGaugeVec(SystemAlerts, MetricAlertsWebhookLatency, float64(avgLatencyMs), processor)
}
