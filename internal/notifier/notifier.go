package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nimasrn/gpu-savings-gateway/internal/model"
	"github.com/nimasrn/gpu-savings-gateway/pkg/logger"
	"github.com/valyala/fasthttp"
)

var (
	ErrDisabled    = errors.New("alert webhook is not configured")
	ErrCircuitOpen = errors.New("alert webhook circuit is open")
)

// AlertPayload is the body POSTed to the webhook for one usage event.
type AlertPayload struct {
	EventID    string             `json:"event_id"`
	CustomerID int64              `json:"customer_id"`
	Tier       model.Tier         `json:"tier"`
	Alerts     []*model.IdleAlert `json:"alerts"`
	// TotalPotentialSavings is the hourly amount saved if every idle GPU in
	// the event were released.
	TotalPotentialSavings float64   `json:"total_potential_savings"`
	SentAt                time.Time `json:"sent_at"`
}

type Config struct {
	URL                     string
	Timeout                 time.Duration
	MaxRetries              int
	RetryDelay              time.Duration
	MaxConns                int
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
}

func DefaultConfig(url string, timeout time.Duration) Config {
	return Config{
		URL:                     url,
		Timeout:                 timeout,
		MaxRetries:              2,
		RetryDelay:              200 * time.Millisecond,
		MaxConns:                64,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   30 * time.Second,
	}
}

type Metrics struct {
	TotalRequests    atomic.Int64
	SuccessfulReqs   atomic.Int64
	FailedReqs       atomic.Int64
	TotalLatencyMs   atomic.Int64
	ConsecutiveFails atomic.Int32
}

func (m *Metrics) RecordSuccess(latencyMs int64) {
	m.TotalRequests.Add(1)
	m.SuccessfulReqs.Add(1)
	m.TotalLatencyMs.Add(latencyMs)
	m.ConsecutiveFails.Store(0)
}

func (m *Metrics) RecordFailure() {
	m.TotalRequests.Add(1)
	m.FailedReqs.Add(1)
	m.ConsecutiveFails.Add(1)
}

func (m *Metrics) SuccessRate() float64 {
	total := m.TotalRequests.Load()
	if total == 0 {
		return 1.0
	}
	return float64(m.SuccessfulReqs.Load()) / float64(total)
}

func (m *Metrics) AvgLatencyMs() int64 {
	total := m.SuccessfulReqs.Load()
	if total == 0 {
		return 0
	}
	return m.TotalLatencyMs.Load() / total
}

// Client posts idle alerts to a single webhook endpoint.
type Client struct {
	config           Config
	http             *fasthttp.Client
	metrics          *Metrics
	circuitOpenUntil atomic.Int64
	now              func() time.Time
}

// New returns a disabled client when config.URL is empty; Notify on it is a no-op.
func New(config Config) *Client {
	c := &Client{
		config:  config,
		metrics: &Metrics{},
		now:     time.Now,
	}
	if config.URL == "" {
		logger.Info("alert webhook disabled")
		return c
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
		c.config.Timeout = config.Timeout
	}
	c.http = &fasthttp.Client{
		MaxConnsPerHost:     config.MaxConns,
		ReadTimeout:         config.Timeout,
		WriteTimeout:        config.Timeout,
		MaxIdleConnDuration: 60 * time.Second,
	}
	logger.Info("alert webhook initialized", "url", config.URL, "timeout", config.Timeout)
	return c
}

func (c *Client) Enabled() bool {
	return c != nil && c.http != nil
}

func (c *Client) Metrics() *Metrics {
	return c.metrics
}

// CircuitOpen reports whether requests are currently short-circuited.
func (c *Client) CircuitOpen() bool {
	return c.now().UnixNano() < c.circuitOpenUntil.Load()
}

// Notify sends one payload, retrying up to MaxRetries times.
func (c *Client) Notify(ctx context.Context, payload *AlertPayload) error {
	if !c.Enabled() {
		return nil
	}
	if c.CircuitOpen() {
		return ErrCircuitOpen
	}
	if payload.SentAt.IsZero() {
		payload.SentAt = c.now().UTC()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal alert payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		start := time.Now()
		err := c.post(ctx, body)
		if err != nil {
			c.metrics.RecordFailure()
			lastErr = err
			logger.Warn("alert webhook failed", "event_id", payload.EventID, "attempt", attempt+1, "error", err)
			if c.checkCircuitBreaker() {
				break
			}
			continue
		}

		latency := time.Since(start).Milliseconds()
		c.metrics.RecordSuccess(latency)
		logger.Info("alert webhook delivered", "event_id", payload.EventID, "alerts", len(payload.Alerts), "latency_ms", latency)
		return nil
	}

	return fmt.Errorf("alert webhook failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

func (c *Client) post(ctx context.Context, body []byte) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.URL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}

	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	code := resp.StatusCode()
	if code < 200 || code >= 300 {
		return fmt.Errorf("unexpected status code: %d, body: %s", code, resp.Body())
	}
	return nil
}

// checkCircuitBreaker opens the circuit after CircuitBreakerThreshold
// consecutive failures and reports whether it is open.
func (c *Client) checkCircuitBreaker() bool {
	if c.config.CircuitBreakerThreshold <= 0 {
		return false
	}
	fails := c.metrics.ConsecutiveFails.Load()
	if fails < int32(c.config.CircuitBreakerThreshold) {
		return false
	}
	c.circuitOpenUntil.Store(c.now().Add(c.config.CircuitBreakerTimeout).UnixNano())
	logger.Warn("alert webhook circuit opened", "consecutive_fails", fails, "timeout", c.config.CircuitBreakerTimeout)
	return true
}

// NewPayload builds the webhook body for a set of alerts from one event.
func NewPayload(ev *model.UsageEvent, alerts []*model.IdleAlert) *AlertPayload {
	total := 0.0
	for _, a := range alerts {
		total += a.PotentialSavings
	}
	return &AlertPayload{
		EventID:               ev.EventID,
		CustomerID:            ev.CustomerID,
		Tier:                  ev.Tier,
		Alerts:                alerts,
		TotalPotentialSavings: total,
	}
}
