package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nimasrn/gpu-savings-gateway/internal/model"
	"github.com/nimasrn/gpu-savings-gateway/internal/notifier"
	"github.com/nimasrn/gpu-savings-gateway/internal/stream"
	"github.com/nimasrn/gpu-savings-gateway/pkg/logger"
	"github.com/nimasrn/gpu-savings-gateway/pkg/prom"
)

type AlertStore interface {
	CreateBatch(ctx context.Context, alerts []*model.IdleAlert) error
}

type Notifier interface {
	Notify(ctx context.Context, payload *notifier.AlertPayload) error
}

// AlertProcessor turns usage events into persisted idle alerts and forwards
// them to the webhook.
type AlertProcessor struct {
	alerts      AlertStore
	notifier    Notifier
	idempotency *IdempotencyService
}

// NewAlertProcessor accepts a nil notifier when no webhook is configured.
func NewAlertProcessor(alerts AlertStore, n Notifier, idempotency *IdempotencyService) *AlertProcessor {
	return &AlertProcessor{
		alerts:      alerts,
		notifier:    n,
		idempotency: idempotency,
	}
}

// deliveryMetrics is satisfied by *notifier.Client.
type deliveryMetrics interface {
	Enabled() bool
	Metrics() *notifier.Metrics
	CircuitOpen() bool
}

func (p *AlertProcessor) DeliveryStats() (DeliveryStats, bool) {
	n, ok := p.notifier.(deliveryMetrics)
	if !ok || !n.Enabled() {
		return DeliveryStats{}, false
	}
	m := n.Metrics()
	return DeliveryStats{
		SuccessRate:  m.SuccessRate(),
		AvgLatencyMs: m.AvgLatencyMs(),
		CircuitOpen:  n.CircuitOpen(),
	}, true
}

func (p *AlertProcessor) GetType() string {
	return "idle_alert"
}

func (p *AlertProcessor) Process(ctx context.Context, ev *stream.Event) error {
	var usageEvent model.UsageEvent
	if err := json.Unmarshal(ev.Data, &usageEvent); err != nil {
		logger.Error("failed to decode usage event", "stream_id", ev.ID, "error", err)
		return fmt.Errorf("decode usage event %s: %w", ev.ID, err)
	}
	if usageEvent.EventID == "" {
		usageEvent.EventID = ev.Metadata["event_id"]
	}
	if usageEvent.EventID == "" {
		usageEvent.EventID = ev.ID
	}

	claim, err := p.idempotency.Acquire(ctx, usageEvent.EventID)
	switch {
	case errors.Is(err, ErrAlreadyProcessed):
		logger.Info("usage event already processed, skipping", "event_id", usageEvent.EventID)
		return nil
	case errors.Is(err, ErrMaxRetriesExceeded):
		logger.Error("giving up on usage event", "event_id", usageEvent.EventID, "error", err)
		return nil
	case errors.Is(err, ErrLockAcquireFailed):
		return fmt.Errorf("usage event %s is being processed elsewhere: %w", usageEvent.EventID, err)
	case err != nil:
		return err
	}
	defer p.idempotency.Release(ctx, claim)

	alerts := BuildAlerts(&usageEvent)
	if len(alerts) == 0 {
		return p.idempotency.MarkSuccess(ctx, claim)
	}

	if err := p.alerts.CreateBatch(ctx, alerts); err != nil {
		if markErr := p.idempotency.MarkFailure(ctx, claim, err); markErr != nil {
			logger.Error("failed to mark failure", "event_id", usageEvent.EventID, "error", markErr)
		}
		return fmt.Errorf("store idle alerts: %w", err)
	}
	prom.AddAlertsCreated(len(alerts))

	logger.Info("idle alerts recorded",
		"event_id", usageEvent.EventID,
		"customer_id", usageEvent.CustomerID,
		"alerts", len(alerts),
		"retry_count", claim.RetryCount)

	if p.notifier != nil {
		if err := p.notifier.Notify(ctx, notifier.NewPayload(&usageEvent, alerts)); err != nil {
			// alerts are stored; a lost webhook is not retried
			prom.IncNotifyFailures()
			logger.Warn("failed to notify alert webhook", "event_id", usageEvent.EventID, "error", err)
		}
	}

	if err := p.idempotency.MarkSuccess(ctx, claim); err != nil {
		logger.Error("failed to mark success", "event_id", usageEvent.EventID, "error", err)
	}
	return nil
}

// BuildAlerts returns one alert per idle reading of the event.
func BuildAlerts(ev *model.UsageEvent) []*model.IdleAlert {
	alerts := make([]*model.IdleAlert, 0, len(ev.IdleReadings))
	for _, r := range ev.IdleReadings {
		if r == nil || r.Classification != model.ClassificationIdle {
			continue
		}
		alerts = append(alerts, &model.IdleAlert{
			EventID:          ev.EventID,
			ReadingID:        r.ID,
			CustomerID:       ev.CustomerID,
			GPUIndex:         r.GPUIndex,
			GPUName:          r.GPUName,
			GPUUtil:          r.GPUUtil,
			PotentialSavings: r.PotentialSavings,
			CreatedAt:        ev.CreatedAt,
		})
	}
	return alerts
}
