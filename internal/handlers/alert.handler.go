package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/gpu-savings-gateway/internal/model"
	"github.com/nimasrn/gpu-savings-gateway/internal/usage"
	xhttp "github.com/nimasrn/gpu-savings-gateway/pkg/http"
)

type AlertReader interface {
	ListByCustomer(ctx context.Context, customerID int64, limit int) ([]*model.IdleAlert, error)
}

type AlertHandler struct {
	alerts AlertReader
}

func RegisterAlertRoutes(g *router.Group, h *AlertHandler, mws ...xhttp.MiddlewareFunc) {
	g.GET("/alerts", chain(h.ListAlerts, mws...))
}

func NewAlertHandler(alerts AlertReader) *AlertHandler {
	return &AlertHandler{alerts: alerts}
}

func (h *AlertHandler) ListAlerts(ctx *xhttp.RequestCtx) {
	customer := CustomerFrom(ctx)
	if customer == nil {
		writeUsageError(ctx, usage.ErrUnauthenticated)
		return
	}
	limit, _ := queryInt(ctx, "limit")
	items, err := h.alerts.ListByCustomer(ctx, customer.ID, limit)
	if err != nil {
		writeUsageError(ctx, err)
		return
	}
	if items == nil {
		items = []*model.IdleAlert{}
	}
	writeJSON(ctx, xhttp.StatusOK, map[string]any{"items": items})
}
