package handlers

import (
	"context"
	"strings"

	"github.com/fasthttp/router"
	"github.com/nimasrn/gpu-savings-gateway/internal/model"
	"github.com/nimasrn/gpu-savings-gateway/internal/usage"
	xhttp "github.com/nimasrn/gpu-savings-gateway/pkg/http"
)

type UsageService interface {
	Ingest(ctx context.Context, customer *model.Customer, raw []usage.RawReading) (*model.UsageSummary, error)
	ListReadings(ctx context.Context, f model.UsageFilter) ([]*model.GPUReading, int64, error)
}

type UsageHandler struct {
	svc UsageService
}

// RegisterUsageRoutes mounts the ingestion and history endpoints behind mws,
// normally RequireAPIKey followed by RateLimit.
func RegisterUsageRoutes(g *router.Group, h *UsageHandler, mws ...xhttp.MiddlewareFunc) {
	g.POST("/track-usage", chain(h.TrackUsage, mws...))
	g.GET("/usage", chain(h.ListUsage, mws...))
}

func NewUsageHandler(svc UsageService) *UsageHandler {
	return &UsageHandler{svc: svc}
}

type trackUsageRequest struct {
	GPUData []usage.RawReading `json:"gpu_data"`
	APIKey  string             `json:"api_key,omitempty"`
}

type usageListResponse struct {
	Items []*model.GPUReading `json:"items"`
	Total int64               `json:"total"`
}

func (h *UsageHandler) TrackUsage(ctx *xhttp.RequestCtx) {
	customer := CustomerFrom(ctx)
	if customer == nil {
		writeUsageError(ctx, usage.ErrUnauthenticated)
		return
	}

	var req trackUsageRequest
	if err := readJSON(ctx, &req); err != nil {
		writeUsageError(ctx, &usage.ValidationError{Issues: []usage.FieldIssue{
			{Index: usage.BatchIndex, Field: "body", Reason: "must be a JSON object: " + err.Error()},
		}})
		return
	}

	summary, err := h.svc.Ingest(ctx, customer, req.GPUData)
	if err != nil {
		writeUsageError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, summary)
}

func (h *UsageHandler) ListUsage(ctx *xhttp.RequestCtx) {
	customer := CustomerFrom(ctx)
	if customer == nil {
		writeUsageError(ctx, usage.ErrUnauthenticated)
		return
	}

	f := model.UsageFilter{CustomerID: customer.ID}
	if v := query(ctx, "classification"); v != "" {
		c := model.Classification(strings.ToLower(v))
		if c != model.ClassificationIdle && c != model.ClassificationActive {
			writeError(ctx, xhttp.StatusBadRequest, CodeBadRequest, "classification must be idle or active")
			return
		}
		f.Classification = &c
	}
	if v := query(ctx, "from"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			writeError(ctx, xhttp.StatusBadRequest, CodeBadRequest, "from must be RFC3339 or YYYY-MM-DD")
			return
		}
		f.From = &t
	}
	if v := query(ctx, "to"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			writeError(ctx, xhttp.StatusBadRequest, CodeBadRequest, "to must be RFC3339 or YYYY-MM-DD")
			return
		}
		f.To = &t
	}
	if n, ok := queryInt(ctx, "limit"); ok {
		f.Limit = n
	}
	if n, ok := queryInt(ctx, "offset"); ok {
		f.Offset = n
	}
	if strings.EqualFold(query(ctx, "order"), "desc") {
		f.Desc = true
	}

	items, total, err := h.svc.ListReadings(ctx, f)
	if err != nil {
		writeUsageError(ctx, err)
		return
	}
	if items == nil {
		items = []*model.GPUReading{}
	}
	writeJSON(ctx, xhttp.StatusOK, usageListResponse{Items: items, Total: total})
}
