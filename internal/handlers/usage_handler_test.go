package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nimasrn/gpu-savings-gateway/internal/model"
	"github.com/nimasrn/gpu-savings-gateway/internal/usage"
	xhttp "github.com/nimasrn/gpu-savings-gateway/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockUsageService struct {
	mock.Mock
}

func (m *MockUsageService) Ingest(ctx context.Context, customer *model.Customer, raw []usage.RawReading) (*model.UsageSummary, error) {
	args := m.Called(ctx, customer, raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UsageSummary), args.Error(1)
}

func (m *MockUsageService) ListReadings(ctx context.Context, f model.UsageFilter) ([]*model.GPUReading, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.GPUReading), args.Get(1).(int64), args.Error(2)
}

const twoGPUs = `{"gpu_data":[
	{"gpu_index":0,"gpu_name":"A100","gpu_util":5,"mem_used":1,"mem_total":80,"cost_per_hour":3.0},
	{"gpu_index":1,"gpu_name":"A100","gpu_util":90,"mem_used":70,"mem_total":80,"cost_per_hour":3.0}
]}`

func TestUsageHandler_TrackUsage(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := new(MockUsageService)
		h := NewUsageHandler(svc)

		svc.On("Ingest", mock.Anything, mock.Anything, mock.MatchedBy(func(raw []usage.RawReading) bool {
			if len(raw) != 2 {
				return false
			}
			// numbers stay json.Number
			_, ok := raw[0]["gpu_index"].(json.Number)
			return ok
		})).Return(&model.UsageSummary{
			Status:                 "success",
			GPUsMonitored:          2,
			PotentialHourlySavings: 1.5,
			MonthlyProjection:      1080,
			Tier:                   model.TierFree,
		}, nil)

		ctx := withCustomer(setupTestContext("POST", "/api/v1/track-usage", []byte(twoGPUs)), freeCustomer())
		h.TrackUsage(ctx)

		assert.Equal(t, xhttp.StatusOK, ctx.Response.StatusCode())
		body := decodeBody(t, ctx)
		assert.Equal(t, "success", body["status"])
		assert.Equal(t, float64(2), body["gpus_monitored"])
		assert.Equal(t, 1.5, body["potential_hourly_savings"])
		assert.Equal(t, float64(1080), body["monthly_projection"])
		assert.Equal(t, "free", body["tier"])
		svc.AssertExpectations(t)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		svc := new(MockUsageService)
		h := NewUsageHandler(svc)

		ctx := withCustomer(setupTestContext("POST", "/api/v1/track-usage", []byte(`{"gpu_data":`)), freeCustomer())
		h.TrackUsage(ctx)

		assert.Equal(t, xhttp.StatusBadRequest, ctx.Response.StatusCode())
		assert.Equal(t, "VALIDATION_ERROR", decodeBody(t, ctx)["code"])
		svc.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("validation error lists details", func(t *testing.T) {
		svc := new(MockUsageService)
		h := NewUsageHandler(svc)
		svc.On("Ingest", mock.Anything, mock.Anything, mock.Anything).Return(nil, &usage.ValidationError{Issues: []usage.FieldIssue{
			{Index: 0, Field: "gpu_util", Reason: "must be between 0 and 100"},
		}})

		ctx := withCustomer(setupTestContext("POST", "/api/v1/track-usage", []byte(twoGPUs)), freeCustomer())
		h.TrackUsage(ctx)

		assert.Equal(t, xhttp.StatusBadRequest, ctx.Response.StatusCode())
		body := decodeBody(t, ctx)
		details, ok := body["details"].([]any)
		require.True(t, ok)
		require.Len(t, details, 1)
		assert.Equal(t, "gpu_util", details[0].(map[string]any)["field"])
	})

	t.Run("tier limit", func(t *testing.T) {
		svc := new(MockUsageService)
		h := NewUsageHandler(svc)
		svc.On("Ingest", mock.Anything, mock.Anything, mock.Anything).Return(nil, &usage.TierLimitError{Tier: model.TierFree, Limit: 2, Requested: 3})

		ctx := withCustomer(setupTestContext("POST", "/api/v1/track-usage", []byte(twoGPUs)), freeCustomer())
		h.TrackUsage(ctx)

		assert.Equal(t, xhttp.StatusForbidden, ctx.Response.StatusCode())
		body := decodeBody(t, ctx)
		assert.Equal(t, "TIER_LIMIT_EXCEEDED", body["code"])
		assert.Equal(t, float64(2), body["max_gpus"])
		assert.Contains(t, body["message"], "Upgrade")
	})

	t.Run("persistence failure", func(t *testing.T) {
		svc := new(MockUsageService)
		h := NewUsageHandler(svc)
		svc.On("Ingest", mock.Anything, mock.Anything, mock.Anything).Return(nil, &usage.PersistenceError{Err: errors.New("connection refused")})

		ctx := withCustomer(setupTestContext("POST", "/api/v1/track-usage", []byte(twoGPUs)), freeCustomer())
		h.TrackUsage(ctx)

		assert.Equal(t, xhttp.StatusServiceUnavailable, ctx.Response.StatusCode())
		body := decodeBody(t, ctx)
		assert.Equal(t, "PERSISTENCE_FAILURE", body["code"])
		assert.NotContains(t, body["message"], "connection refused")
	})

	t.Run("no customer", func(t *testing.T) {
		h := NewUsageHandler(new(MockUsageService))
		ctx := setupTestContext("POST", "/api/v1/track-usage", []byte(twoGPUs))
		h.TrackUsage(ctx)
		assert.Equal(t, xhttp.StatusUnauthorized, ctx.Response.StatusCode())
	})
}

func TestUsageHandler_ListUsage(t *testing.T) {
	t.Run("parses filters", func(t *testing.T) {
		svc := new(MockUsageService)
		h := NewUsageHandler(svc)

		svc.On("ListReadings", mock.Anything, mock.MatchedBy(func(f model.UsageFilter) bool {
			return f.CustomerID == 1 &&
				f.Classification != nil && *f.Classification == model.ClassificationIdle &&
				f.From != nil && f.From.Day() == 2 &&
				f.Limit == 10 && f.Offset == 20 && f.Desc
		})).Return([]*model.GPUReading{{ID: 5, CustomerID: 1, Classification: model.ClassificationIdle}}, int64(21), nil)

		ctx := withCustomer(setupTestContext("GET", "/api/v1/usage?classification=idle&from=2026-01-02&limit=10&offset=20&order=desc", nil), freeCustomer())
		h.ListUsage(ctx)

		assert.Equal(t, xhttp.StatusOK, ctx.Response.StatusCode())
		var resp usageListResponse
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &resp))
		assert.Equal(t, int64(21), resp.Total)
		assert.Len(t, resp.Items, 1)
		svc.AssertExpectations(t)
	})

	t.Run("bad classification", func(t *testing.T) {
		h := NewUsageHandler(new(MockUsageService))
		ctx := withCustomer(setupTestContext("GET", "/api/v1/usage?classification=busy", nil), freeCustomer())
		h.ListUsage(ctx)
		assert.Equal(t, xhttp.StatusBadRequest, ctx.Response.StatusCode())
	})

	t.Run("bad date", func(t *testing.T) {
		h := NewUsageHandler(new(MockUsageService))
		ctx := withCustomer(setupTestContext("GET", "/api/v1/usage?to=yesterday", nil), freeCustomer())
		h.ListUsage(ctx)
		assert.Equal(t, xhttp.StatusBadRequest, ctx.Response.StatusCode())
	})

	t.Run("empty list renders as array", func(t *testing.T) {
		svc := new(MockUsageService)
		h := NewUsageHandler(svc)
		svc.On("ListReadings", mock.Anything, mock.Anything).Return(nil, int64(0), nil)

		ctx := withCustomer(setupTestContext("GET", "/api/v1/usage", nil), freeCustomer())
		h.ListUsage(ctx)

		assert.JSONEq(t, `{"items":[],"total":0}`, string(ctx.Response.Body()))
	})
}
