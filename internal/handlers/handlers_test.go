package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nimasrn/gpu-savings-gateway/internal/model"
	"github.com/nimasrn/gpu-savings-gateway/internal/ratelimit"
	xhttp "github.com/nimasrn/gpu-savings-gateway/pkg/http"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

const testKey = "gopt_abcdefghijklmnopqrstuvw"

type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Authenticate(ctx context.Context, credential string) (*model.Customer, error) {
	args := m.Called(ctx, credential)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Customer), args.Error(1)
}

type MockRateLimiter struct {
	mock.Mock
}

func (m *MockRateLimiter) Allow(ctx context.Context, c *model.Customer) ratelimit.Decision {
	args := m.Called(ctx, c)
	return args.Get(0).(ratelimit.Decision)
}

func setupTestContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

func withCustomer(ctx *xhttp.RequestCtx, c *model.Customer) *xhttp.RequestCtx {
	ctx.SetUserValue(customerKey, c)
	return ctx
}

func decodeBody(t *testing.T, ctx *xhttp.RequestCtx) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &out))
	return out
}

func freeCustomer() *model.Customer {
	return &model.Customer{ID: 1, Email: "dev@example.com", Tier: model.TierFree, APIKey: testKey}
}
