package handlers

import (
	"context"
	"strconv"

	"github.com/nimasrn/gpu-savings-gateway/internal/auth"
	"github.com/nimasrn/gpu-savings-gateway/internal/model"
	"github.com/nimasrn/gpu-savings-gateway/internal/ratelimit"
	"github.com/nimasrn/gpu-savings-gateway/internal/usage"
	xhttp "github.com/nimasrn/gpu-savings-gateway/pkg/http"
)

const customerKey = "customer"

type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (*model.Customer, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, c *model.Customer) ratelimit.Decision
}

// CustomerFrom returns the customer resolved by RequireAPIKey.
func CustomerFrom(ctx *xhttp.RequestCtx) *model.Customer {
	c, _ := ctx.UserValue(customerKey).(*model.Customer)
	return c
}

// RequireAPIKey resolves the credential from the Authorization header, or the
// api_key field of a JSON body, and stores the customer on the request.
func RequireAPIKey(a Authenticator) xhttp.MiddlewareFunc {
	return func(next xhttp.RequestHandler) xhttp.RequestHandler {
		return func(ctx *xhttp.RequestCtx) {
			credential := auth.ExtractCredential(string(ctx.Request.Header.Peek("Authorization")), bodyAPIKey(ctx))
			customer, err := a.Authenticate(ctx, credential)
			if err != nil {
				writeUsageError(ctx, err)
				return
			}
			ctx.SetUserValue(customerKey, customer)
			next(ctx)
		}
	}
}

func bodyAPIKey(ctx *xhttp.RequestCtx) string {
	if len(ctx.PostBody()) == 0 {
		return ""
	}
	var body struct {
		APIKey string `json:"api_key"`
	}
	if err := readJSON(ctx, &body); err != nil {
		return ""
	}
	return body.APIKey
}

// RateLimit applies the tier's hourly request limit. It must run after
// RequireAPIKey. A nil limiter disables it.
func RateLimit(l RateLimiter) xhttp.MiddlewareFunc {
	return func(next xhttp.RequestHandler) xhttp.RequestHandler {
		if l == nil {
			return next
		}
		return func(ctx *xhttp.RequestCtx) {
			customer := CustomerFrom(ctx)
			if customer == nil {
				writeUsageError(ctx, usage.ErrUnauthenticated)
				return
			}
			d := l.Allow(ctx, customer)
			if d.Limit > 0 {
				ctx.Response.Header.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
				ctx.Response.Header.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			}
			if !d.Allowed {
				secs := int(d.RetryAfter.Seconds())
				if secs < 1 {
					secs = 1
				}
				ctx.Response.Header.Set("Retry-After", strconv.Itoa(secs))
				writeError(ctx, xhttp.StatusTooManyRequests, CodeRateLimited,
					"hourly request limit of "+strconv.Itoa(d.Limit)+" reached for the "+string(customer.Tier)+" tier")
				return
			}
			next(ctx)
		}
	}
}

// chain wraps h so that the first middleware runs first.
func chain(h xhttp.RequestHandler, mws ...xhttp.MiddlewareFunc) xhttp.RequestHandler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
