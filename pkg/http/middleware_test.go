package xhttp

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
)

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(func(ctx *RequestCtx) { seen = RequestID(ctx) })

	t.Run("generates an id", func(t *testing.T) {
		ctx := &fasthttp.RequestCtx{}
		h(ctx)
		_, err := uuid.Parse(seen)
		assert.NoError(t, err)
		assert.Equal(t, seen, string(ctx.Response.Header.Peek(RequestIDHeader)))
	})

	t.Run("keeps the caller id", func(t *testing.T) {
		ctx := &fasthttp.RequestCtx{}
		ctx.Request.Header.Set(RequestIDHeader, "abc-123")
		h(ctx)
		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", string(ctx.Response.Header.Peek(RequestIDHeader)))
	})
}

func TestRecoverMiddleware(t *testing.T) {
	ctx := &fasthttp.RequestCtx{}
	RecoverMiddleware(func(*RequestCtx) { panic("boom") })(ctx)
	assert.Equal(t, StatusInternalServerError, ctx.Response.StatusCode())
}

func TestShouldSkip(t *testing.T) {
	assert.True(t, shouldSkip("/api/v1/health"))
	assert.True(t, shouldSkip("/metrics"))
	assert.False(t, shouldSkip("/api/v1/track-usage"))
}

func TestWithTimeouts(t *testing.T) {
	o := DefaultServerOption.WithTimeouts(Timeouts{Read: time.Second})
	assert.Equal(t, time.Second, o.ReadTimeout)
	assert.Equal(t, DefaultServerOption.WriteTimeout, o.WriteTimeout)
	assert.Equal(t, DefaultServerOption.RequestTimeout, o.RequestTimeout)
}

func TestNotFoundHandler(t *testing.T) {
	ctx := &fasthttp.RequestCtx{}
	NotFoundHandler(ctx)
	assert.Equal(t, StatusNotFound, ctx.Response.StatusCode())
}

func TestNotFoundHandler_JSONBody(t *testing.T) {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod("GET")
	ctx.Request.SetRequestURI("/nope")
	NotFoundHandler(ctx)
	assert.Equal(t, "application/json", string(ctx.Response.Header.ContentType()))
	assert.Contains(t, string(ctx.Response.Body()), `"code":"NOT_FOUND"`)
}
