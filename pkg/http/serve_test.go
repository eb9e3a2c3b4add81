package xhttp

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func TestEngine_Serve(t *testing.T) {
	var order []string
	trace := func(name string) MiddlewareFunc {
		return func(next RequestHandler) RequestHandler {
			return func(ctx *RequestCtx) {
				order = append(order, name)
				next(ctx)
			}
		}
	}

	e := CreateServerWith(DefaultServerOption.WithTimeouts(Timeouts{Request: time.Second}))
	e.Use(trace("outer"))
	e.Use(trace("inner"))
	e.Router.GET("/ping", func(ctx *RequestCtx) {
		order = append(order, "handler")
		ctx.SetBodyString("pong")
	})

	ln := fasthttputil.NewInmemoryListener()
	go func() { _ = e.Serve(ln) }()
	t.Cleanup(e.Shutdown)

	c := &fasthttp.Client{Dial: func(string) (net.Conn, error) { return ln.Dial() }}

	status, body, err := c.Get(nil, "http://gateway/ping")
	require.NoError(t, err)
	assert.Equal(t, StatusOK, status)
	assert.Equal(t, "pong", string(body))
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)
	req.SetRequestURI("http://gateway/ping")
	req.Header.SetMethod("DELETE")
	require.NoError(t, c.Do(req, resp))
	assert.Equal(t, StatusMethodNotAllowed, resp.StatusCode())
}
