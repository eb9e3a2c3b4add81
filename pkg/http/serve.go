package xhttp

import (
	"errors"
	"net"
	"os"
	"reflect"
	"runtime"
	"slices"
	"time"

	"github.com/nimasrn/gpu-savings-gateway/pkg/logger"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/prefork"
)

type Prefork = prefork.Prefork
type Server = fasthttp.Server

// Timeouts overrides the default server timeouts. Zero values keep the default.
type Timeouts struct {
	Read    time.Duration
	Write   time.Duration
	Request time.Duration
}

// ServerOption is the subset of fasthttp.Server settings the gateway tunes.
type ServerOption struct {
	Name string

	// idle keep-alive connections count against the open file limit
	IdleTimeout           time.Duration
	MaxIdleWorkerDuration time.Duration
	TCPKeepalivePeriod    time.Duration

	// ingestion batches are small; anything larger is rejected before parsing
	MaxRequestBodySize int

	// RequestTimeout installs TimeoutMiddleware when positive.
	RequestTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	// ReadBufferSize also caps the header size.
	ReadBufferSize  int
	WriteBufferSize int

	Concurrency        int
	MaxConnsPerIP      int
	MaxRequestsPerConn int

	SleepWhenConcurrencyLimitsExceeded time.Duration
	CloseOnShutdown                    bool

	// RecoverThreshold is the number of child restarts prefork tolerates.
	RecoverThreshold int
}

var DefaultServerOption = ServerOption{
	Name:                  "gpu-savings-gateway",
	IdleTimeout:           10 * time.Second,
	MaxIdleWorkerDuration: time.Minute,
	TCPKeepalivePeriod:    120 * time.Minute, // linux default
	MaxRequestBodySize:    4 * 1024 * 1024,
	RequestTimeout:        5 * time.Second,
	ReadTimeout:           2500 * time.Millisecond,
	WriteTimeout:          2500 * time.Millisecond,
	ReadBufferSize:        4 * 1024,
	WriteBufferSize:       4 * 1024,
	Concurrency:           30_000,
	// the fasthttp client defaults to 512 conns per host, agents batch behind a few
	MaxConnsPerIP:                      10_000,
	SleepWhenConcurrencyLimitsExceeded: 100 * time.Millisecond,
	CloseOnShutdown:                    true,
	RecoverThreshold:                   100,
}

// WithTimeouts returns a copy of o with the non-zero timeouts applied.
func (o ServerOption) WithTimeouts(t Timeouts) ServerOption {
	if t.Read > 0 {
		o.ReadTimeout = t.Read
	}
	if t.Write > 0 {
		o.WriteTimeout = t.Write
	}
	if t.Request > 0 {
		o.RequestTimeout = t.Request
	}
	return o
}

type Engine struct {
	*Router
	*Server
	*Prefork
	option ServerOption
	middle []MiddlewareFunc
	routed bool
}

func newServer(o ServerOption) *fasthttp.Server {
	return &fasthttp.Server{
		Handler:                            NotFoundHandler,
		ErrorHandler:                       transportErrorHandler,
		Name:                               o.Name,
		Concurrency:                        o.Concurrency,
		ReadBufferSize:                     o.ReadBufferSize,
		WriteBufferSize:                    o.WriteBufferSize,
		ReadTimeout:                        o.ReadTimeout,
		WriteTimeout:                       o.WriteTimeout,
		IdleTimeout:                        o.IdleTimeout,
		MaxConnsPerIP:                      o.MaxConnsPerIP,
		MaxRequestsPerConn:                 o.MaxRequestsPerConn,
		MaxIdleWorkerDuration:              o.MaxIdleWorkerDuration,
		TCPKeepalivePeriod:                 o.TCPKeepalivePeriod,
		MaxRequestBodySize:                 o.MaxRequestBodySize,
		TCPKeepalive:                       true,
		DisablePreParseMultipartForm:       true,
		LogAllErrors:                       true,
		SleepWhenConcurrencyLimitsExceeded: o.SleepWhenConcurrencyLimitsExceeded,
		NoDefaultServerHeader:              true,
		NoDefaultDate:                      true,
		NoDefaultContentType:               true,
		CloseOnShutdown:                    o.CloseOnShutdown,
		Logger:                             logger.GetLogger(),
	}
}

// transportErrorHandler answers requests fasthttp could not parse.
func transportErrorHandler(ctx *RequestCtx, err error) {
	logger.Warn("[xhttp] transport error", "error", err, "ip", ctx.RemoteIP().String())
	if _, ok := err.(*fasthttp.ErrSmallBuffer); ok {
		WriteError(ctx, fasthttp.StatusRequestHeaderFieldsTooLarge, "BAD_REQUEST", "request headers too large")
		return
	}
	if errors.Is(err, fasthttp.ErrBodyTooLarge) {
		WriteError(ctx, fasthttp.StatusRequestEntityTooLarge, "BAD_REQUEST", "request body too large")
		return
	}
	WriteError(ctx, StatusBadRequest, "BAD_REQUEST", "malformed request")
}

func NewServer(options ServerOption) *Engine {
	return &Engine{
		Server: newServer(options),
		Router: NewRouter(),
		option: options,
	}
}

func CreateServer() *Engine {
	return CreateServerWith(DefaultServerOption)
}

// CreateServerWith is CreateServer with custom options and the default router.
func CreateServerWith(options ServerOption) *Engine {
	s := NewServer(options)
	s.Router = CreateDefaultRouter()
	if options.RequestTimeout > 0 {
		s.Use(TimeoutMiddleware(options.RequestTimeout))
	}
	return s
}

func (e *Engine) ListenAndServe(addr string) error {
	e.DoRouting()
	e.Server.Logger.Printf("[xhttp] server is listening on %s", addr)
	return e.Server.ListenAndServe(addr)
}

// Serve is ListenAndServe on an existing listener.
func (e *Engine) Serve(ln net.Listener) error {
	e.DoRouting()
	e.Server.Logger.Printf("[xhttp] server is listening on %s", ln.Addr())
	return e.Server.Serve(ln)
}

// PreforkListenAndServe runs one child process per CPU sharing addr via SO_REUSEPORT.
func (e *Engine) PreforkListenAndServe(addr string) error {
	e.DoRouting()
	e.Prefork = prefork.New(e.Server)
	e.Prefork.Reuseport = true
	e.Prefork.RecoverThreshold = e.option.RecoverThreshold
	e.Prefork.Logger = e.Server.Logger
	e.Prefork.Logger.Printf("[xhttp] server is listening on %s (prefork)", addr)
	return e.Prefork.ListenAndServe(addr)
}

// DoRouting installs the router behind the middleware chain. The first
// middleware passed to Use is the outermost. Subsequent calls are no-ops.
func (e *Engine) DoRouting() {
	if e.routed {
		return
	}
	e.routed = true

	for method, route := range e.Router.List() {
		for _, r := range route {
			e.Server.Logger.Printf("[xhttp] method: %s, path: %s", method, r)
		}
	}

	h := e.Router.Handler
	for i, m := range slices.Backward(e.middle) {
		h = m(h)
		e.Server.Logger.Printf("[xhttp] middleware %d registered - %s", i+1, runtime.FuncForPC(reflect.ValueOf(m).Pointer()).Name())
	}
	e.Server.Handler = h
}

// Use appends middleware to the chain run for every request.
func (e *Engine) Use(middleware MiddlewareFunc) {
	e.middle = append(e.middle, middleware)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (e *Engine) Shutdown() {
	e.Server.Logger.Printf("[xhttp] server is shutting down, process id: %d isChild: %v", os.Getpid(), prefork.IsChild())
	if e.Prefork != nil {
		e.Prefork.RecoverThreshold = 0
	}
	if err := e.Server.Shutdown(); err != nil {
		e.Server.Logger.Printf("[xhttp] error while shutting down: %v", err)
	}
}
