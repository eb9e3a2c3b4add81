package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/nimasrn/gpu-savings-gateway/internal/auth"
	"github.com/nimasrn/gpu-savings-gateway/internal/config"
	"github.com/nimasrn/gpu-savings-gateway/internal/handlers"
	"github.com/nimasrn/gpu-savings-gateway/internal/ratelimit"
	"github.com/nimasrn/gpu-savings-gateway/internal/repository"
	"github.com/nimasrn/gpu-savings-gateway/internal/services"
	"github.com/nimasrn/gpu-savings-gateway/internal/stream"
	xhttp "github.com/nimasrn/gpu-savings-gateway/pkg/http"
	"github.com/nimasrn/gpu-savings-gateway/pkg/logger"
	"github.com/nimasrn/gpu-savings-gateway/pkg/pg"
	"github.com/nimasrn/gpu-savings-gateway/pkg/prom"
	"github.com/nimasrn/gpu-savings-gateway/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	defer logger.Sync()

	err := config.Load(config.EnvPathFromArgs(os.Args))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	cfg := config.Get()
	logger.Info("starting api", "version", version, "commit", commit, "date", date, "env", cfg.AppEnv)

	// transport (tcp for now)
	opts := xhttp.DefaultServerOption.WithTimeouts(xhttp.Timeouts{
		Read:    cfg.HttpReadTimeout,
		Write:   cfg.HttpWriteTimeout,
		Request: cfg.HttpRequestTimeout,
	})
	s := xhttp.CreateServerWith(opts)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.RequestIDMiddleware)
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)

	db, err := pg.CreateReadWrite(cfg.PostgresRead(), cfg.PostgresWrite(), cfg.AppDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", cfg.RedisUniversalKeyPrefix, cfg.RedisOptions("api"))
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err := prom.Create(hostname, cfg.AppEnv, cfg.PromNamespace); err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	events, err := stream.New(redisAdap, stream.Config{
		Name:   cfg.UsageStreamName,
		Group:  cfg.UsageStreamGroup,
		MaxLen: cfg.UsageStreamMaxLen,
	})
	if err != nil {
		logger.Error("failed creating usage stream", "error", err)
		return
	}

	customerRepo := repository.NewCustomerRepository(db)
	usageRepo := repository.NewUsageRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	lookup := repository.NewCachedCustomerLookup(customerRepo, redisAdap, cfg.CustomerCacheTTL)

	// services
	usageService := services.NewUsageService(usageRepo, events, cfg.IngestMaxBatchSize).WithCustomerCache(lookup)
	customerService := services.NewCustomerService(customerRepo)
	healthService := services.NewHealthService(db, redisAdap)

	requireKey := handlers.RequireAPIKey(auth.NewAuthenticator(lookup))
	var limiter handlers.RateLimiter
	if cfg.RateLimitEnabled {
		limiter = ratelimit.New(redisAdap, ratelimit.DefaultWindow)
	}
	limit := handlers.RateLimit(limiter)

	// v1 handlers
	g := s.Router.Group("/api/v1")
	handlers.RegisterUsageRoutes(g, handlers.NewUsageHandler(usageService), requireKey, limit)
	handlers.RegisterAlertRoutes(g, handlers.NewAlertHandler(alertRepo), requireKey)
	handlers.RegisterCustomerRoutes(g, handlers.NewCustomerHandler(customerService), requireKey)
	handlers.RegisterHealthRoutes(g, handlers.NewHealthHandler(healthService))
	s.Router.GET(cfg.MetricsURI, prom.Handler())

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		serve := s.ListenAndServe
		if cfg.HttpPrefork {
			serve = s.PreforkListenAndServe
		}
		if err := serve(cfg.HttpListenAddr); err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	<-c
	s.Shutdown()
}
