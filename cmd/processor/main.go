package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/nimasrn/gpu-savings-gateway/internal/config"
	"github.com/nimasrn/gpu-savings-gateway/internal/notifier"
	"github.com/nimasrn/gpu-savings-gateway/internal/processor"
	"github.com/nimasrn/gpu-savings-gateway/internal/repository"
	"github.com/nimasrn/gpu-savings-gateway/internal/stream"
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
	logger.Info("starting processor", "version", version, "commit", commit, "date", date, "env", cfg.AppEnv)

	db, err := pg.CreateReadWrite(cfg.PostgresRead(), cfg.PostgresWrite(), cfg.AppDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", cfg.RedisUniversalKeyPrefix, cfg.RedisOptions("processor"))
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

	webhook := notifier.New(notifier.DefaultConfig(cfg.AlertWebhookURL, cfg.AlertWebhookTimeout))

	idemConfig := processor.DefaultIdempotencyConfig()
	idemConfig.MaxRetries = cfg.UsageStreamMaxRetries
	alerts := processor.NewAlertProcessor(
		repository.NewAlertRepository(db),
		webhook,
		processor.NewIdempotencyService(redisAdap, idemConfig),
	)

	service, err := processor.NewProcessorService(redisAdap, alerts, processor.Options{
		Stream: stream.Config{
			Name:              cfg.UsageStreamName,
			Group:             cfg.UsageStreamGroup,
			Consumer:          cfg.UsageStreamConsumer + "-" + hostname,
			MaxRetries:        cfg.UsageStreamMaxRetries,
			VisibilityTimeout: cfg.UsageStreamVisibility,
			PollInterval:      cfg.UsageStreamPoll,
			BatchSize:         cfg.UsageStreamBatchSize,
			MaxLen:            cfg.UsageStreamMaxLen,
			DeadLetters:       cfg.UsageStreamDeadLetters,
		},
		Consumers:      cfg.ProcessorConsumers,
		Workers:        cfg.ProcessorWorkers,
		ReportInterval: processor.HealthInterval,
	})
	if err != nil {
		logger.Error("failed to create the processor", "error", err)
		return
	}

	go prom.ListenAndServer(cfg.MetricsListenAddr, cfg.MetricsURI)

	if err := service.Start(); err != nil {
		logger.Error("failed to start processor", "error", err)
		return
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	service.Stop()
}
