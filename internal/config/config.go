package config

import (
	"os"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/nimasrn/gpu-savings-gateway/pkg/logger"
	"github.com/nimasrn/gpu-savings-gateway/pkg/pg"
	"github.com/nimasrn/gpu-savings-gateway/pkg/redis"
	"github.com/pkg/errors"
)

var config *Config

// Config holds every configuration value of the service. Nothing else in the
// code base reads the environment directly.
type Config struct {
	AppEnv   string `env:"APP_ENV,default=dev"`
	AppName  string `env:"APP_NAME,default=gpu_savings_gateway"`
	AppDebug bool   `env:"APP_DEBUG,default=false"`

	HttpListenAddr    string `env:"HTTP_LISTEN_ADDR,default=:8080"`
	MetricsListenAddr string `env:"METRICS_LISTEN_ADDR,default=:9100"`
	MetricsURI        string `env:"METRICS_URI,default=/metrics"`

	HttpReadTimeout    time.Duration `env:"HTTP_READ_TIMEOUT,default=2500ms"`
	HttpWriteTimeout   time.Duration `env:"HTTP_WRITE_TIMEOUT,default=2500ms"`
	HttpRequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT,default=5s"`
	HttpPrefork        bool          `env:"HTTP_PREFORK,default=false"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	RedisAddr               string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE,default=0"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX,default=gopt:"`

	PromNamespace string `env:"PROM_NAMESPACE,default=gpu_optimizer"`

	IngestMaxBatchSize int           `env:"INGEST_MAX_BATCH_SIZE,default=64"`
	CustomerCacheTTL   time.Duration `env:"CUSTOMER_CACHE_TTL,default=10m"`
	RateLimitEnabled   bool          `env:"RATE_LIMIT_ENABLED,default=true"`

	UsageStreamName        string        `env:"USAGE_STREAM_NAME,default=usage:events"`
	UsageStreamGroup       string        `env:"USAGE_STREAM_GROUP,default=alerts"`
	UsageStreamConsumer    string        `env:"USAGE_STREAM_CONSUMER,default=alert-processor"`
	UsageStreamMaxRetries  int           `env:"USAGE_STREAM_MAX_RETRIES,default=3"`
	UsageStreamVisibility  time.Duration `env:"USAGE_STREAM_VISIBILITY_TIMEOUT,default=30s"`
	UsageStreamPoll        time.Duration `env:"USAGE_STREAM_POLL_INTERVAL,default=1s"`
	UsageStreamBatchSize   int64         `env:"USAGE_STREAM_BATCH_SIZE,default=10"`
	UsageStreamMaxLen      int64         `env:"USAGE_STREAM_MAX_LEN,default=100000"`
	UsageStreamDeadLetters bool          `env:"USAGE_STREAM_ENABLE_DLQ,default=true"`

	ProcessorConsumers int `env:"PROCESSOR_CONSUMERS,default=2"`
	ProcessorWorkers   int `env:"PROCESSOR_WORKERS,default=16"`

	AlertWebhookURL     string        `env:"ALERT_WEBHOOK_URL"`
	AlertWebhookTimeout time.Duration `env:"ALERT_WEBHOOK_TIMEOUT,default=5s"`
}

// Load reads the optional .env file at path into the process environment and
// then maps the environment onto a fresh Config.
func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return errors.Wrapf(err, "failed to load configuration file %s", path)
		}
	}

	if _, err := env.UnmarshalFromEnviron(c); err != nil {
		return errors.Wrap(err, "failed to map env variables to Configuration object")
	}

	config = c
	return nil
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}

// Set replaces the active configuration. Used by tests and the CLI.
func Set(c *Config) {
	config = c
}

// EnvPathFromArgs returns the value of a --env=path argument when the file exists.
func EnvPathFromArgs(args []string) string {
	for _, v := range args {
		if !strings.HasPrefix(v, "--env=") {
			continue
		}
		p := strings.TrimPrefix(v, "--env=")
		if _, err := os.Stat(p); err != nil {
			logger.Error("failed to open the passed env file", "path", p, "error", err)
			return ""
		}
		return p
	}
	return ""
}

func (c *Config) PostgresRead() pg.Config {
	return pg.Config{
		User:     c.PostgresReadUser,
		Host:     c.PostgresReadHost,
		Port:     c.PostgresReadPort,
		Password: c.PostgresReadPassword,
		Database: c.PostgresReadDatabase,
	}
}

func (c *Config) PostgresWrite() pg.Config {
	return pg.Config{
		User:     c.PostgresWriteUser,
		Host:     c.PostgresWriteHost,
		Port:     c.PostgresWritePort,
		Password: c.PostgresWritePassword,
		Database: c.PostgresWriteDatabase,
	}
}

func (c *Config) RedisOptions(clientName string) *redis.Options {
	return &redis.Options{
		Addrs:      []string{c.RedisAddr},
		ClientName: clientName,
		DB:         c.RedisDatabase,
		Username:   c.RedisUsername,
		Password:   c.RedisPassword,
	}
}
