package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/avyukt/invest-gateway/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const ConfigTagName = "env"
const ConfigDefaultTagName = "default"

var config *Config

// Config holds every environment-sourced setting. Only this struct may be
// used to read configuration; no direct env/ini access elsewhere.
type Config struct {
	AppEnv   string `env:"APP_ENV" default:"dev"`
	AppName  string `env:"APP_NAME" default:"invest_gateway"`
	AppDebug bool   `env:"APP_DEBUG" default:"1"`

	HttpListenAddr         string `env:"HTTP_LISTEN_ADDR" validation:"mustExists"`
	HttpServerReadTimeout  int    `env:"HTTP_SERVER_READ_TIMEOUT"`
	HttpServerWriteTimeout int    `env:"HTTP_SERVER_WRITE_TIMEOUT"`

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

	RedisAddr               string `env:"REDIS_ADDR"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX"`

	PromNamespace string `env:"PROM_NAMESPACE"`

	EventStreamName          string        `env:"EVENT_STREAM_NAME" default:"events"`
	EventStreamConsumerGroup string        `env:"EVENT_STREAM_CONSUMER_GROUP" default:"reconciler"`
	EventStreamConsumerName  string        `env:"EVENT_STREAM_CONSUMER_NAME" default:"reconciler-0"`
	EventStreamMaxRetries    int           `env:"EVENT_STREAM_MAX_RETRIES" default:"3"`
	EventStreamVisibility    time.Duration `env:"EVENT_STREAM_VISIBILITY_TIMEOUT" default:"30s"`
	EventStreamPollInterval  time.Duration `env:"EVENT_STREAM_POLL_INTERVAL" default:"1s"`
	EventStreamBatchSize     int64         `env:"EVENT_STREAM_BATCH_SIZE" default:"10"`
	EventStreamMaxLen        int64         `env:"EVENT_STREAM_MAX_LEN" default:"100000"`
	EventStreamEnableDLQ     bool          `env:"EVENT_STREAM_ENABLE_DLQ" default:"1"`

	OrderProviderUrl   string        `env:"ORDER_PROVIDER_URL"`
	MandateProviderUrl string        `env:"MANDATE_PROVIDER_URL"`
	PaymentProviderUrl string        `env:"PAYMENT_PROVIDER_URL"`
	KycProviderUrl     string        `env:"KYC_PROVIDER_URL"`
	ProviderTimeout    time.Duration `env:"PROVIDER_TIMEOUT" default:"5s"`
	ProviderMaxRetries int           `env:"PROVIDER_MAX_RETRIES" default:"3"`

	OrderPollInterval    time.Duration `env:"ORDER_POLL_INTERVAL" default:"30s"`
	PaymentPollInterval  time.Duration `env:"PAYMENT_POLL_INTERVAL" default:"10s"`
	PaymentPollTimeout   time.Duration `env:"PAYMENT_POLL_TIMEOUT" default:"10m"`
	MandatePollInterval  time.Duration `env:"MANDATE_POLL_INTERVAL" default:"10s"`
	MandatePollTimeout   time.Duration `env:"MANDATE_POLL_TIMEOUT" default:"10m"`
	GoalSyncDebounce     time.Duration `env:"GOAL_SYNC_DEBOUNCE" default:"5s"`
	OutboxDispatchEvery  time.Duration `env:"OUTBOX_DISPATCH_INTERVAL" default:"1s"`
	KycRefreshInterval   time.Duration `env:"KYC_REFRESH_INTERVAL" default:"1h"`
	SchedulerWorkerCount int           `env:"SCHEDULER_WORKER_COUNT" default:"32"`
	SchedulerLockTTL     time.Duration `env:"SCHEDULER_LOCK_TTL" default:"60s"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		logger.Info("trying to publish env from file", "path", path)
		err = godotenv.Load(path)
		if err != nil {
			return errors.New("failed to load configuration file " + path + " error: " + err.Error())
		}
	}

	_, err = env.UnmarshalFromEnviron(c)

	if err != nil {
		return errors.New("failed to map env variables to Configuration object " + " error: " + err.Error())
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
