package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/yungbote/nearby-backend/internal/clients/oracle"
	"github.com/yungbote/nearby-backend/internal/data/db"
	"github.com/yungbote/nearby-backend/internal/observability"
	"github.com/yungbote/nearby-backend/internal/realtime"
	"github.com/yungbote/nearby-backend/internal/temporalx"
)

type PostgresConfig struct {
	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     string `env:"POSTGRES_PORT" envDefault:"5432"`
	User     string `env:"POSTGRES_USER" envDefault:"postgres"`
	Password string `env:"POSTGRES_PASSWORD"`
	Name     string `env:"POSTGRES_NAME" envDefault:"nearby"`
	SSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`
}

type OracleConfig struct {
	BaseURL    string        `env:"ORACLE_BASE_URL" envDefault:"https://api.openai.com"`
	APIKey     string        `env:"ORACLE_API_KEY"`
	Model      string        `env:"ORACLE_MODEL" envDefault:"gpt-4o-mini"`
	EmbedModel string        `env:"ORACLE_EMBED_MODEL" envDefault:"text-embedding-3-small"`
	Timeout    time.Duration `env:"ORACLE_TIMEOUT" envDefault:"30s"`
	MaxRetries int           `env:"ORACLE_MAX_RETRIES" envDefault:"0"`
	RateMax    int           `env:"ORACLE_RATE_MAX" envDefault:"60"`
	RateWindow time.Duration `env:"ORACLE_RATE_WINDOW" envDefault:"1m"`
}

type JobConfig struct {
	Concurrency  int           `env:"WORKER_CONCURRENCY" envDefault:"4"`
	MaxAttempts  int           `env:"JOB_MAX_ATTEMPTS" envDefault:"5"`
	RetryDelay   time.Duration `env:"JOB_RETRY_DELAY" envDefault:"30s"`
	StaleRunning time.Duration `env:"JOB_STALE_RUNNING" envDefault:"10m"`
	PollInterval time.Duration `env:"JOB_POLL_INTERVAL" envDefault:"1s"`
}

type RedisConfig struct {
	Addr    string `env:"REDIS_ADDR"`
	Channel string `env:"REDIS_CHANNEL" envDefault:"nearby-events"`
}

type TemporalConfig struct {
	Address               string        `env:"TEMPORAL_ADDRESS"`
	Namespace             string        `env:"TEMPORAL_NAMESPACE" envDefault:"nearby"`
	TaskQueue             string        `env:"TEMPORAL_TASK_QUEUE" envDefault:"nearby-analysis"`
	ClientCertPath        string        `env:"TEMPORAL_TLS_CERT_PATH"`
	ClientKeyPath         string        `env:"TEMPORAL_TLS_KEY_PATH"`
	ClientCAPath          string        `env:"TEMPORAL_TLS_CA_PATH"`
	DialMaxWait           time.Duration `env:"TEMPORAL_DIAL_MAX_WAIT" envDefault:"60s"`
	AutoRegisterNamespace bool          `env:"TEMPORAL_AUTO_REGISTER_NAMESPACE" envDefault:"false"`
}

type OtelConfig struct {
	Enabled     bool              `env:"OTEL_ENABLED" envDefault:"false"`
	ServiceName string            `env:"OTEL_SERVICE_NAME" envDefault:"nearby-backend"`
	Environment string            `env:"OTEL_ENVIRONMENT" envDefault:"development"`
	Version     string            `env:"OTEL_SERVICE_VERSION"`
	Endpoint    string            `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Headers     map[string]string `env:"OTEL_EXPORTER_OTLP_HEADERS" envKeyValSeparator:"="`
	Insecure    bool              `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"false"`
	SampleRatio float64           `env:"OTEL_SAMPLE_RATIO" envDefault:"1"`
}

type Config struct {
	Port                string   `env:"PORT" envDefault:"8080"`
	LogMode             string   `env:"LOG_MODE" envDefault:"development"`
	LogRedaction        bool     `env:"LOG_REDACTION_ENABLED" envDefault:"true"`
	LogHashSalt         string   `env:"LOG_HASH_SALT"`
	JWTSecretKey        string   `env:"JWT_SECRET_KEY" envDefault:"defaultsecret"`
	DefaultRadiusMeters float64  `env:"DEFAULT_RADIUS_METERS" envDefault:"2000"`
	CORSOrigins         []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	Postgres PostgresConfig
	Oracle   OracleConfig
	Jobs     JobConfig
	Redis    RedisConfig
	Temporal TemporalConfig
	Otel     OtelConfig
}

// LoadConfig reads .env files when present, then the process environment.
// Real environment variables win over file values.
func LoadConfig(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env.local", ".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.JWTSecretKey) == "" {
		return fmt.Errorf("JWT_SECRET_KEY must not be empty")
	}
	if c.DefaultRadiusMeters < 0 {
		return fmt.Errorf("DEFAULT_RADIUS_METERS must be >= 0")
	}
	if c.Jobs.Concurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be >= 1")
	}
	if c.Oracle.RateMax < 1 || c.Oracle.RateWindow <= 0 {
		return fmt.Errorf("ORACLE_RATE_MAX and ORACLE_RATE_WINDOW must be positive")
	}
	return nil
}

func (c Config) Addr() string { return ":" + strings.TrimPrefix(c.Port, ":") }

func (c PostgresConfig) db() db.PostgresConfig {
	return db.PostgresConfig{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		Name:     c.Name,
		SSLMode:  c.SSLMode,
	}
}

func (c OracleConfig) client() oracle.Config {
	return oracle.Config{
		BaseURL:    c.BaseURL,
		APIKey:     c.APIKey,
		Model:      c.Model,
		EmbedModel: c.EmbedModel,
		Timeout:    c.Timeout,
		MaxRetries: c.MaxRetries,
		Gate:       oracle.NewRateGate(c.RateMax, c.RateWindow),
	}
}

func (c RedisConfig) relay() realtime.RelayConfig {
	return realtime.RelayConfig{Addr: c.Addr, Channel: c.Channel}
}

func (c TemporalConfig) client() temporalx.Config {
	return temporalx.Config{
		Address:               c.Address,
		Namespace:             c.Namespace,
		TaskQueue:             c.TaskQueue,
		ClientCertPath:        c.ClientCertPath,
		ClientKeyPath:         c.ClientKeyPath,
		ClientCAPath:          c.ClientCAPath,
		DialMaxWait:           c.DialMaxWait,
		AutoRegisterNamespace: c.AutoRegisterNamespace,
	}
}

func (c OtelConfig) otel() observability.OtelConfig {
	return observability.OtelConfig{
		Enabled:     c.Enabled,
		ServiceName: c.ServiceName,
		Environment: c.Environment,
		Version:     c.Version,
		Endpoint:    c.Endpoint,
		Headers:     c.Headers,
		Insecure:    c.Insecure,
		SampleRatio: c.SampleRatio,
	}
}
