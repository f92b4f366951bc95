// Package config loads runtime settings from the environment, after an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Broker drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	Broker        BrokerConfig
	Queue         QueueConfig
	Remote        RemoteConfig
	Classifier    ClassifierConfig
	Output        OutputConfig
	Observability ObservabilityConfig
	Alerting      AlertingConfig
}

// BrokerConfig selects where the task queue and status stream live.
type BrokerConfig struct {
	Driver     string
	SQLitePath string
	Host       string
	Port       int
	User       string
	Password   string
	Database   string
	SSLMode    string
}

type QueueConfig struct {
	TaskQueue         string
	StatusQueue       string
	VisibilityTimeout time.Duration
	PollInterval      time.Duration
	MaxAttempts       int
	RetryBackoff      time.Duration
	// BrokerBackoff is the worker's pause after the queue backend itself
	// fails to hand out a task.
	BrokerBackoff time.Duration
	Concurrency   int
}

type RemoteConfig struct {
	BaseURL            string
	Capability         string
	Timeout            time.Duration
	ListenAddr         string
	RateLimitPerSecond int
	RateLimitBurst     int
	CORSOrigins        []string
}

type ClassifierConfig struct {
	RulesFile string
}

type OutputConfig struct {
	// Dir overrides where artifacts are written. Empty means the worker
	// default, "<pdf parent's parent>/output".
	Dir string
	CSV bool
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	MetricsPort    int
}

type AlertingConfig struct {
	ResendAPIKey string
	From         string
	To           []string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Broker: BrokerConfig{
			Driver:     strings.ToLower(getEnv("BROKER_DRIVER", DriverSQLite)),
			SQLitePath: getEnv("SQLITE_PATH", "extractor.db"),
			Host:       getEnv("POSTGRES_HOST", "localhost"),
			Port:       getEnvAsInt("POSTGRES_PORT", 5432),
			User:       getEnv("POSTGRES_USER", "postgres"),
			Password:   getEnv("POSTGRES_PASSWORD", "postgres"),
			Database:   getEnv("POSTGRES_DB", "extractor"),
			SSLMode:    getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Queue: QueueConfig{
			TaskQueue:         getEnv("TASK_QUEUE", "pdf_processing_tasks"),
			StatusQueue:       getEnv("STATUS_QUEUE", "pdf_status_updates"),
			VisibilityTimeout: getEnvAsDuration("QUEUE_VISIBILITY_TIMEOUT", 5*time.Minute),
			PollInterval:      getEnvAsDuration("QUEUE_POLL_INTERVAL", time.Second),
			MaxAttempts:       getEnvAsInt("QUEUE_MAX_ATTEMPTS", 5),
			RetryBackoff:      getEnvAsDuration("QUEUE_RETRY_BACKOFF", 5*time.Second),
			BrokerBackoff:     getEnvAsDuration("QUEUE_BROKER_BACKOFF", 5*time.Second),
			Concurrency:       getEnvAsInt("WORKER_CONCURRENCY", 1),
		},
		Remote: RemoteConfig{
			BaseURL:            getEnv("REMOTE_BASE_URL", "http://localhost:5001"),
			Capability:         getEnv("REMOTE_CAPABILITY", "henderson"),
			Timeout:            getEnvAsDuration("REMOTE_TIMEOUT", 60*time.Second),
			ListenAddr:         getEnv("REMOTE_LISTEN_ADDR", ":5001"),
			RateLimitPerSecond: getEnvAsInt("REMOTE_RATE_LIMIT_PER_SECOND", 10),
			RateLimitBurst:     getEnvAsInt("REMOTE_RATE_LIMIT_BURST", 20),
			CORSOrigins:        getEnvAsList("REMOTE_CORS_ORIGINS", []string{"*"}),
		},
		Classifier: ClassifierConfig{
			RulesFile: getEnv("EXTRACTION_RULES_FILE", "extraction_rules.yaml"),
		},
		Output: OutputConfig{
			Dir: getEnv("OUTPUT_DIR", ""),
			CSV: getEnvAsBool("OUTPUT_CSV", false),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
		Alerting: AlertingConfig{
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			From:         getEnv("ALERT_FROM", "extractor@localhost"),
			To:           getEnvAsList("ALERT_TO", nil),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Broker.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown BROKER_DRIVER %q (want %s or %s)", c.Broker.Driver, DriverSQLite, DriverPostgres)
	}
	if c.Queue.MaxAttempts < 1 {
		return errors.New("QUEUE_MAX_ATTEMPTS must be at least 1")
	}
	if c.Queue.Concurrency < 1 {
		return errors.New("WORKER_CONCURRENCY must be at least 1")
	}
	if c.Remote.Timeout <= 0 {
		return errors.New("REMOTE_TIMEOUT must be positive")
	}
	if c.Broker.Driver == DriverSQLite && c.Broker.SQLitePath == "" {
		return errors.New("SQLITE_PATH is required for the sqlite broker")
	}
	return nil
}

// DSN returns the Postgres connection string
func (c *BrokerConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Enabled reports whether alert emails can be sent.
func (c AlertingConfig) Enabled() bool {
	return c.ResendAPIKey != "" && len(c.To) > 0
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
