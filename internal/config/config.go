package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Queue        QueueConfig
	Notification NotificationConfig
	Telemetry    TelemetryConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
	// ConnectAttempts bounds startup connection retries.
	ConnectAttempts int
	// SlowQuery is the duration above which queries are logged; 0 disables it.
	SlowQuery time.Duration
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// RegistryTTL is how long department configuration stays cached.
	RegistryTTL time.Duration
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
	// Development enables stack traces on warnings and DPanic panics.
	Development bool
	Service     string
}

// QueueConfig tunes ticket allocation and transitions.
type QueueConfig struct {
	// Store selects the backend: "postgres" or "memory" (single instance only).
	Store string
	// SeedFile is a YAML file of hospitals and departments loaded into the memory store.
	SeedFile         string
	Timezone         *time.Location
	RetryMaxAttempts int
	RetryInitial     time.Duration
	RetryMax         time.Duration
	LockTimeout      time.Duration
	Serializable     bool
}

// NotificationConfig configures delivery of patient notifications.
type NotificationConfig struct {
	Channel        string
	WebhookURL     string
	WebhookToken   string
	TelegramToken  string
	TelegramAPI    string
	RetrySchedule  []time.Duration
	PollInterval   time.Duration
	BatchSize      int
	ClaimLease     time.Duration
	AheadPositions int
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	OTLPEndpoint string
	Insecure     bool
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	loc, err := time.LoadLocation(getEnv("QUEUE_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid QUEUE_TIMEZONE: %w", err)
	}

	schedule, err := ParseDurations(getEnv("NOTIFY_RETRY_SCHEDULE", "30s,1m,5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid NOTIFY_RETRY_SCHEDULE: %w", err)
	}

	appName := getEnv("APP_NAME", "hospital-queue-engine")
	appEnv := getEnv("APP_ENV", "development")

	cfg := &Config{
		App: AppConfig{
			Name:                  appName,
			Env:                   appEnv,
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 15),
		},
		Postgres: PostgresConfig{
			DSN:             os.Getenv("POSTGRES_DSN"),
			MaxConns:        int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:        int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:   getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:   getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec:  int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec:  int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
			ConnectAttempts: getEnvAsInt("POSTGRES_CONNECT_ATTEMPTS", 5),
			SlowQuery:       time.Duration(getEnvAsInt("POSTGRES_SLOW_QUERY_MS", 250)) * time.Millisecond,
		},
		Redis: RedisConfig{
			Addr:        getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:    os.Getenv("REDIS_PASSWORD"),
			DB:          redisDB,
			RegistryTTL: time.Duration(getEnvAsInt("REGISTRY_CACHE_TTL_SECONDS", 30)) * time.Second,
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: appEnv == "development",
			Service:     appName,
		},
		Queue: QueueConfig{
			Store:            strings.ToLower(getEnv("QUEUE_STORE", "postgres")),
			SeedFile:         os.Getenv("QUEUE_SEED_FILE"),
			Timezone:         loc,
			RetryMaxAttempts: getEnvAsInt("QUEUE_RETRY_MAX_ATTEMPTS", 5),
			RetryInitial:     time.Duration(getEnvAsInt("QUEUE_RETRY_INITIAL_MS", 20)) * time.Millisecond,
			RetryMax:         time.Duration(getEnvAsInt("QUEUE_RETRY_MAX_MS", 500)) * time.Millisecond,
			LockTimeout:      time.Duration(getEnvAsInt("QUEUE_LOCK_TIMEOUT_MS", 2000)) * time.Millisecond,
			Serializable:     getEnvAsBool("QUEUE_SERIALIZABLE", false),
		},
		Notification: NotificationConfig{
			Channel:        strings.ToLower(getEnv("NOTIFY_CHANNEL", "log")),
			WebhookURL:     os.Getenv("NOTIFY_WEBHOOK_URL"),
			WebhookToken:   os.Getenv("NOTIFY_WEBHOOK_TOKEN"),
			TelegramToken:  os.Getenv("NOTIFY_TELEGRAM_TOKEN"),
			TelegramAPI:    getEnv("NOTIFY_TELEGRAM_API", "https://api.telegram.org"),
			RetrySchedule:  schedule,
			PollInterval:   time.Duration(getEnvAsInt("NOTIFY_POLL_INTERVAL_SECONDS", 5)) * time.Second,
			BatchSize:      getEnvAsInt("NOTIFY_BATCH_SIZE", 50),
			ClaimLease:     time.Duration(getEnvAsInt("NOTIFY_CLAIM_LEASE_SECONDS", 60)) * time.Second,
			AheadPositions: getEnvAsInt("NOTIFY_AHEAD_POSITIONS", 1),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Insecure:     getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// ParseDurations parses a comma separated list such as "30s,1m,5m".
func ParseDurations(raw string) ([]time.Duration, error) {
	var result []time.Duration
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := time.ParseDuration(part)
		if err != nil {
			return nil, err
		}
		if d <= 0 {
			return nil, fmt.Errorf("non-positive delay %q", part)
		}
		result = append(result, d)
	}
	return result, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
