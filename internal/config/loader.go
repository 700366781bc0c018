package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "herald.yaml"

// DefaultEnvFile is the dotenv file loaded before environment overrides.
const DefaultEnvFile = ".env"

// Load returns a Config using the hierarchy: defaults < YAML < .env < ENV.
// Both files are optional; a missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < .env < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	if err := loadDotEnv(DefaultEnvFile); err != nil {
		return nil, fmt.Errorf("config dotenv: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadDotEnv populates the process environment from a dotenv file.
// Variables already present in the environment are left untouched.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
// Unprefixed names are the ones the legacy mail servers were deployed with.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Server.Port, "HERALD_PORT")
	setList(&cfg.Server.CORSOrigins, "ALLOWED_ORIGINS")
	setBool(&cfg.Server.Debug, "DEBUG_MODE")
	setString(&cfg.Server.APIKey, "HERALD_API_KEY")
	setString(&cfg.Server.SecretsFile, "HERALD_SECRETS_FILE")
	setInt64(&cfg.Server.MaxBodyBytes, "HERALD_MAX_BODY_BYTES")

	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "HERALD_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "HERALD_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "HERALD_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "HERALD_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "HERALD_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")

	setString(&cfg.Logging.Level, "HERALD_LOG_LEVEL")
	setString(&cfg.Logging.Service, "HERALD_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "HERALD_LOG_ASYNC")
	setInt(&cfg.Breaker.MaxFailures, "HERALD_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "HERALD_BREAKER_TIMEOUT")
	setFloat64(&cfg.Rate.RequestsPerSecond, "HERALD_RATE_RPS")
	setInt(&cfg.Rate.Burst, "HERALD_RATE_BURST")
	setDuration(&cfg.Rate.CleanupInterval, "HERALD_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "HERALD_RATE_MAX_IDLE_TIME")

	// SMTP
	setString(&cfg.SMTP.Service, "EMAIL_SERVICE")
	setString(&cfg.SMTP.Host, "EMAIL_HOST")
	setInt(&cfg.SMTP.Port, "EMAIL_PORT")
	setString(&cfg.SMTP.Username, "EMAIL_USER")
	setString(&cfg.SMTP.Password, "EMAIL_PASS")
	setString(&cfg.SMTP.From, "EMAIL_FROM")
	setString(&cfg.SMTP.TLSMode, "HERALD_SMTP_TLS_MODE")
	setInt(&cfg.SMTP.FallbackPort, "HERALD_SMTP_FALLBACK_PORT")
	setDuration(&cfg.SMTP.Timeout, "HERALD_SMTP_TIMEOUT")
	setFloat64(&cfg.SMTP.MaxPerSecond, "HERALD_SMTP_MAX_PER_SECOND")
	setInt(&cfg.SMTP.Burst, "HERALD_SMTP_BURST")
	setInt(&cfg.SMTP.MaxConcurrency, "HERALD_SMTP_MAX_CONCURRENCY")

	// Mail content
	setString(&cfg.Mail.EventOrg, "HERALD_EVENT_ORG")
	setString(&cfg.Mail.AlertOrg, "HERALD_ALERT_ORG")
	setString(&cfg.Mail.TestRecipient, "TEST_EMAIL")
	setList(&cfg.Mail.ExtraTestBCC, "ADDITIONAL_TEST_EMAILS")

	// Queue
	setInt(&cfg.Queue.Workers, "HERALD_QUEUE_WORKERS")
	setInt(&cfg.Queue.MaxDeliver, "HERALD_QUEUE_MAX_DELIVER")
	setDuration(&cfg.Queue.AckWait, "HERALD_QUEUE_ACK_WAIT")

	// Cache
	setInt64(&cfg.Cache.L1MaxSizeMB, "HERALD_CACHE_L1_SIZE_MB")
	setString(&cfg.Cache.L2Bucket, "HERALD_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.L2TTL, "HERALD_CACHE_L2_TTL")

	// Idempotency
	setString(&cfg.Idempotency.Bucket, "HERALD_IDEMPOTENCY_BUCKET")
	setDuration(&cfg.Idempotency.TTL, "HERALD_IDEMPOTENCY_TTL")

	// Supabase
	setString(&cfg.Supabase.URL, "SUPABASE_URL")
	setString(&cfg.Supabase.AnonKey, "SUPABASE_KEY")
	setString(&cfg.Supabase.ServiceKey, "SUPABASE_SERVICE_KEY")
	setString(&cfg.Supabase.JWTSecret, "SUPABASE_JWT_SECRET")
	setDuration(&cfg.Supabase.Timeout, "HERALD_SUPABASE_TIMEOUT")

	// Stripe
	setString(&cfg.Stripe.SecretKey, "STRIPE_KEY")
	setString(&cfg.Stripe.PriceID, "STRIPE_PRICE_ID")
	setString(&cfg.Stripe.SuccessURL, "STRIPE_SUCCESS_URL")
	setString(&cfg.Stripe.CancelURL, "STRIPE_CANCEL_URL")
	setString(&cfg.Stripe.WebhookSecret, "STRIPE_WEBHOOK_SECRET")

	setString(&cfg.Booking.Backend, "HERALD_BOOKING_BACKEND")
	setString(&cfg.Auth.JWTSecret, "HERALD_JWT_SECRET")
	setDuration(&cfg.Auth.AccessTokenExpiry, "HERALD_ACCESS_TOKEN_EXPIRY")
	setInt(&cfg.Auth.BcryptCost, "HERALD_BCRYPT_COST")
	setBool(&cfg.Reminders.Enabled, "HERALD_REMINDERS_ENABLED")
	setString(&cfg.Reminders.Spec, "HERALD_REMINDERS_SPEC")
	setString(&cfg.Reminders.PurgeSpec, "HERALD_JOBS_PURGE_SPEC")
	setDuration(&cfg.Reminders.RetainJobs, "HERALD_JOBS_RETAIN")
	setString(&cfg.Notifiers.SlackWebhookURL, "HERALD_SLACK_WEBHOOK_URL")
	setString(&cfg.Notifiers.DiscordWebhookURL, "HERALD_DISCORD_WEBHOOK_URL")

	// OpenTelemetry
	setBool(&cfg.OTEL.Enabled, "HERALD_OTEL_ENABLED")
	setString(&cfg.OTEL.Endpoint, "HERALD_OTEL_ENDPOINT")
	setString(&cfg.OTEL.ServiceName, "HERALD_OTEL_SERVICE_NAME")
	setBool(&cfg.OTEL.Insecure, "HERALD_OTEL_INSECURE")
	setFloat64(&cfg.OTEL.SampleRate, "HERALD_OTEL_SAMPLE_RATE")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	switch cfg.SMTP.Service {
	case "gmail", "smtp":
		if cfg.SMTP.Host == "" || cfg.SMTP.Port == 0 {
			return errors.New("smtp.host and smtp.port are required")
		}
	case "log":
	default:
		return fmt.Errorf("smtp.service %q is not supported", cfg.SMTP.Service)
	}
	if cfg.SMTP.TLSMode != "ssl" && cfg.SMTP.TLSMode != "starttls" {
		return fmt.Errorf("smtp.tls_mode %q must be ssl or starttls", cfg.SMTP.TLSMode)
	}
	if cfg.SMTP.MaxConcurrency < 1 {
		return errors.New("smtp.max_concurrency must be >= 1")
	}
	if cfg.Queue.Workers < 1 {
		return errors.New("queue.workers must be >= 1")
	}
	switch cfg.Booking.Backend {
	case "postgres":
		if cfg.Auth.BcryptCost < 4 || cfg.Auth.BcryptCost > 31 {
			return errors.New("auth.bcrypt_cost must be between 4 and 31")
		}
	case "supabase":
		if cfg.Supabase.URL == "" || cfg.Supabase.AnonKey == "" {
			return errors.New("supabase.url and supabase.anon_key are required for the supabase backend")
		}
	default:
		return fmt.Errorf("booking.backend %q is not supported", cfg.Booking.Backend)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setList splits a comma-separated value, dropping blanks.
func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
