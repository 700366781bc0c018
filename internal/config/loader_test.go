package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != "3001" {
		t.Errorf("expected port 3001, got %s", cfg.Server.Port)
	}
	if cfg.SMTP.Port != 465 || cfg.SMTP.TLSMode != "ssl" {
		t.Errorf("expected implicit TLS on 465, got %d/%s", cfg.SMTP.Port, cfg.SMTP.TLSMode)
	}
	if cfg.SMTP.FallbackPort != 587 {
		t.Errorf("expected fallback port 587, got %d", cfg.SMTP.FallbackPort)
	}
	if cfg.Breaker.Timeout != 30*time.Second {
		t.Errorf("expected breaker timeout 30s, got %v", cfg.Breaker.Timeout)
	}
	if cfg.Mail.EventOrg != "College Event Management System" {
		t.Errorf("unexpected event org %q", cfg.Mail.EventOrg)
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "test.yaml")

	content := `
server:
  port: "9090"
  cors_origins: ["http://example.com", "http://localhost:5173"]
smtp:
  host: "mail.example.com"
  port: 2525
  tls_mode: "starttls"
logging:
  level: "debug"
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[0] != "http://example.com" {
		t.Errorf("unexpected cors origins %v", cfg.Server.CORSOrigins)
	}
	if cfg.SMTP.Host != "mail.example.com" || cfg.SMTP.Port != 2525 || cfg.SMTP.TLSMode != "starttls" {
		t.Errorf("unexpected smtp config %+v", cfg.SMTP)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
	// Unchanged fields keep defaults
	if cfg.NATS.URL != "nats://localhost:4222" {
		t.Errorf("expected default NATS URL, got %s", cfg.NATS.URL)
	}
}

func TestLoadYAMLMissing(t *testing.T) {
	cfg := Defaults()
	err := loadYAML(&cfg, "/nonexistent/path.yaml")
	if err != nil {
		t.Errorf("missing YAML should not error, got %v", err)
	}
}

func TestLoadYAMLInvalid(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(yamlPath, []byte("server: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err == nil {
		t.Error("expected parse error, got nil")
	}
}

func TestEnvOverride(t *testing.T) {
	cfg := Defaults()

	t.Setenv("PORT", "7070")
	t.Setenv("DATABASE_URL", "postgres://test:test@db:5432/test")
	t.Setenv("HERALD_PG_MAX_CONNS", "25")
	t.Setenv("HERALD_LOG_LEVEL", "warn")
	t.Setenv("HERALD_BREAKER_TIMEOUT", "1m")
	t.Setenv("EMAIL_USER", "events@example.com")
	t.Setenv("EMAIL_PASS", "app-password")
	t.Setenv("DEBUG_MODE", "true")

	loadEnv(&cfg)

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port 7070, got %s", cfg.Server.Port)
	}
	if cfg.Postgres.DSN != "postgres://test:test@db:5432/test" {
		t.Errorf("expected test DSN, got %s", cfg.Postgres.DSN)
	}
	if cfg.Postgres.MaxConns != 25 {
		t.Errorf("expected max_conns 25, got %d", cfg.Postgres.MaxConns)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected log level warn, got %s", cfg.Logging.Level)
	}
	if cfg.Breaker.Timeout != time.Minute {
		t.Errorf("expected breaker timeout 1m, got %v", cfg.Breaker.Timeout)
	}
	if cfg.SMTP.Username != "events@example.com" || cfg.SMTP.Password != "app-password" {
		t.Errorf("expected smtp credentials from env, got %q/%q", cfg.SMTP.Username, cfg.SMTP.Password)
	}
	if !cfg.Server.Debug {
		t.Error("expected debug mode from DEBUG_MODE")
	}
}

func TestEnvPrefixedPortWins(t *testing.T) {
	cfg := Defaults()
	t.Setenv("PORT", "7070")
	t.Setenv("HERALD_PORT", "8081")

	loadEnv(&cfg)

	if cfg.Server.Port != "8081" {
		t.Errorf("expected HERALD_PORT to win, got %s", cfg.Server.Port)
	}
}

func TestEnvLists(t *testing.T) {
	cfg := Defaults()
	t.Setenv("ALLOWED_ORIGINS", "http://a.example, ,http://b.example ")
	t.Setenv("ADDITIONAL_TEST_EMAILS", "qa@example.com,ops@example.com")

	loadEnv(&cfg)

	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "http://b.example" {
		t.Errorf("unexpected origins %v", cfg.Server.CORSOrigins)
	}
	if len(cfg.Mail.ExtraTestBCC) != 2 || cfg.Mail.ExtraTestBCC[0] != "qa@example.com" {
		t.Errorf("unexpected bcc list %v", cfg.Mail.ExtraTestBCC)
	}
}

func TestEnvInvalidValuesIgnored(t *testing.T) {
	cfg := Defaults()
	t.Setenv("EMAIL_PORT", "not-a-number")
	t.Setenv("HERALD_SMTP_TIMEOUT", "soon")

	loadEnv(&cfg)

	if cfg.SMTP.Port != 465 {
		t.Errorf("expected port to stay 465, got %d", cfg.SMTP.Port)
	}
	if cfg.SMTP.Timeout != 60*time.Second {
		t.Errorf("expected timeout to stay 60s, got %v", cfg.SMTP.Timeout)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("HERALD_DOTENV_LOADED=from-file\nHERALD_DOTENV_KEEP=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HERALD_DOTENV_KEEP", "from-env")
	t.Cleanup(func() { _ = os.Unsetenv("HERALD_DOTENV_LOADED") })

	if err := loadDotEnv(envPath); err != nil {
		t.Fatal(err)
	}

	if got := os.Getenv("HERALD_DOTENV_LOADED"); got != "from-file" {
		t.Errorf("expected value from .env, got %q", got)
	}
	if got := os.Getenv("HERALD_DOTENV_KEEP"); got != "from-env" {
		t.Errorf("real env must win over .env, got %q", got)
	}
}

func TestLoadDotEnvMissing(t *testing.T) {
	if err := loadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Errorf("missing .env should not error, got %v", err)
	}
}

func TestValidateRequired(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{
			name:   "empty port",
			modify: func(c *Config) { c.Server.Port = "" },
			errMsg: "server.port is required",
		},
		{
			name:   "empty DSN",
			modify: func(c *Config) { c.Postgres.DSN = "" },
			errMsg: "postgres.dsn is required",
		},
		{
			name:   "empty NATS URL",
			modify: func(c *Config) { c.NATS.URL = "" },
			errMsg: "nats.url is required",
		},
		{
			name:   "zero max_conns",
			modify: func(c *Config) { c.Postgres.MaxConns = 0 },
			errMsg: "postgres.max_conns must be >= 1",
		},
		{
			name:   "zero breaker failures",
			modify: func(c *Config) { c.Breaker.MaxFailures = 0 },
			errMsg: "breaker.max_failures must be >= 1",
		},
		{
			name:   "zero rate burst",
			modify: func(c *Config) { c.Rate.Burst = 0 },
			errMsg: "rate.burst must be >= 1",
		},
		{
			name:   "missing smtp host",
			modify: func(c *Config) { c.SMTP.Host = "" },
			errMsg: "smtp.host and smtp.port are required",
		},
		{
			name:   "unknown smtp service",
			modify: func(c *Config) { c.SMTP.Service = "pigeon" },
			errMsg: `smtp.service "pigeon" is not supported`,
		},
		{
			name:   "bad tls mode",
			modify: func(c *Config) { c.SMTP.TLSMode = "none" },
			errMsg: `smtp.tls_mode "none" must be ssl or starttls`,
		},
		{
			name:   "zero queue workers",
			modify: func(c *Config) { c.Queue.Workers = 0 },
			errMsg: "queue.workers must be >= 1",
		},
		{
			name:   "supabase backend without url",
			modify: func(c *Config) { c.Booking.Backend = "supabase" },
			errMsg: "supabase.url and supabase.anon_key are required for the supabase backend",
		},
		{
			name:   "unknown booking backend",
			modify: func(c *Config) { c.Booking.Backend = "mysql" },
			errMsg: `booking.backend "mysql" is not supported`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(&cfg)
			err := validate(&cfg)
			if err == nil {
				t.Fatalf("expected error %q, got nil", tt.errMsg)
			}
			if err.Error() != tt.errMsg {
				t.Errorf("expected %q, got %q", tt.errMsg, err.Error())
			}
		})
	}
}

func TestValidateDefaults(t *testing.T) {
	cfg := Defaults()
	if err := validate(&cfg); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestValidateLogServiceSkipsHost(t *testing.T) {
	cfg := Defaults()
	cfg.SMTP.Service = "log"
	cfg.SMTP.Host = ""
	if err := validate(&cfg); err != nil {
		t.Errorf("log mailer should not need a host, got %v", err)
	}
}

func TestLoadFrom_FullHierarchy(t *testing.T) {
	// YAML sets port=9090, env overrides to 7070. Env must win.
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(yamlPath, []byte(`
server:
  port: "9090"
logging:
  level: "debug"
`), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("HERALD_PORT", "7070")
	t.Setenv("HERALD_LOG_LEVEL", "warn")

	cfg, err := LoadFrom(yamlPath)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("env should override YAML: got port %q, want 7070", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("env should override YAML: got level %q, want warn", cfg.Logging.Level)
	}
}

func TestLoadFrom_InvalidConfig(t *testing.T) {
	t.Setenv("HERALD_BOOKING_BACKEND", "mysql")

	if _, err := LoadFrom(filepath.Join(t.TempDir(), "none.yaml")); err == nil {
		t.Fatal("expected validation error, got nil")
	}
}

func TestSMTPSender(t *testing.T) {
	s := SMTP{Username: "events@example.edu"}
	if got := s.Sender("College Event Management System"); got != `"College Event Management System" <events@example.edu>` {
		t.Errorf("Sender = %q", got)
	}
	s.From = "noreply@example.edu"
	if got := s.Sender("ignored"); got != "noreply@example.edu" {
		t.Errorf("Sender with From = %q", got)
	}
	if got := (SMTP{}).Sender("org"); got != "" {
		t.Errorf("Sender without user = %q", got)
	}
}
