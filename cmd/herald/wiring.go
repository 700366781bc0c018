package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	heraldnats "github.com/Strob0t/Herald/internal/adapter/nats"
	"github.com/Strob0t/Herald/internal/adapter/natskv"
	"github.com/Strob0t/Herald/internal/adapter/postgres"
	"github.com/Strob0t/Herald/internal/adapter/ristretto"
	"github.com/Strob0t/Herald/internal/adapter/smtp"
	"github.com/Strob0t/Herald/internal/adapter/stripe"
	"github.com/Strob0t/Herald/internal/adapter/supabase"
	"github.com/Strob0t/Herald/internal/adapter/tiered"
	"github.com/Strob0t/Herald/internal/config"
	"github.com/Strob0t/Herald/internal/port/cache"
	"github.com/Strob0t/Herald/internal/port/database"
	"github.com/Strob0t/Herald/internal/port/identity"
	"github.com/Strob0t/Herald/internal/port/mailer"
	"github.com/Strob0t/Herald/internal/port/notifier"
	"github.com/Strob0t/Herald/internal/port/payment"
	"github.com/Strob0t/Herald/internal/resilience"
	"github.com/Strob0t/Herald/internal/service"
	"github.com/Strob0t/Herald/internal/templates"
)

// newMailer builds the configured transport.
func newMailer(cfg *config.Config) mailer.Mailer {
	if cfg.SMTP.Service == "log" {
		return smtp.NewLogMailer(cfg.SMTP.Sender(cfg.Mail.EventOrg))
	}
	b := resilience.NewNamedBreaker("smtp", cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	return smtp.New(cfg.SMTP, b)
}

// newMailService assembles the mail service around m and the status store.
func newMailService(cfg *config.Config, m mailer.Mailer, status *service.StatusStore) (*service.MailService, error) {
	tmpl, err := templates.New(cfg.Mail.EventOrg, cfg.Mail.AlertOrg)
	if err != nil {
		return nil, err
	}
	return service.NewMailService(m, tmpl, status, service.MailConfig{
		EventFrom:      cfg.SMTP.Sender(cfg.Mail.EventOrg),
		AlertFrom:      cfg.SMTP.Sender(cfg.Mail.AlertOrg),
		TestRecipient:  cfg.Mail.TestRecipient,
		SMTPUser:       cfg.SMTP.Username,
		ExtraTestBCC:   cfg.Mail.ExtraTestBCC,
		MaxConcurrency: cfg.SMTP.MaxConcurrency,
	}), nil
}

// newStatusCache layers the in-process cache over the NATS KV bucket. When
// the bucket cannot be opened the in-process cache is used alone.
func newStatusCache(ctx context.Context, cfg *config.Config, queue *heraldnats.Queue) (cache.Cache, func(), error) {
	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB, cfg.Cache.L2TTL)
	if err != nil {
		return nil, nil, fmt.Errorf("l1 cache: %w", err)
	}
	kv, err := queue.KeyValue(ctx, cfg.Cache.L2Bucket, cfg.Cache.L2TTL)
	if err != nil {
		slog.Warn("status KV bucket unavailable, using in-process cache only", "bucket", cfg.Cache.L2Bucket, "error", err)
		return l1, l1.Close, nil
	}
	return tiered.New(l1, natskv.New(kv), cfg.Cache.L2TTL), l1.Close, nil
}

// newIdempotencyStore opens the replay bucket; nil disables replay.
func newIdempotencyStore(ctx context.Context, cfg *config.Config, queue *heraldnats.Queue) cache.Cache {
	kv, err := queue.KeyValue(ctx, cfg.Idempotency.Bucket, cfg.Idempotency.TTL)
	if err != nil {
		slog.Warn("idempotency bucket unavailable, replay disabled", "bucket", cfg.Idempotency.Bucket, "error", err)
		return nil
	}
	return natskv.New(kv)
}

// bookingBackend returns the identity provider and event store selected by
// booking.backend.
func bookingBackend(cfg *config.Config, store *postgres.Store) (identity.Provider, database.EventStore, error) {
	switch cfg.Booking.Backend {
	case "supabase":
		b := resilience.NewNamedBreaker("supabase", cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
		client, err := supabase.New(cfg.Supabase, b)
		if err != nil {
			return nil, nil, fmt.Errorf("supabase: %w", err)
		}
		return client, client, nil
	default:
		authCfg := cfg.Auth
		if authCfg.JWTSecret == "" {
			authCfg.JWTSecret = randomSecret()
			slog.Warn("auth.jwt_secret not set, generated an ephemeral secret; portal tokens will not survive a restart")
		}
		return service.NewAuthService(store, authCfg), store, nil
	}
}

// newProcessor returns the payment processor, or nil when payments are not
// configured.
func newProcessor(cfg *config.Config) (payment.Processor, error) {
	if cfg.Stripe.SecretKey == "" {
		return nil, nil
	}
	b := resilience.NewNamedBreaker("stripe", cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	p, err := stripe.New(cfg.Stripe, b)
	if err != nil {
		return nil, fmt.Errorf("stripe: %w", err)
	}
	return p, nil
}

// newNotifiers builds the chat mirrors that have a webhook configured. A
// mirror that cannot be built is logged and left out.
func newNotifiers(cfg *config.Config) []notifier.Notifier {
	out, err := notifier.FromWebhooks(map[string]string{
		"slack":   cfg.Notifiers.SlackWebhookURL,
		"discord": cfg.Notifiers.DiscordWebhookURL,
	})
	if err != nil {
		slog.Warn("notifier unavailable", "error", err)
	}
	return out
}

func connectPostgres(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	return pool, nil
}

func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
