package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	herhttp "github.com/Strob0t/Herald/internal/adapter/http"
	heraldnats "github.com/Strob0t/Herald/internal/adapter/nats"
	heraldotel "github.com/Strob0t/Herald/internal/adapter/otel"
	"github.com/Strob0t/Herald/internal/adapter/postgres"
	"github.com/Strob0t/Herald/internal/adapter/ws"
	"github.com/Strob0t/Herald/internal/config"
	"github.com/Strob0t/Herald/internal/logger"
	"github.com/Strob0t/Herald/internal/middleware"
	"github.com/Strob0t/Herald/internal/secrets"
	"github.com/Strob0t/Herald/internal/service"
)

const apiKeySecret = "HERALD_API_KEY"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logSink := logger.New(cfg.Logging)
	defer logSink.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"smtp_service", cfg.SMTP.Service,
		"booking_backend", cfg.Booking.Backend,
	)

	ctx := context.Background()

	// --- Observability ---

	shutdownOTEL, err := heraldotel.Setup(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTEL(sctx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()

	metrics, err := heraldotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	if err := metrics.ObserveLogDrops(logSink.Dropped); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---

	pool, err := connectPostgres(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	queue, err := heraldnats.Connect(ctx, cfg.NATS.URL, heraldnats.Options{
		MaxDeliver: cfg.Queue.MaxDeliver,
		AckWait:    cfg.Queue.AckWait,
	})
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()
	slog.Info("nats connected", "url", cfg.NATS.URL)

	statusCache, closeCache, err := newStatusCache(ctx, cfg, queue)
	if err != nil {
		return err
	}
	defer closeCache()

	// --- Services ---

	hub := ws.NewHub(cfg.Server.CORSOrigins)
	store := postgres.NewStore(pool)

	status := service.NewStatusStore(statusCache, cfg.Cache.L2TTL, hub)

	mailSvc, err := newMailService(cfg, newMailer(cfg), status)
	if err != nil {
		return fmt.Errorf("templates: %w", err)
	}
	mailSvc.SetMetrics(metrics)

	notifySvc := service.NewNotificationService(newNotifiers(cfg), nil)
	if notifySvc.NotifierCount() > 0 {
		mailSvc.SetAlertMirror(notifySvc)
	}

	jobSvc := service.NewJobService(store, queue, mailSvc, hub)
	jobSvc.SetNotifier(notifySvc)
	jobSvc.SetMetrics(metrics)

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	cancelWorkers, err := jobSvc.StartWorkers(workerCtx, cfg.Queue.Workers)
	if err != nil {
		return fmt.Errorf("job workers: %w", err)
	}
	defer cancelWorkers()

	ident, events, err := bookingBackend(cfg, store)
	if err != nil {
		return err
	}
	bookingSvc := service.NewBookingService(ident, events, jobSvc, hub)

	processor, err := newProcessor(cfg)
	if err != nil {
		return err
	}
	var paymentSvc *service.PaymentService
	if processor != nil {
		paymentSvc = service.NewPaymentService(processor, bookingSvc)
	}

	if cfg.Reminders.Enabled {
		scheduler, err := service.NewReminderScheduler(cfg.Reminders, bookingSvc, jobSvc)
		if err != nil {
			return fmt.Errorf("reminders: %w", err)
		}
		scheduler.Start()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			scheduler.Stop(sctx)
		}()
		slog.Info("reminder scheduler started", "spec", cfg.Reminders.Spec)
	}

	// --- HTTP ---

	handlers := &herhttp.Handlers{
		Mail:         mailSvc,
		Jobs:         jobSvc,
		Booking:      bookingSvc,
		Payment:      paymentSvc,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}

	vault, err := secrets.NewVault(secrets.Merge(
		secrets.Static(map[string]string{apiKeySecret: cfg.Server.APIKey}),
		secrets.FileLoader(cfg.Server.SecretsFile),
	), apiKeySecret)
	if err != nil {
		return err
	}

	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	stopCleanup := limiter.StartCleanup(cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)
	defer stopCleanup()

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(herhttp.Logger(cfg.Server.Debug))
	r.Use(chimw.Recoverer)
	r.Use(heraldotel.HTTPMiddleware(cfg.OTEL.ServiceName))
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))
	r.Use(herhttp.SecurityHeaders)
	r.Use(limiter.Handler)
	r.Use(chimw.Timeout(30 * time.Second))

	herhttp.MountRoutes(r, handlers, herhttp.RouteOptions{
		APIKeySource: vault.Getter(apiKeySecret),
		Idempotency:  newIdempotencyStore(ctx, cfg, queue),
		WebSocket:    hub.HandleWS,
	})

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr, "payments", paymentSvc != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)

wait:
	for {
		select {
		case <-reload:
			rotated, err := vault.Reload()
			if err != nil {
				slog.Error("secrets reload failed", "error", err)
				continue
			}
			slog.Info("secrets reloaded", "file", cfg.Server.SecretsFile, "rotated", rotated)
		case <-done:
			break wait
		case err := <-serveErr:
			return fmt.Errorf("server: %w", err)
		}
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hub.Close()
	err = srv.Shutdown(shutdownCtx)
	stopWorkers()
	mailSvc.Wait()
	if derr := queue.Drain(); derr != nil {
		slog.Warn("nats drain", "error", derr)
	}
	return err
}
