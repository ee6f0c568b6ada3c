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

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/welldanyogia/webrana-inbox-backend/internal/api"
	"github.com/welldanyogia/webrana-inbox-backend/internal/api/handlers"
	"github.com/welldanyogia/webrana-inbox-backend/internal/api/middleware"
	"github.com/welldanyogia/webrana-inbox-backend/internal/app"
	"github.com/welldanyogia/webrana-inbox-backend/internal/classifier"
	"github.com/welldanyogia/webrana-inbox-backend/internal/config"
	"github.com/welldanyogia/webrana-inbox-backend/internal/delivery"
	"github.com/welldanyogia/webrana-inbox-backend/internal/ingest"
	"github.com/welldanyogia/webrana-inbox-backend/internal/metrics"
	"github.com/welldanyogia/webrana-inbox-backend/internal/services"
	"github.com/welldanyogia/webrana-inbox-backend/internal/smtp"
	"github.com/welldanyogia/webrana-inbox-backend/internal/websocket"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadWithValidation()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("Starting inbox backend server...")
	cfg.LogConfig(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	components, err := app.Build(ctx, cfg, logger, m)
	if err != nil {
		return err
	}
	defer components.Close()

	hub := websocket.NewHub(logger)
	go hub.Run()

	opts := []ingest.Option{ingest.WithNotifier(hub)}

	var dispatcher *classifier.Dispatcher
	if cfg.ClassifierEnabled() {
		client := classifier.NewClient(classifier.ClientConfig{
			URL:     cfg.ClassifierURL,
			APIKey:  cfg.ClassifierAPIKey,
			Timeout: cfg.ClassifierTimeout,
		})
		dispatcher = classifier.NewDispatcher(client, components.Threads, classifier.DispatcherConfig{
			Workers:   cfg.ClassifierWorkers,
			QueueSize: cfg.ClassifierQueueSize,
			Policy: classifier.RetryPolicy{
				MaxAttempts:    cfg.ClassifierMaxAttempts,
				BaseDelay:      cfg.ClassifierBaseDelay,
				MaxDelay:       cfg.ClassifierMaxDelay,
				AttemptTimeout: cfg.ClassifierTimeout,
			},
		},
			classifier.WithDispatcherLogger(logger),
			classifier.WithDispatcherMetrics(m),
			classifier.WithDispatcherNotifier(hub),
		)
		dispatcher.Start()
		opts = append(opts, ingest.WithDispatcher(dispatcher))
	} else {
		slog.Warn("CLASSIFIER_URL not set, threads will not be classified")
	}

	service, err := components.IngestService(opts...)
	if err != nil {
		return err
	}

	healthChecks := map[string]handlers.Pinger{}
	if components.Redis != nil {
		healthChecks["redis"] = components.Redis
	}

	limiter := middleware.NewIPRateLimiter(rate.Limit(cfg.RateLimitRequests), cfg.RateLimitBurst)
	go limiter.RunCleanup(ctx, time.Minute)

	router := api.NewRouter(&api.RouterConfig{
		DB:              components.DB,
		FileStorage:     components.Files,
		Logger:          logger,
		Events:          components.Events,
		Metrics:         m,
		Ingester:        service,
		Delivery:        delivery.NewUpdater(components.Messages, logger, m),
		TeamInvalidator: components.TeamCache,
		Hub:             hub,
		HealthChecks:    healthChecks,
		DNSVerifier:     services.NewDNSVerifier(services.DefaultDNSVerifierConfig(cfg.SMTPHostname)),
		APIKey:          cfg.APIKey,
		AllowedOrigins:  cfg.Origins(),
		Production:      cfg.IsProduction(),
		RateLimiter:     limiter,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.APIPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("HTTP server listening", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	var smtpServer interface {
		ListenAndServe() error
		Shutdown(ctx context.Context) error
	}
	if cfg.SMTPEnabled {
		backend := smtp.NewBackend(&smtp.BackendConfig{
			Teams:    components.TeamCache,
			Ingester: service,
			Logger:   logger,
		})
		server := smtp.NewSecureServer(backend, &smtp.ServerConfig{
			Addr:   fmt.Sprintf(":%d", cfg.SMTPPort),
			Domain: cfg.SMTPHostname,
		})
		smtpServer = server
		g.Go(func() error {
			slog.Info("SMTP server listening", slog.String("addr", server.Addr))
			if err := server.ListenAndServe(); err != nil && !isClosedError(err) {
				return fmt.Errorf("smtp server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if smtpServer != nil {
			if err := smtpServer.Shutdown(shutdownCtx); err != nil && !isClosedError(err) {
				errs = append(errs, fmt.Errorf("smtp shutdown: %w", err))
			}
		}
		if dispatcher != nil {
			if err := dispatcher.Stop(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("classifier shutdown: %w", err))
			}
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("Server stopped")
	return nil
}

func isClosedError(err error) bool {
	return errors.Is(err, smtp.ErrServerClosed)
}
