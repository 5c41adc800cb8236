package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/UnknownOlympus/hotelgate/internal/cache"
	"github.com/UnknownOlympus/hotelgate/internal/config"
	"github.com/UnknownOlympus/hotelgate/internal/i18n"
	"github.com/UnknownOlympus/hotelgate/internal/metrics"
	"github.com/UnknownOlympus/hotelgate/internal/notification"
	"github.com/UnknownOlympus/hotelgate/internal/proxy"
	"github.com/UnknownOlympus/hotelgate/internal/server"
	"github.com/UnknownOlympus/hotelgate/internal/session"
	"github.com/UnknownOlympus/hotelgate/internal/storage"
	"github.com/UnknownOlympus/hotelgate/internal/telemetry"
	"github.com/UnknownOlympus/hotelgate/internal/upstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Constants for different environment types.
const (
	envLocal     = "local"
	envDev       = "development"
	envProd      = "production"
	serviceName  = "hotelgate"
	redisTimeout = 5 * time.Second
	grace        = 10 * time.Second
)

// main is the entry point of the application.
func main() {
	// Create a context that will be canceled when an interrupt signal is received.
	// This allows for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load application configuration.
	cfg := config.MustLoad()

	// Set up the logger based on the environment.
	logger := setupLogger(cfg.Env)

	shutdownTracing := telemetry.Setup(ctx, logger, serviceName)
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error("Failed to shutdown tracing", "error", err)
		}
	}()

	// Create a separate registry for metrics with exemplar
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)

	// Sessions and notifications live in the configured client state store.
	store, err := storage.Open(ctx, storage.Options{
		Driver:   cfg.Storage.Driver,
		BoltPath: cfg.Storage.BoltPath,
		Postgres: storage.PostgresOptions{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.Name,
			SSLMode:  cfg.Database.SSLMode,
		},
	})
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	backend, err := upstream.NewClient(logger, appMetrics, upstream.Options{
		BaseURLs:   cfg.Backend.BaseURLs,
		ProxyURL:   cfg.Backend.ProxyURL,
		Retries:    cfg.Backend.Retries,
		RetryDelay: cfg.Backend.RetryDelay,
		Timeout:    cfg.Backend.Timeout,
		Transport:  otelhttp.NewTransport(http.DefaultTransport),
	})
	if err != nil {
		log.Fatalf("Failed to create backend client: %v", err)
	}

	// The response cache is optional; without redis offline reads are not served.
	var (
		responseCache proxy.ResponseCache
		cachePinger   server.Pinger
	)
	if cfg.Redis.Addr != "" {
		redisClient, redisErr := cache.NewClient(ctx, cfg.Redis.Addr, redisTimeout)
		if redisErr != nil {
			log.Fatalf("Failed to connect to Redis: %v", redisErr)
		}
		defer redisClient.Close()
		responses := cache.NewResponseCache(redisClient, logger, appMetrics, cfg.Redis.TTL)
		responseCache, cachePinger = responses, responses
	}

	localizer, err := i18n.NewLocalizer()
	if err != nil {
		log.Fatalf("Failed to load translations: %v", err)
	}

	notifications := notification.NewStore(store, cfg.Notifications.Capacity)
	var sinks []notification.Sink
	if cfg.Telegram.Token != "" {
		telegram, sinkErr := notification.NewTelegramSink(cfg.Telegram.Token, cfg.Telegram.ChatID, cfg.Telegram.APIURL)
		if sinkErr != nil {
			log.Fatalf("Failed to create telegram sink: %v", sinkErr)
		}
		sinks = append(sinks, telegram)
	}
	if cfg.Backend.ServiceToken == "" {
		logger.Warn("No backend service token configured, notification polling runs unauthenticated")
	}
	pollBackend := upstream.Authorized{Backend: backend, Token: cfg.Backend.ServiceToken}
	poller := notification.NewPoller(
		logger, appMetrics, pollBackend, notifications, cfg.Notifications.PollInterval, sinks,
	)

	handler := proxy.NewHandler(
		logger,
		appMetrics,
		backend,
		responseCache,
		session.NewRepository(store),
		notifications,
		localizer,
		proxy.Options{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			OfflineMode:    cfg.OfflineMode,
			PageSize:       cfg.Views.PageSize,
			RetryAttempts:  cfg.Views.RetryAttempts,
			RetryBackoff:   cfg.Views.RetryBackoff,
		},
	)

	readTimeout := 15
	writeTimeout := 60
	proxyServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      otelhttp.NewHandler(handler.Routes(), serviceName),
		ReadTimeout:  time.Duration(readTimeout) * time.Second,
		WriteTimeout: time.Duration(writeTimeout) * time.Second,
	}

	// Log that the application has started.
	logger.InfoContext(ctx, "Application started. Press Ctrl+C to stop.",
		"listen_addr", cfg.ListenAddr, "offline_mode", cfg.OfflineMode, "storage", cfg.Storage.Driver)

	var wg sync.WaitGroup
	wg.Add(3) //nolint:mnd // proxy, poller and monitoring
	go func() {
		defer wg.Done()
		poller.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		server.Serve(ctx, logger, proxyServer, "Proxy server", grace)
	}()
	go func() {
		defer wg.Done()
		health := server.NewHealthChecker(logger, store, backend, cachePinger)
		server.StartMonitoringServer(ctx, logger, reg, health, cfg.MonitoringPort)
	}()

	// Wait for the context to be canceled (e.g., by Ctrl+C).
	<-ctx.Done()

	// Log that a shutdown signal has been received.
	logger.InfoContext(ctx, "Shutdown signal received. Stopping application...")

	wg.Wait()

	// Log graceful shutdown completion.
	logger.InfoContext(ctx, "Application stopped gracefully.")
}

// setupLogger initializes and returns a logger based on the environment provided.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelDebug,
				AddSource: true,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					return a
				},
			}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelInfo,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					return a
				},
			}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelWarn,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{}
					}
					return a
				},
			}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelError,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{}
					}
					return a
				},
			}),
		)

		log.Error(
			"The env parameter was not specified or was invalid. Logging will be minimal, by default.",
			slog.String("available_envs", "local, development, production"))
	}

	return log
}
