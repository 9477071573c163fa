// Package main is the entry point for the push notification API.
//
// It loads configuration, connects the Postgres pool (and the optional
// Redis membership cache), builds the gateway client and the dispatch
// pipeline, mounts the notification routes on the core chassis and serves
// them either as a plain HTTP server or, inside AWS Lambda, behind the API
// Gateway proxy adapter.
//
// Graceful shutdown waits for in-flight delivery log writes and flushes
// buffered metrics before closing the stores.
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

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"campuspush/internal/api/handlers"
	"campuspush/internal/config"
	"campuspush/internal/core"
	"campuspush/internal/db"
	"campuspush/internal/dispatch"
	"campuspush/internal/gateway"
	"campuspush/internal/metrics"
)

const (
	shutdownTimeout    = 10 * time.Second
	breakerOpenTimeout = 30 * time.Second
	cloudWatchInterval = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("campuspush API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
		"metrics_backend", cfg.Observability.MetricsBackend,
	)

	ctx := context.Background()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if isLambdaEnvironment() {
		runLambda(a, logger)
		return nil
	}
	return runHTTPServer(a, cfg, logger)
}

// app owns every long-lived resource so shutdown can release them in order.
type app struct {
	server *core.Server
	logs   *dispatch.LogWriter

	pool       *pgxpool.Pool
	redis      *redis.Client
	cloudwatch *metrics.CloudWatch
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	a.pool = pool

	recorder, metricsHandler, err := a.newRecorder(ctx, cfg, logger)
	if err != nil {
		a.close(ctx, logger)
		return nil, err
	}

	probes := []core.HealthProbe{db.PoolProbe{Pool: pool}}

	var directory dispatch.Directory = db.NewDirectoryRepository(pool)
	if cfg.Redis.Enabled() {
		rdb, err := db.NewRedisClient(cfg.Redis.URL.Unmask())
		if err != nil {
			a.close(ctx, logger)
			return nil, fmt.Errorf("configuring redis: %w", err)
		}
		a.redis = rdb
		directory = db.NewCachedDirectory(directory, rdb, cfg.Redis.DirectoryCacheTTL, logger)
		probes = append(probes, db.RedisProbe{Client: rdb})
		logger.Info("campus membership cache enabled", "ttl", cfg.Redis.DirectoryCacheTTL)
	}

	base := gateway.NewBaseClient(
		&http.Client{Timeout: cfg.Gateway.Timeout},
		gateway.BreakerSettings{
			Name:                "fcm",
			ConsecutiveFailures: cfg.Gateway.BreakerThreshold,
			OpenTimeout:         breakerOpenTimeout,
		},
		cfg.Gateway.UserAgent,
	)
	fcm := gateway.NewFCM(base, cfg.Gateway.Endpoint, cfg.Gateway.ServerKey)

	a.logs = dispatch.NewLogWriter(db.NewNotificationLogRepository(pool), cfg.Dispatch.LogWriteTimeout, logger, recorder)
	svc := dispatch.NewService(
		dispatch.NewResolver(directory),
		dispatch.NewLookup(db.NewTokenRepository(pool)),
		dispatch.NewEngine(fcm, cfg.Dispatch.MaxConcurrency, logger, recorder),
		a.logs,
		logger,
	)

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		a.close(ctx, logger)
		return nil, fmt.Errorf("creating server: %w", err)
	}
	srv.Metrics = recorder
	srv.MetricsHandler = metricsHandler
	srv.HealthProbes = probes

	notifications := handlers.NewNotificationHandler(svc, srv.Validator, logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, notifications.RegisterRoutes)
	srv.MountRoutes()

	a.server = srv
	return a, nil
}

// newRecorder builds the configured metrics backend. The returned handler
// is non-nil only for Prometheus.
func (a *app) newRecorder(ctx context.Context, cfg *config.Config, logger *slog.Logger) (metrics.Recorder, http.Handler, error) {
	switch cfg.Observability.MetricsBackend {
	case config.MetricsBackendPrometheus:
		p := metrics.NewPrometheus(cfg.Observability.MetricNamespace)
		return p, p.Handler(), nil

	case config.MetricsBackendCloudWatch:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return nil, nil, fmt.Errorf("loading AWS config: %w", err)
		}
		client := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		a.cloudwatch = metrics.NewCloudWatch(client, cfg.Observability.MetricNamespace, cloudWatchInterval, logger)
		return a.cloudwatch, nil, nil

	default:
		return metrics.Nop{}, nil, nil
	}
}

// close drains pending log writes and releases resources. It is safe to
// call on a partially constructed app.
func (a *app) close(ctx context.Context, logger *slog.Logger) {
	if a.logs != nil && !a.logs.WaitContext(ctx) {
		logger.Warn("shutdown deadline reached with notification log writes in flight")
	}
	if a.cloudwatch != nil {
		if err := a.cloudwatch.Close(ctx); err != nil {
			logger.Error("flushing cloudwatch metrics", "error", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Error("closing redis client", "error", err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

// isLambdaEnvironment returns true if the process is running inside AWS Lambda.
func isLambdaEnvironment() bool {
	_, hasRuntimeAPI := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	_, hasServerPort := os.LookupEnv("_LAMBDA_SERVER_PORT")
	return hasRuntimeAPI || hasServerPort
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(a *app, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           a.server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Campus broadcasts wait for every gateway call before responding.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	a.close(ctx, logger)

	if runErr == nil {
		logger.Info("server stopped cleanly")
	}
	return runErr
}

// newLogger creates a JSON slog.Logger for the given level name.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
