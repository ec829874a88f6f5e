package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gradepredict/console/internal/adapters/backend"
	service "github.com/gradepredict/console/internal/app"
	"github.com/gradepredict/console/internal/config"
	"github.com/gradepredict/console/internal/console"
	"github.com/gradepredict/console/pkg/logger"
	"github.com/gradepredict/console/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

func main() {
	// Initialize logging
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}

	loggerInstance := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metrics.SetEnabled(cfg.MetricsEnabled)

	// Expose the metrics endpoint in the background when enabled.
	var metricsSrv *http.Server
	if cfg.MetricsEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))

		metricsSrv = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       idleTimeout,
			ReadHeaderTimeout: readHeaderTimeout,
		}
		go func() {
			loggerInstance.Info(ctx, "starting metrics server", logger.String("addr", cfg.MetricsAddr))
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				loggerInstance.Warn(ctx, "metrics server failed", logger.Error(err))
			}
		}()
	}

	// API client with cookie-based session transport.
	client, err := backend.New(cfg.BaseURL, backend.WithTimeout(cfg.RequestTimeout()))
	if err != nil {
		os.Stderr.WriteString("failed to create backend client: " + err.Error() + "\n")
		return
	}

	app := service.New(client, service.WithLogger(loggerInstance))

	loggerInstance.Info(ctx, "starting console", logger.String("base_url", cfg.BaseURL))
	if err := console.New(app, os.Stdin, os.Stdout).Run(ctx); err != nil && ctx.Err() == nil {
		loggerInstance.Error(ctx, "console loop failed", logger.Error(err))
	}

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			loggerInstance.Error(ctx, "metrics server shutdown failed", logger.Error(err))
		}
	}

	loggerInstance.Info(ctx, "console stopped")
}
