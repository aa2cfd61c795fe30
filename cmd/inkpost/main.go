package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deusflow/inkpost/internal/app"
	"github.com/deusflow/inkpost/internal/config"
	"github.com/deusflow/inkpost/internal/logger"
	"github.com/deusflow/inkpost/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("info", "text")
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.EnableHTTPMonitoring {
		srv := &http.Server{
			Addr:              ":" + cfg.MonitoringPort,
			Handler:           newMonitorRouter(metrics.Global),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("Starting monitoring server", "port", cfg.MonitoringPort)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Monitoring server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	if err := app.Run(ctx, cfg, logger.Logger); err != nil {
		logger.Error("Run failed", "error", err)
		stop()
		os.Exit(1)
	}
}
