package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	httpadapter "github.com/kirillkom/eteeap-applicant-client/internal/adapters/http"
	"github.com/kirillkom/eteeap-applicant-client/internal/bootstrap"
	"github.com/kirillkom/eteeap-applicant-client/internal/config"
	"github.com/kirillkom/eteeap-applicant-client/internal/observability/logging"
	"github.com/kirillkom/eteeap-applicant-client/internal/observability/metrics"
)

const service = "api"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(service, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, service, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	httpMetrics := metrics.NewHTTPServerMetrics(service, app.ClientMetrics.Registry())
	router := httpadapter.NewRouter(cfg, app.Workflow, httpMetrics, logger).Handler()
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort, "portal_base_url", cfg.PortalBaseURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
}
