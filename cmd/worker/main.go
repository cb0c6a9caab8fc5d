package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/kirillkom/eteeap-applicant-client/internal/bootstrap"
	"github.com/kirillkom/eteeap-applicant-client/internal/config"
	"github.com/kirillkom/eteeap-applicant-client/internal/core/domain"
	"github.com/kirillkom/eteeap-applicant-client/internal/observability/logging"
)

const service = "worker"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(service, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker, err := bootstrap.NewWorker(ctx, cfg, service, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer worker.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           worker.Metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("worker_metrics_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", "subject_prefix", cfg.NATSSubjectPrefix)
	err = worker.Events.SubscribeWorkflowEvents(ctx, func(handlerCtx context.Context, event domain.WorkflowEvent) error {
		recordCtx, cancel := context.WithTimeout(handlerCtx, 30*time.Second)
		defer cancel()
		return worker.RecordUC.Record(recordCtx, event)
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
