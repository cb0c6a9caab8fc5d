package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/eteeap-applicant-client/internal/adapters/mcp"
	"github.com/kirillkom/eteeap-applicant-client/internal/bootstrap"
	"github.com/kirillkom/eteeap-applicant-client/internal/config"
	"github.com/kirillkom/eteeap-applicant-client/internal/observability/logging"
)

const (
	service = "mcp"
	version = "0.1.0"
)

func main() {
	cfg := config.Load()
	// stdout carries the MCP protocol.
	logger := logging.NewJSONLoggerTo(os.Stderr, service, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, service, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	s := mcpadapter.NewServer(mcpadapter.NewTools(app.Workflow, app.Sessions, logger), version)
	logger.Info("mcp_serving_stdio")
	if err := server.ServeStdio(s); err != nil {
		logger.Error("mcp_server_failed", "error", err)
	}
}
