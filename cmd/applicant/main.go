package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"github.com/kirillkom/eteeap-applicant-client/internal/adapters/cli"
	"github.com/kirillkom/eteeap-applicant-client/internal/bootstrap"
	"github.com/kirillkom/eteeap-applicant-client/internal/config"
	"github.com/kirillkom/eteeap-applicant-client/internal/observability/logging"
)

const service = "applicant"

func main() {
	cfg := config.Load()
	level := cfg.LogLevel
	if os.Getenv("LOG_LEVEL") == "" {
		level = "warn"
	}
	logger := logging.NewJSONLoggerTo(os.Stderr, service, level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, service, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	root := cli.NewRootCommand(cli.Env{
		Workflow: app.Workflow,
		Reporter: app.Workflow,
		Sessions: app.Sessions,
		Catalog:  app.Catalog,
	})
	err = root.ExecuteContext(ctx)
	app.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, cli.ErrorMessage(err))
		os.Exit(1)
	}
}
