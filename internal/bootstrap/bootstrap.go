package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kirillkom/eteeap-applicant-client/internal/config"
	"github.com/kirillkom/eteeap-applicant-client/internal/core/domain"
	"github.com/kirillkom/eteeap-applicant-client/internal/core/ports"
	"github.com/kirillkom/eteeap-applicant-client/internal/core/usecase"
	"github.com/kirillkom/eteeap-applicant-client/internal/infrastructure/catalog"
	"github.com/kirillkom/eteeap-applicant-client/internal/infrastructure/inspect"
	"github.com/kirillkom/eteeap-applicant-client/internal/infrastructure/portalapi"
	"github.com/kirillkom/eteeap-applicant-client/internal/infrastructure/queue/nats"
	"github.com/kirillkom/eteeap-applicant-client/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/eteeap-applicant-client/internal/infrastructure/resilience"
	"github.com/kirillkom/eteeap-applicant-client/internal/infrastructure/session"
	"github.com/kirillkom/eteeap-applicant-client/internal/observability/metrics"
)

// App is the applicant-facing object graph shared by the CLI, gateway and MCP server.
type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Service string

	Portal        *portalapi.Client
	Catalog       domain.DocumentCatalog
	Sessions      ports.SessionStore
	Workflow      *usecase.WorkflowService
	ClientMetrics *metrics.PortalClientMetrics

	closeFns []func()
}

func New(ctx context.Context, cfg config.Config, service string, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg, Logger: logger, Service: service}

	docCatalog, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}
	app.Catalog = docCatalog

	clientMetrics := metrics.NewPortalClientMetrics(service)
	app.ClientMetrics = clientMetrics

	var contract *portalapi.ContractChecker
	if cfg.PortalContractCheck {
		contract, err = portalapi.NewContractChecker(logger, clientMetrics.RecordContractDrift)
		if err != nil {
			return nil, fmt.Errorf("load portal contract: %w", err)
		}
	}

	policy := resilience.DefaultConfig()
	policy.RetryMaxAttempts = cfg.PortalRetryMaxAttempts
	policy.BreakerEnabled = cfg.PortalBreakerEnabled

	portal, err := portalapi.New(cfg.PortalBaseURL, portalapi.Options{
		Timeout:        time.Duration(cfg.PortalTimeoutSeconds) * time.Second,
		RateLimitRPS:   cfg.PortalRateLimitRPS,
		RateLimitBurst: cfg.PortalRateLimitBurst,
		Resilience:     policy,
		Contract:       contract,
		Metrics:        clientMetrics,
		Logger:         logger,
		UserAgent:      cfg.PortalUserAgent,
		ExecutorOptions: []resilience.Option{
			resilience.WithLogger(logger),
			resilience.WithStateObserver(clientMetrics.SetBreakerState),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("init portal client: %w", err)
	}
	app.Portal = portal

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		app.onClose(func() { _ = redisClient.Close() })
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis_unavailable", "addr", cfg.RedisAddr, "error", err)
		}
	}

	sessions, err := openSessionStore(cfg, redisClient)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Sessions = sessions

	var lock ports.SubmissionLock
	if redisClient != nil {
		lock = session.NewRedisSubmissionLock(redisClient, time.Duration(cfg.SubmitLockTTLSeconds)*time.Second)
	}

	publisher, err := openPublisher(cfg, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	if queue, ok := publisher.(*nats.Queue); ok {
		app.onClose(queue.Close)
	}

	app.Workflow = usecase.NewWorkflowService(usecase.Dependencies{
		Backend:        portal,
		Catalog:        docCatalog,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Inspector:      inspect.New(logger),
		Lock:           lock,
		Events:         publisher,
		Logger:         logger,
	})

	logger.Info("bootstrap_ready",
		"portal_base_url", cfg.PortalBaseURL,
		"session_backend", cfg.SessionBackend,
		"submit_lock", lock != nil,
		"events", cfg.NATSURL != "",
	)
	return app, nil
}

func (a *App) onClose(fn func()) {
	a.closeFns = append(a.closeFns, fn)
}

func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}

func loadCatalog(cfg config.Config) (domain.DocumentCatalog, error) {
	if cfg.DocumentCatalogPath == "" {
		return catalog.Default(), nil
	}
	docCatalog, err := catalog.Load(cfg.DocumentCatalogPath)
	if err != nil {
		return domain.DocumentCatalog{}, fmt.Errorf("load document catalog: %w", err)
	}
	return docCatalog, nil
}

func openSessionStore(cfg config.Config, redisClient *redis.Client) (ports.SessionStore, error) {
	switch cfg.SessionBackend {
	case "", "file":
		path := cfg.SessionPath
		if path == "" {
			path = session.DefaultPath()
		}
		store, err := session.NewFileStore(path)
		if err != nil {
			return nil, fmt.Errorf("init session store: %w", err)
		}
		return store, nil
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("init session store: SESSION_BACKEND=redis requires REDIS_ADDR")
		}
		return session.NewRedisStore(redisClient, cfg.SessionName, time.Duration(cfg.SessionTTLHours)*time.Hour), nil
	case "memory":
		return session.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("init session store: unknown backend %q", cfg.SessionBackend)
	}
}

func openPublisher(cfg config.Config, logger *slog.Logger) (ports.EventPublisher, error) {
	if cfg.NATSURL == "" {
		return nats.Noop{}, nil
	}
	policy := resilience.DefaultConfig()
	policy.RetryMaxAttempts = 3
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubjectPrefix, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(policy, resilience.WithLogger(logger)),
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init event publisher: %w", err)
	}
	return queue, nil
}

// Worker journals workflow events delivered over NATS.
type Worker struct {
	Config   config.Config
	Logger   *slog.Logger
	Events   ports.EventSubscriber
	Journal  *postgres.JournalRepository
	RecordUC *usecase.RecordEventUseCase
	Metrics  *metrics.WorkerMetrics

	closeFn func()
}

func NewWorker(ctx context.Context, cfg config.Config, service string, logger *slog.Logger) (*Worker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.NATSURL == "" {
		return nil, fmt.Errorf("worker requires NATS_URL")
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	journal := postgres.NewJournalRepository(db)
	if err := journal.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubjectPrefix, nats.Options{
		Logger:     logger,
		ClientName: service,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	workerMetrics := metrics.NewWorkerMetrics(service)
	return &Worker{
		Config:   cfg,
		Logger:   logger,
		Events:   queue,
		Journal:  journal,
		RecordUC: usecase.NewRecordEventUseCase(journal, workerMetrics, service),
		Metrics:  workerMetrics,
		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (w *Worker) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}
