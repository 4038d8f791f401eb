package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/forge-api/internal/config"
	"github.com/phrazzld/forge-api/internal/platform/postgres"
	"github.com/phrazzld/forge-api/internal/platform/secrets"
	"github.com/phrazzld/forge-api/internal/provider"
	"github.com/phrazzld/forge-api/internal/queue"
	"github.com/phrazzld/forge-api/internal/scheduler"
	"github.com/phrazzld/forge-api/internal/selector"
	"github.com/phrazzld/forge-api/internal/service"
	"github.com/phrazzld/forge-api/internal/service/auth"
	"github.com/phrazzld/forge-api/internal/store"
	"github.com/phrazzld/forge-api/internal/worker"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	// Stores
	userStore       store.UserStore
	taskStore       store.TaskStore
	providerStore   store.ProviderStore
	accountStore    store.AccountStore
	assignmentStore store.AssignmentStore
	contentStore    store.ContentStore
	transactor      store.Transactor

	// Infrastructure
	queue    queue.Queue
	cipher   *secrets.Cipher
	registry *provider.Registry
	selector *selector.Selector

	// Services
	jwtService       auth.JWTService
	passwordVerifier auth.PasswordVerifier
	taskService      service.TaskService
	providerService  service.ProviderService
	userService      service.UserService

	// Background work
	workerPool *worker.Pool
	scheduler  *scheduler.Scheduler
	tokenReset *scheduler.TokenResetService
}

// newApplication creates a new application instance with all dependencies
// initialized. It accepts core dependencies like configuration, logger and
// database connection that must be established before initialization.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	app.passwordVerifier = auth.NewBcryptVerifier()

	app.cipher, err = secrets.NewCipher(cfg.Auth.CredentialKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential cipher: %w", err)
	}

	// Stores
	app.userStore = postgres.NewPostgresUserStore(db, logger)
	app.taskStore = postgres.NewPostgresTaskStore(db, logger)
	app.providerStore = postgres.NewPostgresProviderStore(db, logger)
	app.accountStore = postgres.NewPostgresAccountStore(db, logger)
	app.assignmentStore = postgres.NewPostgresAssignmentStore(db, logger)
	app.contentStore = postgres.NewPostgresContentStore(db, logger)
	app.transactor = store.NewSQLTransactor(db)

	// Queue
	app.queue, err = queue.NewRedisQueue(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.QueueKey)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis queue: %w", err)
	}
	logger.Info("Redis queue connected", "addr", cfg.Redis.Addr, "key", cfg.Redis.QueueKey)

	// Provider integrations
	app.registry = provider.NewRegistry()
	app.registry.Register("CLAUDE", provider.NewClaudeIntegration(app.cipher, cfg.Providers.ContentDir))
	app.registry.Register("GPT", provider.NewGPTIntegration(app.cipher, cfg.Providers.ContentDir))
	app.registry.Register("GEMINI", provider.NewGeminiIntegration(app.cipher, cfg.Providers.GeminiModel))
	logger.Info("Provider integrations registered", "providers", app.registry.Names())

	app.selector = selector.New(app.providerStore, app.accountStore)

	// Token budget reset job
	app.tokenReset = scheduler.NewTokenResetService(app.accountStore, app.transactor, logger)
	app.scheduler = scheduler.New(logger)
	if err := app.scheduler.AddJob(cfg.Scheduler.TokenResetCron, app.tokenReset); err != nil {
		return nil, fmt.Errorf("failed to schedule token reset job: %w", err)
	}

	// Services
	app.taskService, err = service.NewTaskService(
		app.taskStore,
		app.assignmentStore,
		app.contentStore,
		app.queue,
		app.transactor,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}

	app.providerService, err = service.NewProviderService(
		app.providerStore,
		app.accountStore,
		app.registry,
		app.cipher,
		app.selector,
		app.tokenReset,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider service: %w", err)
	}

	app.userService, err = service.NewUserService(
		app.userStore,
		app.jwtService,
		app.passwordVerifier,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user service: %w", err)
	}

	// Worker pool
	app.workerPool = worker.NewPool(
		worker.Config{
			Count:        cfg.Worker.Count,
			PollInterval: time.Duration(cfg.Worker.PollIntervalSeconds) * time.Second,
			MaxAttempts:  cfg.Worker.MaxAttempts,
		},
		app.queue,
		app.taskStore,
		app.assignmentStore,
		app.accountStore,
		app.contentStore,
		app.selector,
		app.registry,
		app.transactor,
		logger,
	)

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts background processing and the HTTP server, handling
// lifecycle and cleanup.
func (app *application) Run(ctx context.Context) error {
	// Put pending tasks back on the queue before workers start, so work
	// survives a Redis flush or crash between enqueue and dequeue.
	recovered, err := app.taskService.RecoverQueue(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover queue: %w", err)
	}
	if recovered > 0 {
		app.logger.Info("Recovered pending tasks into queue", "count", recovered)
	}

	app.workerPool.Start()
	app.scheduler.Start()

	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.workerPool != nil {
		app.workerPool.Stop()
	}

	if app.scheduler != nil {
		app.scheduler.Stop()
	}

	if closer, ok := app.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			app.logger.Error("Error closing queue connection", "error", err)
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
