package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dealflow_backend/internal/adapters"
	"dealflow_backend/internal/adapters/storage"
	"dealflow_backend/internal/events"
	apphttp "dealflow_backend/internal/http"
	"dealflow_backend/internal/http/router"
	"dealflow_backend/internal/leads"
	"dealflow_backend/internal/leads/evaluation"
	"dealflow_backend/internal/leads/inbox"
	"dealflow_backend/internal/leads/repository"
	"dealflow_backend/internal/notification"
	"dealflow_backend/internal/notification/outbound"
	"dealflow_backend/internal/notification/relay"
	"dealflow_backend/internal/notification/sse"
	"dealflow_backend/internal/properties"
	"dealflow_backend/internal/scheduler"
	"dealflow_backend/migrations"
	"dealflow_backend/platform/config"
	"dealflow_backend/platform/db"
	"dealflow_backend/platform/logger"
	"dealflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

// ensureBucket wraps the retry logic for verifying the audit bucket exists.
func ensureBucket(ctx context.Context, log *logger.Logger, storageSvc *storage.MinIOService) {
	if err := withRetry(ctx, log, "ensure evaluation audit bucket", 5, 2*time.Second, func() error {
		return storageSvc.EnsureBucketExists(ctx)
	}); err != nil {
		log.Error("failed to ensure storage bucket exists", "error", err)
		panic("failed to ensure storage bucket exists: " + err.Error())
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	health := map[string]apphttp.HealthChecker{"database": apphttp.HealthFunc(pool.Ping)}

	rdb, closeRedis := initRedis(cfg, log)
	if closeRedis != nil {
		defer closeRedis()
		health["redis"] = apphttp.HealthFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	providers, err := adapters.NewEvaluationProviders(cfg, log)
	if err != nil {
		log.Error("failed to initialize evaluation providers", "error", err)
		panic("failed to initialize evaluation providers: " + err.Error())
	}
	if providers.Audit != nil {
		ensureBucket(ctx, log, providers.Audit)
		log.Info("storage service initialized", "evaluationAuditBucket", cfg.GetMinioBucketEvaluationAudit())
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	leadRepo := repository.New(pool)
	scoringSvc := leads.NewScoring(cfg.Policy, log)

	dispatcher, closeDispatcher := initDispatcher(cfg, log, func() *evaluation.Runner {
		deps := providers.Deps(leadRepo, leads.NewValidator(cfg.Policy), scoringSvc, eventBus, log)
		return leads.NewRunner(deps, cfg.Policy)
	})
	defer closeDispatcher()

	// Live updates and the first outbound message hang off domain events.
	stream := sse.New(log)
	notificationModule := notification.New(outbound.NewSender(cfg, log), stream, log)
	notificationModule.RegisterHandlers(eventBus)

	leadDeps := leads.ModuleDeps{
		Repo:        leadRepo,
		Dispatcher:  dispatcher,
		Scoring:     scoringSvc,
		Policy:      cfg.Policy,
		PhoneRegion: cfg.GetPhoneDefaultRegion(),
		EventBus:    eventBus,
		Validator:   val,
		Log:         log,
	}
	if providers.Audit != nil {
		leadDeps.Audit = providers.Audit
	}
	if rdb != nil {
		leadDeps.Unread = inbox.NewCache(rdb, inbox.CacheTTL(cfg.GetUnreadPollInterval()), log)

		// Evaluation results and due follow-ups are produced by the scheduler process.
		listener := relay.NewListener(rdb, relay.DefaultChannel, eventBus, log)
		go func() {
			if err := listener.Run(ctx); err != nil {
				log.Error("event relay stopped", "error", err)
			}
		}()
	}
	leadsModule := leads.NewModule(leadDeps)
	propertiesModule := properties.NewModule(pool, leadRepo, scoringSvc, cfg.Policy.MAOFactor, val, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config: cfg,
		Logger: log,
		Health: health,
		Modules: []apphttp.Module{
			leadsModule,
			propertiesModule,
			notificationModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		// Open event streams never finish on their own.
		stream.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initDispatcher queues tiers on asynq when Redis is configured and runs
// them in-process otherwise.
func initDispatcher(cfg config.SchedulerConfig, log *logger.Logger, newRunner func() *evaluation.Runner) (evaluation.Dispatcher, func()) {
	if cfg.GetRedisURL() != "" {
		client, err := scheduler.NewClient(cfg)
		if err == nil {
			log.Info("evaluations dispatched to the scheduler queue", "queue", cfg.GetAsynqQueueName())
			return client, func() { _ = client.Close() }
		}
		log.Error("failed to initialize scheduler client, running evaluations inline", "error", err)
	} else {
		log.Warn("REDIS_URL not configured; evaluations run inside the API process")
	}

	inline := evaluation.NewInlineDispatcher(newRunner(), log)
	return inline, inline.Shutdown
}

func initRedis(cfg config.SchedulerConfig, log *logger.Logger) (*redis.Client, func()) {
	if cfg.GetRedisURL() == "" {
		return nil, nil
	}
	rdb, err := scheduler.NewRedisClient(cfg)
	if err != nil {
		log.Error("failed to initialize redis client", "error", err)
		return nil, nil
	}
	return rdb, func() { _ = rdb.Close() }
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
