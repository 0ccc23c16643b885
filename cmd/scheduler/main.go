package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dealflow_backend/internal/adapters"
	"dealflow_backend/internal/events"
	"dealflow_backend/internal/leads"
	"dealflow_backend/internal/leads/inbox"
	leadrepo "dealflow_backend/internal/leads/repository"
	"dealflow_backend/internal/notification/relay"
	"dealflow_backend/internal/scheduler"
	"dealflow_backend/platform/config"
	"dealflow_backend/platform/db"
	"dealflow_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	if !cfg.IsSchedulerEnabled() {
		panic("REDIS_URL is required for the scheduler")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	eventBus := events.NewInMemoryBus(log)
	defer eventBus.Wait()

	rdb, err := scheduler.NewRedisClient(cfg)
	if err != nil {
		log.Error("failed to initialize redis client", "error", err)
		panic("failed to initialize redis client: " + err.Error())
	}
	defer func() { _ = rdb.Close() }()

	// API processes stream these to their connected clients.
	relay.NewForwarder(rdb, relay.DefaultChannel, log).Attach(eventBus)

	providers, err := adapters.NewEvaluationProviders(cfg, log)
	if err != nil {
		log.Error("failed to initialize evaluation providers", "error", err)
		panic("failed to initialize evaluation providers: " + err.Error())
	}

	leadRepo := leadrepo.New(pool)
	scoringSvc := leads.NewScoring(cfg.Policy, log)
	runner := leads.NewRunner(providers.Deps(leadRepo, leads.NewValidator(cfg.Policy), scoringSvc, eventBus, log), cfg.Policy)

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	sweeper := scheduler.NewSweeper(leadRepo, client, eventBus, cfg.Policy.StaleEvaluationAge, log)
	if err := sweeper.Start(ctx); err != nil {
		log.Error("failed to start lead sweeps", "error", err)
		panic("failed to start lead sweeps: " + err.Error())
	}

	if cfg.IsInboxEnabled() {
		interval := cfg.GetUnreadPollInterval()
		counter := inbox.NewHTTPCounter(cfg.GetMessagingAPIURL(), cfg.GetMessagingAPIKey(), log)
		poller := inbox.NewPoller(counter, inbox.NewCache(rdb, inbox.CacheTTL(interval), log), interval, log)
		go poller.Run(ctx)
	} else {
		log.Info("MESSAGING_API_URL not configured; unread counts are not polled")
	}

	worker, err := scheduler.NewWorker(cfg, runner, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
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
