package scheduler

import (
	"context"
	"fmt"

	"dealflow_backend/internal/leads/evaluation"
	"dealflow_backend/platform/apperr"
	"dealflow_backend/platform/config"
	"dealflow_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// EvaluationRunner executes one tier.
type EvaluationRunner interface {
	Run(ctx context.Context, job evaluation.Job) (evaluation.Outcome, error)
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	runner EvaluationRunner
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, runner EvaluationRunner, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		runner: runner,
		log:    log,
	}

	mux.HandleFunc(TaskEvaluationQuick, w.handleEvaluation)
	mux.HandleFunc(TaskEvaluationFull, w.handleEvaluation)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleEvaluation(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseEvaluationPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	job, err := payload.Job()
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return runEvaluation(ctx, w.runner, job, w.log)
}

// runEvaluation runs a job and decides whether asynq may redeliver it. A
// lead that no longer exists, or an invalid job, is never retried.
func runEvaluation(ctx context.Context, runner EvaluationRunner, job evaluation.Job, log *logger.Logger) error {
	out, err := runner.Run(ctx, job)
	if err != nil {
		switch apperr.GetKind(err) {
		case apperr.KindNotFound, apperr.KindValidation:
			log.Info("evaluation task dropped", "leadId", job.LeadID, "tier", job.Tier, "error", err)
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
		return err
	}
	log.Info("evaluation task finished", "leadId", job.LeadID, "tier", job.Tier, "status", out.Record.Status)
	return nil
}
