package evaluation

import (
	"context"
	"sync"

	"dealflow_backend/internal/leads/domain"
	"dealflow_backend/platform/logger"

	"github.com/google/uuid"
)

// Dispatcher schedules, cancels and reports evaluation tiers. Each
// (lead, tier) pair is independent: queuing a tier that is already queued is
// a no-op, queuing one that is running schedules a single rerun after it, and
// cancelling one tier leaves the other alone.
type Dispatcher interface {
	EnqueueEvaluation(ctx context.Context, tenantID, leadID uuid.UUID, tier domain.EvaluationTier, trigger domain.EvaluationTrigger) error
	CancelEvaluation(ctx context.Context, leadID uuid.UUID, tier domain.EvaluationTier) (bool, error)
	TierState(ctx context.Context, leadID uuid.UUID, tier domain.EvaluationTier) (domain.TierState, error)
}

// TaskKey is the dedup key of one tier of one lead.
func TaskKey(leadID uuid.UUID, tier domain.EvaluationTier) string {
	return "eval:" + leadID.String() + ":" + string(tier)
}

type inlineRun struct {
	cancel context.CancelFunc
	state  domain.TierState
	// rerun is set when the tier was queued again while running; the
	// running pass may have read the lead before that change.
	rerun *Job
}

// InlineDispatcher runs tiers on goroutines in the API process. It is used
// when no Redis is configured for the asynq queue.
type InlineDispatcher struct {
	runner *Runner
	log    *logger.Logger
	base   context.Context
	stop   context.CancelFunc

	mu   sync.Mutex
	runs map[string]*inlineRun
	wg   sync.WaitGroup
}

// NewInlineDispatcher creates an in-process dispatcher.
func NewInlineDispatcher(runner *Runner, log *logger.Logger) *InlineDispatcher {
	base, stop := context.WithCancel(context.Background())
	return &InlineDispatcher{
		runner: runner,
		log:    log,
		base:   base,
		stop:   stop,
		runs:   make(map[string]*inlineRun),
	}
}

// EnqueueEvaluation starts the tier. A queued tier is left alone; a running
// one is run once more when it finishes.
func (d *InlineDispatcher) EnqueueEvaluation(_ context.Context, tenantID, leadID uuid.UUID, tier domain.EvaluationTier, trigger domain.EvaluationTrigger) error {
	key := TaskKey(leadID, tier)
	job := Job{TenantID: tenantID, LeadID: leadID, Tier: tier, Trigger: trigger}

	d.mu.Lock()
	if run, active := d.runs[key]; active {
		if run.state == domain.TierRunning {
			run.rerun = &job
			d.log.Info("evaluation running, rerun scheduled", "leadId", leadID, "tier", tier, "trigger", trigger)
		} else {
			d.log.Info("evaluation already queued, skipping", "leadId", leadID, "tier", tier)
		}
		d.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(d.base)
	run := &inlineRun{cancel: cancel, state: domain.TierQueued}
	d.runs[key] = run
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		defer cancel()

		for {
			d.mu.Lock()
			run.state = domain.TierRunning
			d.mu.Unlock()

			if _, err := d.runner.Run(ctx, job); err != nil {
				d.log.Error("inline evaluation failed", "leadId", leadID, "tier", tier, "error", err)
			}

			next, again := d.advance(ctx, key, run)
			if !again {
				return
			}
			job = next
		}
	}()
	return nil
}

// advance pops a pending rerun, or unregisters the run when there is none
// or the run was cancelled.
func (d *InlineDispatcher) advance(ctx context.Context, key string, run *inlineRun) (Job, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ctx.Err() == nil && run.rerun != nil {
		next := *run.rerun
		run.rerun = nil
		run.state = domain.TierQueued
		return next, true
	}
	if d.runs[key] == run {
		delete(d.runs, key)
	}
	return Job{}, false
}

// CancelEvaluation cancels an active tier. It reports false when nothing
// was active.
func (d *InlineDispatcher) CancelEvaluation(_ context.Context, leadID uuid.UUID, tier domain.EvaluationTier) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	run, ok := d.runs[TaskKey(leadID, tier)]
	if !ok {
		return false, nil
	}
	run.cancel()
	return true, nil
}

// TierState reports the live state of a tier.
func (d *InlineDispatcher) TierState(_ context.Context, leadID uuid.UUID, tier domain.EvaluationTier) (domain.TierState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if run, ok := d.runs[TaskKey(leadID, tier)]; ok {
		return run.state, nil
	}
	return domain.TierIdle, nil
}

// Shutdown cancels every active run and waits for them to record their outcome.
func (d *InlineDispatcher) Shutdown() {
	d.stop()
	d.wg.Wait()
}

// Wait blocks until every active run has finished.
func (d *InlineDispatcher) Wait() {
	d.wg.Wait()
}

var _ Dispatcher = (*InlineDispatcher)(nil)
