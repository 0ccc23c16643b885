package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dealflow_backend/internal/events"
	"dealflow_backend/internal/leads/domain"
	"dealflow_backend/internal/leads/repository"
	"dealflow_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

const (
	FollowUpSweepSchedule        = "@every 15m"
	StaleEvaluationSweepSchedule = "@daily"

	defaultStaleEvaluationAge = 30 * 24 * time.Hour
	followUpSweepInterval     = 15 * time.Minute
	sweepBatchSize            = 500
)

// Enqueuer queues an evaluation tier.
type Enqueuer interface {
	EnqueueEvaluation(ctx context.Context, tenantID, leadID uuid.UUID, tier domain.EvaluationTier, trigger domain.EvaluationTrigger) error
}

// Sweeper runs the periodic lead sweeps on a cron schedule.
type Sweeper struct {
	cron     *cron.Cron
	repo     repository.SweepReader
	enqueuer Enqueuer
	bus      events.Bus
	log      *logger.Logger
	staleAge time.Duration
	now      func() time.Time

	mu                sync.Mutex
	lastFollowUpSweep time.Time
}

func NewSweeper(repo repository.SweepReader, enqueuer Enqueuer, bus events.Bus, staleAge time.Duration, log *logger.Logger) *Sweeper {
	if staleAge <= 0 {
		staleAge = defaultStaleEvaluationAge
	}
	now := func() time.Time { return time.Now().UTC() }
	return &Sweeper{
		cron:              cron.New(),
		repo:              repo,
		enqueuer:          enqueuer,
		bus:               bus,
		log:               log,
		staleAge:          staleAge,
		now:               now,
		lastFollowUpSweep: now().Add(-followUpSweepInterval),
	}
}

// Start registers both sweeps and runs the cron until ctx is done.
func (s *Sweeper) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(FollowUpSweepSchedule, func() {
		if _, err := s.SweepFollowUps(ctx); err != nil {
			s.log.Warn("follow-up sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to add follow-up sweep: %w", err)
	}
	if _, err := s.cron.AddFunc(StaleEvaluationSweepSchedule, func() {
		if _, err := s.SweepStaleEvaluations(ctx); err != nil {
			s.log.Warn("stale evaluation sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to add stale evaluation sweep: %w", err)
	}

	s.cron.Start()
	s.log.Info("lead sweeps started", "followUp", FollowUpSweepSchedule, "staleEvaluation", StaleEvaluationSweepSchedule)

	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
		s.log.Info("lead sweeps stopped")
	}()
	return nil
}

// SweepFollowUps publishes LeadFollowUpDue for follow-ups that became due
// since the previous sweep. It returns how many were published.
func (s *Sweeper) SweepFollowUps(ctx context.Context) (int, error) {
	now := s.now()

	s.mu.Lock()
	since := s.lastFollowUpSweep
	s.mu.Unlock()

	leads, err := s.repo.ListDueFollowUps(ctx, now, sweepBatchSize)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, lead := range leads {
		if lead.FollowUpDate == nil || !lead.FollowUpDate.After(since) {
			continue
		}
		ev := events.LeadFollowUpDue{
			BaseEvent:    events.NewBaseEvent(),
			LeadID:       lead.ID,
			TenantID:     lead.OrganizationID,
			Address:      lead.Address,
			FollowUpDate: *lead.FollowUpDate,
		}
		if lead.FollowUpReason != nil {
			ev.Reason = *lead.FollowUpReason
		}
		s.bus.Publish(ctx, ev)
		published++
	}

	s.mu.Lock()
	s.lastFollowUpSweep = now
	s.mu.Unlock()

	if published > 0 {
		s.log.Info("follow-up sweep published due leads", "count", published)
	}
	return published, nil
}

// SweepStaleEvaluations queues a quick tier for every open lead whose last
// evaluation is older than the stale age.
func (s *Sweeper) SweepStaleEvaluations(ctx context.Context) (int, error) {
	leads, err := s.repo.ListStaleEvaluations(ctx, s.now().Add(-s.staleAge), sweepBatchSize)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, lead := range leads {
		if err := s.enqueuer.EnqueueEvaluation(ctx, lead.OrganizationID, lead.ID, domain.TierQuick, domain.TriggerSchedule); err != nil {
			s.log.Warn("stale evaluation enqueue failed", "leadId", lead.ID, "error", err)
			continue
		}
		queued++
	}

	if queued > 0 {
		s.log.Info("stale evaluation sweep queued leads", "count", queued)
	}
	return queued, nil
}
