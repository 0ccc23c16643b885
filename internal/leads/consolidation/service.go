package consolidation

import (
	"context"
	"errors"

	"dealflow_backend/internal/events"
	"dealflow_backend/internal/leads/domain"
	"dealflow_backend/internal/leads/repository"
	"dealflow_backend/platform/apperr"
	"dealflow_backend/platform/logger"
	"dealflow_backend/platform/phone"

	"github.com/google/uuid"
)

// Enqueuer schedules an evaluation tier outside the request.
type Enqueuer interface {
	EnqueueEvaluation(ctx context.Context, tenantID, leadID uuid.UUID, tier domain.EvaluationTier, trigger domain.EvaluationTrigger) error
}

// Request is one ingest call.
type Request struct {
	Candidate
	Tier             domain.EvaluationTier
	SendFirstMessage bool
}

// Summary reports what a consolidation changed.
type Summary struct {
	Before             Snapshot `json:"before"`
	After              Snapshot `json:"after"`
	PriceChangePercent float64  `json:"priceChangePercent"`
	IsPriceDropped     bool     `json:"isPriceDropped"`
	Revived            bool     `json:"revived"`
	Reevaluated        bool     `json:"reevaluated"`
}

// Result is the committed ingest outcome.
type Result struct {
	Lead             repository.Lead
	WasConsolidated  bool
	Consolidation    *Summary
	EvaluationTier   domain.EvaluationTier
	EvaluationQueued bool
}

// Service runs ingest: consolidate-or-create inside one transaction, then
// enqueue evaluation and publish events after commit.
type Service struct {
	repo        repository.Ingester
	enqueuer    Enqueuer
	eventBus    events.Bus
	policy      Policy
	phoneRegion string
	log         *logger.Logger
}

func New(repo repository.Ingester, enqueuer Enqueuer, eventBus events.Bus, policy Policy, phoneRegion string, log *logger.Logger) *Service {
	return &Service{
		repo:        repo,
		enqueuer:    enqueuer,
		eventBus:    eventBus,
		policy:      policy,
		phoneRegion: phoneRegion,
		log:         log,
	}
}

func (s *Service) Ingest(ctx context.Context, tenantID uuid.UUID, req Request) (Result, error) {
	normalized := domain.NormalizeAddress(req.Address)
	if normalized == "" {
		return Result{}, apperr.InvalidField("address", "must contain letters or digits")
	}

	if req.ContactPhone != nil && *req.ContactPhone != "" {
		e164, err := phone.NormalizeE164(*req.ContactPhone, s.phoneRegion)
		if err != nil {
			return Result{}, apperr.InvalidField("contactPhone", "must be a valid phone number")
		}
		req.ContactPhone = &e164
	}

	var plan *Plan
	outcome, err := s.repo.Ingest(ctx, tenantID, normalized, func(existing *repository.Lead) (repository.IngestDecision, error) {
		plan = nil
		if existing == nil {
			params := NewLead(tenantID, req.Candidate)
			return repository.IngestDecision{Create: &params}, nil
		}
		p, err := PlanMerge(*existing, req.Candidate, s.policy)
		if err != nil {
			return repository.IngestDecision{}, err
		}
		plan = &p
		return repository.IngestDecision{Merge: &p.Merge}, nil
	})
	if err != nil {
		if apperr.GetKind(err) != apperr.KindUnknown {
			return Result{}, err
		}
		return Result{}, apperr.Wrap(apperr.KindInternal, "ingest failed", err).WithOp("consolidation.Ingest")
	}

	result := Result{Lead: outcome.Lead, WasConsolidated: !outcome.Created}

	tier := req.Tier
	if !tier.Valid() {
		tier = domain.TierQuick
	}

	var (
		enqueue bool
		trigger domain.EvaluationTrigger
	)
	if outcome.Created {
		enqueue, trigger = true, domain.TriggerIngestion
	} else if plan != nil {
		enqueue, trigger, tier = plan.MaterialChange, domain.TriggerConsolidation, domain.TierQuick
		result.Consolidation = &Summary{
			Before:             plan.Before,
			After:              plan.After,
			PriceChangePercent: plan.PriceChangePercent,
			IsPriceDropped:     plan.IsPriceDropped,
			Revived:            plan.Revived,
			Reevaluated:        plan.MaterialChange,
		}
	}

	if enqueue {
		result.EvaluationTier = tier
		if err := s.enqueuer.EnqueueEvaluation(ctx, tenantID, outcome.Lead.ID, tier, trigger); err != nil {
			s.log.Warn("evaluation enqueue failed after ingest", "leadId", outcome.Lead.ID, "tier", tier, "error", err)
		} else {
			result.EvaluationQueued = true
		}
	}

	s.publish(ctx, tenantID, req, result)
	return result, nil
}

func (s *Service) publish(ctx context.Context, tenantID uuid.UUID, req Request, result Result) {
	lead := result.Lead
	ev := events.LeadIngested{
		BaseEvent:       events.NewBaseEvent(),
		LeadID:          lead.ID,
		TenantID:        tenantID,
		Address:         lead.Address,
		WasConsolidated: result.WasConsolidated,
	}
	if result.Consolidation != nil {
		ev.Revived = result.Consolidation.Revived
		ev.PriceChangePercent = result.Consolidation.PriceChangePercent
	}
	s.eventBus.Publish(ctx, ev)

	if !req.SendFirstMessage {
		return
	}
	s.eventBus.Publish(ctx, events.LeadFirstMessageRequested{
		BaseEvent:    events.NewBaseEvent(),
		LeadID:       lead.ID,
		TenantID:     tenantID,
		Address:      lead.Address,
		ContactName:  deref(lead.ContactName),
		ContactEmail: deref(lead.ContactEmail),
		ContactPhone: deref(lead.ContactPhone),
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// IsArchivedConflict reports whether err is the conflict PlanMerge returns
// for an archived match when revival is disabled.
func IsArchivedConflict(err error) bool {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindConflict {
		return false
	}
	details, ok := appErr.Details.(map[string]any)
	if !ok {
		return false
	}
	_, ok = details["existingLeadId"]
	return ok
}
