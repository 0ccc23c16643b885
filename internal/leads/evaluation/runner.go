// Package evaluation runs the quick and full evaluation tiers of a lead:
// it gathers provider estimates concurrently, validates the AI ARV,
// recomputes the derived metrics and stores everything under the lead's
// evaluation_version guard.
package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"dealflow_backend/internal/events"
	"dealflow_backend/internal/leads/domain"
	"dealflow_backend/internal/leads/repository"
	"dealflow_backend/internal/leads/scoring"
	"dealflow_backend/internal/providers/estimator"
	"dealflow_backend/internal/providers/rentcast"
	"dealflow_backend/internal/underwriting"
	"dealflow_backend/internal/valuation"
	"dealflow_backend/platform/apperr"
	"dealflow_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	defaultProviderTimeout = 20 * time.Second

	providerRentCast = "rentcast"
)

// aiKinds are requested from the estimator on every tier.
var aiKinds = []string{
	estimator.KindARV,
	estimator.KindRehab,
	estimator.KindRent,
	estimator.KindNeighborhood,
	estimator.KindSummary,
}

// Estimator produces AI estimates.
type Estimator interface {
	Estimate(ctx context.Context, kind string, subject estimator.Subject) (estimator.Estimate, error)
}

// Verifier produces the verified market value with comparables.
type Verifier interface {
	Value(ctx context.Context, address string, squareFootage *int) (rentcast.Valuation, error)
}

// AuditStore archives raw provider exchanges under a key.
type AuditStore interface {
	PutAudit(ctx context.Context, key string, payload []byte) error
}

// Store is the persistence a run needs.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID, organizationID uuid.UUID) (repository.Lead, error)
	ListEstimates(ctx context.Context, leadID uuid.UUID, organizationID uuid.UUID, kind *valuation.Kind) ([]valuation.Estimate, error)
	WriteEvaluation(ctx context.Context, id uuid.UUID, organizationID uuid.UUID, w repository.EvaluationWrite) (repository.Lead, error)
	AppendEvaluationRecord(ctx context.Context, rec repository.EvaluationRecord) error
}

// Job identifies one tier run.
type Job struct {
	TenantID uuid.UUID                `json:"tenantId"`
	LeadID   uuid.UUID                `json:"leadId"`
	Tier     domain.EvaluationTier    `json:"tier"`
	Trigger  domain.EvaluationTrigger `json:"trigger"`
}

// Outcome is the finished run.
type Outcome struct {
	Record            repository.EvaluationRecord
	EvaluationVersion int
}

// Deps groups the collaborators of a Runner. Estimator, Verifier and Audit
// may be nil when the integration is not configured.
type Deps struct {
	Store     Store
	Estimator Estimator
	Verifier  Verifier
	Audit     AuditStore
	Validator *valuation.Validator
	Scoring   *scoring.Service
	EventBus  events.Bus
	Log       *logger.Logger
}

// Runner executes evaluation tiers.
type Runner struct {
	store           Store
	estimator       Estimator
	verifier        Verifier
	audit           AuditStore
	validator       *valuation.Validator
	scoring         *scoring.Service
	eventBus        events.Bus
	log             *logger.Logger
	maoFactor       float64
	providerTimeout time.Duration
	now             func() time.Time
}

// NewRunner creates a Runner. A zero providerTimeout uses 20s.
func NewRunner(deps Deps, maoFactor float64, providerTimeout time.Duration) *Runner {
	if providerTimeout <= 0 {
		providerTimeout = defaultProviderTimeout
	}
	return &Runner{
		store:           deps.Store,
		estimator:       deps.Estimator,
		verifier:        deps.Verifier,
		audit:           deps.Audit,
		validator:       deps.Validator,
		scoring:         deps.Scoring,
		eventBus:        deps.EventBus,
		log:             deps.Log,
		maoFactor:       maoFactor,
		providerTimeout: providerTimeout,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// collected is what the provider fan-out gathered. Providers write under mu.
type collected struct {
	mu        sync.Mutex
	ai        map[string]estimator.Estimate
	verified  *rentcast.Valuation
	snapshots map[string]domain.Snapshot
	errors    map[string]string
	cost      decimal.Decimal
}

func (c *collected) fail(key string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors[key] = err.Error()
	c.snapshots[key] = domain.Snapshot{Status: domain.SnapshotError}
}

// Run executes one tier for a lead. Provider failures never fail the run;
// they are recorded and the run ends partial. Cancelling ctx ends the run
// as cancelled without touching the lead. A run that loses the
// evaluation_version race is recorded as superseded.
func (r *Runner) Run(ctx context.Context, job Job) (Outcome, error) {
	if !job.Tier.Valid() {
		return Outcome{}, apperr.InvalidField("tier", "must be quick or full")
	}

	lead, err := r.store.GetByID(ctx, job.LeadID, job.TenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Outcome{}, apperr.NotFound("lead not found").WithOp("evaluation.Run")
		}
		return Outcome{}, apperr.Wrap(apperr.KindInternal, "load lead", err).WithOp("evaluation.Run")
	}
	expectedVersion := lead.EvaluationVersion

	startedAt := r.now()
	rec := repository.EvaluationRecord{
		ID:        uuid.New(),
		LeadID:    lead.ID,
		Tier:      job.Tier,
		Trigger:   job.Trigger,
		StartedAt: startedAt,
	}

	got := r.gather(ctx, job, lead)
	rec.Snapshots = got.snapshots
	rec.Errors = got.errors
	rec.Cost = got.cost

	if ctx.Err() != nil {
		rec.Status = domain.EvaluationCancelled
		return r.finishWithoutWrite(ctx, job, rec, expectedVersion)
	}

	r.archive(ctx, lead.ID, rec.ID, got)

	estimates := r.buildEstimates(lead, rec.ID, got)

	history, err := r.store.ListEstimates(ctx, lead.ID, job.TenantID, nil)
	if err != nil {
		return Outcome{}, apperr.Wrap(apperr.KindInternal, "load estimates", err).WithOp("evaluation.Run")
	}
	current := valuation.CurrentValues(append(history, estimates...))

	rec.Status = domain.EvaluationCompleted
	if len(rec.Errors) > 0 {
		rec.Status = domain.EvaluationPartial
	}
	rec.DurationMs = r.now().Sub(startedAt).Milliseconds()

	write := Recompute(r.scoring, r.maoFactor, lead, current)
	write.ExpectedEvaluationVersion = expectedVersion
	write.Estimates = estimates
	write.Record = &rec

	updated, err := r.store.WriteEvaluation(context.WithoutCancel(ctx), lead.ID, job.TenantID, write)
	switch {
	case errors.Is(err, repository.ErrVersionMismatch):
		r.log.Info("evaluation superseded", "leadId", lead.ID, "tier", job.Tier, "expectedVersion", expectedVersion)
		rec.Status = domain.EvaluationSuperseded
		return r.finishWithoutWrite(ctx, job, rec, expectedVersion)
	case errors.Is(err, repository.ErrNotFound):
		return Outcome{}, apperr.NotFound("lead not found").WithOp("evaluation.Run")
	case err != nil:
		return Outcome{}, apperr.Wrap(apperr.KindInternal, "write evaluation", err).WithOp("evaluation.Run")
	}

	r.log.Info("evaluation completed",
		"leadId", lead.ID,
		"tier", job.Tier,
		"status", rec.Status,
		"durationMs", rec.DurationMs,
		"cost", rec.Cost.StringFixed(4))
	r.publish(ctx, job, rec, updated.EvaluationVersion)

	return Outcome{Record: rec, EvaluationVersion: updated.EvaluationVersion}, nil
}

func (r *Runner) finishWithoutWrite(ctx context.Context, job Job, rec repository.EvaluationRecord, version int) (Outcome, error) {
	rec.DurationMs = r.now().Sub(rec.StartedAt).Milliseconds()
	if err := r.store.AppendEvaluationRecord(context.WithoutCancel(ctx), rec); err != nil {
		r.log.Error("evaluation record append failed", "leadId", job.LeadID, "status", rec.Status, "error", err)
	}
	r.publish(ctx, job, rec, version)
	return Outcome{Record: rec, EvaluationVersion: version}, nil
}

// gather fans out to the providers. The quick tier never calls the verifier.
func (r *Runner) gather(ctx context.Context, job Job, lead repository.Lead) *collected {
	got := &collected{
		ai:        make(map[string]estimator.Estimate),
		snapshots: make(map[string]domain.Snapshot),
		errors:    make(map[string]string),
		cost:      decimal.Zero,
	}

	subject := estimator.Subject{
		LeadID:        lead.ID.String(),
		Address:       lead.Address,
		ListingPrice:  lead.ListingPrice,
		Units:         lead.Units,
		SquareFootage: lead.SquareFootage,
		Latitude:      lead.Latitude,
		Longitude:     lead.Longitude,
	}

	var g errgroup.Group

	for _, kind := range aiKinds {
		g.Go(func() error {
			if r.estimator == nil {
				got.mu.Lock()
				got.snapshots[kind] = domain.Snapshot{Status: domain.SnapshotNoData, Source: string(valuation.SourceAI)}
				got.mu.Unlock()
				return nil
			}
			pctx, cancel := context.WithTimeout(ctx, r.providerTimeout)
			defer cancel()

			start := time.Now()
			est, err := r.estimator.Estimate(pctx, kind, subject)
			r.log.ProviderCall("estimator:"+kind, lead.ID.String(), time.Since(start).Milliseconds(), err)
			if errors.Is(err, estimator.ErrNoEstimate) {
				got.mu.Lock()
				got.snapshots[kind] = domain.Snapshot{Status: domain.SnapshotNoData, Source: string(valuation.SourceAI)}
				got.mu.Unlock()
				return nil
			}
			if err != nil {
				got.fail(kind, err)
				return nil
			}

			got.mu.Lock()
			defer got.mu.Unlock()
			got.ai[kind] = est
			got.cost = got.cost.Add(est.Cost)
			got.snapshots[kind] = domain.Snapshot{
				Value:         est.Value,
				ConfidencePct: est.ConfidencePct,
				Text:          est.Text,
				Source:        string(valuation.SourceAI),
				Status:        domain.SnapshotOK,
			}
			return nil
		})
	}

	if job.Tier == domain.TierFull {
		g.Go(func() error {
			if r.verifier == nil {
				got.fail(domain.SnapshotVerified, errors.New("verified valuation provider not configured"))
				return nil
			}
			pctx, cancel := context.WithTimeout(ctx, r.providerTimeout)
			defer cancel()

			start := time.Now()
			v, err := r.verifier.Value(pctx, lead.Address, lead.SquareFootage)
			r.log.ProviderCall(providerRentCast, lead.ID.String(), time.Since(start).Milliseconds(), err)
			if errors.Is(err, rentcast.ErrNotFound) {
				got.mu.Lock()
				got.snapshots[domain.SnapshotVerified] = domain.Snapshot{Status: domain.SnapshotNoData, Source: providerRentCast}
				got.mu.Unlock()
				return nil
			}
			if err != nil {
				got.fail(domain.SnapshotVerified, err)
				return nil
			}

			got.mu.Lock()
			defer got.mu.Unlock()
			got.verified = &v
			got.cost = got.cost.Add(v.Cost)
			price := v.Price
			got.snapshots[domain.SnapshotVerified] = domain.Snapshot{
				Value:  &price,
				Source: providerRentCast,
				Status: domain.SnapshotOK,
			}
			return nil
		})
	}

	_ = g.Wait()
	return got
}

// buildEstimates turns provider output into new estimate rows. The AI ARV
// carries its validation; when the validator adjusted it, the stored value
// is the adjusted one and the AI value is kept as original.
func (r *Runner) buildEstimates(lead repository.Lead, evaluationID uuid.UUID, got *collected) []valuation.Estimate {
	now := r.now()
	evalID := evaluationID
	out := make([]valuation.Estimate, 0, 4)

	var verifiedPrice *float64
	var comps []valuation.ComparableSale
	if got.verified != nil && got.verified.Price > 0 {
		price := got.verified.Price
		verifiedPrice = &price
		comps = got.verified.Comparables
	}

	if est, ok := got.ai[estimator.KindARV]; ok && est.Value != nil {
		subject := valuation.Subject{Address: lead.Address, Latitude: lead.Latitude, Longitude: lead.Longitude}
		validation := r.validator.Validate(*est.Value, subject, valuation.Benchmarks{VerifiedMarket: verifiedPrice}, comps)

		e := aiEstimate(lead.ID, valuation.KindARV, est, &evalID, now)
		e.Value = validation.FinalARV()
		if validation.AdjustedARV != nil {
			original := validation.OriginalARV
			e.OriginalValue = &original
		}
		e.Validation = &validation
		out = append(out, e)

		if s, ok := got.snapshots[domain.SnapshotVerified]; ok && len(comps) > 0 && allStale(validation.Comparables) {
			s.Status = domain.SnapshotStale
			got.snapshots[domain.SnapshotVerified] = s
		}
	}

	if verifiedPrice != nil {
		out = append(out, valuation.Estimate{
			ID:           uuid.New(),
			LeadID:       lead.ID,
			Kind:         valuation.KindARV,
			Value:        *verifiedPrice,
			Source:       valuation.SourceVerified,
			EvaluationID: &evalID,
			CreatedAt:    now,
		})
	}

	for kind, vk := range map[string]valuation.Kind{estimator.KindRehab: valuation.KindRehab, estimator.KindRent: valuation.KindRent} {
		if est, ok := got.ai[kind]; ok && est.Value != nil {
			out = append(out, aiEstimate(lead.ID, vk, est, &evalID, now))
		}
	}
	return out
}

func aiEstimate(leadID uuid.UUID, kind valuation.Kind, est estimator.Estimate, evaluationID *uuid.UUID, now time.Time) valuation.Estimate {
	e := valuation.Estimate{
		ID:            uuid.New(),
		LeadID:        leadID,
		Kind:          kind,
		Value:         *est.Value,
		Source:        valuation.SourceAI,
		ConfidencePct: est.ConfidencePct,
		EvaluationID:  evaluationID,
		CreatedAt:     now,
	}
	if level := valuation.ConfidenceLevel(est.ConfidenceLevel); level == valuation.ConfidenceLow || level == valuation.ConfidenceMedium || level == valuation.ConfidenceHigh {
		e.ConfidenceLevel = &level
	}
	return e
}

func allStale(comps []valuation.ComparableSale) bool {
	for _, c := range comps {
		if !c.Stale {
			return false
		}
	}
	return true
}

// archive stores the raw prompt/response of every AI call. Archive
// failures are logged and leave the snapshot without an audit key.
func (r *Runner) archive(ctx context.Context, leadID, evaluationID uuid.UUID, got *collected) {
	if r.audit == nil {
		return
	}
	for kind, est := range got.ai {
		if est.Prompt == "" && est.Response == "" {
			continue
		}
		payload, err := json.Marshal(map[string]string{"kind": kind, "prompt": est.Prompt, "response": est.Response})
		if err != nil {
			continue
		}
		key := AuditKey(leadID, evaluationID, kind)
		if err := r.audit.PutAudit(ctx, key, payload); err != nil {
			r.log.Warn("evaluation audit archive failed", "leadId", leadID, "kind", kind, "error", err)
			continue
		}
		s := got.snapshots[kind]
		s.AuditKey = key
		got.snapshots[kind] = s
	}
}

func (r *Runner) publish(ctx context.Context, job Job, rec repository.EvaluationRecord, version int) {
	if r.eventBus == nil {
		return
	}
	r.eventBus.Publish(ctx, events.EvaluationCompleted{
		BaseEvent:         events.NewBaseEvent(),
		LeadID:            job.LeadID,
		TenantID:          job.TenantID,
		EvaluationID:      rec.ID,
		Tier:              string(job.Tier),
		Trigger:           string(job.Trigger),
		Status:            string(rec.Status),
		EvaluationVersion: version,
		DurationMs:        rec.DurationMs,
	})
}

// Recompute derives MAO, spread and scores from the current estimate per
// kind. The offer price of a lead is its listing price.
func Recompute(svc *scoring.Service, maoFactor float64, lead repository.Lead, current map[valuation.Kind]valuation.Estimate) repository.EvaluationWrite {
	arv := valuation.Resolve(current[valuation.KindARV])
	rehab := valuation.Resolve(current[valuation.KindRehab])
	rent := valuation.Resolve(current[valuation.KindRent])

	in := underwriting.Inputs{
		ListingPrice:  lead.ListingPrice,
		OfferPrice:    lead.ListingPrice,
		RehabCosts:    rehab,
		PotentialRent: rent,
		ARV:           arv,
		Units:         lead.Units,
	}
	result := svc.Evaluate(in, lead.Tags, scoring.VariantCurrent)

	return repository.EvaluationWrite{
		MAO:           underwriting.MAO(arv, rehab, maoFactor),
		SpreadPercent: underwriting.SpreadPercent(arv, lead.ListingPrice, rehab),
		HoldScore:     result.Hold.Score,
		FlipScore:     result.Flip.Score,
		LeadScore:     float64(result.LeadScore),
	}
}

// AuditKey is the object key of one archived provider exchange.
func AuditKey(leadID, evaluationID uuid.UUID, kind string) string {
	return fmt.Sprintf("evaluations/%s/%s/%s.json", leadID, evaluationID, kind)
}
