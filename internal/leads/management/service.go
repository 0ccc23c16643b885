// Package management handles lead reads and guarded edits.
// This is a vertically sliced feature package containing the queue view,
// lead detail, manual evaluation overrides, tier control and the
// status, follow-up, contact, archive and delete operations.
package management

import (
	"context"
	"errors"
	"time"

	"dealflow_backend/internal/adapters/storage"
	"dealflow_backend/internal/events"
	"dealflow_backend/internal/leads/domain"
	"dealflow_backend/internal/leads/evaluation"
	"dealflow_backend/internal/leads/prioritization"
	"dealflow_backend/internal/leads/repository"
	"dealflow_backend/internal/leads/scoring"
	"dealflow_backend/internal/leads/transport"
	"dealflow_backend/internal/underwriting"
	"dealflow_backend/internal/valuation"
	"dealflow_backend/platform/apperr"
	"dealflow_backend/platform/logger"
	"dealflow_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	defaultPageSize    = 25
	defaultHistorySize = 20
)

// Repository defines the data access interface needed by the management service.
// This is a consumer-driven interface - only what management needs.
type Repository interface {
	repository.LeadReader
	repository.LeadWriter
	repository.EvaluationStore
}

// UnreadCounter returns cached unread message counts per lead. Missing
// leads count as zero.
type UnreadCounter interface {
	UnreadCounts(ctx context.Context, tenantID uuid.UUID, leadIDs []uuid.UUID) map[uuid.UUID]int
}

// AuditLinker presigns downloads of archived provider exchanges.
type AuditLinker interface {
	GenerateDownloadURL(ctx context.Context, key string) (*storage.PresignedURL, error)
}

// Service handles lead management operations.
type Service struct {
	repo       Repository
	dispatcher evaluation.Dispatcher
	unread     UnreadCounter
	audit      AuditLinker
	scoring    *scoring.Service
	maoFactor  float64
	eventBus   events.Bus
	log        *logger.Logger
	now        func() time.Time
}

// New creates a new lead management service. unread may be nil.
func New(repo Repository, dispatcher evaluation.Dispatcher, unread UnreadCounter, scoringSvc *scoring.Service, maoFactor float64, eventBus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:       repo,
		dispatcher: dispatcher,
		unread:     unread,
		scoring:    scoringSvc,
		maoFactor:  maoFactor,
		eventBus:   eventBus,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetAuditLinker enables audit downloads. Without one they report not found.
func (s *Service) SetAuditLinker(audit AuditLinker) {
	s.audit = audit
}

// GetQueue lists one triage queue, ordered and paginated, with the counts
// of every queue. Unread counts decorate the page but never affect order.
func (s *Service) GetQueue(ctx context.Context, tenantID uuid.UUID, req transport.QueueRequest) (transport.QueueResponse, error) {
	leads, err := s.repo.ListByOrganization(ctx, tenantID)
	if err != nil {
		return transport.QueueResponse{}, apperr.Wrap(apperr.KindInternal, "list leads", err).WithOp("management.GetQueue")
	}

	now := s.now()
	queue := req.Type
	if queue == "" {
		queue = domain.QueueAll
	}
	page := max(req.Page, 1)
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	counts := prioritization.Count(leads, now)
	members := prioritization.SortQueue(prioritization.Filter(leads, queue, now), queue)

	total := len(members)
	start := min((page-1)*pageSize, total)
	end := min(start+pageSize, total)
	pageItems := members[start:end]

	var unread map[uuid.UUID]int
	if s.unread != nil && len(pageItems) > 0 {
		ids := make([]uuid.UUID, len(pageItems))
		for i, l := range pageItems {
			ids[i] = l.ID
		}
		unread = s.unread.UnreadCounts(ctx, tenantID, ids)
	}

	items := make([]transport.LeadResponse, len(pageItems))
	for i, l := range pageItems {
		items[i] = ToLeadResponse(l, now)
		items[i].UnreadCount = unread[l.ID]
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}

	return transport.QueueResponse{
		Leads:       items,
		QueueCounts: counts,
		Pagination: transport.PaginationResponse{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
		},
	}, nil
}

// GetLead returns a lead with its current estimate per kind and the metrics
// those estimates produce.
func (s *Service) GetLead(ctx context.Context, tenantID, id uuid.UUID) (transport.LeadDetailResponse, error) {
	lead, err := s.getLead(ctx, tenantID, id)
	if err != nil {
		return transport.LeadDetailResponse{}, err
	}
	history, err := s.repo.ListEstimates(ctx, id, tenantID, nil)
	if err != nil {
		return transport.LeadDetailResponse{}, apperr.Wrap(apperr.KindInternal, "list estimates", err).WithOp("management.GetLead")
	}

	current := valuation.CurrentValues(history)
	estimates := make(map[valuation.Kind]transport.EstimateResponse, len(current))
	for kind, e := range current {
		estimates[kind] = ToEstimateResponse(e)
	}

	in := underwriting.Inputs{
		ListingPrice:  lead.ListingPrice,
		OfferPrice:    lead.ListingPrice,
		RehabCosts:    valuation.Resolve(current[valuation.KindRehab]),
		PotentialRent: valuation.Resolve(current[valuation.KindRent]),
		ARV:           valuation.Resolve(current[valuation.KindARV]),
		Units:         lead.Units,
	}
	result := s.scoring.Evaluate(in, lead.Tags, scoring.VariantCurrent)

	resp := transport.LeadDetailResponse{
		Lead:      ToLeadResponse(lead, s.now()),
		Estimates: estimates,
		Metrics: transport.LeadMetricsResponse{
			MAO:           underwriting.MAO(in.ARV, in.RehabCosts, s.maoFactor),
			SpreadPercent: underwriting.SpreadPercent(in.ARV, in.ListingPrice, in.RehabCosts),
			HoldScore:     result.Hold.Score,
			FlipScore:     result.Flip.Score,
			Underwriting:  result.Metrics,
			Hold:          result.Hold,
			Flip:          result.Flip,
			HoldTarget:    result.HoldTarget,
			FlipTarget:    result.FlipTarget,
		},
	}
	if s.unread != nil {
		resp.Lead.UnreadCount = s.unread.UnreadCounts(ctx, tenantID, []uuid.UUID{id})[id]
	}
	return resp, nil
}

// UpdateEvaluation records manual overrides and recomputes MAO, spread and
// scores in one write guarded by evaluation_version.
func (s *Service) UpdateEvaluation(ctx context.Context, tenantID, id uuid.UUID, req transport.UpdateEvaluationRequest) (transport.UpdateEvaluationResponse, error) {
	if req.ARV == nil && req.RehabEstimate == nil && req.RentEstimate == nil {
		return transport.UpdateEvaluationResponse{}, apperr.Validation("at least one of arv, rehabEstimate or rentEstimate is required")
	}

	lead, err := s.getLead(ctx, tenantID, id)
	if err != nil {
		return transport.UpdateEvaluationResponse{}, err
	}
	if lead.EvaluationVersion != *req.ExpectedVersion {
		return transport.UpdateEvaluationResponse{}, versionConflict("evaluationVersion", lead.EvaluationVersion)
	}

	history, err := s.repo.ListEstimates(ctx, id, tenantID, nil)
	if err != nil {
		return transport.UpdateEvaluationResponse{}, apperr.Wrap(apperr.KindInternal, "list estimates", err).WithOp("management.UpdateEvaluation")
	}

	now := s.now()
	updated := history
	for _, o := range []struct {
		kind  valuation.Kind
		value *float64
		note  *string
	}{
		{valuation.KindARV, req.ARV, sanitize.TextPtr(req.ARVNote)},
		{valuation.KindRehab, req.RehabEstimate, sanitize.TextPtr(req.RehabNote)},
		{valuation.KindRent, req.RentEstimate, sanitize.TextPtr(req.RentNote)},
	} {
		if o.value != nil {
			updated = valuation.Override(updated, id, o.kind, *o.value, o.note, now)
		}
	}
	overrides := updated[len(history):]

	write := evaluation.Recompute(s.scoring, s.maoFactor, lead, valuation.CurrentValues(updated))
	write.ExpectedEvaluationVersion = *req.ExpectedVersion
	write.Estimates = overrides

	saved, err := s.repo.WriteEvaluation(ctx, id, tenantID, write)
	if err != nil {
		if errors.Is(err, repository.ErrVersionMismatch) {
			return transport.UpdateEvaluationResponse{}, apperr.Conflict("evaluation was updated by someone else").
				WithDetails(map[string]any{"field": "evaluationVersion"})
		}
		return transport.UpdateEvaluationResponse{}, mapRepoErr(err, "management.UpdateEvaluation")
	}

	s.eventBus.Publish(ctx, events.EvaluationUpdated{
		BaseEvent:         events.NewBaseEvent(),
		LeadID:            id,
		TenantID:          tenantID,
		EvaluationVersion: saved.EvaluationVersion,
	})

	return transport.UpdateEvaluationResponse{
		ID: saved.ID,
		Metrics: transport.EvaluationMetricsResponse{
			MAO:           write.MAO,
			SpreadPercent: write.SpreadPercent,
			HoldScore:     write.HoldScore,
			FlipScore:     write.FlipScore,
		},
		EvaluationVersion: saved.EvaluationVersion,
		UpdatedAt:         saved.UpdatedAt,
	}, nil
}

// GetValuations returns estimate history, newest first, optionally for one kind.
func (s *Service) GetValuations(ctx context.Context, tenantID, id uuid.UUID, kind *valuation.Kind) (transport.EstimateListResponse, error) {
	if _, err := s.getLead(ctx, tenantID, id); err != nil {
		return transport.EstimateListResponse{}, err
	}
	history, err := s.repo.ListEstimates(ctx, id, tenantID, kind)
	if err != nil {
		return transport.EstimateListResponse{}, apperr.Wrap(apperr.KindInternal, "list estimates", err).WithOp("management.GetValuations")
	}
	sorted := valuation.SortNewestFirst(history)
	items := make([]transport.EstimateResponse, len(sorted))
	for i, e := range sorted {
		items[i] = ToEstimateResponse(e)
	}
	return transport.EstimateListResponse{Items: items}, nil
}

// RunEvaluation queues a tier for a lead.
func (s *Service) RunEvaluation(ctx context.Context, tenantID, id uuid.UUID, tier domain.EvaluationTier) (transport.RunEvaluationResponse, error) {
	if _, err := s.getLead(ctx, tenantID, id); err != nil {
		return transport.RunEvaluationResponse{}, err
	}
	if err := s.dispatcher.EnqueueEvaluation(ctx, tenantID, id, tier, domain.TriggerManual); err != nil {
		return transport.RunEvaluationResponse{}, apperr.Wrap(apperr.KindInternal, "queue evaluation", err).WithOp("management.RunEvaluation")
	}
	s.log.Info("evaluation queued", "leadId", id, "tier", tier)
	return transport.RunEvaluationResponse{LeadID: id, Tier: tier, Status: string(domain.TierQueued)}, nil
}

// CancelEvaluation cancels a queued or running tier.
func (s *Service) CancelEvaluation(ctx context.Context, tenantID, id uuid.UUID, tier domain.EvaluationTier) (transport.CancelEvaluationResponse, error) {
	if _, err := s.getLead(ctx, tenantID, id); err != nil {
		return transport.CancelEvaluationResponse{}, err
	}
	cancelled, err := s.dispatcher.CancelEvaluation(ctx, id, tier)
	if err != nil {
		return transport.CancelEvaluationResponse{}, apperr.Wrap(apperr.KindInternal, "cancel evaluation", err).WithOp("management.CancelEvaluation")
	}
	return transport.CancelEvaluationResponse{LeadID: id, Tier: tier, Cancelled: cancelled}, nil
}

// EvaluationStatus reports the live state and latest run of each tier.
func (s *Service) EvaluationStatus(ctx context.Context, tenantID, id uuid.UUID) (transport.EvaluationStatusResponse, error) {
	if _, err := s.getLead(ctx, tenantID, id); err != nil {
		return transport.EvaluationStatusResponse{}, err
	}

	resp := transport.EvaluationStatusResponse{
		LeadID: id,
		Tiers:  make(map[domain.EvaluationTier]transport.TierStatusResponse, 2),
	}
	for _, tier := range []domain.EvaluationTier{domain.TierQuick, domain.TierFull} {
		state, err := s.dispatcher.TierState(ctx, id, tier)
		if err != nil {
			s.log.Warn("tier state lookup failed", "leadId", id, "tier", tier, "error", err)
			state = domain.TierIdle
		}
		status := transport.TierStatusResponse{State: state}

		rec, err := s.repo.LatestEvaluation(ctx, id, tenantID, tier)
		switch {
		case err == nil:
			latest := ToEvaluationRecordResponse(rec)
			status.Latest = &latest
		case !errors.Is(err, repository.ErrNotFound):
			return transport.EvaluationStatusResponse{}, apperr.Wrap(apperr.KindInternal, "latest evaluation", err).WithOp("management.EvaluationStatus")
		}
		resp.Tiers[tier] = status
	}
	return resp, nil
}

// GetEvaluationHistory pages the append-only run history.
func (s *Service) GetEvaluationHistory(ctx context.Context, tenantID, id uuid.UUID, req transport.ListHistoryRequest) (transport.EvaluationHistoryResponse, error) {
	if _, err := s.getLead(ctx, tenantID, id); err != nil {
		return transport.EvaluationHistoryResponse{}, err
	}
	limit := req.Limit
	if limit < 1 {
		limit = defaultHistorySize
	}
	records, total, err := s.repo.ListEvaluationHistory(ctx, id, tenantID, limit, max(req.Offset, 0))
	if err != nil {
		return transport.EvaluationHistoryResponse{}, apperr.Wrap(apperr.KindInternal, "list history", err).WithOp("management.GetEvaluationHistory")
	}
	items := make([]transport.EvaluationRecordResponse, len(records))
	for i, rec := range records {
		items[i] = ToEvaluationRecordResponse(rec)
	}
	return transport.EvaluationHistoryResponse{Items: items, Total: total}, nil
}

// AuditLink presigns the raw prompt and response archived for one provider
// call of an evaluation run.
func (s *Service) AuditLink(ctx context.Context, tenantID, id, evaluationID uuid.UUID, kind string) (transport.AuditLinkResponse, error) {
	if _, err := s.getLead(ctx, tenantID, id); err != nil {
		return transport.AuditLinkResponse{}, err
	}
	if s.audit == nil {
		return transport.AuditLinkResponse{}, apperr.NotFound("audit archive is not configured")
	}
	link, err := s.audit.GenerateDownloadURL(ctx, evaluation.AuditKey(id, evaluationID, kind))
	if errors.Is(err, storage.ErrAuditNotFound) {
		return transport.AuditLinkResponse{}, apperr.NotFound("audit not found")
	}
	if err != nil {
		return transport.AuditLinkResponse{}, apperr.Provider("audit storage", err).WithOp("management.AuditLink")
	}
	return transport.AuditLinkResponse{URL: link.URL, Key: link.FileKey, ExpiresAt: link.ExpiresAt}, nil
}

// ScheduleFollowUp sets the follow-up date and reason.
func (s *Service) ScheduleFollowUp(ctx context.Context, tenantID, id uuid.UUID, req transport.ScheduleFollowUpRequest) (transport.LeadResponse, error) {
	date := req.FollowUpDate.UTC()
	return s.update(ctx, tenantID, id, *req.ExpectedVersion, repository.UpdateLeadParams{
		FollowUpDate:   &date,
		FollowUpReason: sanitize.TextPtr(req.Reason),
	}, "management.ScheduleFollowUp")
}

// CancelFollowUp clears the follow-up date and reason.
func (s *Service) CancelFollowUp(ctx context.Context, tenantID, id uuid.UUID, expectedVersion int) (transport.LeadResponse, error) {
	return s.update(ctx, tenantID, id, expectedVersion, repository.UpdateLeadParams{ClearFollowUp: true}, "management.CancelFollowUp")
}

// UpdateStatus moves a lead to a new status.
func (s *Service) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, req transport.UpdateStatusRequest) (transport.LeadResponse, error) {
	current, err := s.getLead(ctx, tenantID, id)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	status := req.Status
	resp, err := s.update(ctx, tenantID, id, *req.ExpectedVersion, repository.UpdateLeadParams{Status: &status}, "management.UpdateStatus")
	if err != nil {
		return transport.LeadResponse{}, err
	}
	if current.Status != status {
		s.eventBus.Publish(ctx, events.LeadStatusChanged{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    id,
			TenantID:  tenantID,
			OldStatus: string(current.Status),
			NewStatus: string(status),
		})
	}
	return resp, nil
}

// RecordContact stamps the last contact date. A New lead becomes Contacted.
func (s *Service) RecordContact(ctx context.Context, tenantID, id uuid.UUID, req transport.RecordContactRequest) (transport.LeadResponse, error) {
	current, err := s.getLead(ctx, tenantID, id)
	if err != nil {
		return transport.LeadResponse{}, err
	}

	contactedAt := s.now()
	if req.ContactedAt != nil {
		contactedAt = req.ContactedAt.UTC()
	}
	params := repository.UpdateLeadParams{LastContactDate: &contactedAt}
	if current.Status == domain.LeadStatusNew {
		contacted := domain.LeadStatusContacted
		params.Status = &contacted
	}

	resp, err := s.update(ctx, tenantID, id, *req.ExpectedVersion, params, "management.RecordContact")
	if err != nil {
		return transport.LeadResponse{}, err
	}
	if params.Status != nil {
		s.eventBus.Publish(ctx, events.LeadStatusChanged{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    id,
			TenantID:  tenantID,
			OldStatus: string(current.Status),
			NewStatus: string(*params.Status),
		})
	}
	return resp, nil
}

// SetArchived archives or restores a lead. Archiving is a soft delete.
func (s *Service) SetArchived(ctx context.Context, tenantID, id uuid.UUID, expectedVersion int, archived bool) (transport.LeadResponse, error) {
	resp, err := s.update(ctx, tenantID, id, expectedVersion, repository.UpdateLeadParams{Archived: &archived}, "management.SetArchived")
	if err != nil {
		return transport.LeadResponse{}, err
	}
	s.eventBus.Publish(ctx, events.LeadArchived{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    id,
		TenantID:  tenantID,
		Archived:  archived,
	})
	return resp, nil
}

// Delete permanently removes a lead and everything that cascades from it.
func (s *Service) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id, tenantID); err != nil {
		return mapRepoErr(err, "management.Delete")
	}
	for _, tier := range []domain.EvaluationTier{domain.TierQuick, domain.TierFull} {
		if _, err := s.dispatcher.CancelEvaluation(ctx, id, tier); err != nil {
			s.log.Warn("cancel evaluation after delete failed", "leadId", id, "tier", tier, "error", err)
		}
	}
	s.log.Info("lead deleted", "leadId", id)
	s.eventBus.Publish(ctx, events.LeadDeleted{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    id,
		TenantID:  tenantID,
	})
	return nil
}

func (s *Service) update(ctx context.Context, tenantID, id uuid.UUID, expectedVersion int, params repository.UpdateLeadParams, op string) (transport.LeadResponse, error) {
	lead, err := s.repo.Update(ctx, id, tenantID, expectedVersion, params)
	if err != nil {
		return transport.LeadResponse{}, mapRepoErr(err, op)
	}
	return ToLeadResponse(lead, s.now()), nil
}

func (s *Service) getLead(ctx context.Context, tenantID, id uuid.UUID) (repository.Lead, error) {
	lead, err := s.repo.GetByID(ctx, id, tenantID)
	if err != nil {
		return repository.Lead{}, mapRepoErr(err, "management.getLead")
	}
	return lead, nil
}

func mapRepoErr(err error, op string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("lead not found").WithOp(op)
	case errors.Is(err, repository.ErrVersionMismatch):
		return apperr.Conflict("lead was modified by someone else").WithOp(op).
			WithDetails(map[string]any{"field": "version"})
	default:
		return apperr.Wrap(apperr.KindInternal, "lead operation failed", err).WithOp(op)
	}
}

func versionConflict(field string, current int) error {
	return apperr.Conflict("lead was modified by someone else").
		WithDetails(map[string]any{"field": field, "currentVersion": current})
}
