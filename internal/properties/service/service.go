// Package service implements the property board: CRUD with optimistic
// versioning and on-demand deal analysis.
package service

import (
	"context"
	"errors"

	"dealflow_backend/internal/leads/domain"
	"dealflow_backend/internal/leads/prioritization"
	leadrepo "dealflow_backend/internal/leads/repository"
	"dealflow_backend/internal/leads/scoring"
	"dealflow_backend/internal/properties/repository"
	"dealflow_backend/internal/properties/transport"
	"dealflow_backend/internal/underwriting"
	"dealflow_backend/platform/apperr"
	"dealflow_backend/platform/logger"
	"dealflow_backend/platform/sanitize"

	"github.com/google/uuid"
)

// LeadLookup confirms a cross-referenced lead belongs to the organization.
type LeadLookup interface {
	GetByID(ctx context.Context, id, organizationID uuid.UUID) (leadrepo.Lead, error)
}

// Service provides business logic for properties.
type Service struct {
	repo      repository.Repository
	leads     LeadLookup
	scoring   *scoring.Service
	maoFactor float64
	log       *logger.Logger
}

// New creates a new property service. leads may be nil, in which case the
// database foreign key is the only lead check.
func New(repo repository.Repository, leads LeadLookup, scoringSvc *scoring.Service, maoFactor float64, log *logger.Logger) *Service {
	return &Service{repo: repo, leads: leads, scoring: scoringSvc, maoFactor: maoFactor, log: log}
}

// List returns the board ordered by status priority, then address.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID) (transport.PropertyListResponse, error) {
	items, err := s.repo.List(ctx, tenantID)
	if err != nil {
		return transport.PropertyListResponse{}, apperr.Wrap(apperr.KindInternal, "failed to list properties", err)
	}

	sorted := prioritization.SortProperties(items,
		func(p repository.Property) domain.PropertyStatus { return p.Status },
		func(p repository.Property) string { return p.Address },
	)

	resp := transport.PropertyListResponse{Items: make([]transport.PropertyResponse, 0, len(sorted)), Total: len(sorted)}
	for _, p := range sorted {
		resp.Items = append(resp.Items, toResponse(p))
	}
	return resp, nil
}

func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (transport.PropertyResponse, error) {
	p, err := s.get(ctx, tenantID, id)
	if err != nil {
		return transport.PropertyResponse{}, err
	}
	return toResponse(p), nil
}

func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, req transport.CreatePropertyRequest) (transport.PropertyResponse, error) {
	p := repository.Property{OrganizationID: tenantID}
	if err := s.apply(ctx, &p, req.PropertyFields); err != nil {
		return transport.PropertyResponse{}, err
	}

	created, err := s.repo.Create(ctx, p)
	if err != nil {
		return transport.PropertyResponse{}, mapRepoErr(err, "property.create")
	}
	s.log.Info("property created", "propertyId", created.ID, "status", created.Status)
	return toResponse(created), nil
}

func (s *Service) Update(ctx context.Context, tenantID, id uuid.UUID, req transport.UpdatePropertyRequest) (transport.PropertyResponse, error) {
	if req.ExpectedVersion == nil {
		return transport.PropertyResponse{}, apperr.InvalidField("expectedVersion", "expectedVersion is required")
	}
	current, err := s.get(ctx, tenantID, id)
	if err != nil {
		return transport.PropertyResponse{}, err
	}
	if current.Version != *req.ExpectedVersion {
		return transport.PropertyResponse{}, versionConflict(current.Version)
	}

	next := current
	if err := s.apply(ctx, &next, req.PropertyFields); err != nil {
		return transport.PropertyResponse{}, err
	}

	updated, err := s.repo.Update(ctx, *req.ExpectedVersion, next)
	if errors.Is(err, repository.ErrVersionMismatch) {
		if latest, getErr := s.repo.GetByID(ctx, id, tenantID); getErr == nil {
			return transport.PropertyResponse{}, versionConflict(latest.Version)
		}
	}
	if err != nil {
		return transport.PropertyResponse{}, mapRepoErr(err, "property.update")
	}
	return toResponse(updated), nil
}

func (s *Service) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id, tenantID); err != nil {
		return mapRepoErr(err, "property.delete")
	}
	s.log.Info("property deleted", "propertyId", id)
	return nil
}

// Analysis computes metrics, scores and deal-term targets for a property.
// The legacy point table is included only when asked for.
func (s *Service) Analysis(ctx context.Context, tenantID, id uuid.UUID, variant scoring.Variant) (transport.AnalysisResponse, error) {
	p, err := s.get(ctx, tenantID, id)
	if err != nil {
		return transport.AnalysisResponse{}, err
	}
	if variant == "" {
		variant = scoring.VariantCurrent
	}

	in := underwriting.Inputs{
		ListingPrice:  p.ListingPrice,
		OfferPrice:    p.OfferPrice,
		RehabCosts:    p.RehabCosts,
		PotentialRent: p.PotentialRent,
		ARV:           p.ARV,
		Units:         p.Units,
	}
	result := s.scoring.Evaluate(in, nil, variant)

	return transport.AnalysisResponse{
		PropertyID:    p.ID,
		Variant:       variant,
		Metrics:       result.Metrics,
		MAO:           underwriting.MAO(p.ARV, p.RehabCosts, s.maoFactor),
		SpreadPercent: underwriting.SpreadPercent(p.ARV, p.ListingPrice, p.RehabCosts),
		Hold:          result.Hold,
		Flip:          result.Flip,
		HoldTarget:    result.HoldTarget,
		FlipTarget:    result.FlipTarget,
		Legacy:        result.Legacy,
		ScoreVersion:  result.Version,
	}, nil
}

func (s *Service) get(ctx context.Context, tenantID, id uuid.UUID) (repository.Property, error) {
	p, err := s.repo.GetByID(ctx, id, tenantID)
	if err != nil {
		return repository.Property{}, mapRepoErr(err, "property.get")
	}
	return p, nil
}

// apply copies request fields onto p after sanitizing and checking them.
func (s *Service) apply(ctx context.Context, p *repository.Property, f transport.PropertyFields) error {
	address := sanitize.Text(f.Address)
	normalized := domain.NormalizeAddress(address)
	if normalized == "" {
		return apperr.InvalidField("address", "address must contain letters or digits")
	}

	status := f.Status
	if status == "" {
		status = p.Status
	}
	if status == "" {
		status = domain.PropertyStatusOpportunity
	}
	if !status.Valid() {
		return apperr.InvalidField("status", "unknown property status")
	}

	if f.LeadID != nil && s.leads != nil {
		if _, err := s.leads.GetByID(ctx, *f.LeadID, p.OrganizationID); err != nil {
			if errors.Is(err, leadrepo.ErrNotFound) {
				return apperr.InvalidField("leadId", "lead not found")
			}
			return apperr.Wrap(apperr.KindInternal, "failed to check lead", err)
		}
	}

	units := f.Units
	if units < 1 {
		units = 1
	}

	p.Address = address
	p.NormalizedAddress = normalized
	p.Status = status
	p.ListingPrice = f.ListingPrice
	p.OfferPrice = f.OfferPrice
	p.RehabCosts = f.RehabCosts
	p.PotentialRent = f.PotentialRent
	p.ARV = f.ARV
	p.SquareFootage = f.SquareFootage
	p.Units = units
	p.ActualRent = f.ActualRent
	p.CapitalCosts = f.CapitalCosts
	p.LeadID = f.LeadID
	if f.MonthlyExpenses != nil {
		p.MonthlyExpenses = repository.MonthlyExpenses(*f.MonthlyExpenses)
	}
	return nil
}

func mapRepoErr(err error, op string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("property not found").WithOp(op)
	case errors.Is(err, repository.ErrDuplicateAddress):
		return apperr.Conflict("a property with this address already exists").WithOp(op).
			WithDetails(map[string]any{"field": "address"})
	case errors.Is(err, repository.ErrUnknownLead):
		return apperr.InvalidField("leadId", "lead not found")
	case errors.Is(err, repository.ErrVersionMismatch):
		return apperr.Conflict("property was modified by someone else").WithOp(op)
	default:
		return apperr.Wrap(apperr.KindInternal, "property storage failed", err).WithOp(op)
	}
}

func versionConflict(current int) error {
	return apperr.Conflict("property was modified by someone else").
		WithDetails(map[string]any{"field": "expectedVersion", "currentVersion": current})
}

func toResponse(p repository.Property) transport.PropertyResponse {
	return transport.PropertyResponse{
		ID:                   p.ID,
		Address:              p.Address,
		Status:               p.Status,
		StatusPriority:       p.Status.Priority(),
		ListingPrice:         p.ListingPrice,
		OfferPrice:           p.OfferPrice,
		RehabCosts:           p.RehabCosts,
		PotentialRent:        p.PotentialRent,
		ARV:                  p.ARV,
		SquareFootage:        p.SquareFootage,
		Units:                p.Units,
		ActualRent:           p.ActualRent,
		MonthlyExpenses:      transport.MonthlyExpenses(p.MonthlyExpenses),
		MonthlyExpensesTotal: p.MonthlyExpenses.Total(),
		CapitalCosts:         p.CapitalCosts,
		LeadID:               p.LeadID,
		Version:              p.Version,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}
}
