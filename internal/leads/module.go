// Package leads provides the lead evaluation bounded context module.
// This file defines the module that encapsulates all leads setup and route registration.
package leads

import (
	"dealflow_backend/internal/events"
	apphttp "dealflow_backend/internal/http"
	"dealflow_backend/internal/leads/consolidation"
	"dealflow_backend/internal/leads/evaluation"
	"dealflow_backend/internal/leads/handler"
	"dealflow_backend/internal/leads/management"
	"dealflow_backend/internal/leads/notes"
	"dealflow_backend/internal/leads/repository"
	"dealflow_backend/internal/leads/scoring"
	"dealflow_backend/internal/underwriting"
	"dealflow_backend/internal/valuation"
	"dealflow_backend/platform/config"
	"dealflow_backend/platform/logger"
	"dealflow_backend/platform/validator"
)

// ModuleDeps carries what the leads module needs from the composition root.
// Unread and Audit are optional.
type ModuleDeps struct {
	Repo        *repository.Repository
	Dispatcher  evaluation.Dispatcher
	Unread      management.UnreadCounter
	Audit       management.AuditLinker
	Scoring     *scoring.Service
	Policy      config.Policy
	PhoneRegion string
	EventBus    events.Bus
	Validator   *validator.Validator
	Log         *logger.Logger
}

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler       *handler.Handler
	notesHandler  *handler.NotesHandler
	management    *management.Service
	consolidation *consolidation.Service
	notes         *notes.Service
}

// NewModule creates and initializes the leads module with all its dependencies.
func NewModule(deps ModuleDeps) *Module {
	// Create focused services (vertical slices)
	mgmtSvc := management.New(deps.Repo, deps.Dispatcher, deps.Unread, deps.Scoring, deps.Policy.MAOFactor, deps.EventBus, deps.Log)
	if deps.Audit != nil {
		mgmtSvc.SetAuditLinker(deps.Audit)
	}
	ingestSvc := consolidation.New(deps.Repo, deps.Dispatcher, deps.EventBus, consolidation.Policy{
		RevivesArchived:        deps.Policy.ReingestRevivesArchived,
		MaterialPriceChangePct: deps.Policy.MaterialPriceChangePct,
	}, deps.PhoneRegion, deps.Log)
	notesSvc := notes.New(deps.Repo)

	return &Module{
		handler:       handler.New(mgmtSvc, ingestSvc, deps.Validator),
		notesHandler:  handler.NewNotesHandler(notesSvc, deps.Validator),
		management:    mgmtSvc,
		consolidation: ingestSvc,
		notes:         notesSvc,
	}
}

// NewScoring builds the score engine from the underwriting policy.
func NewScoring(policy config.Policy, log *logger.Logger) *scoring.Service {
	calc := underwriting.NewCalculator(policy.CashRemaining, underwriting.FixedRateMortgage(policy.MortgageAnnualRate, policy.MortgageTermYears))
	return scoring.New(calc, log)
}

// NewValidator builds the ARV validator from the valuation policy.
func NewValidator(policy config.Policy) *valuation.Validator {
	areas := make(map[string]float64, len(policy.Valuation.AreaAverages))
	for _, a := range policy.Valuation.AreaAverages {
		areas[a.Zip] = a.ARV
	}
	return valuation.NewValidator(valuation.ValidatorConfig{
		PlaceholderPatterns: policy.Valuation.PlaceholderPatterns,
		CompRecency:         policy.CompRecency,
		AdjustFlagged:       policy.AdjustFlaggedARV,
		AreaAverages:        areas,
	})
}

// NewRunner builds the evaluation runner shared by the API's inline
// dispatcher and the scheduler worker.
func NewRunner(deps evaluation.Deps, policy config.Policy) *evaluation.Runner {
	return evaluation.NewRunner(deps, policy.MAOFactor, policy.ProviderTimeout)
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// ManagementService returns the lead management service for external use.
func (m *Module) ManagementService() *management.Service {
	return m.management
}

// ConsolidationService returns the ingest service for external use.
func (m *Module) ConsolidationService() *consolidation.Service {
	return m.consolidation
}

// NotesService returns the lead notes service for external use.
func (m *Module) NotesService() *notes.Service {
	return m.notes
}

// RegisterRoutes mounts leads routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// All leads routes require authentication
	leadsGroup := ctx.Protected.Group("/leads")
	m.handler.RegisterRoutes(leadsGroup)
	m.notesHandler.RegisterRoutes(leadsGroup)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
