// Package properties provides the property board bounded context module.
package properties

import (
	apphttp "dealflow_backend/internal/http"
	"dealflow_backend/internal/leads/scoring"
	"dealflow_backend/internal/properties/handler"
	"dealflow_backend/internal/properties/repository"
	"dealflow_backend/internal/properties/service"
	"dealflow_backend/platform/logger"
	"dealflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the properties bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the properties module.
func NewModule(pool *pgxpool.Pool, leads service.LeadLookup, scoringSvc *scoring.Service, maoFactor float64, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(repository.New(pool), leads, scoringSvc, maoFactor, log)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "properties"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts property routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/properties"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
