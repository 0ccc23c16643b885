package adapters

import (
	"fmt"

	"dealflow_backend/internal/adapters/storage"
	"dealflow_backend/internal/events"
	"dealflow_backend/internal/leads/evaluation"
	"dealflow_backend/internal/leads/scoring"
	"dealflow_backend/internal/providers/estimator"
	"dealflow_backend/internal/providers/rentcast"
	"dealflow_backend/internal/valuation"
	"dealflow_backend/platform/config"
	"dealflow_backend/platform/logger"
)

// ProviderSettings is the configuration the evaluation providers read.
type ProviderSettings interface {
	config.ProviderConfig
	config.MinIOConfig
}

// EvaluationProviders are the outbound collaborators of an evaluation run.
// Verifier and Audit are nil when their service is not configured.
type EvaluationProviders struct {
	Estimator *estimator.Client
	Verifier  *rentcast.Client
	Audit     *storage.MinIOService
}

func NewEvaluationProviders(cfg ProviderSettings, log *logger.Logger) (EvaluationProviders, error) {
	p := EvaluationProviders{
		Estimator: estimator.New(cfg.GetEstimatorAPIURL(), cfg.GetEstimatorAPIKey(), log),
	}

	if cfg.IsRentCastEnabled() {
		p.Verifier = rentcast.New(cfg.GetRentCastBaseURL(), cfg.GetRentCastAPIKey(), cfg.GetRentCastRatePerSecond(), log)
	} else {
		log.Warn("RENTCAST_API_KEY not configured; full tier runs without verified values")
	}

	if cfg.IsMinIOEnabled() {
		svc, err := storage.NewMinIOService(cfg)
		if err != nil {
			return EvaluationProviders{}, fmt.Errorf("init evaluation audit storage: %w", err)
		}
		p.Audit = svc
	} else {
		log.Warn("MINIO_ENDPOINT not configured; provider exchanges are not archived")
	}

	return p, nil
}

// Deps assembles runner dependencies. Disabled providers stay nil
// interfaces so the runner can tell they are absent.
func (p EvaluationProviders) Deps(store evaluation.Store, val *valuation.Validator, scoringSvc *scoring.Service, bus events.Bus, log *logger.Logger) evaluation.Deps {
	deps := evaluation.Deps{
		Store:     store,
		Estimator: p.Estimator,
		Validator: val,
		Scoring:   scoringSvc,
		EventBus:  bus,
		Log:       log,
	}
	if p.Verifier != nil {
		deps.Verifier = p.Verifier
	}
	if p.Audit != nil {
		deps.Audit = p.Audit
	}
	return deps
}
