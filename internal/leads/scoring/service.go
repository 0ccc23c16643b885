// Package scoring turns underwriting metrics into the Hold and Flip
// acquisition scores, their breakdowns, and the inverse deal-term targets.
package scoring

import (
	"strings"

	"dealflow_backend/internal/underwriting"
	"dealflow_backend/platform/logger"
)

const (
	// scoreVersion tracks the scoring model for debugging and analysis.
	// Bump this when changing breakpoints.
	scoreVersion = "2026-hf1"

	// StrategyHoldTag on a lead makes its queue score follow Hold instead of Flip.
	StrategyHoldTag = "strategy:hold"
)

// Variant selects which point table an analysis reports.
type Variant string

const (
	VariantCurrent Variant = "current"
	VariantLegacy  Variant = "legacy"
)

// Result holds the scores, their breakdowns and the deal-term targets.
type Result struct {
	Hold       HoldBreakdown
	Flip       FlipBreakdown
	HoldTarget HoldTarget
	FlipTarget FlipTarget
	Legacy     *LegacyBreakdown
	Metrics    underwriting.Metrics
	LeadScore  int
	Version    string
}

// Service computes scores for a set of inputs.
type Service struct {
	calc *underwriting.Calculator
	log  *logger.Logger
}

// New creates a new scoring service.
func New(calc *underwriting.Calculator, log *logger.Logger) *Service {
	return &Service{calc: calc, log: log}
}

// Evaluate scores in. tags decide which score becomes the lead score; the
// legacy table is only computed when asked for.
func (s *Service) Evaluate(in underwriting.Inputs, tags []string, variant Variant) Result {
	hold := Hold(s.calc, in)
	flip := Flip(in)

	result := Result{
		Hold:       hold,
		Flip:       flip,
		HoldTarget: HoldTargetFor(s.calc, in),
		FlipTarget: FlipTargetFor(in),
		Metrics:    s.calc.Compute(in),
		LeadScore:  flip.Score,
		Version:    scoreVersion,
	}
	if hasTag(tags, StrategyHoldTag) {
		result.LeadScore = hold.Score
		s.log.Debug("lead score follows hold strategy", "hold", hold.Score, "flip", flip.Score)
	}

	if variant == VariantLegacy {
		legacy := Legacy(s.calc, in)
		result.Legacy = &legacy
	}

	return result
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if strings.EqualFold(strings.TrimSpace(t), want) {
			return true
		}
	}
	return false
}
