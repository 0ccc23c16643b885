// Package valuation models estimated quantities (ARV, rehab, rent) with
// their provenance and confidence, and validates AI-produced ARVs against
// market benchmarks and comparable sales.
package valuation

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Kind is the quantity an estimate describes.
type Kind string

const (
	KindARV   Kind = "arv"
	KindRehab Kind = "rehab"
	KindRent  Kind = "rent"
)

// Source is where an estimate came from.
type Source string

const (
	SourceAI       Source = "ai"
	SourceManual   Source = "manual"
	SourceVerified Source = "verified"
)

// ConfidenceLevel is the normalized confidence of an AI estimate.
type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindARV, KindRehab, KindRent:
		return true
	}
	return false
}

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceAI, SourceManual, SourceVerified:
		return true
	}
	return false
}

// Estimate is one persisted estimate. It is never mutated after creation;
// a correction is a new Estimate.
type Estimate struct {
	ID              uuid.UUID        `json:"id"`
	LeadID          uuid.UUID        `json:"leadId"`
	Kind            Kind             `json:"kind"`
	Value           float64          `json:"value"`
	Source          Source           `json:"source"`
	ConfidenceLevel *ConfidenceLevel `json:"confidenceLevel,omitempty"`
	ConfidencePct   *float64         `json:"confidencePct,omitempty"`
	Note            *string          `json:"note,omitempty"`
	OriginalValue   *float64         `json:"originalValue,omitempty"`
	Validation      *ArvValidation   `json:"validation,omitempty"`
	EvaluationID    *uuid.UUID       `json:"evaluationId,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
}

// Badge is the display chip for an estimate.
type Badge struct {
	Label           string `json:"label"`
	Tone            string `json:"tone"`
	ShowsConfidence bool   `json:"showsConfidence"`
}

// PercentageToLevel maps a legacy 0-100 confidence to a level. Each boundary
// belongs to the upper bucket: 50 is medium and 80 is high.
func PercentageToLevel(pct float64) ConfidenceLevel {
	switch {
	case math.IsNaN(pct) || pct < 50:
		return ConfidenceLow
	case pct < 80:
		return ConfidenceMedium
	default:
		return ConfidenceHigh
	}
}

// Level returns the estimate's confidence level, deriving it from the legacy
// percentage when no level was stored. Estimates with neither are low.
func (e Estimate) Level() ConfidenceLevel {
	if e.ConfidenceLevel != nil {
		return *e.ConfidenceLevel
	}
	if e.ConfidencePct != nil {
		return PercentageToLevel(*e.ConfidencePct)
	}
	return ConfidenceLow
}

// Resolve returns the numeric value of an estimate.
func Resolve(e Estimate) float64 {
	return e.Value
}

// BadgeFor derives the display badge from source and confidence only.
// Manual and verified estimates ignore confidence.
func BadgeFor(e Estimate) Badge {
	switch e.Source {
	case SourceManual:
		return Badge{Label: "Manual override", Tone: "info"}
	case SourceVerified:
		return Badge{Label: "Verified", Tone: "success"}
	}

	switch e.Level() {
	case ConfidenceHigh:
		return Badge{Label: "AI · High confidence", Tone: "success", ShowsConfidence: true}
	case ConfidenceMedium:
		return Badge{Label: "AI · Medium confidence", Tone: "warning", ShowsConfidence: true}
	default:
		return Badge{Label: "AI · Low confidence", Tone: "danger", ShowsConfidence: true}
	}
}

// sourceRank orders sources for current-value selection. A human override
// outranks a verified figure, which outranks the model.
func sourceRank(s Source) int {
	switch s {
	case SourceManual:
		return 3
	case SourceVerified:
		return 2
	case SourceAI:
		return 1
	default:
		return 0
	}
}

// Current picks the estimate of kind that currently drives computations:
// highest-ranked source first, newest within a source.
func Current(history []Estimate, kind Kind) (Estimate, bool) {
	var (
		best  Estimate
		found bool
	)
	for _, e := range history {
		if e.Kind != kind {
			continue
		}
		if !found || outranks(e, best) {
			best = e
			found = true
		}
	}
	return best, found
}

func outranks(a, b Estimate) bool {
	ra, rb := sourceRank(a.Source), sourceRank(b.Source)
	if ra != rb {
		return ra > rb
	}
	return a.CreatedAt.After(b.CreatedAt)
}

// CurrentValues resolves the current value for each kind. Missing kinds are absent.
func CurrentValues(history []Estimate) map[Kind]Estimate {
	out := make(map[Kind]Estimate, 3)
	for _, kind := range []Kind{KindARV, KindRehab, KindRent} {
		if e, ok := Current(history, kind); ok {
			out[kind] = e
		}
	}
	return out
}

// NewOverride builds a manual estimate for kind.
func NewOverride(leadID uuid.UUID, kind Kind, value float64, note *string, now time.Time) Estimate {
	return Estimate{
		ID:        uuid.New(),
		LeadID:    leadID,
		Kind:      kind,
		Value:     value,
		Source:    SourceManual,
		Note:      note,
		CreatedAt: now,
	}
}

// Override returns a new history with a manual estimate appended. history
// itself is left untouched.
func Override(history []Estimate, leadID uuid.UUID, kind Kind, value float64, note *string, now time.Time) []Estimate {
	out := make([]Estimate, len(history), len(history)+1)
	copy(out, history)
	return append(out, NewOverride(leadID, kind, value, note, now))
}

// SortNewestFirst returns a copy of history ordered by creation time, newest first.
func SortNewestFirst(history []Estimate) []Estimate {
	out := make([]Estimate, len(history))
	copy(out, history)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
