// Package consolidation merges re-ingested leads into the existing record for
// the same property instead of creating duplicates.
package consolidation

import (
	"math"
	"strings"

	"dealflow_backend/internal/leads/domain"
	"dealflow_backend/internal/leads/repository"
	"dealflow_backend/platform/apperr"

	"github.com/google/uuid"
)

// Policy carries the business switches of consolidation.
type Policy struct {
	RevivesArchived        bool
	MaterialPriceChangePct float64
}

// Candidate is an incoming lead before it is matched.
type Candidate struct {
	Address       string
	ListingPrice  float64
	ContactName   *string
	ContactPhone  *string
	ContactEmail  *string
	Units         int
	SquareFootage *int
	Latitude      *float64
	Longitude     *float64
	Tags          []string
	Source        domain.LeadSource
	Metadata      domain.Metadata
}

// Snapshot is the part of a lead reported before and after a merge.
type Snapshot struct {
	ListingPrice float64           `json:"listingPrice"`
	Archived     bool              `json:"archived"`
	Status       domain.LeadStatus `json:"status"`
}

// Plan is the merge computed for one existing lead.
type Plan struct {
	Merge              repository.MergeLeadParams
	Before             Snapshot
	After              Snapshot
	PriceChanged       bool
	PriceChangePercent float64
	IsPriceDropped     bool
	Revived            bool
	MaterialChange     bool
}

// PriceChangePercent is (new-old)/old*100, 0 when old is 0.
func PriceChangePercent(oldPrice, newPrice float64) float64 {
	if oldPrice == 0 {
		return 0
	}
	pct := (newPrice - oldPrice) / oldPrice * 100
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return 0
	}
	return math.Round(pct*100) / 100
}

// PlanMerge decides how candidate folds into existing. An archived lead is
// revived when the policy allows it; otherwise a conflict naming the
// existing lead is returned and nothing is written.
func PlanMerge(existing repository.Lead, c Candidate, p Policy) (Plan, error) {
	if existing.Archived && !p.RevivesArchived {
		return Plan{}, apperr.Conflict("an archived lead already exists for this address").
			WithDetails(map[string]any{"existingLeadId": existing.ID})
	}

	before := Snapshot{ListingPrice: existing.ListingPrice, Archived: existing.Archived, Status: existing.Status}

	m := repository.MergeLeadParams{
		ListingPrice:         existing.ListingPrice,
		PreviousListingPrice: existing.PreviousListingPrice,
		PriceChangePercent:   existing.PriceChangePercent,
		IsPriceDropped:       existing.IsPriceDropped,
		Archived:             false,
		ContactName:          fillEmpty(existing.ContactName, c.ContactName),
		ContactPhone:         fillEmpty(existing.ContactPhone, c.ContactPhone),
		ContactEmail:         fillEmpty(existing.ContactEmail, c.ContactEmail),
		Units:                existing.Units,
		SquareFootage:        existing.SquareFootage,
		Latitude:             existing.Latitude,
		Longitude:            existing.Longitude,
		Tags:                 MergeTags(existing.Tags, c.Tags),
		Metadata:             existing.Metadata.Merge(c.Metadata),
	}
	if c.Units > 0 {
		m.Units = c.Units
	}
	if m.SquareFootage == nil {
		m.SquareFootage = c.SquareFootage
	}
	if m.Latitude == nil || m.Longitude == nil {
		m.Latitude, m.Longitude = c.Latitude, c.Longitude
	}

	plan := Plan{Before: before, Revived: existing.Archived}

	if c.ListingPrice > 0 && c.ListingPrice != existing.ListingPrice {
		pct := PriceChangePercent(existing.ListingPrice, c.ListingPrice)
		previous := existing.ListingPrice
		dropped := c.ListingPrice < existing.ListingPrice

		m.ListingPrice = c.ListingPrice
		m.PreviousListingPrice = &previous
		m.PriceChangePercent = &pct
		m.IsPriceDropped = dropped

		plan.PriceChanged = true
		plan.PriceChangePercent = pct
		plan.IsPriceDropped = dropped
		plan.MaterialChange = math.Abs(pct) >= p.MaterialPriceChangePct || existing.ListingPrice == 0
	}

	plan.Merge = m
	plan.After = Snapshot{ListingPrice: m.ListingPrice, Archived: m.Archived, Status: existing.Status}
	return plan, nil
}

// NewLead maps a candidate with no existing match onto insert params.
func NewLead(organizationID uuid.UUID, c Candidate) repository.CreateLeadParams {
	return repository.CreateLeadParams{
		OrganizationID:    organizationID,
		Address:           strings.TrimSpace(c.Address),
		NormalizedAddress: domain.NormalizeAddress(c.Address),
		ListingPrice:      c.ListingPrice,
		ContactName:       c.ContactName,
		ContactPhone:      c.ContactPhone,
		ContactEmail:      c.ContactEmail,
		Units:             c.Units,
		SquareFootage:     c.SquareFootage,
		Latitude:          c.Latitude,
		Longitude:         c.Longitude,
		Tags:              MergeTags(nil, c.Tags),
		Source:            c.Source,
		Metadata:          c.Metadata,
	}
}

// MergeTags unions two tag lists, keeping first-seen order and dropping blanks.
func MergeTags(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, list := range [][]string{existing, incoming} {
		for _, tag := range list {
			tag = strings.ToLower(strings.TrimSpace(tag))
			if tag == "" {
				continue
			}
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}

func fillEmpty(current, incoming *string) *string {
	if current != nil && strings.TrimSpace(*current) != "" {
		return current
	}
	if incoming != nil && strings.TrimSpace(*incoming) != "" {
		return incoming
	}
	return current
}
