package management

import (
	"time"

	"dealflow_backend/internal/leads/prioritization"
	"dealflow_backend/internal/leads/repository"
	"dealflow_backend/internal/leads/transport"
	"dealflow_backend/internal/valuation"
)

// ToLeadResponse converts a repository Lead to a transport LeadResponse.
// The queue type is derived at now.
func ToLeadResponse(lead repository.Lead, now time.Time) transport.LeadResponse {
	tags := lead.Tags
	if tags == nil {
		tags = []string{}
	}
	return transport.LeadResponse{
		ID:                   lead.ID,
		Address:              lead.Address,
		ListingPrice:         lead.ListingPrice,
		PreviousListingPrice: lead.PreviousListingPrice,
		PriceChangePercent:   lead.PriceChangePercent,
		IsPriceDropped:       lead.IsPriceDropped,
		ContactName:          lead.ContactName,
		ContactPhone:         lead.ContactPhone,
		ContactEmail:         lead.ContactEmail,
		Status:               lead.Status,
		QueueType:            prioritization.Classify(lead.QueueView(), now),
		LastContactDate:      lead.LastContactDate,
		FollowUpDate:         lead.FollowUpDate,
		FollowUpReason:       lead.FollowUpReason,
		Archived:             lead.Archived,
		LeadScore:            lead.LeadScore,
		Units:                lead.Units,
		SquareFootage:        lead.SquareFootage,
		Latitude:             lead.Latitude,
		Longitude:            lead.Longitude,
		Notes:                lead.Notes,
		Tags:                 tags,
		Source:               lead.Source,
		Metadata:             lead.Metadata,
		MAO:                  lead.MAO,
		SpreadPercent:        lead.SpreadPercent,
		HoldScore:            lead.HoldScore,
		FlipScore:            lead.FlipScore,
		Version:              lead.Version,
		NotesVersion:         lead.NotesVersion,
		EvaluationVersion:    lead.EvaluationVersion,
		LastEvaluatedAt:      lead.LastEvaluatedAt,
		CreatedAt:            lead.CreatedAt,
		UpdatedAt:            lead.UpdatedAt,
	}
}

// ToEstimateResponse attaches the display badge to an estimate.
func ToEstimateResponse(e valuation.Estimate) transport.EstimateResponse {
	return transport.EstimateResponse{Estimate: e, Badge: valuation.BadgeFor(e)}
}

// ToEvaluationRecordResponse converts a history row.
func ToEvaluationRecordResponse(rec repository.EvaluationRecord) transport.EvaluationRecordResponse {
	return transport.EvaluationRecordResponse{
		ID:         rec.ID,
		LeadID:     rec.LeadID,
		Tier:       rec.Tier,
		Trigger:    rec.Trigger,
		Status:     rec.Status,
		Snapshots:  rec.Snapshots,
		Errors:     rec.Errors,
		Cost:       rec.Cost.StringFixed(4),
		DurationMs: rec.DurationMs,
		StartedAt:  rec.StartedAt,
		CreatedAt:  rec.CreatedAt,
	}
}
