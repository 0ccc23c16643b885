package transport

import (
	"time"

	"dealflow_backend/internal/leads/domain"
	"dealflow_backend/internal/leads/prioritization"
	"dealflow_backend/internal/leads/scoring"
	"dealflow_backend/internal/underwriting"
	"dealflow_backend/internal/valuation"

	"github.com/google/uuid"
)

// =====================================
// Requests
// =====================================

type IngestLeadRequest struct {
	Address          string                `json:"address" validate:"required,min=3,max=300,street_address"`
	ListingPrice     float64               `json:"listingPrice" validate:"gte=0"`
	ContactName      *string               `json:"contactName,omitempty" validate:"omitempty,max=200"`
	ContactPhone     *string               `json:"contactPhone,omitempty" validate:"omitempty,min=5,max=30"`
	ContactEmail     *string               `json:"contactEmail,omitempty" validate:"omitempty,email"`
	Units            int                   `json:"units,omitempty" validate:"omitempty,min=1,max=1000"`
	SquareFootage    *int                  `json:"squareFootage,omitempty" validate:"omitempty,gt=0"`
	Latitude         *float64              `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude        *float64              `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	Tags             []string              `json:"tags,omitempty" validate:"max=50,dive,tag"`
	Source           domain.LeadSource     `json:"source,omitempty" validate:"omitempty,oneof=manual import listing_feed api"`
	Metadata         domain.Metadata       `json:"metadata,omitempty" validate:"-"`
	Tier             domain.EvaluationTier `json:"tier,omitempty" validate:"omitempty,oneof=quick full"`
	SendFirstMessage bool                  `json:"sendFirstMessage,omitempty"`
}

type QueueRequest struct {
	Type     domain.QueueType `form:"type" validate:"omitempty,oneof=action_now follow_up negotiating all archived"`
	Page     int              `form:"page" validate:"omitempty,min=1"`
	PageSize int              `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

// UpdateEvaluationRequest overrides estimates by hand. ExpectedVersion is
// the lead's evaluationVersion and may come from If-Match instead.
type UpdateEvaluationRequest struct {
	ExpectedVersion *int     `json:"expectedVersion" validate:"required,min=0"`
	ARV             *float64 `json:"arv,omitempty" validate:"omitempty,gte=0"`
	ARVNote         *string  `json:"arvNote,omitempty" validate:"omitempty,max=500"`
	RehabEstimate   *float64 `json:"rehabEstimate,omitempty" validate:"omitempty,gte=0"`
	RehabNote       *string  `json:"rehabNote,omitempty" validate:"omitempty,max=500"`
	RentEstimate    *float64 `json:"rentEstimate,omitempty" validate:"omitempty,gte=0"`
	RentNote        *string  `json:"rentNote,omitempty" validate:"omitempty,max=500"`
}

type RunEvaluationRequest struct {
	Tier domain.EvaluationTier `json:"tier" validate:"required,oneof=quick full"`
}

type ListHistoryRequest struct {
	Limit  int `form:"limit" validate:"omitempty,min=1,max=100"`
	Offset int `form:"offset" validate:"omitempty,min=0"`
}

type ListValuationsRequest struct {
	Kind *valuation.Kind `form:"kind" validate:"omitempty,oneof=arv rehab rent"`
}

type ScheduleFollowUpRequest struct {
	ExpectedVersion *int      `json:"expectedVersion" validate:"required,min=0"`
	FollowUpDate    time.Time `json:"followUpDate" validate:"required"`
	Reason          *string   `json:"reason,omitempty" validate:"omitempty,max=500"`
}

type UpdateStatusRequest struct {
	ExpectedVersion *int              `json:"expectedVersion" validate:"required,min=0"`
	Status          domain.LeadStatus `json:"status" validate:"required,oneof=New Contacted Responding Negotiating UnderContract Closed Lost"`
}

type RecordContactRequest struct {
	ExpectedVersion *int       `json:"expectedVersion" validate:"required,min=0"`
	ContactedAt     *time.Time `json:"contactedAt,omitempty"`
}

// VersionRequest carries only the expected version, for archive, unarchive
// and follow-up cancellation.
type VersionRequest struct {
	ExpectedVersion *int `json:"expectedVersion" form:"expectedVersion" validate:"required,min=0"`
}

type UpdateNotesRequest struct {
	ExpectedNotesVersion *int   `json:"expectedNotesVersion" validate:"required,min=0"`
	Notes                string `json:"notes" validate:"max=20000"`
}

// =====================================
// Responses
// =====================================

type LeadResponse struct {
	ID                   uuid.UUID         `json:"id"`
	Address              string            `json:"address"`
	ListingPrice         float64           `json:"listingPrice"`
	PreviousListingPrice *float64          `json:"previousListingPrice,omitempty"`
	PriceChangePercent   *float64          `json:"priceChangePercent,omitempty"`
	IsPriceDropped       bool              `json:"isPriceDropped"`
	ContactName          *string           `json:"contactName,omitempty"`
	ContactPhone         *string           `json:"contactPhone,omitempty"`
	ContactEmail         *string           `json:"contactEmail,omitempty"`
	Status               domain.LeadStatus `json:"status"`
	QueueType            domain.QueueType  `json:"queueType"`
	LastContactDate      *time.Time        `json:"lastContactDate,omitempty"`
	FollowUpDate         *time.Time        `json:"followUpDate,omitempty"`
	FollowUpReason       *string           `json:"followUpReason,omitempty"`
	Archived             bool              `json:"archived"`
	LeadScore            *float64          `json:"leadScore,omitempty"`
	Units                int               `json:"units"`
	SquareFootage        *int              `json:"squareFootage,omitempty"`
	Latitude             *float64          `json:"latitude,omitempty"`
	Longitude            *float64          `json:"longitude,omitempty"`
	Notes                string            `json:"notes"`
	Tags                 []string          `json:"tags"`
	Source               domain.LeadSource `json:"source"`
	Metadata             domain.Metadata   `json:"metadata"`
	MAO                  *float64          `json:"mao,omitempty"`
	SpreadPercent        *float64          `json:"spreadPercent,omitempty"`
	HoldScore            *int              `json:"holdScore,omitempty"`
	FlipScore            *int              `json:"flipScore,omitempty"`
	UnreadCount          int               `json:"unreadCount"`
	Version              int               `json:"version"`
	NotesVersion         int               `json:"notesVersion"`
	EvaluationVersion    int               `json:"evaluationVersion"`
	LastEvaluatedAt      *time.Time        `json:"lastEvaluatedAt,omitempty"`
	CreatedAt            time.Time         `json:"createdAt"`
	UpdatedAt            time.Time         `json:"updatedAt"`
}

type PaginationResponse struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type QueueResponse struct {
	Leads       []LeadResponse        `json:"leads"`
	QueueCounts prioritization.Counts `json:"queueCounts"`
	Pagination  PaginationResponse    `json:"pagination"`
}

type EstimateResponse struct {
	valuation.Estimate
	Badge valuation.Badge `json:"badge"`
}

type EstimateListResponse struct {
	Items []EstimateResponse `json:"items"`
}

type LeadMetricsResponse struct {
	MAO           float64               `json:"mao"`
	SpreadPercent float64               `json:"spreadPercent"`
	HoldScore     int                   `json:"holdScore"`
	FlipScore     int                   `json:"flipScore"`
	Underwriting  underwriting.Metrics  `json:"underwriting"`
	Hold          scoring.HoldBreakdown `json:"hold"`
	Flip          scoring.FlipBreakdown `json:"flip"`
	HoldTarget    scoring.HoldTarget    `json:"holdTarget"`
	FlipTarget    scoring.FlipTarget    `json:"flipTarget"`
}

type LeadDetailResponse struct {
	Lead      LeadResponse                        `json:"lead"`
	Estimates map[valuation.Kind]EstimateResponse `json:"estimates"`
	Metrics   LeadMetricsResponse                 `json:"metrics"`
}

type EvaluationQueuedResponse struct {
	Tier   domain.EvaluationTier `json:"tier"`
	Status string                `json:"status"`
}

type IngestLeadResponse struct {
	Lead            LeadResponse              `json:"lead"`
	Evaluation      *EvaluationQueuedResponse `json:"evaluation,omitempty"`
	WasConsolidated bool                      `json:"wasConsolidated"`
	Consolidation   any                       `json:"consolidation,omitempty"`
}

type EvaluationMetricsResponse struct {
	MAO           float64 `json:"mao"`
	SpreadPercent float64 `json:"spreadPercent"`
	HoldScore     int     `json:"holdScore"`
	FlipScore     int     `json:"flipScore"`
}

type UpdateEvaluationResponse struct {
	ID                uuid.UUID                 `json:"id"`
	Metrics           EvaluationMetricsResponse `json:"metrics"`
	EvaluationVersion int                       `json:"evaluationVersion"`
	UpdatedAt         time.Time                 `json:"updatedAt"`
}

type EvaluationRecordResponse struct {
	ID         uuid.UUID                  `json:"id"`
	LeadID     uuid.UUID                  `json:"leadId"`
	Tier       domain.EvaluationTier      `json:"tier"`
	Trigger    domain.EvaluationTrigger   `json:"trigger"`
	Status     domain.EvaluationStatus    `json:"status"`
	Snapshots  map[string]domain.Snapshot `json:"snapshots"`
	Errors     map[string]string          `json:"errors"`
	Cost       string                     `json:"cost"`
	DurationMs int64                      `json:"durationMs"`
	StartedAt  time.Time                  `json:"startedAt"`
	CreatedAt  time.Time                  `json:"createdAt"`
}

type EvaluationHistoryResponse struct {
	Items []EvaluationRecordResponse `json:"items"`
	Total int                        `json:"total"`
}

type TierStatusResponse struct {
	State  domain.TierState          `json:"state"`
	Latest *EvaluationRecordResponse `json:"latest,omitempty"`
}

type EvaluationStatusResponse struct {
	LeadID uuid.UUID                                    `json:"leadId"`
	Tiers  map[domain.EvaluationTier]TierStatusResponse `json:"tiers"`
}

type RunEvaluationResponse struct {
	LeadID uuid.UUID             `json:"leadId"`
	Tier   domain.EvaluationTier `json:"tier"`
	Status string                `json:"status"`
}

type CancelEvaluationResponse struct {
	LeadID    uuid.UUID             `json:"leadId"`
	Tier      domain.EvaluationTier `json:"tier"`
	Cancelled bool                  `json:"cancelled"`
}

type NotesResponse struct {
	ID           uuid.UUID `json:"id"`
	Notes        string    `json:"notes"`
	NotesVersion int       `json:"notesVersion"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type AuditLinkResponse struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expiresAt"`
}
