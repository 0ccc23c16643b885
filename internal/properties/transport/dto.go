package transport

import (
	"time"

	"dealflow_backend/internal/leads/domain"
	"dealflow_backend/internal/leads/scoring"
	"dealflow_backend/internal/underwriting"

	"github.com/google/uuid"
)

type MonthlyExpenses struct {
	Taxes       float64 `json:"taxes" validate:"gte=0"`
	Insurance   float64 `json:"insurance" validate:"gte=0"`
	Management  float64 `json:"management" validate:"gte=0"`
	Maintenance float64 `json:"maintenance" validate:"gte=0"`
	Utilities   float64 `json:"utilities" validate:"gte=0"`
	HOA         float64 `json:"hoa" validate:"gte=0"`
	Other       float64 `json:"other" validate:"gte=0"`
}

// PropertyFields are the editable columns shared by create and update.
type PropertyFields struct {
	Address         string                `json:"address" validate:"required,min=3,max=300,street_address"`
	Status          domain.PropertyStatus `json:"status,omitempty" validate:"omitempty,max=40"`
	ListingPrice    float64               `json:"listingPrice" validate:"gte=0"`
	OfferPrice      float64               `json:"offerPrice" validate:"gte=0"`
	RehabCosts      float64               `json:"rehabCosts" validate:"gte=0"`
	PotentialRent   float64               `json:"potentialRent" validate:"gte=0"`
	ARV             float64               `json:"arv" validate:"gte=0"`
	SquareFootage   *int                  `json:"squareFootage,omitempty" validate:"omitempty,gt=0"`
	Units           int                   `json:"units,omitempty" validate:"omitempty,min=1,max=1000"`
	ActualRent      *float64              `json:"actualRent,omitempty" validate:"omitempty,gte=0"`
	MonthlyExpenses *MonthlyExpenses      `json:"monthlyExpenses,omitempty"`
	CapitalCosts    *float64              `json:"capitalCosts,omitempty" validate:"omitempty,gte=0"`
	LeadID          *uuid.UUID            `json:"leadId,omitempty"`
}

type CreatePropertyRequest struct {
	PropertyFields
}

type UpdatePropertyRequest struct {
	ExpectedVersion *int `json:"expectedVersion" validate:"required,min=0"`
	PropertyFields
}

type AnalysisRequest struct {
	Variant scoring.Variant `form:"variant" validate:"omitempty,oneof=current legacy"`
}

type PropertyResponse struct {
	ID                   uuid.UUID             `json:"id"`
	Address              string                `json:"address"`
	Status               domain.PropertyStatus `json:"status"`
	StatusPriority       int                   `json:"statusPriority"`
	ListingPrice         float64               `json:"listingPrice"`
	OfferPrice           float64               `json:"offerPrice"`
	RehabCosts           float64               `json:"rehabCosts"`
	PotentialRent        float64               `json:"potentialRent"`
	ARV                  float64               `json:"arv"`
	SquareFootage        *int                  `json:"squareFootage,omitempty"`
	Units                int                   `json:"units"`
	ActualRent           *float64              `json:"actualRent,omitempty"`
	MonthlyExpenses      MonthlyExpenses       `json:"monthlyExpenses"`
	MonthlyExpensesTotal float64               `json:"monthlyExpensesTotal"`
	CapitalCosts         *float64              `json:"capitalCosts,omitempty"`
	LeadID               *uuid.UUID            `json:"leadId,omitempty"`
	Version              int                   `json:"version"`
	CreatedAt            time.Time             `json:"createdAt"`
	UpdatedAt            time.Time             `json:"updatedAt"`
}

type PropertyListResponse struct {
	Items []PropertyResponse `json:"items"`
	Total int                `json:"total"`
}

type AnalysisResponse struct {
	PropertyID    uuid.UUID                `json:"propertyId"`
	Variant       scoring.Variant          `json:"variant"`
	Metrics       underwriting.Metrics     `json:"metrics"`
	MAO           float64                  `json:"mao"`
	SpreadPercent float64                  `json:"spreadPercent"`
	Hold          scoring.HoldBreakdown    `json:"hold"`
	Flip          scoring.FlipBreakdown    `json:"flip"`
	HoldTarget    scoring.HoldTarget       `json:"holdTarget"`
	FlipTarget    scoring.FlipTarget       `json:"flipTarget"`
	Legacy        *scoring.LegacyBreakdown `json:"legacy,omitempty"`
	ScoreVersion  string                   `json:"scoreVersion"`
}
