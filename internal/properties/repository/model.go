package repository

import (
	"time"

	"dealflow_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// Property is an owned or pursued property on the board.
type Property struct {
	ID                uuid.UUID
	OrganizationID    uuid.UUID
	Address           string
	NormalizedAddress string
	Status            domain.PropertyStatus
	ListingPrice      float64
	OfferPrice        float64
	RehabCosts        float64
	PotentialRent     float64
	ARV               float64
	SquareFootage     *int
	Units             int
	ActualRent        *float64
	MonthlyExpenses   MonthlyExpenses
	CapitalCosts      *float64
	LeadID            *uuid.UUID
	Version           int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// MonthlyExpenses is stored as JSONB.
type MonthlyExpenses struct {
	Taxes       float64 `json:"taxes"`
	Insurance   float64 `json:"insurance"`
	Management  float64 `json:"management"`
	Maintenance float64 `json:"maintenance"`
	Utilities   float64 `json:"utilities"`
	HOA         float64 `json:"hoa"`
	Other       float64 `json:"other"`
}

// Total is the sum of every expense line.
func (m MonthlyExpenses) Total() float64 {
	return m.Taxes + m.Insurance + m.Management + m.Maintenance + m.Utilities + m.HOA + m.Other
}
