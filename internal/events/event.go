// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"dealflow_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Leads Domain Events
// =============================================================================

// LeadIngested is published after an ingest transaction commits, whether it
// created a lead or consolidated into an existing one.
type LeadIngested struct {
	BaseEvent
	LeadID             uuid.UUID `json:"leadId"`
	TenantID           uuid.UUID `json:"tenantId"`
	Address            string    `json:"address"`
	WasConsolidated    bool      `json:"wasConsolidated"`
	Revived            bool      `json:"revived"`
	PriceChangePercent float64   `json:"priceChangePercent"`
}

func (e LeadIngested) EventName() string { return "leads.lead.ingested" }

// LeadFirstMessageRequested asks the outbound sender to contact the lead.
type LeadFirstMessageRequested struct {
	BaseEvent
	LeadID       uuid.UUID `json:"leadId"`
	TenantID     uuid.UUID `json:"tenantId"`
	Address      string    `json:"address"`
	ContactName  string    `json:"contactName"`
	ContactEmail string    `json:"contactEmail"`
	ContactPhone string    `json:"contactPhone"`
}

func (e LeadFirstMessageRequested) EventName() string { return "leads.first_message.requested" }

// LeadStatusChanged is published when a lead moves between statuses.
type LeadStatusChanged struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	TenantID  uuid.UUID `json:"tenantId"`
	OldStatus string    `json:"oldStatus"`
	NewStatus string    `json:"newStatus"`
}

func (e LeadStatusChanged) EventName() string { return "leads.status.changed" }

// LeadArchived is published when a lead is archived or unarchived.
type LeadArchived struct {
	BaseEvent
	LeadID   uuid.UUID `json:"leadId"`
	TenantID uuid.UUID `json:"tenantId"`
	Archived bool      `json:"archived"`
}

func (e LeadArchived) EventName() string { return "leads.lead.archived" }

// LeadDeleted is published after a permanent delete.
type LeadDeleted struct {
	BaseEvent
	LeadID   uuid.UUID `json:"leadId"`
	TenantID uuid.UUID `json:"tenantId"`
}

func (e LeadDeleted) EventName() string { return "leads.lead.deleted" }

// LeadFollowUpDue is published by the follow-up sweep for each lead whose
// follow-up date has passed.
type LeadFollowUpDue struct {
	BaseEvent
	LeadID       uuid.UUID `json:"leadId"`
	TenantID     uuid.UUID `json:"tenantId"`
	Address      string    `json:"address"`
	FollowUpDate time.Time `json:"followUpDate"`
	Reason       string    `json:"reason,omitempty"`
}

func (e LeadFollowUpDue) EventName() string { return "leads.follow_up.due" }

// =============================================================================
// Evaluation Domain Events
// =============================================================================

// EvaluationCompleted is published when an evaluation run finishes in any
// terminal state.
type EvaluationCompleted struct {
	BaseEvent
	LeadID            uuid.UUID `json:"leadId"`
	TenantID          uuid.UUID `json:"tenantId"`
	EvaluationID      uuid.UUID `json:"evaluationId"`
	Tier              string    `json:"tier"`
	Trigger           string    `json:"trigger"`
	Status            string    `json:"status"`
	EvaluationVersion int       `json:"evaluationVersion"`
	DurationMs        int64     `json:"durationMs"`
}

func (e EvaluationCompleted) EventName() string { return "evaluation.completed" }

// EvaluationUpdated is published after a manual override changes the
// inputs of a lead's evaluation.
type EvaluationUpdated struct {
	BaseEvent
	LeadID            uuid.UUID `json:"leadId"`
	TenantID          uuid.UUID `json:"tenantId"`
	EvaluationVersion int       `json:"evaluationVersion"`
}

func (e EvaluationUpdated) EventName() string { return "evaluation.updated" }
