package repository

import (
	"context"
	"time"

	"dealflow_backend/internal/leads/domain"
	"dealflow_backend/internal/valuation"

	"github.com/google/uuid"
)

// =====================================
// Segregated Interfaces (Interface Segregation Principle)
// =====================================

// LeadReader provides read-only access to lead data.
type LeadReader interface {
	GetByID(ctx context.Context, id uuid.UUID, organizationID uuid.UUID) (Lead, error)
	ListByOrganization(ctx context.Context, organizationID uuid.UUID) ([]Lead, error)
}

// LeadWriter provides guarded write operations for lead management.
type LeadWriter interface {
	Update(ctx context.Context, id uuid.UUID, organizationID uuid.UUID, expectedVersion int, params UpdateLeadParams) (Lead, error)
	UpdateNotes(ctx context.Context, id uuid.UUID, organizationID uuid.UUID, expectedNotesVersion int, notes string) (Lead, error)
	Delete(ctx context.Context, id uuid.UUID, organizationID uuid.UUID) error
}

// Ingester runs the consolidate-or-create transaction.
type Ingester interface {
	Ingest(ctx context.Context, organizationID uuid.UUID, normalizedAddress string, decide IngestDecider) (IngestResult, error)
}

// EvaluationStore persists evaluation results and reads their history.
type EvaluationStore interface {
	WriteEvaluation(ctx context.Context, id uuid.UUID, organizationID uuid.UUID, w EvaluationWrite) (Lead, error)
	AppendEvaluationRecord(ctx context.Context, rec EvaluationRecord) error
	ListEvaluationHistory(ctx context.Context, leadID uuid.UUID, organizationID uuid.UUID, limit int, offset int) ([]EvaluationRecord, int, error)
	LatestEvaluation(ctx context.Context, leadID uuid.UUID, organizationID uuid.UUID, tier domain.EvaluationTier) (EvaluationRecord, error)
	ListEstimates(ctx context.Context, leadID uuid.UUID, organizationID uuid.UUID, kind *valuation.Kind) ([]valuation.Estimate, error)
}

// SweepReader serves the scheduler's periodic sweeps, which span organizations.
type SweepReader interface {
	ListDueFollowUps(ctx context.Context, now time.Time, limit int) ([]Lead, error)
	ListStaleEvaluations(ctx context.Context, before time.Time, limit int) ([]Lead, error)
}

// NoteStore manages activity notes.
type NoteStore interface {
	CreateLeadNote(ctx context.Context, params CreateLeadNoteParams) (LeadNote, error)
	ListLeadNotes(ctx context.Context, leadID uuid.UUID, organizationID uuid.UUID) ([]LeadNote, error)
}

// =====================================
// Composite Interface
// =====================================

// LeadsRepository defines the complete interface for leads data operations.
type LeadsRepository interface {
	LeadReader
	LeadWriter
	Ingester
	EvaluationStore
	SweepReader
	NoteStore
}

// Ensure Repository implements LeadsRepository
var _ LeadsRepository = (*Repository)(nil)
