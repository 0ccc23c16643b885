// Package notes handles lead note operations.
// This is a vertically sliced feature package containing the free-text
// notes field, guarded by its own version, and the append-only activity log.
package notes

import (
	"context"
	"errors"
	"strings"

	"dealflow_backend/internal/leads/repository"
	"dealflow_backend/internal/leads/transport"
	"dealflow_backend/platform/apperr"
	"dealflow_backend/platform/sanitize"

	"github.com/google/uuid"
)

// ValidNoteTypes defines the allowed activity note types.
var ValidNoteTypes = map[string]bool{
	"note":   true,
	"call":   true,
	"text":   true,
	"email":  true,
	"system": true,
}

// Repository defines the data access interface needed by the notes service.
// This is a consumer-driven interface - only what notes needs.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID, organizationID uuid.UUID) (repository.Lead, error)
	UpdateNotes(ctx context.Context, id uuid.UUID, organizationID uuid.UUID, expectedNotesVersion int, notes string) (repository.Lead, error)
	repository.NoteStore
}

// Service handles lead note operations.
type Service struct {
	repo Repository
}

// New creates a new notes service.
func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// UpdateNotes replaces the lead's notes text when notesVersion still
// matches. It never touches the lead version, so it cannot collide with
// an evaluation refresh or a status change.
func (s *Service) UpdateNotes(ctx context.Context, tenantID, leadID uuid.UUID, req transport.UpdateNotesRequest) (transport.NotesResponse, error) {
	lead, err := s.repo.UpdateNotes(ctx, leadID, tenantID, *req.ExpectedNotesVersion, sanitize.Notes(req.Notes))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return transport.NotesResponse{}, apperr.NotFound("lead not found")
		case errors.Is(err, repository.ErrVersionMismatch):
			return transport.NotesResponse{}, apperr.Conflict("notes were edited by someone else").
				WithDetails(map[string]any{"field": "notesVersion"})
		}
		return transport.NotesResponse{}, apperr.Wrap(apperr.KindInternal, "update notes", err).WithOp("notes.UpdateNotes")
	}

	return transport.NotesResponse{
		ID:           lead.ID,
		Notes:        lead.Notes,
		NotesVersion: lead.NotesVersion,
		UpdatedAt:    lead.UpdatedAt,
	}, nil
}

// Add appends an activity note to a lead.
func (s *Service) Add(ctx context.Context, tenantID, leadID, authorID uuid.UUID, req transport.CreateLeadNoteRequest) (transport.LeadNoteResponse, error) {
	body := strings.TrimSpace(sanitize.Notes(req.Body))
	if body == "" || len(body) > 2000 {
		return transport.LeadNoteResponse{}, apperr.Validation("note body must be between 1 and 2000 characters")
	}

	noteType := strings.TrimSpace(req.Type)
	if noteType == "" {
		noteType = "note"
	}
	if !ValidNoteTypes[noteType] {
		return transport.LeadNoteResponse{}, apperr.Validation("invalid note type")
	}

	note, err := s.repo.CreateLeadNote(ctx, repository.CreateLeadNoteParams{
		LeadID:         leadID,
		OrganizationID: tenantID,
		AuthorID:       authorID,
		Type:           noteType,
		Body:           body,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.LeadNoteResponse{}, apperr.NotFound("lead not found")
		}
		return transport.LeadNoteResponse{}, err
	}

	return toLeadNoteResponse(note), nil
}

// List retrieves all activity notes for a lead, newest first.
func (s *Service) List(ctx context.Context, tenantID, leadID uuid.UUID) (transport.LeadNotesResponse, error) {
	// Verify lead exists
	if _, err := s.repo.GetByID(ctx, leadID, tenantID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.LeadNotesResponse{}, apperr.NotFound("lead not found")
		}
		return transport.LeadNotesResponse{}, err
	}

	notesList, err := s.repo.ListLeadNotes(ctx, leadID, tenantID)
	if err != nil {
		return transport.LeadNotesResponse{}, err
	}

	items := make([]transport.LeadNoteResponse, len(notesList))
	for i, note := range notesList {
		items[i] = toLeadNoteResponse(note)
	}

	return transport.LeadNotesResponse{Items: items}, nil
}

func toLeadNoteResponse(note repository.LeadNote) transport.LeadNoteResponse {
	return transport.LeadNoteResponse{
		ID:        note.ID,
		LeadID:    note.LeadID,
		AuthorID:  note.AuthorID,
		Type:      note.Type,
		Body:      note.Body,
		CreatedAt: note.CreatedAt,
	}
}
