package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type LeadNote struct {
	ID        uuid.UUID
	LeadID    uuid.UUID
	AuthorID  uuid.UUID
	Type      string
	Body      string
	CreatedAt time.Time
}

type CreateLeadNoteParams struct {
	LeadID         uuid.UUID
	OrganizationID uuid.UUID
	AuthorID       uuid.UUID
	Type           string
	Body           string
}

// CreateLeadNote appends an activity note. The insert only happens when the
// lead belongs to the organization.
func (r *Repository) CreateLeadNote(ctx context.Context, params CreateLeadNoteParams) (LeadNote, error) {
	var note LeadNote
	err := r.pool.QueryRow(ctx, `
		INSERT INTO lead_notes (lead_id, author_id, type, body)
		SELECT l.id, $3, $4, $5
		FROM leads l
		WHERE l.id = $1 AND l.organization_id = $2
		RETURNING id, lead_id, author_id, type, body, created_at
	`, params.LeadID, params.OrganizationID, params.AuthorID, params.Type, params.Body).Scan(
		&note.ID,
		&note.LeadID,
		&note.AuthorID,
		&note.Type,
		&note.Body,
		&note.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return LeadNote{}, ErrNotFound
	}
	return note, err
}

func (r *Repository) ListLeadNotes(ctx context.Context, leadID uuid.UUID, organizationID uuid.UUID) ([]LeadNote, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ln.id, ln.lead_id, ln.author_id, ln.type, ln.body, ln.created_at
		FROM lead_notes ln
		JOIN leads l ON l.id = ln.lead_id
		WHERE ln.lead_id = $1 AND l.organization_id = $2
		ORDER BY ln.created_at DESC
	`, leadID, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := make([]LeadNote, 0)
	for rows.Next() {
		var note LeadNote
		if err := rows.Scan(
			&note.ID,
			&note.LeadID,
			&note.AuthorID,
			&note.Type,
			&note.Body,
			&note.CreatedAt,
		); err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return notes, nil
}
