package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dealflow_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound        = errors.New("lead not found")
	ErrVersionMismatch = errors.New("lead was modified concurrently")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type Lead struct {
	ID                   uuid.UUID
	OrganizationID       uuid.UUID
	Address              string
	NormalizedAddress    string
	ListingPrice         float64
	PreviousListingPrice *float64
	PriceChangePercent   *float64
	IsPriceDropped       bool
	ContactName          *string
	ContactPhone         *string
	ContactEmail         *string
	Status               domain.LeadStatus
	LastContactDate      *time.Time
	FollowUpDate         *time.Time
	FollowUpReason       *string
	Archived             bool
	LeadScore            *float64
	Units                int
	SquareFootage        *int
	Latitude             *float64
	Longitude            *float64
	Notes                string
	NotesVersion         int
	Tags                 []string
	Source               domain.LeadSource
	Metadata             domain.Metadata
	MAO                  *float64
	SpreadPercent        *float64
	HoldScore            *int
	FlipScore            *int
	EvaluationVersion    int
	LastEvaluatedAt      *time.Time
	Version              int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// QueueView projects the lead onto the fields queue rules read.
func (l Lead) QueueView() domain.QueueLead {
	return domain.QueueLead{
		ID:              l.ID,
		Address:         l.Address,
		Status:          l.Status,
		LastContactDate: l.LastContactDate,
		FollowUpDate:    l.FollowUpDate,
		Archived:        l.Archived,
		LeadScore:       l.LeadScore,
		Units:           l.Units,
	}
}

const leadColumns = `id, organization_id, address, normalized_address, listing_price, previous_listing_price,
	price_change_percent, is_price_dropped, contact_name, contact_phone, contact_email, status,
	last_contact_date, follow_up_date, follow_up_reason, archived, lead_score, units, square_footage,
	latitude, longitude, notes, notes_version, tags, source, metadata, mao, spread_percent,
	hold_score, flip_score, evaluation_version, last_evaluated_at, version, created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var l Lead
	err := row.Scan(
		&l.ID, &l.OrganizationID, &l.Address, &l.NormalizedAddress, &l.ListingPrice, &l.PreviousListingPrice,
		&l.PriceChangePercent, &l.IsPriceDropped, &l.ContactName, &l.ContactPhone, &l.ContactEmail, &l.Status,
		&l.LastContactDate, &l.FollowUpDate, &l.FollowUpReason, &l.Archived, &l.LeadScore, &l.Units, &l.SquareFootage,
		&l.Latitude, &l.Longitude, &l.Notes, &l.NotesVersion, &l.Tags, &l.Source, &l.Metadata, &l.MAO, &l.SpreadPercent,
		&l.HoldScore, &l.FlipScore, &l.EvaluationVersion, &l.LastEvaluatedAt, &l.Version, &l.CreatedAt, &l.UpdatedAt,
	)
	return l, err
}

func collectLeads(rows pgx.Rows) ([]Lead, error) {
	defer rows.Close()

	leads := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return leads, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID, organizationID uuid.UUID) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE id = $1 AND organization_id = $2
	`, id, organizationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

// ListByOrganization returns every lead of the organization, archived ones
// included. Queue classification and ordering happen in Go.
func (r *Repository) ListByOrganization(ctx context.Context, organizationID uuid.UUID) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE organization_id = $1
	`, organizationID)
	if err != nil {
		return nil, err
	}
	return collectLeads(rows)
}

// ListDueFollowUps returns non-archived leads across organizations whose
// follow-up date is at or before now.
func (r *Repository) ListDueFollowUps(ctx context.Context, now time.Time, limit int) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE archived = false AND follow_up_date IS NOT NULL AND follow_up_date <= $1
			AND status NOT IN ('Closed', 'Lost')
		ORDER BY follow_up_date ASC
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	return collectLeads(rows)
}

// ListStaleEvaluations returns non-archived leads not evaluated since before.
func (r *Repository) ListStaleEvaluations(ctx context.Context, before time.Time, limit int) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE archived = false AND status NOT IN ('Closed', 'Lost')
			AND (last_evaluated_at IS NULL OR last_evaluated_at < $1)
		ORDER BY last_evaluated_at ASC NULLS FIRST
		LIMIT $2
	`, before, limit)
	if err != nil {
		return nil, err
	}
	return collectLeads(rows)
}

// UpdateLeadParams holds the optional lead fields a guarded update may set.
// Clear flags null out a column and take precedence over the value.
type UpdateLeadParams struct {
	Status          *domain.LeadStatus
	LastContactDate *time.Time
	FollowUpDate    *time.Time
	FollowUpReason  *string
	ClearFollowUp   bool
	Archived        *bool
	ListingPrice    *float64
	ContactName     *string
	ContactPhone    *string
	ContactEmail    *string
	Units           *int
	SquareFootage   *int
	Tags            []string
}

// Update applies params when the lead is still at expectedVersion and bumps
// the version. It never touches notes or notes_version.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, organizationID uuid.UUID, expectedVersion int, params UpdateLeadParams) (Lead, error) {
	type updateField struct {
		column string
		value  any
	}

	fields := []updateField{}
	if params.Status != nil {
		fields = append(fields, updateField{"status", *params.Status})
	}
	if params.LastContactDate != nil {
		fields = append(fields, updateField{"last_contact_date", *params.LastContactDate})
	}
	if params.ClearFollowUp {
		fields = append(fields, updateField{"follow_up_date", nil}, updateField{"follow_up_reason", nil})
	} else {
		if params.FollowUpDate != nil {
			fields = append(fields, updateField{"follow_up_date", *params.FollowUpDate})
		}
		if params.FollowUpReason != nil {
			fields = append(fields, updateField{"follow_up_reason", *params.FollowUpReason})
		}
	}
	if params.Archived != nil {
		fields = append(fields, updateField{"archived", *params.Archived})
	}
	if params.ListingPrice != nil {
		fields = append(fields, updateField{"listing_price", *params.ListingPrice})
	}
	if params.ContactName != nil {
		fields = append(fields, updateField{"contact_name", *params.ContactName})
	}
	if params.ContactPhone != nil {
		fields = append(fields, updateField{"contact_phone", *params.ContactPhone})
	}
	if params.ContactEmail != nil {
		fields = append(fields, updateField{"contact_email", *params.ContactEmail})
	}
	if params.Units != nil {
		fields = append(fields, updateField{"units", *params.Units})
	}
	if params.SquareFootage != nil {
		fields = append(fields, updateField{"square_footage", *params.SquareFootage})
	}
	if params.Tags != nil {
		fields = append(fields, updateField{"tags", params.Tags})
	}

	setClauses := make([]string, 0, len(fields)+2)
	args := make([]any, 0, len(fields)+3)
	argIdx := 1
	for _, field := range fields {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", field.column, argIdx))
		args = append(args, field.value)
		argIdx++
	}
	setClauses = append(setClauses, "version = version + 1", "updated_at = now()")
	args = append(args, id, organizationID, expectedVersion)

	query := fmt.Sprintf(`
		UPDATE leads SET %s
		WHERE id = $%d AND organization_id = $%d AND version = $%d
		RETURNING `+leadColumns,
		strings.Join(setClauses, ", "), argIdx, argIdx+1, argIdx+2)

	lead, err := scanLead(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, r.missOrConflict(ctx, id, organizationID)
	}
	return lead, err
}

// UpdateNotes replaces the free-text notes when notes_version still matches.
// The lead version is left alone so notes edits never conflict with field
// edits or evaluation refreshes.
func (r *Repository) UpdateNotes(ctx context.Context, id uuid.UUID, organizationID uuid.UUID, expectedNotesVersion int, notes string) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		UPDATE leads SET notes = $3, notes_version = notes_version + 1, updated_at = now()
		WHERE id = $1 AND organization_id = $2 AND notes_version = $4
		RETURNING `+leadColumns,
		id, organizationID, notes, expectedNotesVersion))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, r.missOrConflict(ctx, id, organizationID)
	}
	return lead, err
}

// Delete permanently removes a lead. Estimates, history and activity notes
// cascade; properties keep their row with lead_id set to NULL.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID, organizationID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM leads WHERE id = $1 AND organization_id = $2`, id, organizationID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) missOrConflict(ctx context.Context, id uuid.UUID, organizationID uuid.UUID) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM leads WHERE id = $1 AND organization_id = $2)
	`, id, organizationID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrVersionMismatch
	}
	return ErrNotFound
}
