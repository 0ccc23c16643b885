package repository

import (
	"context"
	"errors"
	"fmt"

	"dealflow_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// maxIngestAttempts bounds the retry after losing an insert race on the
// unique normalized address.
const maxIngestAttempts = 2

type CreateLeadParams struct {
	OrganizationID    uuid.UUID
	Address           string
	NormalizedAddress string
	ListingPrice      float64
	ContactName       *string
	ContactPhone      *string
	ContactEmail      *string
	Units             int
	SquareFootage     *int
	Latitude          *float64
	Longitude         *float64
	Tags              []string
	Source            domain.LeadSource
	Metadata          domain.Metadata
}

// MergeLeadParams is the full post-merge state written over an existing lead.
type MergeLeadParams struct {
	ListingPrice         float64
	PreviousListingPrice *float64
	PriceChangePercent   *float64
	IsPriceDropped       bool
	Archived             bool
	ContactName          *string
	ContactPhone         *string
	ContactEmail         *string
	Units                int
	SquareFootage        *int
	Latitude             *float64
	Longitude            *float64
	Tags                 []string
	Metadata             domain.Metadata
}

// IngestDecision tells Ingest what to write. Exactly one field is set.
type IngestDecision struct {
	Create *CreateLeadParams
	Merge  *MergeLeadParams
}

// IngestDecider inspects the locked existing lead (nil when none) and decides
// the write. Returning an error rolls the transaction back.
type IngestDecider func(existing *Lead) (IngestDecision, error)

// IngestResult is the committed outcome of an ingest.
type IngestResult struct {
	Lead     Lead
	Before   *Lead
	Created  bool
	Attempts int
}

// Ingest looks up a lead by normalized address under a row lock, archived
// rows included, and applies the decision in the same transaction.
func (r *Repository) Ingest(ctx context.Context, organizationID uuid.UUID, normalizedAddress string, decide IngestDecider) (IngestResult, error) {
	for attempt := 1; ; attempt++ {
		result, err := r.ingestOnce(ctx, organizationID, normalizedAddress, decide)
		if errors.Is(err, errInsertRace) && attempt < maxIngestAttempts {
			continue
		}
		result.Attempts = attempt
		return result, err
	}
}

var errInsertRace = errors.New("concurrent insert for normalized address")

func (r *Repository) ingestOnce(ctx context.Context, organizationID uuid.UUID, normalizedAddress string, decide IngestDecider) (IngestResult, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return IngestResult{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var existing *Lead
	found, err := scanLead(tx.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE organization_id = $1 AND normalized_address = $2
		FOR UPDATE
	`, organizationID, normalizedAddress))
	switch {
	case err == nil:
		existing = &found
	case !errors.Is(err, pgx.ErrNoRows):
		return IngestResult{}, err
	}

	decision, err := decide(existing)
	if err != nil {
		return IngestResult{}, err
	}

	var result IngestResult
	switch {
	case decision.Merge != nil && existing != nil:
		lead, err := mergeLead(ctx, tx, existing.ID, *decision.Merge)
		if err != nil {
			return IngestResult{}, err
		}
		result = IngestResult{Lead: lead, Before: existing}
	case decision.Create != nil && existing == nil:
		lead, err := insertLead(ctx, tx, *decision.Create)
		if errors.Is(err, pgx.ErrNoRows) {
			return IngestResult{}, errInsertRace
		}
		if err != nil {
			return IngestResult{}, err
		}
		result = IngestResult{Lead: lead, Created: true}
	default:
		return IngestResult{}, fmt.Errorf("ingest decision does not match lookup (existing=%t)", existing != nil)
	}

	if err := tx.Commit(ctx); err != nil {
		return IngestResult{}, err
	}
	return result, nil
}

func insertLead(ctx context.Context, tx pgx.Tx, p CreateLeadParams) (Lead, error) {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	units := p.Units
	if units < 1 {
		units = 1
	}
	source := p.Source
	if source == "" {
		source = domain.LeadSourceManual
	}

	return scanLead(tx.QueryRow(ctx, `
		INSERT INTO leads (
			organization_id, address, normalized_address, listing_price, contact_name, contact_phone, contact_email,
			units, square_footage, latitude, longitude, tags, source, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (organization_id, normalized_address) DO NOTHING
		RETURNING `+leadColumns,
		p.OrganizationID, p.Address, p.NormalizedAddress, p.ListingPrice, p.ContactName, p.ContactPhone, p.ContactEmail,
		units, p.SquareFootage, p.Latitude, p.Longitude, tags, source, p.Metadata,
	))
}

// mergeLead bumps evaluation_version on a price change so a run that read
// the old price ends superseded.
func mergeLead(ctx context.Context, tx pgx.Tx, id uuid.UUID, p MergeLeadParams) (Lead, error) {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}

	return scanLead(tx.QueryRow(ctx, `
		UPDATE leads SET
			listing_price = $2,
			previous_listing_price = $3,
			price_change_percent = $4,
			is_price_dropped = $5,
			archived = $6,
			contact_name = $7,
			contact_phone = $8,
			contact_email = $9,
			units = $10,
			square_footage = $11,
			latitude = $12,
			longitude = $13,
			tags = $14,
			metadata = $15,
			evaluation_version = CASE WHEN listing_price IS DISTINCT FROM $2 THEN evaluation_version + 1 ELSE evaluation_version END,
			version = version + 1,
			updated_at = now()
		WHERE id = $1
		RETURNING `+leadColumns,
		id, p.ListingPrice, p.PreviousListingPrice, p.PriceChangePercent, p.IsPriceDropped, p.Archived,
		p.ContactName, p.ContactPhone, p.ContactEmail, p.Units, p.SquareFootage, p.Latitude, p.Longitude,
		tags, p.Metadata,
	))
}
