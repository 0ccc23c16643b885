// Package repository persists the property board.
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound         = errors.New("property not found")
	ErrVersionMismatch  = errors.New("property was modified concurrently")
	ErrDuplicateAddress = errors.New("property address already exists")
	ErrUnknownLead      = errors.New("referenced lead does not exist")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Repository stores properties scoped to an organization.
type Repository interface {
	Create(ctx context.Context, p Property) (Property, error)
	GetByID(ctx context.Context, id, organizationID uuid.UUID) (Property, error)
	List(ctx context.Context, organizationID uuid.UUID) ([]Property, error)
	Update(ctx context.Context, expectedVersion int, p Property) (Property, error)
	Delete(ctx context.Context, id, organizationID uuid.UUID) error
}

type pgRepository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

const propertyColumns = `id, organization_id, address, normalized_address, status, listing_price, offer_price,
	rehab_costs, potential_rent, arv, square_footage, units, actual_rent, monthly_expenses, capital_costs,
	lead_id, version, created_at, updated_at`

func scanProperty(row pgx.Row) (Property, error) {
	var p Property
	err := row.Scan(
		&p.ID, &p.OrganizationID, &p.Address, &p.NormalizedAddress, &p.Status, &p.ListingPrice, &p.OfferPrice,
		&p.RehabCosts, &p.PotentialRent, &p.ARV, &p.SquareFootage, &p.Units, &p.ActualRent, &p.MonthlyExpenses, &p.CapitalCosts,
		&p.LeadID, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func (r *pgRepository) Create(ctx context.Context, p Property) (Property, error) {
	created, err := scanProperty(r.pool.QueryRow(ctx, `
		INSERT INTO properties (
			organization_id, address, normalized_address, status, listing_price, offer_price,
			rehab_costs, potential_rent, arv, square_footage, units, actual_rent, monthly_expenses,
			capital_costs, lead_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING `+propertyColumns,
		p.OrganizationID, p.Address, p.NormalizedAddress, p.Status, p.ListingPrice, p.OfferPrice,
		p.RehabCosts, p.PotentialRent, p.ARV, p.SquareFootage, p.Units, p.ActualRent, p.MonthlyExpenses,
		p.CapitalCosts, p.LeadID,
	))
	if err != nil {
		return Property{}, translate(err)
	}
	return created, nil
}

func (r *pgRepository) GetByID(ctx context.Context, id, organizationID uuid.UUID) (Property, error) {
	p, err := scanProperty(r.pool.QueryRow(ctx, `
		SELECT `+propertyColumns+`
		FROM properties
		WHERE id = $1 AND organization_id = $2
	`, id, organizationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Property{}, ErrNotFound
	}
	return p, err
}

// List returns every property of the organization. Board ordering happens
// in Go.
func (r *pgRepository) List(ctx context.Context, organizationID uuid.UUID) ([]Property, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+propertyColumns+`
		FROM properties
		WHERE organization_id = $1
	`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Property, 0)
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

// Update replaces every editable column when the row is still at
// expectedVersion.
func (r *pgRepository) Update(ctx context.Context, expectedVersion int, p Property) (Property, error) {
	updated, err := scanProperty(r.pool.QueryRow(ctx, `
		UPDATE properties SET
			address = $4, normalized_address = $5, status = $6, listing_price = $7, offer_price = $8,
			rehab_costs = $9, potential_rent = $10, arv = $11, square_footage = $12, units = $13,
			actual_rent = $14, monthly_expenses = $15, capital_costs = $16, lead_id = $17,
			version = version + 1, updated_at = now()
		WHERE id = $1 AND organization_id = $2 AND version = $3
		RETURNING `+propertyColumns,
		p.ID, p.OrganizationID, expectedVersion,
		p.Address, p.NormalizedAddress, p.Status, p.ListingPrice, p.OfferPrice,
		p.RehabCosts, p.PotentialRent, p.ARV, p.SquareFootage, p.Units,
		p.ActualRent, p.MonthlyExpenses, p.CapitalCosts, p.LeadID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.GetByID(ctx, p.ID, p.OrganizationID); getErr != nil {
			return Property{}, getErr
		}
		return Property{}, ErrVersionMismatch
	}
	if err != nil {
		return Property{}, translate(err)
	}
	return updated, nil
}

func (r *pgRepository) Delete(ctx context.Context, id, organizationID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM properties WHERE id = $1 AND organization_id = $2`, id, organizationID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func translate(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		return ErrDuplicateAddress
	case pgForeignKeyViolation:
		return ErrUnknownLead
	default:
		return err
	}
}

var _ Repository = (*pgRepository)(nil)
