package service

import (
	"context"
	"io"
	"testing"
	"time"

	"dealflow_backend/internal/leads/domain"
	leadrepo "dealflow_backend/internal/leads/repository"
	"dealflow_backend/internal/leads/scoring"
	"dealflow_backend/internal/properties/repository"
	"dealflow_backend/internal/properties/transport"
	"dealflow_backend/internal/underwriting"
	"dealflow_backend/platform/apperr"
	"dealflow_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	items map[uuid.UUID]repository.Property
}

func newMemRepo() *memRepo {
	return &memRepo{items: make(map[uuid.UUID]repository.Property)}
}

func (m *memRepo) Create(_ context.Context, p repository.Property) (repository.Property, error) {
	for _, existing := range m.items {
		if existing.OrganizationID == p.OrganizationID && existing.NormalizedAddress == p.NormalizedAddress {
			return repository.Property{}, repository.ErrDuplicateAddress
		}
	}
	p.ID = uuid.New()
	p.Version = 1
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.items[p.ID] = p
	return p, nil
}

func (m *memRepo) GetByID(_ context.Context, id, org uuid.UUID) (repository.Property, error) {
	p, ok := m.items[id]
	if !ok || p.OrganizationID != org {
		return repository.Property{}, repository.ErrNotFound
	}
	return p, nil
}

func (m *memRepo) List(_ context.Context, org uuid.UUID) ([]repository.Property, error) {
	out := []repository.Property{}
	for _, p := range m.items {
		if p.OrganizationID == org {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memRepo) Update(ctx context.Context, expected int, p repository.Property) (repository.Property, error) {
	current, err := m.GetByID(ctx, p.ID, p.OrganizationID)
	if err != nil {
		return repository.Property{}, err
	}
	if current.Version != expected {
		return repository.Property{}, repository.ErrVersionMismatch
	}
	p.Version = current.Version + 1
	m.items[p.ID] = p
	return p, nil
}

func (m *memRepo) Delete(ctx context.Context, id, org uuid.UUID) error {
	if _, err := m.GetByID(ctx, id, org); err != nil {
		return err
	}
	delete(m.items, id)
	return nil
}

type leadSet map[uuid.UUID]uuid.UUID

func (l leadSet) GetByID(_ context.Context, id, org uuid.UUID) (leadrepo.Lead, error) {
	if l[id] != org {
		return leadrepo.Lead{}, leadrepo.ErrNotFound
	}
	return leadrepo.Lead{ID: id, OrganizationID: org}, nil
}

func newService(repo *memRepo, leads LeadLookup) *Service {
	log := logger.NewWithWriter("test", io.Discard)
	calc := underwriting.NewCalculator(20000, underwriting.FixedRateMortgage(0.07, 30))
	return New(repo, leads, scoring.New(calc, log), 0.70, log)
}

func fields(address string, status domain.PropertyStatus) transport.PropertyFields {
	return transport.PropertyFields{Address: address, Status: status}
}

func TestListSortsBoardByStatusThenAddress(t *testing.T) {
	svc := newService(newMemRepo(), nil)
	org := uuid.New()
	ctx := context.Background()

	for _, f := range []transport.PropertyFields{
		fields("9 Pine St", domain.PropertyStatusOperational),
		fields("3 Birch Rd", domain.PropertyStatusSoftOffer),
		fields("1 Ash Ave", domain.PropertyStatusSoftOffer),
		fields("5 Cedar Ln", domain.PropertyStatusOpportunity),
	} {
		_, err := svc.Create(ctx, org, transport.CreatePropertyRequest{PropertyFields: f})
		require.NoError(t, err)
	}

	list, err := svc.List(ctx, org)
	require.NoError(t, err)
	require.Equal(t, 4, list.Total)

	got := make([]string, 0, len(list.Items))
	for _, item := range list.Items {
		got = append(got, item.Address)
	}
	assert.Equal(t, []string{"5 Cedar Ln", "1 Ash Ave", "3 Birch Rd", "9 Pine St"}, got)
	assert.Equal(t, 1, list.Items[0].StatusPriority)
}

func TestCreateDefaultsAndRejectsDuplicates(t *testing.T) {
	svc := newService(newMemRepo(), nil)
	org := uuid.New()
	ctx := context.Background()

	created, err := svc.Create(ctx, org, transport.CreatePropertyRequest{PropertyFields: transport.PropertyFields{
		Address:         "<b>12 Oak St.</b>",
		MonthlyExpenses: &transport.MonthlyExpenses{Taxes: 200, Insurance: 80, HOA: 20},
	}})
	require.NoError(t, err)
	assert.Equal(t, "12 Oak St.", created.Address)
	assert.Equal(t, domain.PropertyStatusOpportunity, created.Status)
	assert.Equal(t, 1, created.Units)
	assert.InDelta(t, 300, created.MonthlyExpensesTotal, 0.001)

	_, err = svc.Create(ctx, org, transport.CreatePropertyRequest{PropertyFields: fields("12 oak st", "")})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = svc.Create(ctx, org, transport.CreatePropertyRequest{PropertyFields: fields("4 Elm St", "Demolished")})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestCreateChecksLeadReference(t *testing.T) {
	org := uuid.New()
	leadID := uuid.New()
	svc := newService(newMemRepo(), leadSet{leadID: org})
	ctx := context.Background()

	f := fields("7 Maple Dr", "")
	f.LeadID = &leadID
	created, err := svc.Create(ctx, org, transport.CreatePropertyRequest{PropertyFields: f})
	require.NoError(t, err)
	assert.Equal(t, &leadID, created.LeadID)

	foreign := uuid.New()
	f = fields("8 Maple Dr", "")
	f.LeadID = &foreign
	_, err = svc.Create(ctx, org, transport.CreatePropertyRequest{PropertyFields: f})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestUpdateRequiresCurrentVersion(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo, nil)
	org := uuid.New()
	ctx := context.Background()

	created, err := svc.Create(ctx, org, transport.CreatePropertyRequest{PropertyFields: fields("2 Oak St", "")})
	require.NoError(t, err)

	v := created.Version
	updated, err := svc.Update(ctx, org, created.ID, transport.UpdatePropertyRequest{
		ExpectedVersion: &v,
		PropertyFields:  fields("2 Oak St", domain.PropertyStatusHardOffer),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PropertyStatusHardOffer, updated.Status)
	assert.Equal(t, 2, updated.Version)

	_, err = svc.Update(ctx, org, created.ID, transport.UpdatePropertyRequest{
		ExpectedVersion: &v,
		PropertyFields:  fields("2 Oak St", domain.PropertyStatusRehab),
	})
	require.True(t, apperr.Is(err, apperr.KindConflict))
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 2, appErr.Details.(map[string]any)["currentVersion"])

	_, err = svc.Get(ctx, uuid.New(), created.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestAnalysisVariants(t *testing.T) {
	svc := newService(newMemRepo(), nil)
	org := uuid.New()
	ctx := context.Background()

	created, err := svc.Create(ctx, org, transport.CreatePropertyRequest{PropertyFields: transport.PropertyFields{
		Address:       "10 Flip Ct",
		ListingPrice:  220000,
		OfferPrice:    200000,
		ARV:           250000,
		PotentialRent: 1500,
	}})
	require.NoError(t, err)

	current, err := svc.Analysis(ctx, org, created.ID, "")
	require.NoError(t, err)
	assert.Equal(t, scoring.VariantCurrent, current.Variant)
	assert.Equal(t, 7, current.Flip.Score)
	assert.InDelta(t, 175000, current.MAO, 0.001)
	assert.Nil(t, current.Legacy)

	legacy, err := svc.Analysis(ctx, org, created.ID, scoring.VariantLegacy)
	require.NoError(t, err)
	require.NotNil(t, legacy.Legacy)
	assert.Equal(t, 2, legacy.Legacy.ARVRatioPoints)
}

func TestDeleteProperty(t *testing.T) {
	svc := newService(newMemRepo(), nil)
	org := uuid.New()
	ctx := context.Background()

	created, err := svc.Create(ctx, org, transport.CreatePropertyRequest{PropertyFields: fields("3 Gone Rd", "")})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, org, created.ID))
	assert.True(t, apperr.Is(svc.Delete(ctx, org, created.ID), apperr.KindNotFound))
}
