package consolidation

import (
	"context"
	"io"
	"sync"
	"testing"

	"dealflow_backend/internal/leads/domain"
	"dealflow_backend/internal/leads/repository"
	"dealflow_backend/platform/apperr"
	"dealflow_backend/platform/events"
	"dealflow_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memIngester keeps leads keyed by normalized address and applies a
// decision only when it returns without error, like the transaction does.
type memIngester struct {
	mu    sync.Mutex
	leads map[string]repository.Lead
}

func newMemIngester(seed ...repository.Lead) *memIngester {
	m := &memIngester{leads: map[string]repository.Lead{}}
	for _, l := range seed {
		m.leads[l.NormalizedAddress] = l
	}
	return m
}

func (m *memIngester) Ingest(_ context.Context, organizationID uuid.UUID, normalized string, decide repository.IngestDecider) (repository.IngestResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var existing *repository.Lead
	if l, ok := m.leads[normalized]; ok && l.OrganizationID == organizationID {
		copied := l
		existing = &copied
	}

	decision, err := decide(existing)
	if err != nil {
		return repository.IngestResult{}, err
	}

	if decision.Create != nil {
		c := decision.Create
		lead := repository.Lead{
			ID: uuid.New(), OrganizationID: c.OrganizationID, Address: c.Address, NormalizedAddress: c.NormalizedAddress,
			ListingPrice: c.ListingPrice, Status: domain.LeadStatusNew, Units: max(c.Units, 1), Tags: c.Tags, Version: 1,
		}
		m.leads[normalized] = lead
		return repository.IngestResult{Lead: lead, Created: true}, nil
	}

	mp := decision.Merge
	lead := *existing
	lead.ListingPrice = mp.ListingPrice
	lead.PreviousListingPrice = mp.PreviousListingPrice
	lead.PriceChangePercent = mp.PriceChangePercent
	lead.IsPriceDropped = mp.IsPriceDropped
	lead.Archived = mp.Archived
	lead.ContactName = mp.ContactName
	lead.ContactPhone = mp.ContactPhone
	lead.Tags = mp.Tags
	lead.Version++
	m.leads[normalized] = lead
	return repository.IngestResult{Lead: lead, Before: existing}, nil
}

type enqueued struct {
	leadID  uuid.UUID
	tier    domain.EvaluationTier
	trigger domain.EvaluationTrigger
}

type fakeEnqueuer struct {
	mu    sync.Mutex
	calls []enqueued
}

func (f *fakeEnqueuer) EnqueueEvaluation(_ context.Context, _ uuid.UUID, leadID uuid.UUID, tier domain.EvaluationTier, trigger domain.EvaluationTrigger) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, enqueued{leadID, tier, trigger})
	return nil
}

func newService(repo *memIngester, enq *fakeEnqueuer, policy Policy) *Service {
	log := logger.NewWithWriter("test", io.Discard)
	return New(repo, enq, events.NewInMemoryBus(log), policy, "US", log)
}

func strPtr(s string) *string { return &s }

func archivedLead(org uuid.UUID) repository.Lead {
	return repository.Lead{
		ID:                uuid.New(),
		OrganizationID:    org,
		Address:           "12 Oak St.",
		NormalizedAddress: domain.NormalizeAddress("12 Oak St."),
		ListingPrice:      200000,
		Status:            domain.LeadStatusContacted,
		Archived:          true,
		Units:             1,
		ContactName:       strPtr("Pat"),
		Tags:              []string{"austin"},
		Version:           4,
	}
}

func TestIngestRevivesArchivedLead(t *testing.T) {
	org := uuid.New()
	existing := archivedLead(org)
	repo := newMemIngester(existing)
	enq := &fakeEnqueuer{}
	svc := newService(repo, enq, Policy{RevivesArchived: true, MaterialPriceChangePct: 1})

	res, err := svc.Ingest(context.Background(), org, Request{Candidate: Candidate{
		Address:      "12 OAK ST",
		ListingPrice: 190000,
		ContactName:  strPtr("Someone Else"),
		Tags:         []string{"Price-Drop"},
	}})
	require.NoError(t, err)

	assert.True(t, res.WasConsolidated)
	assert.Equal(t, existing.ID, res.Lead.ID)
	assert.False(t, res.Lead.Archived)
	assert.Len(t, repo.leads, 1, "must not create a second record")

	require.NotNil(t, res.Consolidation)
	assert.True(t, res.Consolidation.Revived)
	assert.True(t, res.Consolidation.Before.Archived)
	assert.False(t, res.Consolidation.After.Archived)
	assert.Equal(t, -5.0, res.Consolidation.PriceChangePercent)
	assert.True(t, res.Consolidation.IsPriceDropped)

	assert.Equal(t, "Pat", *res.Lead.ContactName, "contact fields only fill blanks")
	assert.Equal(t, []string{"austin", "price-drop"}, res.Lead.Tags)

	require.Len(t, enq.calls, 1)
	assert.Equal(t, domain.TierQuick, enq.calls[0].tier)
	assert.Equal(t, domain.TriggerConsolidation, enq.calls[0].trigger)
}

func TestIngestReportsConflictWhenRevivalDisabled(t *testing.T) {
	org := uuid.New()
	existing := archivedLead(org)
	repo := newMemIngester(existing)
	enq := &fakeEnqueuer{}
	svc := newService(repo, enq, Policy{RevivesArchived: false, MaterialPriceChangePct: 1})

	_, err := svc.Ingest(context.Background(), org, Request{Candidate: Candidate{Address: "12 oak st", ListingPrice: 150000}})

	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.True(t, IsArchivedConflict(err))

	stored := repo.leads[existing.NormalizedAddress]
	assert.True(t, stored.Archived, "nothing may be written on conflict")
	assert.Equal(t, 200000.0, stored.ListingPrice)
	assert.Equal(t, existing.Version, stored.Version)
	assert.Len(t, repo.leads, 1)
	assert.Empty(t, enq.calls)
}

func TestIngestCreatesAndQueuesFirstEvaluation(t *testing.T) {
	org := uuid.New()
	repo := newMemIngester()
	enq := &fakeEnqueuer{}
	svc := newService(repo, enq, Policy{RevivesArchived: true, MaterialPriceChangePct: 1})

	res, err := svc.Ingest(context.Background(), org, Request{
		Candidate: Candidate{Address: "7 Elm Ave", ListingPrice: 99000, ContactPhone: strPtr("(201) 555-0123")},
		Tier:      domain.TierFull,
	})
	require.NoError(t, err)

	assert.False(t, res.WasConsolidated)
	assert.Nil(t, res.Consolidation)
	assert.True(t, res.EvaluationQueued)
	assert.Equal(t, domain.TierFull, res.EvaluationTier)
	require.Len(t, enq.calls, 1)
	assert.Equal(t, domain.TriggerIngestion, enq.calls[0].trigger)
}

func TestIngestSmallPriceChangeSkipsReevaluation(t *testing.T) {
	org := uuid.New()
	existing := archivedLead(org)
	existing.Archived = false
	repo := newMemIngester(existing)
	enq := &fakeEnqueuer{}
	svc := newService(repo, enq, Policy{RevivesArchived: true, MaterialPriceChangePct: 1})

	res, err := svc.Ingest(context.Background(), org, Request{Candidate: Candidate{Address: "12 Oak St", ListingPrice: 199000}})
	require.NoError(t, err)

	assert.True(t, res.WasConsolidated)
	assert.Equal(t, -0.5, res.Consolidation.PriceChangePercent)
	assert.False(t, res.Consolidation.Reevaluated)
	assert.Empty(t, enq.calls)
}

func TestIngestRejectsBadPhone(t *testing.T) {
	svc := newService(newMemIngester(), &fakeEnqueuer{}, Policy{})
	_, err := svc.Ingest(context.Background(), uuid.New(), Request{Candidate: Candidate{Address: "7 Elm Ave", ContactPhone: strPtr("12")}})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestPriceChangePercent(t *testing.T) {
	assert.Equal(t, 0.0, PriceChangePercent(0, 100000))
	assert.Equal(t, 10.0, PriceChangePercent(100000, 110000))
	assert.Equal(t, -25.0, PriceChangePercent(200000, 150000))
}

func TestMergeTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, MergeTags([]string{"a", "B"}, []string{"b", " ", "C"}))
}
