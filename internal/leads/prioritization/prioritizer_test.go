package prioritization

import (
	"testing"
	"time"

	"dealflow_backend/internal/leads/domain"

	"github.com/google/uuid"
)

type row struct {
	name string
	lead domain.QueueLead
}

func (r *row) QueueView() domain.QueueLead { return r.lead }

func at(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func score(v float64) *float64 { return &v }

func names(rows []*row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.name
	}
	return out
}

func assertOrder(t *testing.T, got []*row, want ...string) {
	t.Helper()
	gotNames := names(got)
	if len(gotNames) != len(want) {
		t.Fatalf("expected %v, got %v", want, gotNames)
	}
	for i := range want {
		if gotNames[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, gotNames)
		}
	}
}

func TestSortArchivedLast(t *testing.T) {
	in := []*row{
		{name: "1", lead: domain.QueueLead{Archived: true, Address: "a"}},
		{name: "2", lead: domain.QueueLead{Archived: false, Address: "b"}},
	}
	assertOrder(t, SortLeads(in), "2", "1")
}

func TestSortUncontactedFirst(t *testing.T) {
	in := []*row{
		{name: "contacted", lead: domain.QueueLead{LastContactDate: at("2024-01-01")}},
		{name: "fresh", lead: domain.QueueLead{}},
	}
	assertOrder(t, SortLeads(in), "fresh", "contacted")
}

func TestSortUncontactedByScoreNullsLowest(t *testing.T) {
	in := []*row{
		{name: "none", lead: domain.QueueLead{}},
		{name: "low", lead: domain.QueueLead{LeadScore: score(2)}},
		{name: "high", lead: domain.QueueLead{LeadScore: score(9)}},
	}
	assertOrder(t, SortLeads(in), "high", "low", "none")
}

func TestSortContactedByRecency(t *testing.T) {
	in := []*row{
		{name: "older", lead: domain.QueueLead{LastContactDate: at("2024-01-01"), LeadScore: score(10)}},
		{name: "newer", lead: domain.QueueLead{LastContactDate: at("2024-03-01")}},
	}
	assertOrder(t, SortLeads(in), "newer", "older")
}

func TestSortTieBreaks(t *testing.T) {
	day := at("2024-02-01")
	in := []*row{
		{name: "b-2", lead: domain.QueueLead{LastContactDate: day, Units: 2, Address: "B St"}},
		{name: "a-2", lead: domain.QueueLead{LastContactDate: day, Units: 2, Address: "A St"}},
		{name: "z-4", lead: domain.QueueLead{LastContactDate: day, Units: 4, Address: "Z St"}},
		{name: "lower-a", lead: domain.QueueLead{LastContactDate: day, Units: 2, Address: "a St"}},
	}
	// byte-wise: upper case before lower case
	assertOrder(t, SortLeads(in), "z-4", "a-2", "b-2", "lower-a")
}

func TestSortDoesNotMutateInput(t *testing.T) {
	first := &row{name: "archived", lead: domain.QueueLead{Archived: true}}
	second := &row{name: "active", lead: domain.QueueLead{}}
	in := []*row{first, second}

	out := SortLeads(in)

	if in[0] != first || in[1] != second {
		t.Fatal("input slice was reordered")
	}
	if out[0] != second || out[1] != first {
		t.Fatal("output should hold the same elements in sorted order")
	}
	if first.lead.Archived != true {
		t.Fatal("element was modified")
	}
}

func TestClassify(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(48 * time.Hour)
	contacted := now.Add(-72 * time.Hour)

	tests := []struct {
		name string
		lead domain.QueueLead
		want domain.QueueType
	}{
		{name: "archived wins", lead: domain.QueueLead{Archived: true, Status: domain.LeadStatusResponding}, want: domain.QueueArchived},
		{name: "new uncontacted", lead: domain.QueueLead{Status: domain.LeadStatusNew}, want: domain.QueueActionNow},
		{name: "new but contacted", lead: domain.QueueLead{Status: domain.LeadStatusNew, LastContactDate: &contacted}, want: domain.QueueAll},
		{name: "responding", lead: domain.QueueLead{Status: domain.LeadStatusResponding, LastContactDate: &contacted}, want: domain.QueueActionNow},
		{name: "follow up due", lead: domain.QueueLead{Status: domain.LeadStatusContacted, LastContactDate: &contacted, FollowUpDate: &past}, want: domain.QueueActionNow},
		{name: "follow up due exactly now", lead: domain.QueueLead{Status: domain.LeadStatusContacted, FollowUpDate: &now}, want: domain.QueueActionNow},
		{name: "follow up later", lead: domain.QueueLead{Status: domain.LeadStatusContacted, LastContactDate: &contacted, FollowUpDate: &future}, want: domain.QueueFollowUp},
		{name: "negotiating", lead: domain.QueueLead{Status: domain.LeadStatusNegotiating, FollowUpDate: &past}, want: domain.QueueNegotiating},
		{name: "under contract", lead: domain.QueueLead{Status: domain.LeadStatusUnderContract}, want: domain.QueueNegotiating},
		{name: "closed", lead: domain.QueueLead{Status: domain.LeadStatusClosed, FollowUpDate: &past}, want: domain.QueueAll},
		{name: "lost", lead: domain.QueueLead{Status: domain.LeadStatusLost}, want: domain.QueueAll},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.lead, now); got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestCountAndFilter(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	contacted := now.Add(-24 * time.Hour)

	leads := []domain.QueueLead{
		{ID: uuid.New(), Status: domain.LeadStatusNew},
		{ID: uuid.New(), Status: domain.LeadStatusContacted, LastContactDate: &contacted, FollowUpDate: &future},
		{ID: uuid.New(), Status: domain.LeadStatusNegotiating},
		{ID: uuid.New(), Status: domain.LeadStatusClosed},
		{ID: uuid.New(), Status: domain.LeadStatusNew, Archived: true},
	}

	got := Count(leads, now)
	want := Counts{ActionNow: 1, FollowUp: 1, Negotiating: 1, All: 4, Archived: 1}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	if all := Filter(leads, domain.QueueAll, now); len(all) != 4 {
		t.Fatalf("expected 4 leads in all, got %d", len(all))
	}
	if archived := Filter(leads, domain.QueueArchived, now); len(archived) != 1 || archived[0].ID != leads[4].ID {
		t.Fatalf("unexpected archived queue: %+v", archived)
	}
}

func TestSortFollowUpQueue(t *testing.T) {
	in := []*row{
		{name: "later", lead: domain.QueueLead{FollowUpDate: at("2026-06-10"), LeadScore: score(9)}},
		{name: "sooner", lead: domain.QueueLead{FollowUpDate: at("2026-06-01")}},
		{name: "sooner-bigger", lead: domain.QueueLead{FollowUpDate: at("2026-06-01"), Units: 3}},
	}
	assertOrder(t, SortQueue(in, domain.QueueFollowUp), "sooner-bigger", "sooner", "later")
	assertOrder(t, SortQueue(in, domain.QueueAll), "later", "sooner-bigger", "sooner")
}

func TestSortProperties(t *testing.T) {
	type prop struct {
		status  domain.PropertyStatus
		address string
	}
	in := []prop{
		{domain.PropertyStatusOperational, "A"},
		{domain.PropertyStatusOpportunity, "Z"},
		{domain.PropertyStatusOpportunity, "B"},
		{domain.PropertyStatusRehab, "C"},
	}
	out := SortProperties(in,
		func(p prop) domain.PropertyStatus { return p.status },
		func(p prop) string { return p.address },
	)
	want := []string{"B", "Z", "C", "A"}
	for i, p := range out {
		if p.address != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], p.address)
		}
	}
	if in[0].address != "A" {
		t.Fatal("input mutated")
	}
}
