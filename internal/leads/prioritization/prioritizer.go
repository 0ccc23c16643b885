// Package prioritization classifies leads into triage queues and orders them.
// Queue membership is derived from status and dates on every read and is
// never stored.
package prioritization

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"dealflow_backend/internal/leads/domain"
)

// Queueable is anything that can be projected onto the fields the queue
// rules read.
type Queueable interface {
	QueueView() domain.QueueLead
}

// Counts is the number of leads per queue.
type Counts struct {
	ActionNow   int `json:"actionNow"`
	FollowUp    int `json:"followUp"`
	Negotiating int `json:"negotiating"`
	All         int `json:"all"`
	Archived    int `json:"archived"`
}

// Classify returns the primary queue of a lead at now. Closed and lost
// leads, and leads that need nothing, land in QueueAll.
func Classify(l domain.QueueLead, now time.Time) domain.QueueType {
	switch {
	case l.Archived:
		return domain.QueueArchived
	case l.Status == domain.LeadStatusNegotiating || l.Status == domain.LeadStatusUnderContract:
		return domain.QueueNegotiating
	case l.Status.IsTerminal():
		return domain.QueueAll
	case l.Status == domain.LeadStatusNew && l.LastContactDate == nil,
		l.Status == domain.LeadStatusResponding,
		l.FollowUpDate != nil && !l.FollowUpDate.After(now):
		return domain.QueueActionNow
	case l.FollowUpDate != nil:
		return domain.QueueFollowUp
	default:
		return domain.QueueAll
	}
}

// InQueue reports whether a lead is listed under queue. Every non-archived
// lead is in QueueAll.
func InQueue(l domain.QueueLead, queue domain.QueueType, now time.Time) bool {
	if queue == domain.QueueAll {
		return !l.Archived
	}
	return Classify(l, now) == queue
}

// Count tallies queue sizes.
func Count[T Queueable](leads []T, now time.Time) Counts {
	var c Counts
	for _, item := range leads {
		l := item.QueueView()
		if l.Archived {
			c.Archived++
			continue
		}
		c.All++
		switch Classify(l, now) {
		case domain.QueueActionNow:
			c.ActionNow++
		case domain.QueueFollowUp:
			c.FollowUp++
		case domain.QueueNegotiating:
			c.Negotiating++
		}
	}
	return c
}

// Filter returns the leads in queue, in input order, as a new slice.
func Filter[T Queueable](leads []T, queue domain.QueueType, now time.Time) []T {
	out := make([]T, 0, len(leads))
	for _, item := range leads {
		if InQueue(item.QueueView(), queue, now) {
			out = append(out, item)
		}
	}
	return out
}

// SortLeads returns a new slice in the default queue order:
//  1. non-archived before archived
//  2. never contacted before contacted
//  3. never contacted: lead score descending, missing score lowest
//  4. contacted: last contact descending
//  5. units descending
//  6. address ascending, byte-wise
//
// The sort is stable and the input is left untouched.
func SortLeads[T Queueable](leads []T) []T {
	out := slices.Clone(leads)
	slices.SortStableFunc(out, func(a, b T) int {
		return compareLeads(a.QueueView(), b.QueueView())
	})
	return out
}

// SortQueue orders the members of queue. The follow-up queue is ordered by
// the soonest follow-up first and falls back to the default order.
func SortQueue[T Queueable](leads []T, queue domain.QueueType) []T {
	if queue != domain.QueueFollowUp {
		return SortLeads(leads)
	}
	out := slices.Clone(leads)
	slices.SortStableFunc(out, func(a, b T) int {
		la, lb := a.QueueView(), b.QueueView()
		if c := compareTimeAsc(la.FollowUpDate, lb.FollowUpDate); c != 0 {
			return c
		}
		return compareLeads(la, lb)
	})
	return out
}

func compareLeads(a, b domain.QueueLead) int {
	if a.Archived != b.Archived {
		if a.Archived {
			return 1
		}
		return -1
	}

	aNew, bNew := a.LastContactDate == nil, b.LastContactDate == nil
	if aNew != bNew {
		if aNew {
			return -1
		}
		return 1
	}

	if aNew {
		if c := compareScoreDesc(a.LeadScore, b.LeadScore); c != 0 {
			return c
		}
	} else if c := b.LastContactDate.Compare(*a.LastContactDate); c != 0 {
		return c
	}

	if c := cmp.Compare(b.Units, a.Units); c != 0 {
		return c
	}
	return strings.Compare(a.Address, b.Address)
}

func compareScoreDesc(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return cmp.Compare(*b, *a)
	}
}

func compareTimeAsc(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return a.Compare(*b)
	}
}

// SortProperties orders a property board by status priority, then address.
func SortProperties[T any](items []T, status func(T) domain.PropertyStatus, address func(T) string) []T {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b T) int {
		if c := cmp.Compare(status(a).Priority(), status(b).Priority()); c != 0 {
			return c
		}
		return strings.Compare(address(a), address(b))
	})
	return out
}
