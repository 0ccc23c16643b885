// Package domain holds the business vocabulary of the leads bounded context:
// statuses, queues, address normalization and the metadata union.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// LeadStatus is the contact lifecycle of a lead.
type LeadStatus string

const (
	LeadStatusNew           LeadStatus = "New"
	LeadStatusContacted     LeadStatus = "Contacted"
	LeadStatusResponding    LeadStatus = "Responding"
	LeadStatusNegotiating   LeadStatus = "Negotiating"
	LeadStatusUnderContract LeadStatus = "UnderContract"
	LeadStatusClosed        LeadStatus = "Closed"
	LeadStatusLost          LeadStatus = "Lost"
)

// LeadStatusOneOf is the validator `oneof` parameter for LeadStatus.
const LeadStatusOneOf = "New Contacted Responding Negotiating UnderContract Closed Lost"

var knownLeadStatuses = map[LeadStatus]struct{}{
	LeadStatusNew:           {},
	LeadStatusContacted:     {},
	LeadStatusResponding:    {},
	LeadStatusNegotiating:   {},
	LeadStatusUnderContract: {},
	LeadStatusClosed:        {},
	LeadStatusLost:          {},
}

func (s LeadStatus) Valid() bool {
	_, ok := knownLeadStatuses[s]
	return ok
}

// IsTerminal reports whether a lead in this status has left the working queues.
func (s LeadStatus) IsTerminal() bool {
	return s == LeadStatusClosed || s == LeadStatusLost
}

// PropertyStatus is the lifecycle of an owned or pursued property.
type PropertyStatus string

const (
	PropertyStatusOpportunity PropertyStatus = "Opportunity"
	PropertyStatusSoftOffer   PropertyStatus = "Soft Offer"
	PropertyStatusHardOffer   PropertyStatus = "Hard Offer"
	PropertyStatusSelling     PropertyStatus = "Selling"
	PropertyStatusRehab       PropertyStatus = "Rehab"
	PropertyStatusNeedsTenant PropertyStatus = "Needs Tenant"
	PropertyStatusOperational PropertyStatus = "Operational"
)

var propertyStatusPriority = map[PropertyStatus]int{
	PropertyStatusOpportunity: 1,
	PropertyStatusSoftOffer:   2,
	PropertyStatusHardOffer:   3,
	PropertyStatusSelling:     4,
	PropertyStatusRehab:       5,
	PropertyStatusNeedsTenant: 6,
	PropertyStatusOperational: 7,
}

func (s PropertyStatus) Valid() bool {
	_, ok := propertyStatusPriority[s]
	return ok
}

// Priority is the board position of the status. Unknown statuses sort last.
func (s PropertyStatus) Priority() int {
	if p, ok := propertyStatusPriority[s]; ok {
		return p
	}
	return len(propertyStatusPriority) + 1
}

// QueueType names a triage queue.
type QueueType string

const (
	QueueActionNow   QueueType = "action_now"
	QueueFollowUp    QueueType = "follow_up"
	QueueNegotiating QueueType = "negotiating"
	QueueAll         QueueType = "all"
	QueueArchived    QueueType = "archived"
)

// QueueTypeOneOf is the validator `oneof` parameter for QueueType.
const QueueTypeOneOf = "action_now follow_up negotiating all archived"

func (q QueueType) Valid() bool {
	switch q {
	case QueueActionNow, QueueFollowUp, QueueNegotiating, QueueAll, QueueArchived:
		return true
	}
	return false
}

// LeadSource records how a lead entered the system.
type LeadSource string

const (
	LeadSourceManual      LeadSource = "manual"
	LeadSourceImport      LeadSource = "import"
	LeadSourceListingFeed LeadSource = "listing_feed"
	LeadSourceAPI         LeadSource = "api"
)

// LeadSourceOneOf is the validator `oneof` parameter for LeadSource.
const LeadSourceOneOf = "manual import listing_feed api"

// QueueLead is the projection of a lead that queue classification and
// ordering operate on.
type QueueLead struct {
	ID              uuid.UUID
	Address         string
	Status          LeadStatus
	LastContactDate *time.Time
	FollowUpDate    *time.Time
	Archived        bool
	LeadScore       *float64
	Units           int
}

// QueueView lets a bare QueueLead be sorted and classified directly.
func (l QueueLead) QueueView() QueueLead { return l }
