// Package notification provides event handlers for outbound messages and
// live updates in response to domain events.
// This module subscribes to events and inverts the dependency: domain modules
// no longer need to know about SMTP or connected browsers.
package notification

import (
	"context"
	"strings"

	"dealflow_backend/internal/events"
	apphttp "dealflow_backend/internal/http"
	"dealflow_backend/internal/notification/outbound"
	"dealflow_backend/internal/notification/sse"
	"dealflow_backend/platform/httpkit"
	"dealflow_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Module handles all notification-related event subscriptions.
type Module struct {
	sender outbound.Sender
	sse    *sse.Service
	log    *logger.Logger
}

// New creates the notification module. A nil sender drops first messages.
func New(sender outbound.Sender, stream *sse.Service, log *logger.Logger) *Module {
	if sender == nil {
		sender = outbound.NoopSender{}
	}
	return &Module{sender: sender, sse: stream, log: log}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "notification" }

// RegisterRoutes registers the live event stream.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	if m.sse == nil {
		return
	}
	ctx.Protected.GET("/events", m.sse.Handler(streamCaller))
}

func streamCaller(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	id := httpkit.GetIdentity(c)
	return id.UserID(), id.TenantID(), id.IsAuthenticated()
}

// RegisterHandlers subscribes to all relevant domain events on the event bus.
func (m *Module) RegisterHandlers(bus events.Bus) {
	// Outbound
	bus.Subscribe(events.LeadFirstMessageRequested{}.EventName(), m)

	// Live updates
	bus.Subscribe(events.LeadIngested{}.EventName(), m)
	bus.Subscribe(events.LeadStatusChanged{}.EventName(), m)
	bus.Subscribe(events.LeadArchived{}.EventName(), m)
	bus.Subscribe(events.LeadDeleted{}.EventName(), m)
	bus.Subscribe(events.LeadFollowUpDue{}.EventName(), m)
	bus.Subscribe(events.EvaluationCompleted{}.EventName(), m)
	bus.Subscribe(events.EvaluationUpdated{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.LeadFirstMessageRequested:
		return m.handleFirstMessageRequested(ctx, e)
	case events.LeadIngested:
		msg := "New lead ingested"
		if e.WasConsolidated {
			msg = "Lead updated from a new listing"
		}
		m.push(e.TenantID, sse.Event{Type: sse.EventLeadIngested, LeadID: e.LeadID, Message: msg, Data: e})
	case events.LeadStatusChanged:
		m.push(e.TenantID, sse.Event{Type: sse.EventLeadUpdated, LeadID: e.LeadID, Message: "Lead status changed to " + e.NewStatus, Data: e})
	case events.LeadArchived:
		msg := "Lead unarchived"
		if e.Archived {
			msg = "Lead archived"
		}
		m.push(e.TenantID, sse.Event{Type: sse.EventLeadUpdated, LeadID: e.LeadID, Message: msg, Data: e})
	case events.LeadDeleted:
		m.push(e.TenantID, sse.Event{Type: sse.EventLeadDeleted, LeadID: e.LeadID, Message: "Lead deleted"})
	case events.LeadFollowUpDue:
		m.push(e.TenantID, sse.Event{Type: sse.EventFollowUpDue, LeadID: e.LeadID, Message: "Follow-up due for " + e.Address, Data: e})
	case events.EvaluationCompleted:
		m.push(e.TenantID, sse.Event{Type: sse.EventEvaluationComplete, LeadID: e.LeadID, Message: "Evaluation " + e.Status, Data: e})
	case events.EvaluationUpdated:
		m.push(e.TenantID, sse.Event{Type: sse.EventLeadUpdated, LeadID: e.LeadID, Message: "Evaluation updated", Data: e})
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
	}
	return nil
}

func (m *Module) push(tenantID uuid.UUID, ev sse.Event) {
	if m.sse == nil {
		return
	}
	m.sse.PublishToTenant(tenantID, ev)
}

func (m *Module) handleFirstMessageRequested(ctx context.Context, e events.LeadFirstMessageRequested) error {
	to := strings.TrimSpace(e.ContactEmail)
	if to == "" {
		m.log.Info("first message skipped, lead has no contact email", "leadId", e.LeadID)
		return nil
	}

	err := m.sender.SendFirstMessage(ctx, outbound.FirstMessage{
		ToEmail:     to,
		ContactName: e.ContactName,
		Address:     e.Address,
	})
	if err != nil {
		m.log.Error("failed to send first message", "leadId", e.LeadID, "error", err)
		return err
	}
	m.log.Info("first message sent", "leadId", e.LeadID)
	return nil
}

var _ apphttp.Module = (*Module)(nil)
