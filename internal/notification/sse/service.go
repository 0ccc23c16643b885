// Package sse fans domain changes out to the browsers of a tenant over
// Server-Sent Events.
package sse

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"dealflow_backend/platform/httpkit"
	"dealflow_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type EventType string

const (
	EventEvaluationComplete EventType = "evaluation_complete"
	EventLeadUpdated        EventType = "lead_updated"
	EventLeadIngested       EventType = "lead_ingested"
	EventLeadDeleted        EventType = "lead_deleted"
	EventFollowUpDue        EventType = "follow_up_due"
)

const (
	clientBuffer = 32
	// Proxies close idle streams; a comment line every heartbeat keeps them open.
	heartbeatInterval = 25 * time.Second
)

// Event is the JSON body of one SSE message. Type doubles as the SSE event name.
type Event struct {
	Type    EventType   `json:"type"`
	LeadID  uuid.UUID   `json:"leadId,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type subscriber struct {
	userID   uuid.UUID
	tenantID uuid.UUID
	events   chan Event
}

// Service tracks open streams per tenant.
type Service struct {
	mu      sync.RWMutex
	tenants map[uuid.UUID]map[*subscriber]struct{}
	closed  bool
	log     *logger.Logger
}

func New(log *logger.Logger) *Service {
	return &Service{
		tenants: make(map[uuid.UUID]map[*subscriber]struct{}),
		log:     log,
	}
}

// Subscribe registers a listener for a tenant. The cancel func is idempotent;
// it unregisters the listener and closes the channel. After Close the
// returned channel is already closed.
func (s *Service) Subscribe(userID, tenantID uuid.UUID) (<-chan Event, func()) {
	sub := &subscriber{userID: userID, tenantID: tenantID, events: make(chan Event, clientBuffer)}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(sub.events)
		return sub.events, func() {}
	}
	if s.tenants[tenantID] == nil {
		s.tenants[tenantID] = make(map[*subscriber]struct{})
	}
	s.tenants[tenantID][sub] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return sub.events, func() {
		once.Do(func() { s.unsubscribe(sub) })
	}
}

func (s *Service) unsubscribe(sub *subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.tenants[sub.tenantID]
	if _, ok := set[sub]; !ok {
		// Close already closed the channel.
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(s.tenants, sub.tenantID)
	}
	close(sub.events)
}

// PublishToTenant delivers to every open stream of the tenant. A full
// buffer drops the event for that stream only.
func (s *Service) PublishToTenant(tenantID uuid.UUID, event Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	delivered := 0
	for sub := range s.tenants[tenantID] {
		select {
		case sub.events <- event:
			delivered++
		default:
			s.log.Warn("sse buffer full, event dropped", "userId", sub.userID, "type", event.Type)
		}
	}
	s.log.Debug("sse event published", "type", event.Type, "tenantId", tenantID, "clients", delivered)
}

// Handler streams the caller's tenant events until the client disconnects
// or the service is closed.
func (s *Service) Handler(caller func(*gin.Context) (userID, tenantID uuid.UUID, ok bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, tenantID, ok := caller(c)
		if !ok {
			httpkit.Error(c, http.StatusUnauthorized, "unauthorized", nil)
			return
		}

		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		events, cancel := s.Subscribe(userID, tenantID)
		defer cancel()

		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		c.SSEvent("connected", gin.H{"userId": userID, "tenantId": tenantID})
		c.Writer.Flush()

		clientGone := c.Request.Context().Done()
		c.Stream(func(w io.Writer) bool {
			select {
			case <-clientGone:
				return false
			case event, open := <-events:
				if !open {
					return false
				}
				data, err := json.Marshal(event)
				if err != nil {
					s.log.Error("sse event not encodable", "type", event.Type, "error", err)
					return true
				}
				c.SSEvent(string(event.Type), string(data))
				return true
			case <-heartbeat.C:
				_, err := io.WriteString(w, ": ping\n\n")
				return err == nil
			}
		})
	}
}

// Close ends every open stream and refuses new subscribers.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, set := range s.tenants {
		for sub := range set {
			close(sub.events)
		}
	}
	s.tenants = make(map[uuid.UUID]map[*subscriber]struct{})
	s.closed = true
}
