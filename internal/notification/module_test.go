package notification

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"dealflow_backend/internal/events"
	"dealflow_backend/internal/notification/outbound"
	"dealflow_backend/internal/notification/sse"
	"dealflow_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testSender struct {
	sent []outbound.FirstMessage
	err  error
}

func (s *testSender) SendFirstMessage(_ context.Context, msg outbound.FirstMessage) error {
	s.sent = append(s.sent, msg)
	return s.err
}

func newTestModule(sender outbound.Sender) (*Module, *sse.Service) {
	log := logger.NewWithWriter("test", io.Discard)
	stream := sse.New(log)
	return New(sender, stream, log), stream
}

func TestFirstMessageRequestedSendsEmail(t *testing.T) {
	sender := &testSender{}
	m, _ := newTestModule(sender)

	err := m.Handle(context.Background(), events.LeadFirstMessageRequested{
		BaseEvent:    events.NewBaseEvent(),
		LeadID:       uuid.New(),
		TenantID:     uuid.New(),
		Address:      "12 Oak St",
		ContactName:  "Dana",
		ContactEmail: " dana@example.com ",
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "dana@example.com", sender.sent[0].ToEmail)
	assert.Equal(t, "12 Oak St", sender.sent[0].Address)
}

func TestFirstMessageSkippedWithoutEmail(t *testing.T) {
	sender := &testSender{}
	m, _ := newTestModule(sender)

	err := m.Handle(context.Background(), events.LeadFirstMessageRequested{LeadID: uuid.New(), ContactPhone: "+15551234567"})
	require.NoError(t, err)
	assert.Empty(t, sender.sent)
}

func TestFirstMessageSendFailureIsReturned(t *testing.T) {
	sender := &testSender{err: errors.New("smtp down")}
	m, _ := newTestModule(sender)

	err := m.Handle(context.Background(), events.LeadFirstMessageRequested{LeadID: uuid.New(), ContactEmail: "a@b.co"})
	assert.Error(t, err)
}

func TestEvaluationCompletedReachesOnlyItsTenant(t *testing.T) {
	m, stream := newTestModule(nil)
	tenant := uuid.New()
	leadID := uuid.New()

	mine, cancelMine := stream.Subscribe(uuid.New(), tenant)
	defer cancelMine()
	other, cancelOther := stream.Subscribe(uuid.New(), uuid.New())
	defer cancelOther()

	require.NoError(t, m.Handle(context.Background(), events.EvaluationCompleted{
		LeadID:   leadID,
		TenantID: tenant,
		Tier:     "quick",
		Status:   "completed",
	}))

	select {
	case ev := <-mine:
		assert.Equal(t, sse.EventEvaluationComplete, ev.Type)
		assert.Equal(t, leadID, ev.LeadID)
		assert.Equal(t, "Evaluation completed", ev.Message)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	select {
	case ev := <-other:
		t.Fatalf("unexpected event for other tenant: %v", ev.Type)
	default:
	}
}

func TestLeadEventsMapToStreamTypes(t *testing.T) {
	m, stream := newTestModule(nil)
	tenant := uuid.New()
	ch, cancel := stream.Subscribe(uuid.New(), tenant)
	defer cancel()

	cases := []struct {
		event events.Event
		want  sse.EventType
	}{
		{events.LeadIngested{TenantID: tenant}, sse.EventLeadIngested},
		{events.LeadStatusChanged{TenantID: tenant, NewStatus: "contacted"}, sse.EventLeadUpdated},
		{events.LeadArchived{TenantID: tenant, Archived: true}, sse.EventLeadUpdated},
		{events.LeadDeleted{TenantID: tenant}, sse.EventLeadDeleted},
		{events.LeadFollowUpDue{TenantID: tenant, Address: "1 Elm"}, sse.EventFollowUpDue},
		{events.EvaluationUpdated{TenantID: tenant}, sse.EventLeadUpdated},
	}
	for _, tc := range cases {
		require.NoError(t, m.Handle(context.Background(), tc.event))
		got := <-ch
		assert.Equal(t, tc.want, got.Type, tc.event.EventName())
	}
}

func TestSubscribeCancelAfterClose(t *testing.T) {
	_, stream := newTestModule(nil)
	ch, cancel := stream.Subscribe(uuid.New(), uuid.New())

	stream.Close()
	_, open := <-ch
	assert.False(t, open)

	assert.NotPanics(t, cancel)
	assert.NotPanics(t, cancel)

	late, _ := stream.Subscribe(uuid.New(), uuid.New())
	_, open = <-late
	assert.False(t, open)
}
