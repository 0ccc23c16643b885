package relay

import (
	"context"
	"io"
	"testing"
	"time"

	"dealflow_backend/internal/events"
	platformevents "dealflow_backend/platform/events"
	"dealflow_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluationCompletedCrossesProcesses(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	log := logger.NewWithWriter("test", io.Discard)

	// API side.
	apiBus := platformevents.NewInMemoryBus(log)
	received := make(chan events.EvaluationCompleted, 1)
	apiBus.Subscribe(events.EvaluationCompleted{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		received <- e.(events.EvaluationCompleted)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	listener := NewListener(rdb, "", apiBus, log)
	done := make(chan error, 1)
	go func() { done <- listener.Run(ctx) }()

	require.Eventually(t, func() bool {
		n, err := rdb.PubSubNumSub(ctx, DefaultChannel).Result()
		return err == nil && n[DefaultChannel] == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Scheduler side.
	workerBus := platformevents.NewInMemoryBus(log)
	NewForwarder(rdb, "", log).Attach(workerBus)

	sent := events.EvaluationCompleted{
		BaseEvent:         events.NewBaseEvent(),
		LeadID:            uuid.New(),
		TenantID:          uuid.New(),
		EvaluationID:      uuid.New(),
		Tier:              "quick",
		Trigger:           "ingest",
		Status:            "completed",
		EvaluationVersion: 2,
	}
	require.NoError(t, workerBus.PublishSync(ctx, sent))

	select {
	case got := <-received:
		assert.Equal(t, sent.LeadID, got.LeadID)
		assert.Equal(t, sent.TenantID, got.TenantID)
		assert.Equal(t, sent.EvaluationID, got.EvaluationID)
		assert.Equal(t, "completed", got.Status)
		assert.Equal(t, 2, got.EvaluationVersion)
		assert.Equal(t, sent.ID, got.ID)
		assert.WithinDuration(t, sent.Timestamp, got.Timestamp, time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("relayed event not received")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestListenerIgnoresUnknownAndMalformed(t *testing.T) {
	log := logger.NewWithWriter("test", io.Discard)
	bus := platformevents.NewInMemoryBus(log)
	called := false
	bus.Subscribe(events.LeadDeleted{}.EventName(), events.HandlerFunc(func(context.Context, events.Event) error {
		called = true
		return nil
	}))

	l := NewListener(nil, "", bus, log)
	l.dispatch(context.Background(), "not json")
	l.dispatch(context.Background(), `{"name":"leads.lead.deleted","payload":{}}`)
	bus.Wait()

	assert.False(t, called)
}
