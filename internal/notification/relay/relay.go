// Package relay carries domain events between the scheduler process and the
// API process over Redis pub/sub, so evaluation results and due follow-ups
// reach the API's live SSE clients.
package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"dealflow_backend/internal/events"
	"dealflow_backend/platform/logger"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis channel both processes use.
const DefaultChannel = "dealflow:events"

type envelope struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
}

type decodeFunc func(json.RawMessage) (events.Event, error)

func decoder[T events.Event]() decodeFunc {
	return func(raw json.RawMessage) (events.Event, error) {
		var ev T
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	}
}

// relayed lists the events the scheduler process produces that API clients
// care about.
var relayed = map[string]decodeFunc{
	events.EvaluationCompleted{}.EventName(): decoder[events.EvaluationCompleted](),
	events.LeadFollowUpDue{}.EventName():     decoder[events.LeadFollowUpDue](),
}

// EventNames returns the names of every relayed event.
func EventNames() []string {
	names := make([]string, 0, len(relayed))
	for name := range relayed {
		names = append(names, name)
	}
	return names
}

// Forwarder publishes local bus events to Redis.
type Forwarder struct {
	rdb     *redis.Client
	channel string
	log     *logger.Logger
}

func NewForwarder(rdb *redis.Client, channel string, log *logger.Logger) *Forwarder {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Forwarder{rdb: rdb, channel: channel, log: log}
}

// Attach subscribes the forwarder to every relayed event on bus.
func (f *Forwarder) Attach(bus events.Bus) {
	for _, name := range EventNames() {
		bus.Subscribe(name, f)
	}
}

// Handle implements events.Handler.
func (f *Forwarder) Handle(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event.EventName(), err)
	}
	msg, err := json.Marshal(envelope{Name: event.EventName(), Payload: payload})
	if err != nil {
		return err
	}
	if err := f.rdb.Publish(ctx, f.channel, msg).Err(); err != nil {
		f.log.Warn("event relay publish failed", "event", event.EventName(), "error", err)
		return err
	}
	return nil
}

// Listener republishes relayed events from Redis on the local bus.
type Listener struct {
	rdb     *redis.Client
	channel string
	bus     events.Bus
	log     *logger.Logger
}

func NewListener(rdb *redis.Client, channel string, bus events.Bus, log *logger.Logger) *Listener {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Listener{rdb: rdb, channel: channel, bus: bus, log: log}
}

// Run blocks until ctx is done or the subscription fails.
func (l *Listener) Run(ctx context.Context) error {
	sub := l.rdb.Subscribe(ctx, l.channel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", l.channel, err)
	}
	l.log.Info("event relay listening", "channel", l.channel)

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			l.dispatch(ctx, msg.Payload)
		}
	}
}

func (l *Listener) dispatch(ctx context.Context, raw string) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		l.log.Warn("event relay: malformed message", "error", err)
		return
	}
	decode, ok := relayed[env.Name]
	if !ok {
		l.log.Debug("event relay: ignoring event", "event", env.Name)
		return
	}
	ev, err := decode(env.Payload)
	if err != nil {
		l.log.Warn("event relay: decode failed", "event", env.Name, "error", err)
		return
	}
	l.bus.Publish(ctx, ev)
}
