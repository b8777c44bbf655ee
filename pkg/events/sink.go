package events

import (
	"encoding/json"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// EventSink receives events during inference. Sinks are fanned out to by the
// orchestrator; implementations must be safe for concurrent use.
type EventSink interface {
	PublishEvent(e Event) error
}

// WatermillSink publishes events to a watermill topic. Messages carry
// event_type, request_id and chat_id metadata so subscribers can filter
// without unmarshalling the payload.
type WatermillSink struct {
	publisher message.Publisher
	topic     string
}

func NewWatermillSink(publisher message.Publisher, topic string) *WatermillSink {
	return &WatermillSink{
		publisher: publisher,
		topic:     topic,
	}
}

func (s *WatermillSink) PublishEvent(e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "could not marshal event")
	}

	msg := message.NewMessage(watermill.NewUUID(), b)
	msg.Metadata.Set("event_type", string(e.Type()))
	md := e.Metadata()
	if md.RequestID != uuid.Nil {
		msg.Metadata.Set("request_id", md.RequestID.String())
	}
	if md.ChatID != "" {
		msg.Metadata.Set("chat_id", md.ChatID)
	}

	return s.publisher.Publish(s.topic, msg)
}

var _ EventSink = (*WatermillSink)(nil)

// SinkFunc adapts a plain function to the EventSink interface.
type SinkFunc func(e Event) error

func (f SinkFunc) PublishEvent(e Event) error {
	return f(e)
}

var _ EventSink = (SinkFunc)(nil)

// NullSink discards every event.
type NullSink struct{}

func NewNullSink() *NullSink {
	return &NullSink{}
}

func (n *NullSink) PublishEvent(Event) error {
	return nil
}

var _ EventSink = (*NullSink)(nil)

// CollectorSink buffers events in memory, mostly for tests and for building
// one-shot responses out of a stream.
type CollectorSink struct {
	mu     sync.Mutex
	events []Event
}

func NewCollectorSink() *CollectorSink {
	return &CollectorSink{}
}

func (c *CollectorSink) PublishEvent(e Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

// Events returns a snapshot of everything collected so far.
func (c *CollectorSink) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	ret := make([]Event, len(c.events))
	copy(ret, c.events)
	return ret
}

// Types returns the types of collected events, in publish order.
func (c *CollectorSink) Types() []EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	ret := make([]EventType, 0, len(c.events))
	for _, e := range c.events {
		ret = append(ret, e.Type())
	}
	return ret
}

var _ EventSink = (*CollectorSink)(nil)
