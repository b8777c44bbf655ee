package events

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"
)

// PublisherManager distributes events to a set of publishers. A publisher is
// subscribed under a topic; every published event is fanned out to all
// publishers on the topic they were subscribed with. This is how one request
// feeds both a global event topic and a per chat topic.
//
// The manager stamps each outgoing message with a sequence number, in the
// order Publish was called.
type PublisherManager struct {
	Publishers     map[string][]message.Publisher
	sequenceNumber uint64
	mutex          sync.Mutex
}

func NewPublisherManager() *PublisherManager {
	return &PublisherManager{
		Publishers: make(map[string][]message.Publisher),
	}
}

func (s *PublisherManager) SubscribePublisher(topic string, pub message.Publisher) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.Publishers[topic] = append(s.Publishers[topic], pub)
}

// Publish serializes the payload to JSON and distributes it to all
// subscribed publishers. Individual publisher failures are logged, not
// returned, so a broken subscriber cannot fail the stream.
func (s *PublisherManager) Publish(payload interface{}) error {
	// lock covers the sequence number as well
	s.mutex.Lock()
	defer s.mutex.Unlock()

	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), b)
	msg.Metadata.Set("sequence_number", fmt.Sprintf("%d", s.sequenceNumber))
	s.sequenceNumber++

	if e, ok := payload.(Event); ok {
		msg.Metadata.Set("event_type", string(e.Type()))
		if chatID := e.Metadata().ChatID; chatID != "" {
			msg.Metadata.Set("chat_id", chatID)
		}
	}

	for topic, pubs := range s.Publishers {
		for _, pub := range pubs {
			err = pub.Publish(topic, msg)
			if err != nil {
				log.Warn().Err(err).Str("topic", topic).Msg("failed to publish")
			}
		}
	}

	return nil
}

func (s *PublisherManager) PublishBlind(payload interface{}) {
	err := s.Publish(payload)
	if err != nil {
		log.Warn().Err(err).Msg("failed to publish")
	}
}

// PublishEvent lets the manager stand in wherever an EventSink is expected.
func (s *PublisherManager) PublishEvent(e Event) error {
	return s.Publish(e)
}

var _ EventSink = (*PublisherManager)(nil)
