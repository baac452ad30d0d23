// Package bus is the in-process broadcast bus the thermal indications
// travel over. Topics are created on first subscription; publishing is
// non-blocking and a subscriber that cannot keep up is skipped.
package bus

import (
	"sync"

	"codeberg.org/mutker/thermalctl/internal/errors"
	"codeberg.org/mutker/thermalctl/internal/logger"
	"github.com/google/uuid"
)

const receiverBuffer = 8

type Topic string

type Message struct {
	Value any
}

type Subscription struct {
	ID       string
	Receiver chan Message
}

type subscriber struct {
	once         sync.Once
	active       bool
	subscription Subscription
}

// Broker is a local publish/subscribe broker.
type Broker struct {
	mu          sync.Mutex
	subscribers map[Topic][]*subscriber
	errFactory  errors.Factory
}

func New() *Broker {
	return &Broker{
		subscribers: make(map[Topic][]*subscriber),
		errFactory:  errors.New(),
	}
}

func (b *Broker) Subscribe(topic Topic) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subscription := Subscription{
		ID:       uuid.NewString(),
		Receiver: make(chan Message, receiverBuffer),
	}
	b.subscribers[topic] = append(b.subscribers[topic], &subscriber{
		subscription: subscription,
		active:       true,
	})

	return subscription, nil
}

func (b *Broker) Unsubscribe(topic Topic, subscription Subscription) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	subscribers, ok := b.subscribers[topic]
	if !ok {
		return b.errFactory.WithData(ErrTopicNotFound, topic)
	}

	for _, s := range subscribers {
		if s.subscription.ID == subscription.ID {
			s.close()
			return nil
		}
	}

	return b.errFactory.WithData(ErrSubscriptionNotFound, subscription.ID)
}

// Publish delivers msg to every active subscriber of topic. Delivery is
// best effort: a full receiver is skipped with a warning so a slow
// subscriber never blocks the publisher.
func (b *Broker) Publish(topic Topic, msg Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	subscribers, ok := b.subscribers[topic]
	if !ok {
		return b.errFactory.WithData(ErrTopicNotFound, topic)
	}

	for _, s := range subscribers {
		if !s.active {
			continue
		}
		select {
		case s.subscription.Receiver <- msg:
		default:
			logger.Warn().
				Str("topic", string(topic)).
				Str("subscription", s.subscription.ID).
				Msg("Subscriber not keeping up; message dropped")
		}
	}

	return nil
}

// Stop closes every subscription. The broker cannot be reused.
func (b *Broker) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, subscribers := range b.subscribers {
		for _, s := range subscribers {
			s.close()
		}
	}
}

func (s *subscriber) close() {
	s.once.Do(func() {
		s.active = false
		close(s.subscription.Receiver)
	})
}
