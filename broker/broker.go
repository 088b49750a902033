// Package broker provides in-process publish/subscribe between the relay's
// components. Topics fan out by detail; a detail is a sub-key such as a
// user id or an event name.
package broker

import (
	"fmt"
	"sync"

	"telecare/broker/channel"
	"telecare/broker/subscription"
)

// Topics.
const (
	// Client carries client lifecycle and room events, consumed by the
	// coordinator. Details are the event constants below.
	Client = TOPIC(iota)

	// ClientSocket carries messages addressed to one user's socket writer.
	// Detail is the user id.
	ClientSocket
)

// Details for the Client topic. Room joins and leaves share one detail so
// a single subscription sees them in publish order; a rejoin must never
// overtake the leave before it.
const (
	REGISTER   = DETAIL("REGISTER")
	DEREGISTER = DETAIL("DEREGISTER")
	ROOM       = DETAIL("ROOM")
)

// TOPIC is a broker topic.
type TOPIC int

// DETAIL is a sub-key within a topic.
type DETAIL string

// Detail converts a string to a DETAIL.
func Detail(s string) DETAIL {
	return DETAIL(s)
}

const subscriptionQueueSize = 16

// Broker routes published messages to subscriptions.
type Broker struct {
	mu       sync.RWMutex
	channels map[TOPIC]map[DETAIL]*channel.Channel
}

// New creates a new Broker.
func New() *Broker {
	return &Broker{
		channels: make(map[TOPIC]map[DETAIL]*channel.Channel),
	}
}

// Publish sends a message to every subscription of topic/detail. Publishing
// to a detail nobody subscribes to is not an error; the message is dropped,
// delivery is best-effort by design.
func (b *Broker) Publish(topic TOPIC, detail DETAIL, message any) error {
	b.mu.RLock()
	ch, ok := b.channels[topic][detail]
	b.mu.RUnlock()
	if !ok {
		return nil
	}
	ch.SendAll(message)
	return nil
}

// Subscribe registers a new subscription for topic/detail.
func (b *Broker) Subscribe(topic TOPIC, detail DETAIL) *subscription.Subscription {
	sub := subscription.New(subscriptionQueueSize)

	b.mu.Lock()
	defer b.mu.Unlock()
	details, ok := b.channels[topic]
	if !ok {
		details = make(map[DETAIL]*channel.Channel)
		b.channels[topic] = details
	}
	ch, ok := details[detail]
	if !ok {
		ch = channel.New()
		details[detail] = ch
	}
	ch.AddSubscription(sub)
	return sub
}

// Unsubscribe removes a subscription and closes it. The channel itself is
// removed once its last subscription is gone.
func (b *Broker) Unsubscribe(topic TOPIC, detail DETAIL, sub *subscription.Subscription) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.channels[topic][detail]
	if !ok {
		return fmt.Errorf("no channel for topic %d detail %s", topic, detail)
	}
	ch.RemoveSubscription(sub)
	if ch.Empty() {
		delete(b.channels[topic], detail)
	}
	return nil
}
