// Package channel provides the implementation of message channels.
package channel

import (
	"sync"

	"telecare/broker/subscription"
)

// Channel represents a message channel that can have multiple subscribers.
type Channel struct {
	mu   sync.RWMutex
	subs []*subscription.Subscription
}

// New creates and initializes a new Channel instance.
func New() *Channel {
	return &Channel{
		subs: make([]*subscription.Subscription, 0),
	}
}

// SendAll sends a message to all subscribers of the Channel, in publish
// order per caller. A slow subscriber backpressures the publisher; the
// subscriber list is snapshotted so an unsubscribe never waits on a
// blocked send.
func (c *Channel) SendAll(message any) {
	c.mu.RLock()
	subs := make([]*subscription.Subscription, len(c.subs))
	copy(subs, c.subs)
	c.mu.RUnlock()

	for _, sub := range subs {
		sub.Send(message)
	}
}

// Empty reports whether the Channel has no subscribers.
func (c *Channel) Empty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs) == 0
}

// AddSubscription adds a new Subscription to the Channel.
func (c *Channel) AddSubscription(sub *subscription.Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.subs = append(c.subs, sub)
}

// RemoveSubscription removes a Subscription from the Channel.
func (c *Channel) RemoveSubscription(sub *subscription.Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			sub.Close()
			return
		}
	}
}
