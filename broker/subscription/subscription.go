// Package subscription provides the receiving end of a broker channel.
package subscription

import "sync"

// Subscription is a single subscriber's message queue.
type Subscription struct {
	once  sync.Once
	queue chan any
}

// New creates a new Subscription with a buffered queue.
func New(size int) *Subscription {
	return &Subscription{
		queue: make(chan any, size),
	}
}

// Send delivers a message to the subscriber. It blocks while the queue is
// full.
func (s *Subscription) Send(message any) {
	defer func() {
		// The subscription may be closed while a send is in flight.
		_ = recover()
	}()
	s.queue <- message
}

// Receive returns the channel messages arrive on.
func (s *Subscription) Receive() <-chan any {
	return s.queue
}

// Close closes the subscription queue. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.queue)
	})
}
