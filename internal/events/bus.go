// Package events is the in-process fan-out bus between the session layer
// and its consumers (SSE stream, TUI, status endpoints). Publishing never
// blocks: a subscriber that stops draining loses events, not the daemon.
package events

import (
	"sync"
	"time"
)

const subscriberBufferSize = 16

// Type discriminates bus events.
type Type string

const (
	// TypeSongUpdated carries a fresh song view after any state change.
	TypeSongUpdated Type = "song.updated"
	// TypeSessionState carries a UI-sink transition (loading, recognized,
	// scrobbled, ...).
	TypeSessionState Type = "session.state"
	// TypeScrobbled carries a journal record after a successful submission.
	TypeScrobbled Type = "scrobble.recorded"
	// TypeSessionClosed marks a session torn down by the registry.
	TypeSessionClosed Type = "session.closed"
)

// Event is one bus message. Payload is consumer-defined per Type and must
// be JSON-marshalable for the SSE bridge.
type Event struct {
	Type      Type      `json:"type"`
	Session   string    `json:"session,omitempty"`
	Connector string    `json:"connector,omitempty"`
	Time      time.Time `json:"time"`
	Payload   any       `json:"payload,omitempty"`
}

// Subscription is one subscriber's view of the bus. Receive from C until
// Done is closed.
type Subscription struct {
	C    <-chan Event
	ch   chan Event
	done chan struct{}

	bus  *Bus
	id   uint64
	once sync.Once
}

// Done is closed when the subscription is cancelled or the bus shuts
// down.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close cancels the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.unsubscribe(s.id)
		close(s.done)
	})
}

// send delivers non-blocking; events beyond the buffer are dropped.
func (s *Subscription) send(e Event) {
	select {
	case s.ch <- e:
	default:
	}
}

// Bus fans published events out to all current subscribers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]*Subscription)}
}

// Subscribe registers a new subscriber with a buffered channel. On a
// closed bus the subscription comes back already done.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{
		ch:   make(chan Event, subscriberBufferSize),
		done: make(chan struct{}),
		bus:  b,
		id:   b.nextID,
	}
	sub.C = sub.ch

	if b.closed {
		sub.once.Do(func() { close(sub.done) })
		return sub
	}
	b.subs[sub.id] = sub
	return sub
}

// Publish sends the event to every subscriber without blocking. A zero
// Time is stamped with the current time.
func (b *Bus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		sub.send(e)
	}
}

// Close cancels every subscription. Publishing to a closed bus is a
// no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		subs = append(subs, sub)
	}
	b.subs = make(map[uint64]*Subscription)
	b.closed = true
	b.mu.Unlock()

	for _, sub := range subs {
		sub.once.Do(func() { close(sub.done) })
	}
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}
