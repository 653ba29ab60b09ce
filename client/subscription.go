package client

import (
	"sync"

	"go.uber.org/zap"
)

// Event is one batch of change notifications. The last event a subscription
// receives has Closed set, after which its channel is closed.
type Event struct {
	Subsystems []Subsystem

	Closed bool
	Err    error
}

// Has reports whether the event names the given subsystem.
func (e Event) Has(s Subsystem) bool {
	for _, changed := range e.Subsystems {
		if changed == s {
			return true
		}
	}

	return false
}

// Policy decides what a full subscription does with a new event.
type Policy int

const (
	// DropNewest discards the incoming event.
	DropNewest Policy = iota
	// DropOldest discards the oldest buffered event to make room.
	DropOldest
)

type SubscribeOption func(*Subscription)

// WithBuffer sets how many events the subscription holds before its policy applies.
func WithBuffer(size int) SubscribeOption {
	return func(s *Subscription) {
		if size > 0 {
			s.size = size
		}
	}
}

func WithPolicy(policy Policy) SubscribeOption {
	return func(s *Subscription) {
		s.policy = policy
	}
}

// Subscription receives change events until it is closed or the connection
// goes away. The connection never waits for a slow subscriber.
type Subscription struct {
	conn   *Conn
	events chan Event
	size   int
	policy Policy

	// owned by the connection loop
	dropped uint64

	closeOnce sync.Once
}

func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close stops delivery and closes the events channel. It is safe to call more
// than once and after the connection closed.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		select {
		case s.conn.unsubscribe <- s:
		case <-s.conn.done:
		}
	})
}

// deliver never blocks. It reports whether ev was buffered.
func (s *Subscription) deliver(ev Event, log *zap.Logger) bool {
	select {
	case s.events <- ev:
		return true
	default:
	}

	if s.policy == DropOldest {
		select {
		case <-s.events:
		default:
		}

		select {
		case s.events <- ev:
			s.dropped++
			log.Debug("Subscriber full, dropped oldest event", zap.Uint64("dropped", s.dropped))
			return true
		default:
		}
	}

	s.dropped++
	log.Debug("Subscriber full, dropped event", zap.Uint64("dropped", s.dropped))

	return false
}

// terminate hands over the closing event, evicting a buffered one if needed,
// and closes the channel.
func (s *Subscription) terminate(err error) {
	ev := Event{Closed: true, Err: err}

	for {
		select {
		case s.events <- ev:
			close(s.events)
			return
		default:
		}

		select {
		case <-s.events:
		default:
		}
	}
}
