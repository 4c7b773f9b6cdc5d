package events

import (
	"sync"
)

// Bus is a channel-based pub-sub event bus for scheduler observers.
// Supports topic-scoped subscriptions and SubscribeAll for cross-topic
// consumption. Publishing never blocks: slow subscribers drop events.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]chan Event // topic -> subscription id -> channel
	all    map[int]chan Event            // subscriptions to every topic
	closed bool
}

// Subscription is a handle to an active subscription. Events arrive on C;
// Close detaches the subscription and closes C.
type Subscription struct {
	C     <-chan Event
	close func()
	once  sync.Once
}

// Close cancels the subscription. Safe to call multiple times.
func (s *Subscription) Close() {
	s.once.Do(s.close)
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[string]map[int]chan Event),
		all:  make(map[int]chan Event),
	}
}

// Subscribe creates a subscription to a specific topic. bufSize determines
// the channel buffer (defaults to 256 if <= 0).
func (b *Bus) Subscribe(topic string, bufSize int) *Subscription {
	if bufSize <= 0 {
		bufSize = 256
	}
	ch := make(chan Event, bufSize)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return &Subscription{C: ch, close: func() {}}
	}

	id := b.nextID
	b.nextID++
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]chan Event)
	}
	b.subs[topic][id] = ch

	return &Subscription{
		C: ch,
		close: func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if b.closed {
				return
			}
			delete(b.subs[topic], id)
			close(ch)
		},
	}
}

// SubscribeAll creates a subscription receiving events from every topic.
func (b *Bus) SubscribeAll(bufSize int) *Subscription {
	if bufSize <= 0 {
		bufSize = 256
	}
	ch := make(chan Event, bufSize)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return &Subscription{C: ch, close: func() {}}
	}

	id := b.nextID
	b.nextID++
	b.all[id] = ch

	return &Subscription{
		C: ch,
		close: func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if b.closed {
				return
			}
			delete(b.all, id)
			close(ch)
		},
	}
}

// Publish sends an event to every subscriber of the topic and to every
// SubscribeAll channel. Full channels drop the event for that subscriber.
func (b *Bus) Publish(topic string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, ch := range b.subs[topic] {
		select {
		case ch <- event:
		default:
		}
	}
	for _, ch := range b.all {
		select {
		case ch <- event:
		default:
		}
	}
}

// Close shuts the bus down and closes all subscriber channels. Idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, channels := range b.subs {
		for _, ch := range channels {
			close(ch)
		}
	}
	for _, ch := range b.all {
		close(ch)
	}
}
