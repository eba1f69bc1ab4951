package events

import (
	"sync"
	"time"
)

// Bus multiplexes structured events to any number of subscribers. Publish is
// called concurrently by every host worker; Bus itself only needs to guard
// its subscriber set, since each Subscriber owns its own queue and lock.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	scrubber    *CredentialScrubber
}

// NewBus creates an empty event bus. Register default sinks (main + per-host
// file sinks) before the run starts, per the event bus's ownership contract.
func NewBus(scrubber *CredentialScrubber) *Bus {
	return &Bus{
		subscribers: make(map[string]*Subscriber),
		scrubber:    scrubber,
	}
}

// Subscribe registers a subscriber. Safe to call at any time, including
// while a run is in progress (UI subscribers may attach/detach freely).
func (b *Bus) Subscribe(s *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[s.name] = s
}

// Unsubscribe deregisters and closes a subscriber by name.
func (b *Bus) Unsubscribe(name string) {
	b.mu.Lock()
	s, ok := b.subscribers[name]
	if ok {
		delete(b.subscribers, name)
	}
	b.mu.Unlock()
	if ok {
		s.Close()
	}
}

// Publish redacts and fans ev out to every registered subscriber. It never
// blocks on a slow subscriber beyond that subscriber's own bounded wait.
func (b *Bus) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	ev = b.redact(ev)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subscribers {
		s.offer(ev)
	}
}

// CloseAll deregisters and closes every subscriber, draining their queues.
func (b *Bus) CloseAll() {
	b.mu.Lock()
	subs := make([]*Subscriber, 0, len(b.subscribers))
	for _, s := range b.subscribers {
		subs = append(subs, s)
	}
	b.subscribers = make(map[string]*Subscriber)
	b.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
}

// Filters usable when constructing file-sink subscribers.

// AllEvents accepts every event; used by the main log sink.
func AllEvents(Event) bool { return true }

// ForHost accepts only events carrying the given host name; used by
// per-host log sinks.
func ForHost(host string) func(Event) bool {
	return func(ev Event) bool { return ev.Host == host }
}
