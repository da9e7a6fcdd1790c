// Package broadcast fans committed events out to subscribed observers.
package broadcast

import (
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/rl1809/jersey-pos/internal/core/domain"
	"github.com/rl1809/jersey-pos/internal/logger"
)

var ErrSlowSubscriber = errors.New("subscriber too slow, disconnected")

// Batch is the set of events produced by one committed change. Observers get
// it whole or not at all.
type Batch []domain.Event

type Subscription struct {
	ID     string
	topics map[domain.Topic]struct{}
	hub    *Hub

	mu     sync.Mutex
	ch     chan Batch
	closed bool
	err    error
}

// C yields batches until the subscription is closed.
func (s *Subscription) C() <-chan Batch {
	return s.ch
}

// Err is ErrSlowSubscriber after an eviction, nil otherwise.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) Close() {
	s.hub.remove(s.ID)
	s.shut(nil)
}

func (s *Subscription) wants(t domain.Topic) bool {
	if len(s.topics) == 0 {
		return true
	}
	_, ok := s.topics[t]
	return ok
}

// deliver never blocks: a full buffer evicts the subscriber.
func (s *Subscription) deliver(b Batch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- b:
		return true
	default:
		return false
	}
}

func (s *Subscription) shut(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	close(s.ch)
}

// Hub is an in-process topic bus. Publish is called from inside ledger and pool
// critical sections, so per-entity order on each subscription follows commit order.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	buffer int

	published atomic.Uint64
	evicted   atomic.Uint64
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 256
	}
	return &Hub{subs: make(map[string]*Subscription), buffer: buffer}
}

// Subscribe registers an observer for the given topics, or all topics when none are given.
func (h *Hub) Subscribe(topics ...domain.Topic) *Subscription {
	sub := &Subscription{
		ID:     uuid.NewString(),
		topics: make(map[domain.Topic]struct{}, len(topics)),
		hub:    h,
		ch:     make(chan Batch, h.buffer),
	}
	for _, t := range topics {
		sub.topics[t] = struct{}{}
	}

	h.mu.Lock()
	h.subs[sub.ID] = sub
	h.mu.Unlock()
	return sub
}

func (h *Hub) Publish(events ...domain.Event) {
	if len(events) == 0 {
		return
	}
	events = slices.Clone(events)
	h.published.Add(uint64(len(events)))

	var slow []*Subscription
	h.mu.RLock()
	for _, sub := range h.subs {
		b := filter(events, sub)
		if len(b) == 0 {
			continue
		}
		if !sub.deliver(b) {
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		h.evicted.Add(1)
		h.remove(sub.ID)
		sub.shut(ErrSlowSubscriber)
		logger.Warnw("broadcast_subscriber_evicted", "subscription_id", sub.ID, "buffer", h.buffer)
	}
}

func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

type Stats struct {
	Subscribers int    `json:"subscribers"`
	Published   uint64 `json:"published"`
	Evicted     uint64 `json:"evicted"`
}

func (h *Hub) Stats() Stats {
	return Stats{Subscribers: h.SubscriberCount(), Published: h.published.Load(), Evicted: h.evicted.Load()}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[string]*Subscription)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.shut(nil)
	}
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

func filter(events []domain.Event, sub *Subscription) Batch {
	if len(sub.topics) == 0 {
		return Batch(events)
	}
	var out Batch
	for _, e := range events {
		if sub.wants(e.Kind.Topic()) {
			out = append(out, e)
		}
	}
	return out
}
