// Package events fans committed balance changes out to in-process
// subscribers and external sinks.
package events

import (
	"sync"
	"time"

	"github.com/baharkarakas/coinmatch/internal/metrics"
	"github.com/baharkarakas/coinmatch/internal/models"
)

type BalanceChange struct {
	UserID   string                     `json:"user_id"`
	Balance  int64                      `json:"balance"`
	Delta    int64                      `json:"delta"`
	Category models.TransactionCategory `json:"category"`
	At       time.Time                  `json:"at"`
}

// Sink receives every change published on a Hub. Publish must not block.
type Sink interface {
	Publish(c BalanceChange)
}

type Subscription struct {
	C <-chan BalanceChange

	ch   chan BalanceChange
	hub  *Hub
	id   uint64
	once sync.Once
}

// Close unsubscribes and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.remove(s.id) })
}

// Hub is an in-process pub/sub of balance changes. Slow subscribers lose
// events instead of stalling the publisher.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]*Subscription
	sinks  []Sink
}

func NewHub() *Hub {
	return &Hub{subs: map[uint64]*Subscription{}}
}

// Attach forwards every published change to sink as well.
func (h *Hub) Attach(sink Sink) {
	h.mu.Lock()
	h.sinks = append(h.sinks, sink)
	h.mu.Unlock()
}

func (h *Hub) Subscribe(buffer int) *Subscription {
	if buffer < 1 {
		buffer = 16
	}
	ch := make(chan BalanceChange, buffer)

	h.mu.Lock()
	h.nextID++
	s := &Subscription{C: ch, ch: ch, hub: h, id: h.nextID}
	h.subs[s.id] = s
	h.mu.Unlock()
	return s
}

func (h *Hub) Publish(c BalanceChange) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		select {
		case s.ch <- c:
		default:
			metrics.BalanceEventsDropped.WithLabelValues("subscriber").Inc()
		}
	}
	for _, sink := range h.sinks {
		sink.Publish(c)
	}
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(s.ch)
	}
}
