// Package events provides a typed in-process pub/sub channel for workflow
// state changes, replacing ambient cross-module signaling with an explicit
// interface.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types published by the workflow engine.
const (
	EncounterCreated      = "encounter.created"
	ConsultationFinalized = "consultation.finalized"
	ReferralStatusChanged = "referral.status_changed"
)

// Event is one workflow state change.
type Event struct {
	ID        string
	Type      string
	Timestamp time.Time
	Data      any
}

// NewEvent creates an event with a generated id and timestamp.
func NewEvent(eventType string, data any) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// Handler receives published events. Handlers run synchronously on the
// publishing goroutine and must not block.
type Handler func(Event)

// Bus dispatches events to subscribers by event type.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]Handler
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string][]Handler)}
}

// Subscribe registers a handler for an event type. An empty type subscribes
// to every event.
func (b *Bus) Subscribe(eventType string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[eventType] = append(b.subs[eventType], h)
}

// Publish delivers the event to all matching subscribers.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subs[evt.Type]...)
	handlers = append(handlers, b.subs[""]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(evt)
	}
}
