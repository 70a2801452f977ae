// Package realtime delivers row change notifications to subscribers.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

const (
	TableTasks    = "tasks"
	TableProjects = "projects"
	TableMembers  = "members"
)

// Event describes one committed change. Old is empty for inserts and New for
// hard deletes. CompanyID and OwnerID carry the tenant of the row so that
// consumers can filter without decoding it. AdminOnly marks rows that only
// system admins may see.
type Event struct {
	Table     string          `json:"table"`
	Type      EventType       `json:"type"`
	ID        uuid.UUID       `json:"id"`
	Old       json.RawMessage `json:"old,omitempty"`
	New       json.RawMessage `json:"new,omitempty"`
	CompanyID *uuid.UUID      `json:"company_id,omitempty"`
	OwnerID   uuid.UUID       `json:"owner_id"`
	AdminOnly bool            `json:"admin_only,omitempty"`
	At        time.Time       `json:"at"`
}

// NewEvent builds an event, encoding the row before and after the change.
// Nil rows are omitted.
func NewEvent(table string, typ EventType, id uuid.UUID, companyID *uuid.UUID, ownerID uuid.UUID, before, after interface{}) Event {
	return Event{
		Table:     table,
		Type:      typ,
		ID:        id,
		Old:       encode(before),
		New:       encode(after),
		CompanyID: companyID,
		OwnerID:   ownerID,
		At:        time.Now().UTC(),
	}
}

func encode(v interface{}) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

// Handler receives events. It runs on the publisher's goroutine and must not block.
type Handler func(Event)

// Relay forwards locally published events to other instances.
type Relay interface {
	Publish(ctx context.Context, ev Event) error
}

// Hub fans events out to in-process subscribers keyed by table.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]Handler
	nextID uint64
	relay  Relay
	onErr  func(error)
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[uint64]Handler)}
}

// SetRelay attaches a cross-instance relay. Relay failures are passed to onErr
// and never fail the publish.
func (h *Hub) SetRelay(r Relay, onErr func(error)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.relay = r
	h.onErr = onErr
}

// Subscription is a live registration. Call Unsubscribe when the consumer goes away.
type Subscription struct {
	hub   *Hub
	table string
	id    uint64
	once  sync.Once
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		defer s.hub.mu.Unlock()
		if subs, ok := s.hub.subs[s.table]; ok {
			delete(subs, s.id)
			if len(subs) == 0 {
				delete(s.hub.subs, s.table)
			}
		}
	})
}

func (h *Hub) Subscribe(table string, fn Handler) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	if h.subs[table] == nil {
		h.subs[table] = make(map[uint64]Handler)
	}
	h.subs[table][h.nextID] = fn
	return &Subscription{hub: h, table: table, id: h.nextID}
}

func (h *Hub) SubscriberCount(table string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[table])
}

// Publish delivers ev locally and hands it to the relay, if any.
func (h *Hub) Publish(ctx context.Context, ev Event) {
	h.Deliver(ev)

	h.mu.RLock()
	relay, onErr := h.relay, h.onErr
	h.mu.RUnlock()
	if relay == nil {
		return
	}
	if err := relay.Publish(ctx, ev); err != nil && onErr != nil {
		onErr(err)
	}
}

// Deliver hands ev to local subscribers only.
func (h *Hub) Deliver(ev Event) {
	h.mu.RLock()
	handlers := make([]Handler, 0, len(h.subs[ev.Table]))
	for _, fn := range h.subs[ev.Table] {
		handlers = append(handlers, fn)
	}
	h.mu.RUnlock()

	for _, fn := range handlers {
		fn(ev)
	}
}
