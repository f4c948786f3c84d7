// Package store holds the canonical list of calendar events for one user and
// mirrors every change into a key-value backend.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/beekhof/tripcal/internal/dates"
	"github.com/beekhof/tripcal/internal/event"
	"github.com/beekhof/tripcal/internal/kv"
	"github.com/beekhof/tripcal/internal/logger"
)

const (
	keyPrefix = "tripcal_events_"
	guestUser = "guest"
)

// StorageKey returns the kv key holding a user's events.
func StorageKey(userID string) string {
	if userID == "" {
		userID = guestUser
	}
	return keyPrefix + userID
}

// Store is the event list of a single user. Every mutating call persists the
// whole list. When persisting fails the in-memory list keeps the change and
// the error wraps event.ErrPersist.
//
// Store is safe for concurrent use within one process. It does not
// coordinate with other processes writing the same key.
type Store struct {
	mu     sync.RWMutex
	kv     kv.Store
	key    string
	events []event.CalendarEvent
	log    *logger.Logger
	now    func() time.Time
}

// New creates an empty Store for userID. Call Load to read persisted events.
func New(backend kv.Store, userID string, log *logger.Logger) *Store {
	return &Store{
		kv:  backend,
		key: StorageKey(userID),
		log: logger.OrNop(log).Named("store"),
		now: time.Now,
	}
}

// Key returns the kv key this store writes to.
func (s *Store) Key() string {
	return s.key
}

// Load replaces the in-memory list with the persisted one. A missing key or
// an undecodable value yields an empty list.
func (s *Store) Load(ctx context.Context) error {
	data, err := s.kv.Get(ctx, s.key)
	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		return fmt.Errorf("failed to load events: %w", err)
	}

	var events []event.CalendarEvent
	if len(data) > 0 {
		if err := json.Unmarshal(data, &events); err != nil {
			s.log.Warn("ignoring unreadable event list", "key", s.key, "err", err)
			events = nil
		}
	}

	s.mu.Lock()
	s.events = events
	s.mu.Unlock()

	s.log.Debug("events loaded", "key", s.key, "count", len(events))
	return nil
}

// Events returns a copy of all events in insertion order.
func (s *Store) Events() []event.CalendarEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]event.CalendarEvent(nil), s.events...)
}

// Get returns the event with id.
func (s *Store) Get(id string) (event.CalendarEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.events[i], true
	}
	return event.CalendarEvent{}, false
}

// Has reports whether an event with id exists.
func (s *Store) Has(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// HasSource reports whether any event was derived from the given record.
func (s *Store) HasSource(kind event.SourceKind, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.events {
		if matchesSource(e, kind, id) {
			return true
		}
	}
	return false
}

// matchesSource also accepts events persisted before Source existed, which
// only carry the back-reference fields.
func matchesSource(e event.CalendarEvent, kind event.SourceKind, id string) bool {
	if !e.Source.IsZero() {
		return e.Source.Kind == kind && e.Source.ID == id
	}
	switch kind {
	case event.SourceTrip:
		return e.Type == event.TypeTrip && e.TripID == id
	case event.SourceActivity:
		return e.ActivityID == id
	case event.SourceTransport:
		return e.TransportID == id
	}
	return false
}

// AddEvent validates d, assigns an id and timestamps, appends and persists.
func (s *Store) AddEvent(ctx context.Context, d event.Draft) (event.CalendarEvent, error) {
	if err := d.Validate(); err != nil {
		return event.CalendarEvent{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := event.NewManual(d, s.now())
	for s.indexOf(e.ID) >= 0 {
		e.ID = event.NewManualID(e.CreatedAt)
	}
	s.events = append(s.events, e)
	s.log.Info("event added", "id", e.ID, "title", e.Title)

	return e, s.persistLocked(ctx)
}

// UpdateEvent merges patch into the event with id. A missing id is a no-op.
// A patch that would leave the event invalid is rejected with
// event.ErrValidation and changes nothing.
func (s *Store) UpdateEvent(ctx context.Context, id string, patch event.Patch) error {
	return s.update(ctx, id, patch, true)
}

func (s *Store) update(ctx context.Context, id string, patch event.Patch, checkSpan bool) error {
	if err := patch.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil
	}
	updated := patch.Apply(s.events[i])
	if checkSpan {
		if err := event.ValidateEvent(updated); err != nil {
			return err
		}
	}
	updated.UpdatedAt = s.now()
	s.events[i] = updated

	return s.persistLocked(ctx)
}

// DeleteEvent removes the event with id. A missing id is a no-op.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil
	}
	s.events = append(s.events[:i:i], s.events[i+1:]...)
	s.log.Info("event deleted", "id", id)

	return s.persistLocked(ctx)
}

// MoveEvent rewrites the start date and, when given, the start time.
// The end date and end time are left as they are, so moving a multi-day
// event past its end date is allowed and leaves the end behind the start.
func (s *Store) MoveEvent(ctx context.Context, id string, newStart dates.Date, newStartTime *string) error {
	return s.update(ctx, id, event.Patch{StartDate: &newStart, StartTime: newStartTime}, false)
}

// ToggleEventComplete flips Completed. A missing id is a no-op.
func (s *Store) ToggleEventComplete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil
	}
	s.events[i].Completed = !s.events[i].Completed
	s.events[i].UpdatedAt = s.now()

	return s.persistLocked(ctx)
}

// InsertBatch appends every event whose id is not yet present and persists
// once. It returns how many were inserted.
func (s *Store) InsertBatch(ctx context.Context, events []event.CalendarEvent) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(s.events)+len(events))
	for _, e := range s.events {
		seen[e.ID] = true
	}

	inserted := 0
	for _, e := range events {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		s.events = append(s.events, e)
		inserted++
	}
	if inserted == 0 {
		return 0, nil
	}

	return inserted, s.persistLocked(ctx)
}

func (s *Store) indexOf(id string) int {
	for i := range s.events {
		if s.events[i].ID == id {
			return i
		}
	}
	return -1
}

// persistLocked writes the full list. Callers hold s.mu.
func (s *Store) persistLocked(ctx context.Context) error {
	events := s.events
	if events == nil {
		events = []event.CalendarEvent{}
	}
	data, err := json.Marshal(events)
	if err != nil {
		s.log.Error("failed to encode events", "key", s.key, "err", err)
		return fmt.Errorf("%w: %w", event.ErrPersist, err)
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		s.log.Error("failed to persist events", "key", s.key, "err", err)
		return fmt.Errorf("%w: %w", event.ErrPersist, err)
	}
	return nil
}
