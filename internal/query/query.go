// Package query answers date and date-range questions over the event list
// and applies the active filter set.
package query

import (
	"cmp"
	"slices"
	"strings"
	"sync"

	"github.com/beekhof/tripcal/internal/dates"
	"github.com/beekhof/tripcal/internal/event"
)

// All disables the type or trip filter.
const All = "all"

// Source provides the events to query.
type Source interface {
	Events() []event.CalendarEvent
}

// Filter is one complete filter set. The zero Search matches everything.
type Filter struct {
	Type   string `json:"type"`
	TripID string `json:"tripId"`
	Search string `json:"search"`
}

// DefaultFilter returns the filter that lets every event through.
func DefaultFilter() Filter {
	return Filter{Type: All, TripID: All}
}

// FilterPatch is a partial filter update. Nil fields are left untouched.
type FilterPatch struct {
	Type   *string `json:"type,omitempty"`
	TripID *string `json:"tripId,omitempty"`
	Search *string `json:"search,omitempty"`
}

// With returns f with p merged in. An empty type or trip means All.
func (f Filter) With(p FilterPatch) Filter {
	if p.Type != nil {
		f.Type = orAll(*p.Type)
	}
	if p.TripID != nil {
		f.TripID = orAll(*p.TripID)
	}
	if p.Search != nil {
		f.Search = strings.TrimSpace(*p.Search)
	}
	return f
}

func orAll(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return All
	}
	return s
}

// Match reports whether e passes every criterion of f.
func (f Filter) Match(e event.CalendarEvent) bool {
	if f.Type != "" && f.Type != All && string(e.Type) != f.Type {
		return false
	}
	if f.TripID != "" && f.TripID != All && e.TripID != f.TripID {
		return false
	}
	if f.Search == "" {
		return true
	}
	term := strings.ToLower(f.Search)
	return strings.Contains(strings.ToLower(e.Title), term) ||
		strings.Contains(strings.ToLower(e.Description), term) ||
		strings.Contains(strings.ToLower(e.Location), term)
}

// Apply returns the events matching f in their original order.
func (f Filter) Apply(events []event.CalendarEvent) []event.CalendarEvent {
	out := make([]event.CalendarEvent, 0, len(events))
	for _, e := range events {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// OnDate returns the events whose inclusive [start, last day] span contains d.
// Events without a valid start date never match.
func OnDate(events []event.CalendarEvent, d dates.Date) []event.CalendarEvent {
	if d.IsZero() {
		return nil
	}
	var out []event.CalendarEvent
	for _, e := range events {
		if e.StartDate.IsZero() {
			continue
		}
		if !d.Before(e.StartDate) && !d.After(e.LastDay()) {
			out = append(out, e)
		}
	}
	return out
}

// InRange returns the events overlapping the inclusive range [start, end].
// An event overlaps when its first or last day falls inside the range, or
// when it spans the whole range.
func InRange(events []event.CalendarEvent, start, end dates.Date) []event.CalendarEvent {
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return nil
	}
	within := func(d dates.Date) bool {
		return !d.Before(start) && !d.After(end)
	}

	var out []event.CalendarEvent
	for _, e := range events {
		if e.StartDate.IsZero() {
			continue
		}
		first, last := e.StartDate, e.LastDay()
		if within(first) || within(last) || (!first.After(start) && !last.Before(end)) {
			out = append(out, e)
		}
	}
	return out
}

// SortChronological orders events by start date, then all-day events before
// timed ones, then by start time. Ties keep their relative order.
func SortChronological(events []event.CalendarEvent) {
	slices.SortStableFunc(events, func(a, b event.CalendarEvent) int {
		if c := a.StartDate.Compare(b.StartDate); c != 0 {
			return c
		}
		if a.AllDay != b.AllDay {
			if a.AllDay {
				return -1
			}
			return 1
		}
		return cmp.Compare(clockKey(a.StartTime), clockKey(b.StartTime))
	})
}

// clockKey returns minutes since midnight, or -1 when the clock is unset.
func clockKey(clock string) int {
	m, err := dates.ParseClock(clock)
	if err != nil {
		return -1
	}
	return m
}

// Engine runs queries against a Source using one shared filter set.
// Replacing the filter is atomic: readers see either the old set or the new
// one, never a mix.
type Engine struct {
	src Source

	mu     sync.RWMutex
	filter Filter
}

// NewEngine creates an Engine with the default filter.
func NewEngine(src Source) *Engine {
	return &Engine{src: src, filter: DefaultFilter()}
}

// Filter returns the active filter set.
func (e *Engine) Filter() Filter {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.filter
}

// SetFilters merges p into the active filter set and returns the new set.
func (e *Engine) SetFilters(p FilterPatch) Filter {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.filter = e.filter.With(p)
	return e.filter
}

// ResetFilters restores the default filter set.
func (e *Engine) ResetFilters() {
	e.mu.Lock()
	e.filter = DefaultFilter()
	e.mu.Unlock()
}

// ApplyFilters returns the events passing the active filter, sorted.
func (e *Engine) ApplyFilters(events []event.CalendarEvent) []event.CalendarEvent {
	out := e.Filter().Apply(events)
	SortChronological(out)
	return out
}

// All returns every event passing the active filter, sorted.
func (e *Engine) All() []event.CalendarEvent {
	return e.ApplyFilters(e.src.Events())
}

// EventsForDate returns the filtered events occurring on d, sorted.
func (e *Engine) EventsForDate(d dates.Date) []event.CalendarEvent {
	return e.ApplyFilters(OnDate(e.src.Events(), d))
}

// EventsForDateRange returns the filtered events overlapping [start, end], sorted.
func (e *Engine) EventsForDateRange(start, end dates.Date) []event.CalendarEvent {
	return e.ApplyFilters(InRange(e.src.Events(), start, end))
}
