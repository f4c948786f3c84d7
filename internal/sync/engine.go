package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/beekhof/tripcal/internal/dates"
	"github.com/beekhof/tripcal/internal/event"
	"github.com/beekhof/tripcal/internal/ics"
	"github.com/beekhof/tripcal/internal/logger"
)

const (
	tripDepartureStart = "08:00"
	tripDepartureEnd   = "10:00"
	tripReturnStart    = "18:00"
	tripReturnEnd      = "20:00"

	defaultActivityMinutes = 60
)

// EventStore is the part of the event store the engine needs.
type EventStore interface {
	HasSource(kind event.SourceKind, id string) bool
	InsertBatch(ctx context.Context, events []event.CalendarEvent) (int, error)
}

// Engine derives events from source records. A record that already produced
// an event is skipped, so running a sync twice creates nothing the second
// time. Existing events are never updated.
//
// The existence check reads the store before the batch insert. Two engines
// racing on the same store may both stage the same record; InsertBatch drops
// the second copy by id.
type Engine struct {
	store EventStore
	loc   *time.Location
	log   *logger.Logger
	now   func() time.Time
}

// NewEngine creates an Engine writing to store. loc is used when importing
// iCalendar documents and defaults to time.Local.
func NewEngine(store EventStore, loc *time.Location, log *logger.Logger) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{
		store: store,
		loc:   loc,
		log:   logger.OrNop(log).Named("sync"),
		now:   time.Now,
	}
}

// batch stages derived events, tracking the sources already seen in this run.
type batch struct {
	kind   event.SourceKind
	store  EventStore
	seen   map[string]bool
	staged []event.CalendarEvent
	result Result
}

func newBatch(kind event.SourceKind, store EventStore) *batch {
	return &batch{kind: kind, store: store, seen: make(map[string]bool)}
}

// exists reports whether sourceID already produced an event, either in the
// store or earlier in this batch.
func (b *batch) exists(sourceID string) bool {
	return b.seen[sourceID] || b.store.HasSource(b.kind, sourceID)
}

func (b *batch) stage(sourceID string, events ...event.CalendarEvent) {
	b.seen[sourceID] = true
	b.staged = append(b.staged, events...)
}

func (e *Engine) commit(ctx context.Context, b *batch) (Result, error) {
	res := b.result
	if len(b.staged) == 0 {
		e.log.Info("sync complete", "source", b.kind, "created", 0, "skipped", res.Skipped, "failed", res.Failed)
		return res, nil
	}

	n, err := b.store.InsertBatch(ctx, b.staged)
	res.Created = n
	if err != nil {
		return res, fmt.Errorf("failed to store %s events: %w", b.kind, err)
	}

	e.log.Info("sync complete", "source", b.kind, "created", res.Created, "skipped", res.Skipped, "failed", res.Failed)
	return res, nil
}

// SyncFromTrips creates a departure and a return event for every trip that
// has no trip event yet. A trip with only one of the two events present is
// left as it is.
func (e *Engine) SyncFromTrips(ctx context.Context, trips []Trip) (Result, error) {
	b := newBatch(event.SourceTrip, e.store)
	now := e.now()

	for _, t := range trips {
		if b.exists(t.ID) {
			b.result.Skipped++
			continue
		}
		derived, err := tripEvents(t, now)
		if err != nil {
			e.log.Warn("skipping trip", "trip", t.ID, "err", err)
			b.result.Failed++
			continue
		}
		b.stage(t.ID, derived...)
	}

	return e.commit(ctx, b)
}

func tripEvents(t Trip, now time.Time) ([]event.CalendarEvent, error) {
	if strings.TrimSpace(t.ID) == "" {
		return nil, errors.New("missing trip id")
	}
	if t.StartDate.IsZero() || t.EndDate.IsZero() {
		return nil, errors.New("missing trip dates")
	}
	if t.EndDate.Before(t.StartDate) {
		return nil, fmt.Errorf("end date %s is before start date %s", t.EndDate, t.StartDate)
	}

	name := strings.TrimSpace(t.Title)
	if name == "" {
		name = t.Destination
	}
	var description string
	if t.Destination != "" {
		description = "Viagem para " + t.Destination
	}

	base := event.CalendarEvent{
		Description: description,
		Type:        event.TypeTrip,
		TripID:      t.ID,
		Source:      event.Source{Kind: event.SourceTrip, ID: t.ID},
		Location:    t.Destination,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	departure := base
	departure.ID = event.TripStartID(t.ID)
	departure.Title = "Partida: " + name
	departure.StartDate = t.StartDate
	departure.StartTime = tripDepartureStart
	departure.EndTime = tripDepartureEnd

	ret := base
	ret.ID = event.TripEndID(t.ID)
	ret.Title = "Retorno: " + name
	ret.StartDate = t.EndDate
	ret.StartTime = tripReturnStart
	ret.EndTime = tripReturnEnd

	return []event.CalendarEvent{departure, ret}, nil
}

// SyncFromActivities creates one event per activity not yet referenced by
// any event. Activities without a time become all-day events.
func (e *Engine) SyncFromActivities(ctx context.Context, activities []ItineraryActivity, tripID string) (Result, error) {
	b := newBatch(event.SourceActivity, e.store)
	now := e.now()

	for _, a := range activities {
		if b.exists(a.ID) {
			b.result.Skipped++
			continue
		}
		ev, err := activityEvent(a, tripID, now)
		if err != nil {
			e.log.Warn("skipping activity", "activity", a.ID, "trip", tripID, "err", err)
			b.result.Failed++
			continue
		}
		b.stage(a.ID, ev)
	}

	return e.commit(ctx, b)
}

func activityEvent(a ItineraryActivity, tripID string, now time.Time) (event.CalendarEvent, error) {
	if strings.TrimSpace(a.ID) == "" {
		return event.CalendarEvent{}, errors.New("missing activity id")
	}
	if a.Date.IsZero() {
		return event.CalendarEvent{}, errors.New("missing activity date")
	}

	ev := event.CalendarEvent{
		ID:             event.ActivityEventID(a.ID),
		Title:          a.Title,
		Description:    a.Notes,
		StartDate:      a.Date,
		Type:           activityType(a.Type),
		TripID:         tripID,
		ActivityID:     a.ID,
		Source:         event.Source{Kind: event.SourceActivity, ID: a.ID},
		Location:       a.Location,
		LocationDetail: a.LocationDetail,
		Completed:      a.Completed,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if strings.TrimSpace(a.Time) == "" {
		ev.AllDay = true
		return ev, nil
	}

	duration := defaultActivityMinutes
	if a.Duration != nil {
		if *a.Duration < 0 {
			return event.CalendarEvent{}, fmt.Errorf("negative duration %d", *a.Duration)
		}
		duration = *a.Duration
	}
	start, err := dates.ParseClock(a.Time)
	if err != nil {
		return event.CalendarEvent{}, err
	}
	ev.StartTime = dates.FormatClock(start)
	ev.EndTime, _ = dates.AddMinutes(ev.StartTime, duration)
	return ev, nil
}

// SyncFromTransports creates one event per transport leg not yet referenced
// by any event. The end time is the arrival time on the departure day, even
// when the leg arrives on a later day.
func (e *Engine) SyncFromTransports(ctx context.Context, transports []Transport, tripID string) (Result, error) {
	b := newBatch(event.SourceTransport, e.store)
	now := e.now()

	for _, t := range transports {
		if b.exists(t.ID) {
			b.result.Skipped++
			continue
		}
		ev, err := transportEvent(t, tripID, now)
		if err != nil {
			e.log.Warn("skipping transport", "transport", t.ID, "trip", tripID, "err", err)
			b.result.Failed++
			continue
		}
		b.stage(t.ID, ev)
	}

	return e.commit(ctx, b)
}

func transportEvent(t Transport, tripID string, now time.Time) (event.CalendarEvent, error) {
	if strings.TrimSpace(t.ID) == "" {
		return event.CalendarEvent{}, errors.New("missing transport id")
	}
	if t.DepartureDate.IsZero() {
		return event.CalendarEvent{}, errors.New("missing departure date")
	}

	kind := transportKindOf(t.Type)
	ev := event.CalendarEvent{
		ID:             event.TransportEventID(t.ID),
		Title:          strings.TrimSpace(kind.label + ": " + strings.TrimSpace(t.Operator+" "+t.Reference)),
		Description:    t.Route,
		StartDate:      t.DepartureDate,
		Type:           kind.typ,
		TripID:         tripID,
		TransportID:    t.ID,
		Source:         event.Source{Kind: event.SourceTransport, ID: t.ID},
		Location:       t.DepartureLocation,
		LocationDetail: routeDetail(t),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if strings.TrimSpace(t.DepartureTime) == "" {
		ev.AllDay = true
		return ev, nil
	}
	departure, err := dates.ParseClock(t.DepartureTime)
	if err != nil {
		return event.CalendarEvent{}, fmt.Errorf("departure: %w", err)
	}
	ev.StartTime = dates.FormatClock(departure)

	if strings.TrimSpace(t.ArrivalTime) != "" {
		arrival, err := dates.ParseClock(t.ArrivalTime)
		if err != nil {
			return event.CalendarEvent{}, fmt.Errorf("arrival: %w", err)
		}
		ev.EndTime = dates.FormatClock(arrival)
	}
	return ev, nil
}

// routeDetail renders "<from> → <to>", preferring cities over locations.
func routeDetail(t Transport) string {
	from := firstNonEmpty(t.DepartureCity, t.DepartureLocation)
	to := firstNonEmpty(t.ArrivalCity, t.ArrivalLocation)
	if from == "" && to == "" {
		return ""
	}
	return from + " → " + to
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// ImportICS adds the VEVENTs of an external iCalendar document. A VEVENT
// whose UID was imported before is skipped.
func (e *Engine) ImportICS(ctx context.Context, r io.Reader) (Result, error) {
	parsed, err := ics.Parse(r, e.loc, e.log)
	if err != nil {
		return Result{}, err
	}

	b := newBatch(event.SourceICS, e.store)
	for _, ev := range parsed {
		if b.exists(ev.Source.ID) {
			b.result.Skipped++
			continue
		}
		b.stage(ev.Source.ID, ev)
	}

	return e.commit(ctx, b)
}
