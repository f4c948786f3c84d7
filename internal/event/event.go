// Package event defines the calendar event model shared by the store, the
// sync engine, the query engine and the exporters.
package event

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/beekhof/tripcal/internal/dates"
)

// Type classifies an event. Exporters emit it verbatim as a category.
type Type string

const (
	TypeTrip          Type = "trip"
	TypeFlight        Type = "flight"
	TypeTrain         Type = "train"
	TypeBus           Type = "bus"
	TypeFerry         Type = "ferry"
	TypeTransfer      Type = "transfer"
	TypeAccommodation Type = "accommodation"
	TypeMeal          Type = "meal"
	TypeRestaurant    Type = "restaurant"
	TypeSightseeing   Type = "sightseeing"
	TypeCulture       Type = "culture"
	TypeAttraction    Type = "attraction"
	TypeNature        Type = "nature"
	TypeShopping      Type = "shopping"
	TypeNightlife     Type = "nightlife"
	TypeActivity      Type = "activity"
	TypeTask          Type = "task"
	TypeReminder      Type = "reminder"
	TypeOther         Type = "other"
)

var validTypes = map[Type]bool{
	TypeTrip: true, TypeFlight: true, TypeTrain: true, TypeBus: true,
	TypeFerry: true, TypeTransfer: true, TypeAccommodation: true, TypeMeal: true,
	TypeRestaurant: true, TypeSightseeing: true, TypeCulture: true, TypeAttraction: true,
	TypeNature: true, TypeShopping: true, TypeNightlife: true, TypeActivity: true,
	TypeTask: true, TypeReminder: true, TypeOther: true,
}

// Valid reports whether t is one of the known event types.
func (t Type) Valid() bool {
	return validTypes[t]
}

// SourceKind names the kind of external record an event was derived from.
type SourceKind string

const (
	SourceManual    SourceKind = ""
	SourceTrip      SourceKind = "trip"
	SourceActivity  SourceKind = "activity"
	SourceTransport SourceKind = "transport"
	SourceICS       SourceKind = "ics"
)

// Source ties a derived event back to the record that produced it.
// Manual events carry the zero Source.
type Source struct {
	Kind SourceKind `json:"kind,omitempty"`
	ID   string     `json:"id,omitempty"`
}

// IsZero reports whether s is the manual (empty) source.
func (s Source) IsZero() bool {
	return s.Kind == SourceManual && s.ID == ""
}

// CalendarEvent is the single persisted entity.
type CalendarEvent struct {
	ID             string      `json:"id"`
	Title          string      `json:"title"`
	Description    string      `json:"description,omitempty"`
	StartDate      dates.Date  `json:"startDate"`
	EndDate        *dates.Date `json:"endDate,omitempty"`
	StartTime      string      `json:"startTime,omitempty"`
	EndTime        string      `json:"endTime,omitempty"`
	AllDay         bool        `json:"allDay"`
	Type           Type        `json:"type"`
	TripID         string      `json:"tripId,omitempty"`
	ActivityID     string      `json:"activityId,omitempty"`
	TransportID    string      `json:"transportId,omitempty"`
	Source         Source      `json:"source,omitzero"`
	Location       string      `json:"location,omitempty"`
	LocationDetail string      `json:"locationDetail,omitempty"`
	Completed      bool        `json:"completed"`
	Reminder       int         `json:"reminder,omitempty"`
	Color          string      `json:"color,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// LastDay returns the inclusive last calendar day of the event.
func (e CalendarEvent) LastDay() dates.Date {
	if e.EndDate != nil && !e.EndDate.IsZero() {
		return *e.EndDate
	}
	return e.StartDate
}

// FullLocation joins Location and LocationDetail with sep, skipping empty parts.
func (e CalendarEvent) FullLocation(sep string) string {
	switch {
	case e.LocationDetail == "":
		return e.Location
	case e.Location == "":
		return e.LocationDetail
	default:
		return e.Location + sep + e.LocationDetail
	}
}

// Draft carries the caller-supplied fields of a new manual event.
type Draft struct {
	Title          string      `json:"title"`
	Description    string      `json:"description,omitempty"`
	StartDate      dates.Date  `json:"startDate"`
	EndDate        *dates.Date `json:"endDate,omitempty"`
	StartTime      string      `json:"startTime,omitempty"`
	EndTime        string      `json:"endTime,omitempty"`
	AllDay         bool        `json:"allDay"`
	Type           Type        `json:"type,omitempty"`
	TripID         string      `json:"tripId,omitempty"`
	Location       string      `json:"location,omitempty"`
	LocationDetail string      `json:"locationDetail,omitempty"`
	Reminder       int         `json:"reminder,omitempty"`
	Color          string      `json:"color,omitempty"`
}

// Validate checks the business rules for a manual event and fills defaults.
func (d *Draft) Validate() error {
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if d.StartDate.IsZero() {
		return fmt.Errorf("%w: start date is required", ErrValidation)
	}
	if d.EndDate != nil {
		if d.EndDate.IsZero() {
			d.EndDate = nil
		} else if d.EndDate.Before(d.StartDate) {
			return fmt.Errorf("%w: end date must not be before start date", ErrValidation)
		}
	}
	if d.Type == "" {
		d.Type = TypeOther
	}
	if !d.Type.Valid() {
		return fmt.Errorf("%w: unknown event type %q", ErrValidation, d.Type)
	}
	if d.Reminder < 0 {
		return fmt.Errorf("%w: reminder must not be negative", ErrValidation)
	}
	if d.AllDay {
		d.StartTime, d.EndTime = "", ""
		return nil
	}
	for _, clock := range []string{d.StartTime, d.EndTime} {
		if clock == "" {
			continue
		}
		if _, err := dates.ParseClock(clock); err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}
	return nil
}

// NewManual builds a manual event from a validated draft.
func NewManual(d Draft, now time.Time) CalendarEvent {
	return CalendarEvent{
		ID:             NewManualID(now),
		Title:          d.Title,
		Description:    d.Description,
		StartDate:      d.StartDate,
		EndDate:        d.EndDate,
		StartTime:      d.StartTime,
		EndTime:        d.EndTime,
		AllDay:         d.AllDay,
		Type:           d.Type,
		TripID:         d.TripID,
		Location:       d.Location,
		LocationDetail: d.LocationDetail,
		Reminder:       d.Reminder,
		Color:          d.Color,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// NewManualID returns event_<unixMillis>_<random>.
func NewManualID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("event_%d_%s", now.UnixMilli(), suffix)
}

// Deterministic ids for derived events.
func TripStartID(tripID string) string           { return "trip_start_" + tripID }
func TripEndID(tripID string) string             { return "trip_end_" + tripID }
func ActivityEventID(activityID string) string   { return "activity_" + activityID }
func TransportEventID(transportID string) string { return "transport_" + transportID }
func ImportedEventID(uid string) string          { return "ics_" + uid }
