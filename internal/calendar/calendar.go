package calendar

import (
	"context"
	"time"

	"google.golang.org/api/calendar/v3"
)

// CalendarClient is the subset of a remote calendar the publisher needs.
type CalendarClient interface {
	FindOrCreateCalendarByName(ctx context.Context, name string, colorID string) (string, error)
	GetEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*calendar.Event, error)
	InsertEvent(ctx context.Context, calendarID string, ev *calendar.Event) error
	UpdateEvent(ctx context.Context, calendarID, eventID string, ev *calendar.Event) error
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
	FindEventsBySourceID(ctx context.Context, calendarID, sourceEventID string) ([]*calendar.Event, error)
}
