package calendar

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/beekhof/tripcal/internal/dates"
	"github.com/beekhof/tripcal/internal/event"
	"github.com/beekhof/tripcal/internal/logger"
)

// SourceProperty is the private extended property carrying the tripcal
// event id on mirrored Google events.
const SourceProperty = "tripcalEventId"

// Client is a wrapper around the Google Calendar API service.
type Client struct {
	service *calendar.Service
	log     *logger.Logger
}

var _ CalendarClient = (*Client)(nil)

// NewClient creates a new Google Calendar API client using the provided HTTP client.
// Extra options (such as option.WithEndpoint) are passed through to the service.
func NewClient(ctx context.Context, httpClient *http.Client, log *logger.Logger, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return &Client{service: service, log: logger.OrNop(log).Named("google")}, nil
}

// FindOrCreateCalendarByName finds an existing calendar by name or creates a new one.
// Returns the calendar ID.
func (c *Client) FindOrCreateCalendarByName(ctx context.Context, name string, colorID string) (string, error) {
	calendarList, err := c.service.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to list calendars: %w", err)
	}

	for _, cal := range calendarList.Items {
		if cal.Summary == name {
			return cal.Id, nil
		}
	}

	newCalendar := &calendar.Calendar{
		Summary:     name,
		Description: "Trip events published by tripcal",
	}

	created, err := c.service.Calendars.Insert(newCalendar).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create calendar: %w", err)
	}

	// Color is cosmetic; a failure here is not fatal.
	if colorID != "" {
		_, err = c.service.CalendarList.Patch(created.Id, &calendar.CalendarListEntry{
			ColorId: colorID,
		}).Context(ctx).Do()
		if err != nil {
			c.log.Warn("failed to set calendar color", "calendar", created.Id, "err", err)
		}
	}

	return created.Id, nil
}

// GetEvents retrieves events from a calendar within the specified time window.
// Recurring events are expanded and all pages are read.
func (c *Client) GetEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*calendar.Event, error) {
	var items []*calendar.Event
	err := c.service.Events.List(calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		Pages(ctx, func(page *calendar.Events) error {
			items = append(items, page.Items...)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	return items, nil
}

// FindEventsBySourceID finds events carrying the given tripcal event id in
// their private extended properties.
func (c *Client) FindEventsBySourceID(ctx context.Context, calendarID, sourceEventID string) ([]*calendar.Event, error) {
	query := fmt.Sprintf("%s=%s", SourceProperty, sourceEventID)

	eventsList, err := c.service.Events.List(calendarID).
		PrivateExtendedProperty(query).
		SingleEvents(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to find events by source ID: %w", err)
	}

	return eventsList.Items, nil
}

// InsertEvent inserts a new event without sending notifications.
func (c *Client) InsertEvent(ctx context.Context, calendarID string, ev *calendar.Event) error {
	_, err := c.service.Events.Insert(calendarID, ev).
		SendUpdates("none").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	return nil
}

// UpdateEvent updates an existing event without sending notifications.
func (c *Client) UpdateEvent(ctx context.Context, calendarID, eventID string, ev *calendar.Event) error {
	_, err := c.service.Events.Update(calendarID, eventID, ev).
		SendUpdates("none").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}

	return nil
}

// DeleteEvent deletes an event without sending notifications.
func (c *Client) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	err := c.service.Events.Delete(calendarID, eventID).
		SendUpdates("none").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	return nil
}

// ToGoogleEvent converts a tripcal event into a Google Calendar event.
// Timed values are anchored in loc; all-day events use an exclusive end date.
func ToGoogleEvent(e event.CalendarEvent, loc *time.Location) *calendar.Event {
	if loc == nil {
		loc = time.Local
	}

	g := &calendar.Event{
		Summary:     e.Title,
		Description: e.Description,
		Location:    e.FullLocation(", "),
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{SourceProperty: e.ID},
		},
	}

	if e.AllDay {
		g.Start = &calendar.EventDateTime{Date: e.StartDate.ISO()}
		g.End = &calendar.EventDateTime{Date: e.LastDay().AddDays(1).ISO()}
	} else {
		start := at(e.StartDate, e.StartTime, loc)
		endClock := e.EndTime
		if endClock == "" {
			endClock = e.StartTime
		}
		end := at(e.LastDay(), endClock, loc)
		if end.Before(start) {
			end = start
		}
		g.Start = &calendar.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: loc.String()}
		g.End = &calendar.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: loc.String()}
	}

	if e.Reminder > 0 {
		g.Reminders = &calendar.EventReminders{
			UseDefault:      false,
			Overrides:       []*calendar.EventReminder{{Method: "popup", Minutes: int64(e.Reminder)}},
			ForceSendFields: []string{"UseDefault"},
		}
	} else {
		g.Reminders = &calendar.EventReminders{UseDefault: true}
	}

	return g
}

func at(d dates.Date, clock string, loc *time.Location) time.Time {
	minutes, err := dates.ParseClock(clock)
	if err != nil {
		minutes = 0
	}
	return time.Date(d.Year, d.Month, d.Day, minutes/60, minutes%60, 0, 0, loc)
}

// SourceID returns the tripcal event id stored on a mirrored Google event.
func SourceID(g *calendar.Event) string {
	if g.ExtendedProperties == nil || g.ExtendedProperties.Private == nil {
		return ""
	}
	return g.ExtendedProperties.Private[SourceProperty]
}

// EventsEqual checks if two events have the same key properties.
func EventsEqual(a, b *calendar.Event) bool {
	if a.Summary != b.Summary || a.Description != b.Description || a.Location != b.Location {
		return false
	}
	if boundary(a.Start) != boundary(b.Start) || boundary(a.End) != boundary(b.End) {
		return false
	}
	return reminderMinutes(a) == reminderMinutes(b)
}

// boundary normalizes an EventDateTime so RFC 3339 values in different
// offsets compare by instant.
func boundary(dt *calendar.EventDateTime) string {
	if dt == nil {
		return ""
	}
	if dt.DateTime == "" {
		return dt.Date
	}
	t, err := time.Parse(time.RFC3339, dt.DateTime)
	if err != nil {
		return dt.DateTime
	}
	return t.UTC().Format(time.RFC3339)
}

func reminderMinutes(g *calendar.Event) int64 {
	if g.Reminders == nil || g.Reminders.UseDefault || len(g.Reminders.Overrides) == 0 {
		return 0
	}
	return g.Reminders.Overrides[0].Minutes
}
