// Package calendar builds Google Calendar deep links and talks to the Google
// Calendar API for publishing.
package calendar

import (
	"net/url"

	"github.com/beekhof/tripcal/internal/event"
	"github.com/beekhof/tripcal/internal/ics"
)

const renderURL = "https://www.google.com/calendar/render"

// GoogleCalendarURL returns an "add event" link for e. The dates parameter
// follows the iCalendar rules: YYYYMMDD with an exclusive end for all-day
// events, YYYYMMDDTHHmmss otherwise.
func GoogleCalendarURL(e event.CalendarEvent) string {
	start, end := ics.DateRange(e)

	q := url.Values{}
	q.Set("action", "TEMPLATE")
	q.Set("text", e.Title)
	q.Set("dates", start+"/"+end)
	if e.Description != "" {
		q.Set("details", e.Description)
	}
	if loc := e.FullLocation(", "); loc != "" {
		q.Set("location", loc)
	}

	return renderURL + "?" + q.Encode()
}
