package calendar

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beekhof/tripcal/internal/dates"
	"github.com/beekhof/tripcal/internal/event"
)

func parseLink(t *testing.T, link string) url.Values {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "https", u.Scheme)
	assert.Equal(t, "www.google.com", u.Host)
	assert.Equal(t, "/calendar/render", u.Path)
	return u.Query()
}

func TestGoogleCalendarURL_Timed(t *testing.T) {
	q := parseLink(t, GoogleCalendarURL(event.CalendarEvent{
		Title:          "Voo: TAP TP1234",
		Description:    "Lisboa → Madrid",
		StartDate:      dates.New(2026, time.June, 1),
		StartTime:      "08:15",
		EndTime:        "10:40",
		Location:       "Aeroporto de Lisboa",
		LocationDetail: "Terminal 1",
	}))

	assert.Equal(t, "TEMPLATE", q.Get("action"))
	assert.Equal(t, "Voo: TAP TP1234", q.Get("text"))
	assert.Equal(t, "20260601T081500/20260601T104000", q.Get("dates"))
	assert.Equal(t, "Lisboa → Madrid", q.Get("details"))
	assert.Equal(t, "Aeroporto de Lisboa, Terminal 1", q.Get("location"))
}

func TestGoogleCalendarURL_AllDay(t *testing.T) {
	end := dates.New(2026, time.June, 5)
	q := parseLink(t, GoogleCalendarURL(event.CalendarEvent{
		Title:     "Hotel",
		StartDate: dates.New(2026, time.June, 1),
		EndDate:   &end,
		AllDay:    true,
		Location:  "Porto",
	}))

	assert.Equal(t, "20260601/20260606", q.Get("dates"))
	assert.Equal(t, "Porto", q.Get("location"))
	_, hasDetails := q["details"]
	assert.False(t, hasDetails)
}

func TestGoogleCalendarURL_EncodesSpecialCharacters(t *testing.T) {
	link := GoogleCalendarURL(event.CalendarEvent{
		Title:     "A & B = C?",
		StartDate: dates.New(2026, time.June, 1),
		AllDay:    true,
	})
	assert.NotContains(t, link, "A & B")
	assert.Equal(t, "A & B = C?", parseLink(t, link).Get("text"))
}
