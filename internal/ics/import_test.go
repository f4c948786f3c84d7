package ics

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beekhof/tripcal/internal/dates"
	"github.com/beekhof/tripcal/internal/event"
)

const externalCalendar = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//Example//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:allday-1@example.com\r\n" +
	"DTSTAMP:20260101T000000Z\r\n" +
	"DTSTART;VALUE=DATE:20260710\r\n" +
	"DTEND;VALUE=DATE:20260713\r\n" +
	"SUMMARY:Festival\r\n" +
	"LOCATION:Porto\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:timed-1@example.com\r\n" +
	"DTSTAMP:20260101T000000Z\r\n" +
	"DTSTART;TZID=Europe/Lisbon:20260711T210000\r\n" +
	"DTEND;TZID=Europe/Lisbon:20260711T233000\r\n" +
	"SUMMARY:Concerto\r\n" +
	"STATUS:COMPLETED\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"DTSTAMP:20260101T000000Z\r\n" +
	"DTSTART;VALUE=DATE:20260712\r\n" +
	"SUMMARY:No UID\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:single-day@example.com\r\n" +
	"DTSTAMP:20260101T000000Z\r\n" +
	"DTSTART;VALUE=DATE:20260714\r\n" +
	"DTEND;VALUE=DATE:20260715\r\n" +
	"SUMMARY:Folga\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParse(t *testing.T) {
	lisbon, err := time.LoadLocation("Europe/Lisbon")
	require.NoError(t, err)

	events, err := Parse(strings.NewReader(externalCalendar), lisbon, nil)
	require.NoError(t, err)
	require.Len(t, events, 3, "VEVENT without UID is skipped")

	festival := events[0]
	assert.Equal(t, "ics_allday-1@example.com", festival.ID)
	assert.Equal(t, event.Source{Kind: event.SourceICS, ID: "allday-1@example.com"}, festival.Source)
	assert.Equal(t, event.TypeOther, festival.Type)
	assert.True(t, festival.AllDay)
	assert.Equal(t, dates.New(2026, time.July, 10), festival.StartDate)
	require.NotNil(t, festival.EndDate)
	assert.Equal(t, dates.New(2026, time.July, 12), *festival.EndDate, "exclusive DTEND becomes inclusive")
	assert.Equal(t, "Porto", festival.Location)

	concert := events[1]
	assert.False(t, concert.AllDay)
	assert.Equal(t, "21:00", concert.StartTime)
	assert.Equal(t, "23:30", concert.EndTime)
	assert.Nil(t, concert.EndDate)
	assert.True(t, concert.Completed)

	folga := events[2]
	assert.Nil(t, folga.EndDate, "one-day all-day event has no end date")
}

func TestParse_UTCConvertedToLocation(t *testing.T) {
	doc := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//x//EN\r\n" +
		"BEGIN:VEVENT\r\nUID:u1\r\nDTSTAMP:20260101T000000Z\r\n" +
		"DTSTART:20260601T020000Z\r\nSUMMARY:Late\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"

	saoPaulo := time.FixedZone("BRT", -3*3600)
	events, err := Parse(strings.NewReader(doc), saoPaulo, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, dates.New(2026, time.May, 31), events[0].StartDate)
	assert.Equal(t, "23:00", events[0].StartTime)
}

func TestParse_ExportRoundTrip(t *testing.T) {
	end := dates.New(2026, time.June, 3)
	original := []event.CalendarEvent{
		{ID: "e1", Title: "Praia, sol; mar", StartDate: dates.New(2026, time.June, 1), EndDate: &end, AllDay: true},
		{ID: "e2", Title: "Jantar", StartDate: dates.New(2026, time.June, 2), StartTime: "20:00", EndTime: "22:00"},
	}
	doc, err := Export(original, Options{Now: fixedNow})
	require.NoError(t, err)

	events, err := Parse(bytes.NewReader(doc), time.UTC, nil)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "Praia, sol; mar", events[0].Title)
	assert.Equal(t, "e1@tripcal.app", events[0].Source.ID)
	require.NotNil(t, events[0].EndDate)
	assert.Equal(t, end, *events[0].EndDate)

	assert.Equal(t, "20:00", events[1].StartTime)
	assert.Equal(t, "22:00", events[1].EndTime)
}

func TestParse_Garbage(t *testing.T) {
	_, err := Parse(strings.NewReader("not a calendar"), time.UTC, nil)
	assert.Error(t, err)
}
