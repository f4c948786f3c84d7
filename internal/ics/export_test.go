package ics

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beekhof/tripcal/internal/dates"
	"github.com/beekhof/tripcal/internal/event"
)

var fixedNow = time.Date(2026, 5, 20, 15, 4, 5, 0, time.UTC)

func export(t *testing.T, events ...event.CalendarEvent) string {
	t.Helper()
	out, err := Export(events, Options{Now: fixedNow, CalendarName: "Europa"})
	require.NoError(t, err)
	return string(out)
}

// unfold joins RFC 5545 folded lines so assertions see whole properties.
func unfold(s string) string {
	return strings.ReplaceAll(s, "\r\n ", "")
}

func decode(t *testing.T, doc string) *ical.Calendar {
	t.Helper()
	cal, err := ical.NewDecoder(strings.NewReader(doc)).Decode()
	require.NoError(t, err)
	return cal
}

func TestExport_AllDayExclusiveEnd(t *testing.T) {
	doc := export(t, event.CalendarEvent{
		ID:        "e1",
		Title:     "Feriado",
		StartDate: dates.New(2026, time.March, 1),
		AllDay:    true,
		Type:      event.TypeOther,
	})

	assert.Contains(t, doc, "DTSTART;VALUE=DATE:20260301\r\n")
	assert.Contains(t, doc, "DTEND;VALUE=DATE:20260302\r\n")
}

func TestExport_AllDayMultiDay(t *testing.T) {
	end := dates.New(2026, time.December, 31)
	doc := export(t, event.CalendarEvent{
		ID:        "e1",
		Title:     "Reveillon",
		StartDate: dates.New(2026, time.December, 29),
		EndDate:   &end,
		AllDay:    true,
	})

	assert.Contains(t, doc, "DTSTART;VALUE=DATE:20261229\r\n")
	assert.Contains(t, doc, "DTEND;VALUE=DATE:20270101\r\n")
}

func TestExport_Timed(t *testing.T) {
	doc := export(t, event.CalendarEvent{
		ID:        "trip_start_t1",
		Title:     "Partida",
		StartDate: dates.New(2026, time.June, 1),
		StartTime: "08:00",
		EndTime:   "10:00",
		Type:      event.TypeTrip,
	})

	assert.Contains(t, doc, "DTSTART:20260601T080000\r\n")
	assert.Contains(t, doc, "DTEND:20260601T100000\r\n")
	assert.Contains(t, doc, "UID:trip_start_t1@tripcal.app\r\n")
	assert.Contains(t, doc, "DTSTAMP:20260520T150405Z\r\n")
	assert.Contains(t, doc, "STATUS:CONFIRMED\r\n")
	assert.Contains(t, doc, "CATEGORIES:trip\r\n")
}

func TestExport_TimedEndDefaultsToStart(t *testing.T) {
	doc := export(t, event.CalendarEvent{
		ID:        "e1",
		Title:     "Check-in",
		StartDate: dates.New(2026, time.June, 1),
		StartTime: "14:30",
	})

	assert.Contains(t, doc, "DTSTART:20260601T143000\r\n")
	assert.Contains(t, doc, "DTEND:20260601T143000\r\n")
}

func TestExport_Header(t *testing.T) {
	doc := export(t, event.CalendarEvent{ID: "e1", Title: "x", StartDate: dates.New(2026, time.June, 1), AllDay: true})

	assert.True(t, strings.HasPrefix(doc, "BEGIN:VCALENDAR\r\n"))
	assert.True(t, strings.HasSuffix(doc, "END:VCALENDAR\r\n"))
	for _, line := range []string{
		"VERSION:2.0", "PRODID:-//tripcal//Trip Calendar//PT", "CALSCALE:GREGORIAN",
		"METHOD:PUBLISH", "X-WR-CALNAME:Europa", "X-WR-TIMEZONE:America/Sao_Paulo",
		"X-WR-CALDESC:Calendário de viagens exportado pelo tripcal",
	} {
		assert.Contains(t, doc, line+"\r\n")
	}
	assert.NotContains(t, strings.ReplaceAll(doc, "\r\n", ""), "\n", "every line ends in CRLF")
}

func TestExport_HeaderDescription(t *testing.T) {
	ev := event.CalendarEvent{ID: "e1", Title: "x", StartDate: dates.New(2026, time.June, 1), AllDay: true}

	out, err := Export([]event.CalendarEvent{ev}, Options{Now: fixedNow, Description: "Férias, 2026"})
	require.NoError(t, err)
	assert.Contains(t, string(out), "X-WR-CALDESC:Férias\\, 2026\r\n")
}

func TestExport_LocationStatusAndDescription(t *testing.T) {
	doc := unfold(export(t, event.CalendarEvent{
		ID:             "e1",
		Title:          "Jantar",
		Description:    "Reserva 20h",
		StartDate:      dates.New(2026, time.June, 1),
		StartTime:      "20:00",
		Location:       "Lisboa",
		LocationDetail: "Alfama",
		Completed:      true,
		Type:           event.TypeRestaurant,
	}))

	assert.Contains(t, doc, "LOCATION:Lisboa - Alfama\r\n")
	assert.Contains(t, doc, "STATUS:COMPLETED\r\n")
	assert.Contains(t, doc, "DESCRIPTION:Reserva 20h\r\n")
}

func TestExport_Reminder(t *testing.T) {
	doc := export(t, event.CalendarEvent{
		ID:        "e1",
		Title:     "Voo",
		StartDate: dates.New(2026, time.June, 1),
		StartTime: "06:00",
		Reminder:  30,
	})

	assert.Contains(t, doc, "BEGIN:VALARM\r\n")
	assert.Contains(t, doc, "ACTION:DISPLAY\r\n")
	assert.Contains(t, doc, "TRIGGER:-PT30M\r\n")
	assert.Contains(t, doc, "DESCRIPTION:Lembrete: Voo\r\n")
	assert.Contains(t, doc, "END:VALARM\r\n")
}

func TestExport_Escaping(t *testing.T) {
	title := "Praia, sol; mar\nà noite \\ fim"
	doc := export(t, event.CalendarEvent{
		ID:        "e1",
		Title:     title,
		StartDate: dates.New(2026, time.June, 1),
		AllDay:    true,
	})

	assert.Contains(t, unfold(doc), `SUMMARY:Praia\, sol\; mar\nà noite \\ fim`)

	cal := decode(t, doc)
	events := cal.Events()
	require.Len(t, events, 1)
	got, err := events[0].Props.Text(ical.PropSummary)
	require.NoError(t, err)
	assert.Equal(t, title, got)
}

func TestExport_TripScenario(t *testing.T) {
	end := dates.New(2026, time.June, 5)
	start := dates.New(2026, time.June, 1)
	doc := export(t,
		event.CalendarEvent{ID: "trip_start_t1", Title: "Partida: Lisboa", StartDate: start, StartTime: "08:00", EndTime: "10:00", Type: event.TypeTrip},
		event.CalendarEvent{ID: "trip_end_t1", Title: "Retorno: Lisboa", StartDate: end, StartTime: "18:00", EndTime: "20:00", Type: event.TypeTrip},
	)

	assert.Equal(t, 2, strings.Count(doc, "BEGIN:VEVENT\r\n"))
	assert.Equal(t, 2, strings.Count(doc, "END:VEVENT\r\n"))
	assert.NotContains(t, doc, "VALARM")

	cal := decode(t, doc)
	assert.Len(t, cal.Events(), 2)
}

func TestExport_NoEvents(t *testing.T) {
	var buf bytes.Buffer
	err := Encode(&buf, nil, Options{})
	assert.True(t, errors.Is(err, ErrNoEvents))
	assert.Zero(t, buf.Len())

	out, err := Export([]event.CalendarEvent{}, Options{})
	assert.True(t, errors.Is(err, ErrNoEvents))
	assert.Nil(t, out)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "tripcal-2026-05-20.ics", Filename(Options{Now: fixedNow}))
	assert.Equal(t, "europa.ics", Filename(Options{Filename: "europa.ics"}))
}

func TestEscapeText(t *testing.T) {
	assert.Equal(t, `a\\b\;c\,d\ne`, EscapeText("a\\b;c,d\ne"))
	assert.Equal(t, `x\ny`, EscapeText("x\r\ny"))
	assert.Equal(t, "plain", EscapeText("plain"))
}

func TestUnescapeText(t *testing.T) {
	for _, s := range []string{"a\\b;c,d\ne", "plain", "trailing\\", "  spaces , ok"} {
		assert.Equal(t, s, UnescapeText(EscapeText(s)))
	}
	assert.Equal(t, `keep\x`, UnescapeText(`keep\x`))
}

func TestDateRange(t *testing.T) {
	e := event.CalendarEvent{StartDate: dates.New(2026, time.February, 28), AllDay: true}
	start, end := DateRange(e)
	assert.Equal(t, "20260228", start)
	assert.Equal(t, "20260301", end)

	e = event.CalendarEvent{StartDate: dates.New(2026, time.February, 28)}
	start, end = DateRange(e)
	assert.Equal(t, "20260228T000000", start)
	assert.Equal(t, "20260228T000000", end)
}
