// Package ics reads and writes RFC 5545 iCalendar documents.
package ics

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/beekhof/tripcal/internal/dates"
	"github.com/beekhof/tripcal/internal/event"
)

// ErrNoEvents is returned when asked to export an empty event list.
var ErrNoEvents = errors.New("no events to export")

const (
	// MIMEType is the content type of exported documents.
	MIMEType = "text/calendar; charset=utf-8"

	uidDomain          = "tripcal.app"
	defaultProdID      = "-//tripcal//Trip Calendar//PT"
	defaultName        = "Minhas Viagens"
	defaultDescription = "Calendário de viagens exportado pelo tripcal"
	defaultTimezone    = "America/Sao_Paulo"
	stampLayout        = "20060102T150405Z"
)

// Options controls the calendar header and the download filename.
type Options struct {
	CalendarName string
	Description  string
	Timezone     string
	ProdID       string
	Filename     string
	// Now is the generation time used for DTSTAMP. Zero means time.Now.
	Now time.Time
}

func (o Options) now() time.Time {
	if o.Now.IsZero() {
		return time.Now()
	}
	return o.Now
}

// Filename returns the download name, tripcal-<YYYY-MM-DD>.ics by default.
func Filename(opts Options) string {
	if opts.Filename != "" {
		return opts.Filename
	}
	return fmt.Sprintf("tripcal-%s.ics", opts.now().Format("2006-01-02"))
}

// Export renders events as one VCALENDAR document.
func Export(events []event.CalendarEvent, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, events, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes events to w as one VCALENDAR document with CRLF line endings.
// Nothing is written when events is empty.
func Encode(w io.Writer, events []event.CalendarEvent, opts Options) error {
	if len(events) == 0 {
		return ErrNoEvents
	}

	cal := newCalendar(opts)
	stamp := opts.now().UTC().Format(stampLayout)
	for _, e := range events {
		cal.Children = append(cal.Children, newVEvent(e, stamp))
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}
	return nil
}

func newCalendar(opts Options) *ical.Calendar {
	name := opts.CalendarName
	if name == "" {
		name = defaultName
	}
	tz := opts.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	desc := opts.Description
	if desc == "" {
		desc = defaultDescription
	}
	prodID := opts.ProdID
	if prodID == "" {
		prodID = defaultProdID
	}

	cal := ical.NewCalendar()
	setRaw(cal.Props, ical.PropVersion, "2.0")
	setRaw(cal.Props, ical.PropProductID, prodID)
	setRaw(cal.Props, ical.PropCalendarScale, "GREGORIAN")
	setRaw(cal.Props, ical.PropMethod, "PUBLISH")
	setRaw(cal.Props, "X-WR-CALNAME", EscapeText(name))
	setRaw(cal.Props, "X-WR-TIMEZONE", tz)
	setRaw(cal.Props, "X-WR-CALDESC", EscapeText(desc))
	return cal
}

func newVEvent(e event.CalendarEvent, stamp string) *ical.Component {
	vevent := ical.NewComponent(ical.CompEvent)
	props := vevent.Props

	setRaw(props, ical.PropUID, e.ID+"@"+uidDomain)
	setRaw(props, ical.PropDateTimeStamp, stamp)

	start, end := DateRange(e)
	if e.AllDay {
		setDate(props, ical.PropDateTimeStart, start)
		setDate(props, ical.PropDateTimeEnd, end)
	} else {
		setRaw(props, ical.PropDateTimeStart, start)
		setRaw(props, ical.PropDateTimeEnd, end)
	}

	setRaw(props, ical.PropSummary, EscapeText(e.Title))
	if e.Description != "" {
		setRaw(props, ical.PropDescription, EscapeText(e.Description))
	}
	if loc := e.FullLocation(" - "); loc != "" {
		setRaw(props, ical.PropLocation, EscapeText(loc))
	}
	status := "CONFIRMED"
	if e.Completed {
		status = "COMPLETED"
	}
	setRaw(props, ical.PropStatus, status)
	if e.Type != "" {
		setRaw(props, ical.PropCategories, EscapeText(string(e.Type)))
	}

	if e.Reminder > 0 {
		vevent.Children = append(vevent.Children, newAlarm(e))
	}
	return vevent
}

func newAlarm(e event.CalendarEvent) *ical.Component {
	alarm := ical.NewComponent(ical.CompAlarm)
	setRaw(alarm.Props, ical.PropAction, "DISPLAY")
	setRaw(alarm.Props, ical.PropDescription, EscapeText("Lembrete: "+e.Title))
	setRaw(alarm.Props, ical.PropTrigger, "-PT"+strconv.Itoa(e.Reminder)+"M")
	return alarm
}

// DateRange returns the basic-format start and end values for e. All-day
// events yield YYYYMMDD with an exclusive end (last day + 1). Timed events
// yield floating YYYYMMDDTHHmmss, the end defaulting to the start values.
func DateRange(e event.CalendarEvent) (start, end string) {
	last := e.LastDay()
	if e.AllDay {
		return e.StartDate.Basic(), last.AddDays(1).Basic()
	}
	endClock := e.EndTime
	if endClock == "" {
		endClock = e.StartTime
	}
	return dateTime(e.StartDate, e.StartTime), dateTime(last, endClock)
}

func dateTime(d dates.Date, clock string) string {
	return d.Basic() + "T" + dates.ClockBasic(clock)
}

// setRaw stores value as-is. Text values must already be escaped.
func setRaw(props ical.Props, name, value string) {
	prop := ical.NewProp(name)
	prop.Value = value
	props.Set(prop)
}

func setDate(props ical.Props, name, value string) {
	prop := ical.NewProp(name)
	prop.Params.Set(ical.ParamValue, string(ical.ValueDate))
	prop.Value = value
	props.Set(prop)
}

var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	`;`, `\;`,
	`,`, `\,`,
	"\r\n", `\n`,
	"\n", `\n`,
	"\r", `\n`,
)

// EscapeText applies RFC 5545 TEXT escaping: backslash, semicolon, comma
// and line breaks.
func EscapeText(s string) string {
	return textEscaper.Replace(s)
}

// UnescapeText reverses EscapeText. Unknown escapes are kept verbatim.
func UnescapeText(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i == len(s)-1 {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n', 'N':
			b.WriteByte('\n')
		case '\\', ';', ',':
			b.WriteByte(s[i])
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
