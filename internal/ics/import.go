package ics

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/beekhof/tripcal/internal/dates"
	"github.com/beekhof/tripcal/internal/event"
	"github.com/beekhof/tripcal/internal/logger"
)

// Parse reads an external iCalendar document and converts each VEVENT into a
// calendar event with source kind ics. VEVENTs that cannot be converted are
// logged and skipped. Times in UTC or with a TZID are converted to loc.
func Parse(r io.Reader, loc *time.Location, log *logger.Logger) ([]event.CalendarEvent, error) {
	log = logger.OrNop(log).Named("ics")
	if loc == nil {
		loc = time.Local
	}

	cal, err := ics.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse calendar: %w", err)
	}

	now := time.Now()
	var out []event.CalendarEvent
	for _, ve := range cal.Events() {
		e, err := fromVEvent(ve, loc, now)
		if err != nil {
			log.Warn("skipping vevent", "err", err)
			continue
		}
		out = append(out, e)
	}

	log.Debug("calendar parsed", "events", len(out))
	return out, nil
}

func fromVEvent(ve *ics.VEvent, loc *time.Location, now time.Time) (event.CalendarEvent, error) {
	uidProp := ve.GetProperty(ics.ComponentPropertyUniqueId)
	if uidProp == nil || strings.TrimSpace(uidProp.Value) == "" {
		return event.CalendarEvent{}, errors.New("missing UID")
	}
	uid := strings.TrimSpace(uidProp.Value)

	startProp := ve.GetProperty(ics.ComponentPropertyDtStart)
	if startProp == nil {
		return event.CalendarEvent{}, fmt.Errorf("%s: missing DTSTART", uid)
	}
	start, allDay, err := parseICSTime(startProp, loc)
	if err != nil {
		return event.CalendarEvent{}, fmt.Errorf("%s: invalid DTSTART: %w", uid, err)
	}

	e := event.CalendarEvent{
		ID:          event.ImportedEventID(uid),
		Title:       propText(ve, ics.ComponentPropertySummary),
		Description: propText(ve, ics.ComponentPropertyDescription),
		Location:    propText(ve, ics.ComponentPropertyLocation),
		StartDate:   dates.FromTime(start),
		AllDay:      allDay,
		Type:        event.TypeOther,
		Source:      event.Source{Kind: event.SourceICS, ID: uid},
		Completed:   strings.EqualFold(propText(ve, ics.ComponentPropertyStatus), "COMPLETED"),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if e.Title == "" {
		e.Title = "(sem título)"
	}
	if !allDay {
		e.StartTime = start.Format("15:04")
	}

	if endProp := ve.GetProperty(ics.ComponentPropertyDtEnd); endProp != nil {
		end, _, err := parseICSTime(endProp, loc)
		if err != nil {
			return event.CalendarEvent{}, fmt.Errorf("%s: invalid DTEND: %w", uid, err)
		}
		last := dates.FromTime(end)
		if allDay {
			// DTEND of an all-day event is exclusive.
			last = last.AddDays(-1)
		} else {
			e.EndTime = end.Format("15:04")
		}
		if last.After(e.StartDate) {
			e.EndDate = &last
		}
	}

	return e, nil
}

func propText(ve *ics.VEvent, name ics.ComponentProperty) string {
	p := ve.GetProperty(name)
	if p == nil {
		return ""
	}
	return UnescapeText(p.Value)
}

// parseICSTime reads a DATE or DATE-TIME property. UTC values and values
// with a known TZID are converted to loc; floating values are read in loc.
func parseICSTime(p *ics.IANAProperty, loc *time.Location) (time.Time, bool, error) {
	v := strings.TrimSpace(p.Value)
	if v == "" {
		return time.Time{}, false, errors.New("empty time value")
	}

	isDate := !strings.Contains(v, "T")
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		isDate = true
	}
	if isDate {
		t, err := time.ParseInLocation("20060102", v[:min(len(v), 8)], loc)
		return t, true, err
	}

	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse("20060102T150405Z", v)
		return t.In(loc), false, err
	}

	src := loc
	if tzs, ok := p.ICalParameters["TZID"]; ok && len(tzs) > 0 {
		if tz, err := time.LoadLocation(tzs[0]); err == nil {
			src = tz
		}
	}
	t, err := time.ParseInLocation("20060102T150405", v, src)
	return t.In(loc), false, err
}
