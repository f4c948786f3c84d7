package sync

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"

	calclient "github.com/beekhof/tripcal/internal/calendar"
	"github.com/beekhof/tripcal/internal/event"
	"github.com/beekhof/tripcal/internal/logger"
)

// PublishOptions configures the destination calendar.
type PublishOptions struct {
	CalendarName string
	ColorID      string
	// Location anchors timed events. Defaults to time.Local.
	Location *time.Location
}

// PublishResult counts the changes made to the destination calendar.
type PublishResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// Publisher mirrors the event list into a dedicated Google Calendar. The
// event list is the source of truth: mirrored events that changed are
// updated, those whose event is gone are deleted and missing ones inserted.
// Events in the destination without a tripcal id are left alone.
type Publisher struct {
	client calclient.CalendarClient
	opts   PublishOptions
	log    *logger.Logger
	now    func() time.Time
}

// NewPublisher creates a Publisher writing through client.
func NewPublisher(client calclient.CalendarClient, opts PublishOptions, log *logger.Logger) *Publisher {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Publisher{
		client: client,
		opts:   opts,
		log:    logger.OrNop(log).Named("publish"),
		now:    time.Now,
	}
}

// window returns the time range searched for mirrored events: the span of
// events widened by six months on each side, so that mirrors of events that
// were moved or deleted are still found. Events without a start date do not
// count.
func (p *Publisher) window(events []event.CalendarEvent) (time.Time, time.Time) {
	loc := p.opts.Location
	dated := make([]event.CalendarEvent, 0, len(events))
	for _, e := range events {
		if !e.StartDate.IsZero() {
			dated = append(dated, e)
		}
	}
	if len(dated) == 0 {
		now := p.now().In(loc)
		return now.AddDate(0, -6, 0), now.AddDate(0, 6, 0)
	}

	first, last := dated[0].StartDate, dated[0].LastDay()
	for _, e := range dated[1:] {
		if e.StartDate.Before(first) {
			first = e.StartDate
		}
		if e.LastDay().After(last) {
			last = e.LastDay()
		}
	}
	return first.Time(loc).AddDate(0, -6, 0), last.AddDays(1).Time(loc).AddDate(0, 6, 0)
}

// Publish mirrors events into the destination calendar. Per-event API
// failures are logged and counted; only failures to find the calendar or
// list its events abort the run.
func (p *Publisher) Publish(ctx context.Context, events []event.CalendarEvent) (PublishResult, error) {
	var res PublishResult
	p.log.Info("starting publish", "events", len(events), "calendar", p.opts.CalendarName)

	calendarID, err := p.client.FindOrCreateCalendarByName(ctx, p.opts.CalendarName, p.opts.ColorID)
	if err != nil {
		return res, err
	}

	// Prepare the desired state, keeping input order for deterministic inserts.
	prepared := make(map[string]*calendar.Event, len(events))
	order := make([]string, 0, len(events))
	for _, e := range events {
		if e.StartDate.IsZero() {
			p.log.Warn("skipping event without a start date", "id", e.ID)
			continue
		}
		if _, dup := prepared[e.ID]; dup {
			continue
		}
		prepared[e.ID] = calclient.ToGoogleEvent(e, p.opts.Location)
		order = append(order, e.ID)
	}

	timeMin, timeMax := p.window(events)
	destEvents, err := p.client.GetEvents(ctx, calendarID, timeMin, timeMax)
	if err != nil {
		return res, err
	}
	p.log.Debug("retrieved destination events", "count", len(destEvents),
		"from", timeMin.Format("2006-01-02"), "to", timeMax.Format("2006-01-02"))

	// Group mirrored events by the tripcal id they carry.
	mirrored := make(map[string][]*calendar.Event)
	for _, g := range destEvents {
		id := calclient.SourceID(g)
		if id == "" {
			continue
		}
		mirrored[id] = append(mirrored[id], g)
	}

	for id, copies := range mirrored {
		want, exists := prepared[id]
		if !exists {
			for _, g := range copies {
				p.delete(ctx, calendarID, g, "stale", &res)
			}
			continue
		}

		p.reconcile(ctx, calendarID, copies[0], want, &res)
		for _, dup := range copies[1:] {
			p.delete(ctx, calendarID, dup, "duplicate", &res)
		}
		delete(prepared, id)
	}

	// Whatever is left has no mirror inside the window.
	for _, id := range order {
		want, ok := prepared[id]
		if !ok {
			continue
		}

		existing, err := p.client.FindEventsBySourceID(ctx, calendarID, id)
		if err != nil {
			p.log.Warn("failed to look up mirrored event, inserting", "id", id, "err", err)
			existing = nil
		}
		if len(existing) > 0 {
			p.reconcile(ctx, calendarID, existing[0], want, &res)
			for _, dup := range existing[1:] {
				p.delete(ctx, calendarID, dup, "duplicate", &res)
			}
			continue
		}

		if err := p.client.InsertEvent(ctx, calendarID, want); err != nil {
			p.log.Warn("failed to insert event", "id", id, "summary", want.Summary, "err", err)
			res.Failed++
			continue
		}
		p.log.Debug("inserted event", "id", id, "summary", want.Summary)
		res.Created++
	}

	p.log.Info("publish complete", "created", res.Created, "updated", res.Updated,
		"deleted", res.Deleted, "failed", res.Failed)
	return res, nil
}

func (p *Publisher) reconcile(ctx context.Context, calendarID string, have, want *calendar.Event, res *PublishResult) {
	if calclient.EventsEqual(have, want) {
		return
	}
	if err := p.client.UpdateEvent(ctx, calendarID, have.Id, want); err != nil {
		p.log.Warn("failed to update event", "google_id", have.Id, "summary", want.Summary, "err", err)
		res.Failed++
		return
	}
	p.log.Debug("updated event", "google_id", have.Id, "summary", want.Summary)
	res.Updated++
}

func (p *Publisher) delete(ctx context.Context, calendarID string, g *calendar.Event, reason string, res *PublishResult) {
	if err := p.client.DeleteEvent(ctx, calendarID, g.Id); err != nil {
		p.log.Warn(fmt.Sprintf("failed to delete %s event", reason), "google_id", g.Id, "summary", g.Summary, "err", err)
		res.Failed++
		return
	}
	p.log.Debug(fmt.Sprintf("deleted %s event", reason), "google_id", g.Id, "summary", g.Summary)
	res.Deleted++
}
