package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/beekhof/tripcal/internal/calendar"
	"github.com/beekhof/tripcal/internal/config"
	"github.com/beekhof/tripcal/internal/dates"
	"github.com/beekhof/tripcal/internal/event"
	"github.com/beekhof/tripcal/internal/ics"
	"github.com/beekhof/tripcal/internal/kv"
	"github.com/beekhof/tripcal/internal/query"
	tripsync "github.com/beekhof/tripcal/internal/sync"
)

// ---- sync ------------------------------------------------------------------

var syncSourcesPath string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Derive events from a trips file (JSON or YAML)",
	RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
		path := syncSourcesPath
		if path == "" {
			path = a.cfg.SourcesPath
		}
		if path == "" {
			return fmt.Errorf("--sources FILE is required when sources_path is not configured")
		}

		src, err := tripsync.LoadSources(path)
		if err != nil {
			return err
		}
		report, err := a.engine.SyncAll(cmd.Context(), src)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "trips:      %d created, %d skipped, %d failed\n", report.Trips.Created, report.Trips.Skipped, report.Trips.Failed)
		fmt.Fprintf(out, "activities: %d created, %d skipped, %d failed\n", report.Activities.Created, report.Activities.Skipped, report.Activities.Failed)
		fmt.Fprintf(out, "transports: %d created, %d skipped, %d failed\n", report.Transports.Created, report.Transports.Skipped, report.Transports.Failed)
		return nil
	}),
}

// ---- list ------------------------------------------------------------------

type selection struct {
	date, from, to    string
	typ, trip, search string
}

func (s *selection) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&s.date, "date", "", "Only events occurring on this date (DD/MM/YYYY or YYYY-MM-DD)")
	f.StringVar(&s.from, "from", "", "Start of the date range")
	f.StringVar(&s.to, "to", "", "End of the date range (inclusive)")
	f.StringVar(&s.typ, "type", query.All, "Event type, or all")
	f.StringVar(&s.trip, "trip", query.All, "Trip id, or all")
	f.StringVar(&s.search, "search", "", "Case-insensitive text in title, description or location")
}

// events returns the selected events, sorted chronologically.
func (s *selection) events(a *app) ([]event.CalendarEvent, error) {
	a.query.SetFilters(query.FilterPatch{Type: &s.typ, TripID: &s.trip, Search: &s.search})

	var events []event.CalendarEvent
	switch {
	case s.date != "":
		d, err := dates.Parse(s.date)
		if err != nil {
			return nil, fmt.Errorf("invalid --date: %w", err)
		}
		events = a.query.EventsForDate(d)
	case s.from != "" || s.to != "":
		from, err := dates.Parse(s.from)
		if err != nil {
			return nil, fmt.Errorf("invalid --from: %w", err)
		}
		to, err := dates.Parse(s.to)
		if err != nil {
			return nil, fmt.Errorf("invalid --to: %w", err)
		}
		events = a.query.EventsForDateRange(from, to)
	default:
		events = a.query.All()
	}
	return events, nil
}

var (
	listSelection selection
	listJSON      bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List events",
	RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
		events, err := listSelection.events(a)
		if err != nil {
			return err
		}
		if listJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(events)
		}
		printEvents(cmd.OutOrStdout(), events)
		return nil
	}),
}

func printEvents(w io.Writer, events []event.CalendarEvent) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tTIME\tTYPE\tTITLE\tID")
	for _, e := range events {
		when := e.StartDate.String()
		if last := e.LastDay(); last.After(e.StartDate) {
			when += " - " + last.String()
		}
		clock := "all day"
		if !e.AllDay {
			clock = strings.TrimSuffix(e.StartTime+"-"+e.EndTime, "-")
		}
		title := e.Title
		if e.Completed {
			title = "[x] " + title
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", when, clock, e.Type, title, e.ID)
	}
	_ = tw.Flush()
}

// ---- add -------------------------------------------------------------------

var addDraft struct {
	title, description, start, end string
	startTime, endTime             string
	allDay                         bool
	typ, trip, location            string
	reminder                       int
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a manual event",
	RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
		start, err := dates.Parse(addDraft.start)
		if err != nil {
			return fmt.Errorf("invalid --start: %w", err)
		}
		d := event.Draft{
			Title:       addDraft.title,
			Description: addDraft.description,
			StartDate:   start,
			StartTime:   addDraft.startTime,
			EndTime:     addDraft.endTime,
			AllDay:      addDraft.allDay,
			Type:        event.Type(addDraft.typ),
			TripID:      addDraft.trip,
			Location:    addDraft.location,
			Reminder:    addDraft.reminder,
		}
		if addDraft.end != "" {
			end, err := dates.Parse(addDraft.end)
			if err != nil {
				return fmt.Errorf("invalid --end: %w", err)
			}
			d.EndDate = &end
		}

		e, err := a.store.AddEvent(cmd.Context(), d)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), e.ID)
		return nil
	}),
}

// ---- export ----------------------------------------------------------------

var (
	exportSelection selection
	exportOut       string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export events as an iCalendar file",
	RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
		events, err := exportSelection.events(a)
		if err != nil {
			return err
		}

		opts := a.exportOptions()
		data, err := ics.Export(events, opts)
		if err != nil {
			return err
		}

		if exportOut == "-" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		path := exportOut
		if path == "" {
			path = ics.Filename(opts)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		a.log.Info("calendar exported", "path", path, "events", len(events))
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	}),
}

// ---- link ------------------------------------------------------------------

var linkCmd = &cobra.Command{
	Use:   "link ID",
	Short: "Print a Google Calendar link that adds the event",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		e, ok := a.store.Get(args[0])
		if !ok {
			return fmt.Errorf("%w: %s", event.ErrNotFound, args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), calendar.GoogleCalendarURL(e))
		return nil
	}),
}

// ---- import ----------------------------------------------------------------

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import the events of an iCalendar file",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}
		defer f.Close()

		res, err := a.engine.ImportICS(cmd.Context(), f)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d created, %d skipped, %d failed\n", res.Created, res.Skipped, res.Failed)
		return nil
	}),
}

// ---- migrate ---------------------------------------------------------------

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations for the postgres backend",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig("")
		if err != nil {
			return err
		}
		defer log.Sync()

		if cfg.Storage.Backend != config.BackendPostgres {
			return fmt.Errorf("migrate needs the postgres backend, got '%s'", cfg.Storage.Backend)
		}
		pg, err := kv.NewPostgres(cmd.Context(), cfg.Storage.DatabaseURL)
		if err != nil {
			return err
		}
		defer pg.Close()

		if err := pg.Migrate(cmd.Context()); err != nil {
			return err
		}
		log.Info("migrations applied")
		return nil
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncSourcesPath, "sources", "", "Trips file (defaults to sources_path from the config)")

	listSelection.register(listCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print events as JSON")

	f := addCmd.Flags()
	f.StringVar(&addDraft.title, "title", "", "Event title")
	f.StringVar(&addDraft.description, "description", "", "Event description")
	f.StringVar(&addDraft.start, "start", "", "Start date (DD/MM/YYYY or YYYY-MM-DD)")
	f.StringVar(&addDraft.end, "end", "", "Inclusive end date")
	f.StringVar(&addDraft.startTime, "start-time", "", "Start time (HH:MM)")
	f.StringVar(&addDraft.endTime, "end-time", "", "End time (HH:MM)")
	f.BoolVar(&addDraft.allDay, "all-day", false, "All-day event")
	f.StringVar(&addDraft.typ, "type", string(event.TypeOther), "Event type")
	f.StringVar(&addDraft.trip, "trip", "", "Trip id")
	f.StringVar(&addDraft.location, "location", "", "Location")
	f.IntVar(&addDraft.reminder, "reminder", 0, "Reminder in minutes before the start")
	_ = addCmd.MarkFlagRequired("title")
	_ = addCmd.MarkFlagRequired("start")

	exportSelection.register(exportCmd)
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file, - for stdout (defaults to a dated file name)")
}
