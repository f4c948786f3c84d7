// Command tripcal keeps a trip calendar: it derives events from trips,
// itinerary activities and transport legs, answers date queries, exports
// iCalendar files and publishes to Google Calendar.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"github.com/beekhof/tripcal/internal/config"
	"github.com/beekhof/tripcal/internal/ics"
	"github.com/beekhof/tripcal/internal/kv"
	"github.com/beekhof/tripcal/internal/logger"
	"github.com/beekhof/tripcal/internal/query"
	"github.com/beekhof/tripcal/internal/store"
	tripsync "github.com/beekhof/tripcal/internal/sync"
)

// Global flags.
var (
	configFile     string
	userID         string
	storageBackend string
	storagePath    string
	verbose        bool
)

var rootCmd = &cobra.Command{
	Use:   "tripcal",
	Short: "Trip calendar: sync, query, export and publish travel events",
	Long: `tripcal keeps a calendar of travel events.

Events are derived from trips (a departure and a return event each),
itinerary activities and transport legs, or added by hand. Deriving is
idempotent: a record that already produced an event is skipped.

CONFIGURATION PRECEDENCE (highest to lowest):
    1. Command-line flags
    2. Environment variables (TRIPCAL_USER_ID, TRIPCAL_STORAGE_BACKEND,
       TRIPCAL_STORAGE_PATH, REDIS_URL, DATABASE_URL, TRIPCAL_LISTEN,
       LOG_LEVEL, GOOGLE_CREDENTIALS_PATH)
    3. Config file (--config, JSON or YAML)
    4. Defaults`,
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Path to JSON or YAML config file")
	flags.StringVar(&userID, "user", "", "User whose events are read and written")
	flags.StringVar(&storageBackend, "storage", "", "Storage backend: memory, file, redis or postgres")
	flags.StringVar(&storagePath, "storage-path", "", "Directory for the file backend")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output (show DEBUG logs)")

	rootCmd.AddCommand(
		syncCmd,
		listCmd,
		addCmd,
		exportCmd,
		linkCmd,
		importCmd,
		publishCmd,
		serveCmd,
		migrateCmd,
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// app bundles what every command needs.
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	loc    *time.Location
	kv     kv.Store
	store  *store.Store
	query  *query.Engine
	engine *tripsync.Engine
}

// loadConfig applies the global flags to the configuration and builds the
// logger. listen overrides the configured listen address when set.
func loadConfig(listen string) (*config.Config, *logger.Logger, error) {
	overrides := config.Overrides{
		UserID:         userID,
		StorageBackend: storageBackend,
		StoragePath:    storagePath,
		Listen:         listen,
	}
	if verbose {
		overrides.LogLevel = "debug"
	}

	cfg, err := config.LoadConfig(configFile, overrides)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, logger.New(cfg.LogLevel, cfg.LogFormat), nil
}

// newApp opens the storage backend and loads the user's events.
func newApp(ctx context.Context, listen string) (*app, error) {
	cfg, log, err := loadConfig(listen)
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	backend, err := kv.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Backend, err)
	}

	st := store.New(backend, cfg.UserID, log)
	if err := st.Load(ctx); err != nil {
		_ = backend.Close()
		return nil, err
	}

	log.Debug("storage ready", "backend", cfg.Storage.Backend, "key", st.Key(), "events", len(st.Events()))

	return &app{
		cfg:    cfg,
		log:    log,
		loc:    loc,
		kv:     backend,
		store:  st,
		query:  query.NewEngine(st),
		engine: tripsync.NewEngine(st, loc, log),
	}, nil
}

// exportOptions returns the calendar header used for exported documents.
func (a *app) exportOptions() ics.Options {
	return ics.Options{
		CalendarName: a.cfg.CalendarName,
		Description:  a.cfg.CalendarDescription,
		Timezone:     a.cfg.Timezone,
	}
}

func (a *app) Close() {
	if err := a.kv.Close(); err != nil {
		a.log.Warn("failed to close storage", "err", err)
	}
	_ = a.log.Sync()
}

// withApp adapts a command body that needs an app into a cobra RunE.
func withApp(run func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "")
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd, a, args)
	}
}
