package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/beekhof/tripcal/internal/api"
	"github.com/beekhof/tripcal/internal/scheduler"
	tripsync "github.com/beekhof/tripcal/internal/sync"
)

const resyncJob = "resync-sources"

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Serve the HTTP API.

When both sources_path and resync_cron are configured, the trips file is
re-synced on that schedule (standard five-field cron or @hourly style).`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, serveListen)
		if err != nil {
			return err
		}
		defer a.Close()

		sched := scheduler.New(a.loc, a.log)
		if a.cfg.SourcesPath != "" && a.cfg.ResyncCron != "" {
			if err := sched.Add(resyncJob, a.cfg.ResyncCron, resyncSources(a)); err != nil {
				return err
			}
			sched.Start()
		}

		srv := &http.Server{
			Addr:         a.cfg.Listen,
			Handler:      api.NewServer(a.store, a.query, a.engine, a.exportOptions(), a.log).Routes(),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			a.log.Info("server starting", "addr", srv.Addr, "user", a.cfg.UserID)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				_ = sched.Stop(context.Background())
				return fmt.Errorf("server error: %w", err)
			}
		case <-ctx.Done():
		}
		a.log.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		if err := sched.Stop(shutdownCtx); err != nil {
			a.log.Warn("scheduler did not stop in time", "err", err)
		}
		a.log.Info("server stopped")
		return nil
	},
}

// resyncSources returns the job that reloads the trips file and derives any
// new events from it.
func resyncSources(a *app) scheduler.Job {
	return func(ctx context.Context) error {
		src, err := tripsync.LoadSources(a.cfg.SourcesPath)
		if err != nil {
			return err
		}
		report, err := a.engine.SyncAll(ctx, src)
		if err != nil {
			return err
		}
		total := report.Total()
		a.log.Info("sources re-synced", "path", a.cfg.SourcesPath, "created", total.Created, "skipped", total.Skipped, "failed", total.Failed)
		return nil
	}
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (overrides the config file and TRIPCAL_LISTEN)")
}
