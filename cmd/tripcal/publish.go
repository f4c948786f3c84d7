package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/beekhof/tripcal/internal/auth"
	calclient "github.com/beekhof/tripcal/internal/calendar"
	"github.com/beekhof/tripcal/internal/config"
	tripsync "github.com/beekhof/tripcal/internal/sync"
)

var (
	publishManualCode bool
	publishCalendar   string
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Mirror all events into a dedicated Google Calendar",
	Long: `Mirror every event into a dedicated Google Calendar.

The local event list is the source of truth. This command will:
    - UPDATE mirrored events whose local event changed
    - DELETE mirrored events whose local event no longer exists
    - INSERT events that have no mirror yet
Events created by hand in the destination calendar are left alone.

On first run you are asked to authorize access. The OAuth token is kept in
the storage backend under google.token_key.`,
	RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
		ctx := cmd.Context()

		credsPath := a.cfg.Google.CredentialsPath
		if credsPath == "" {
			return fmt.Errorf("google.credentials_path must be provided via GOOGLE_CREDENTIALS_PATH environment variable or config file")
		}
		clientID, clientSecret, err := config.LoadGoogleCredentials(credsPath)
		if err != nil {
			return fmt.Errorf("failed to load Google credentials: %w", err)
		}

		authenticator := auth.NewAuthenticator(
			auth.GoogleConfig(clientID, clientSecret),
			auth.NewKVTokenStore(a.kv, a.cfg.Google.TokenKey),
			cmd.ErrOrStderr(),
			a.log,
		)

		var httpClient *http.Client
		if publishManualCode {
			httpClient, err = authenticator.ClientWithReader(ctx, os.Stdin)
		} else {
			httpClient, err = authenticator.Client(ctx)
		}
		if err != nil {
			return fmt.Errorf("failed to authenticate: %w", err)
		}

		client, err := calclient.NewClient(ctx, httpClient, a.log)
		if err != nil {
			return err
		}

		name := a.cfg.Google.CalendarName
		if publishCalendar != "" {
			name = publishCalendar
		}
		publisher := tripsync.NewPublisher(client, tripsync.PublishOptions{
			CalendarName: name,
			ColorID:      a.cfg.Google.CalendarColorID,
			Location:     a.loc,
		}, a.log)

		res, err := publisher.Publish(ctx, a.store.Events())
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d created, %d updated, %d deleted, %d failed\n",
			name, res.Created, res.Updated, res.Deleted, res.Failed)
		if res.Failed > 0 {
			return fmt.Errorf("%d event(s) could not be published", res.Failed)
		}
		return nil
	}),
}

func init() {
	publishCmd.Flags().BoolVar(&publishManualCode, "manual-code", false, "Paste the authorization code instead of running a local callback server")
	publishCmd.Flags().StringVar(&publishCalendar, "calendar", "", "Destination calendar name (defaults to google.calendar_name)")
}
