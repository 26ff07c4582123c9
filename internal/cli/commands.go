package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/limbo/studytrack/internal/connectivity"
	errorvalues "github.com/limbo/studytrack/internal/error_values"
	"github.com/limbo/studytrack/internal/synchronizer"
	"github.com/limbo/studytrack/pkg/entity"
	"github.com/spf13/cobra"
)

var startLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04", "2006-01-02"}

// parseStart accepts RFC 3339 or a wall clock time in loc.
func parseStart(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range startLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: cannot parse start time %q", errorvalues.ErrInvalidSession, s)
}

// NewRootCmd builds the studytrack command tree. open is called once per command run.
func NewRootCmd(settings Settings, open Opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "studytrack",
		Short:         "Track study time, online or offline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&settings.Server, "server", settings.Server, "studytrack API base URL")
	root.PersistentFlags().StringVar(&settings.DBPath, "db", settings.DBPath, "local store file")

	load := func(cmd *cobra.Command) (*App, error) {
		return open(settings, cmd.OutOrStdout())
	}

	root.AddCommand(
		newRegisterCmd(load),
		newLoginCmd(load),
		newLogoutCmd(load),
		newAddCmd(load),
		newListCmd(load),
		newEditCmd(load),
		newDeleteCmd(load),
		newSyncCmd(load),
		newStatsCmd(load),
		newWatchCmd(load),
	)
	return root
}

type loader func(cmd *cobra.Command) (*App, error)

func newRegisterCmd(load loader) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "register <name>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := load(cmd)
			if err != nil {
				return err
			}
			uid, err := app.client.Register(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s (%s), now run login\n", args[0], uid)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLoginCmd(load loader) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <name>",
		Short: "Sign in and load your sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := load(cmd)
			if err != nil {
				return err
			}
			uid, err := app.Login(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s (%s)\n", args[0], uid)
			if n := app.sync.PendingCount(); n > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%d sessions wait for sync, run sync to send them\n", n)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCmd(load loader) *cobra.Command {
	var purge bool
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := load(cmd)
			if err != nil {
				return err
			}
			if purge {
				if n := app.sync.PendingCount(); n > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "dropping %d unsynced sessions\n", n)
				}
			}
			if err = app.Logout(cmd.Context(), purge); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
	cmd.Flags().BoolVar(&purge, "purge", false, "also delete sessions saved on this device")
	return cmd
}

type sessionFlags struct {
	subject string
	minutes int
	start   string
	note    string
}

func (f *sessionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.subject, "subject", "s", "", "what was studied")
	cmd.Flags().IntVarP(&f.minutes, "minutes", "m", 0, "duration in minutes, 1 to 1440")
	cmd.Flags().StringVar(&f.start, "at", "", "start time, RFC 3339 or \"2006-01-02 15:04\" local (default now)")
	cmd.Flags().StringVar(&f.note, "note", "", "optional note")
}

// apply overrides the fields of base whose flags were set on cmd.
func (f *sessionFlags) apply(cmd *cobra.Command, base entity.SessionForm) (entity.SessionForm, error) {
	flags := cmd.Flags()
	if flags.Changed("subject") {
		base.Subject = f.subject
	}
	if flags.Changed("minutes") {
		base.Minutes = f.minutes
	}
	if flags.Changed("note") {
		base.Note = f.note
	}
	if flags.Changed("at") {
		start, err := parseStart(f.start, time.Local)
		if err != nil {
			return entity.SessionForm{}, err
		}
		base.StartedAt = start
	}
	return base, nil
}

func newAddCmd(load loader) *cobra.Command {
	var flags sessionFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a study session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			form, err := flags.apply(cmd, entity.SessionForm{StartedAt: time.Now()})
			if err != nil {
				return err
			}
			app, err := load(cmd)
			if err != nil {
				return err
			}
			session, err := app.sync.Add(cmd.Context(), form)
			if err != nil {
				return err
			}
			RenderSessions(cmd.OutOrStdout(), []entity.Session{session}, time.Local)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newListCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show your sessions, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := load(cmd)
			if err != nil {
				return err
			}
			if _, err = app.requireIdentity(); err != nil {
				return err
			}
			app.sync.Fetch(cmd.Context())
			RenderSessions(cmd.OutOrStdout(), app.sync.Sessions(), time.Local)
			return nil
		},
	}
}

func findSession(sessions []entity.Session, id entity.SessionID) (entity.Session, bool) {
	for _, s := range sessions {
		if s.ID == id {
			return s, true
		}
	}
	return entity.Session{}, false
}

func newEditCmd(load loader) *cobra.Command {
	var flags sessionFlags
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a synced session, unset flags keep their values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := entity.ParseSessionID(args[0])
			if err != nil {
				return err
			}
			app, err := load(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if id.IsPending() {
				_, err = app.sync.Update(ctx, id, entity.SessionForm{})
				return err
			}
			app.sync.Fetch(ctx)
			current, ok := findSession(app.sync.Sessions(), id)
			if !ok {
				return fmt.Errorf("session %s: %w", id, errorvalues.ErrSessionNotFound)
			}
			form, err := flags.apply(cmd, entity.SessionForm{
				Subject:   current.Subject,
				Minutes:   current.Minutes,
				StartedAt: current.StartedAt,
				Note:      current.Note,
			})
			if err != nil {
				return err
			}
			updated, err := app.sync.Update(ctx, id, form)
			if err != nil {
				return err
			}
			RenderSessions(cmd.OutOrStdout(), []entity.Session{updated}, time.Local)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newDeleteCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a session, unsynced ones are dropped from this device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := entity.ParseSessionID(args[0])
			if err != nil {
				return err
			}
			app, err := load(cmd)
			if err != nil {
				return err
			}
			return app.sync.Delete(cmd.Context(), id)
		},
	}
}

func newSyncCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Send sessions saved offline and reload the list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := load(cmd)
			if err != nil {
				return err
			}
			if _, err = app.requireIdentity(); err != nil {
				return err
			}
			ctx := cmd.Context()
			if app.sync.PendingCount() == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to sync")
			}
			if err = app.sync.SyncPending(ctx); err != nil {
				return err
			}
			app.sync.Fetch(ctx)
			return nil
		},
	}
}

func newStatsCmd(load loader) *cobra.Command {
	var (
		days     int
		format   string
		tz       string
		onServer bool
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show study statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if days < 1 || days > 365 {
				return fmt.Errorf("days must be within 1..365, got %d", days)
			}
			loc := time.Local
			if tz != "" {
				var err error
				if loc, err = time.LoadLocation(tz); err != nil {
					return fmt.Errorf("unknown time zone %q: %w", tz, err)
				}
			}
			app, err := load(cmd)
			if err != nil {
				return err
			}
			if _, err = app.requireIdentity(); err != nil {
				return err
			}
			ctx := cmd.Context()
			var report entity.StatsReport
			if onServer {
				remoteReport, err := app.client.Stats(ctx, days, loc)
				if err != nil {
					return err
				}
				report = *remoteReport
			} else {
				app.sync.Fetch(ctx)
				report = app.sync.Stats(days, loc)
			}
			return RenderStats(cmd.OutOrStdout(), report, format)
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "days in the daily breakdown")
	cmd.Flags().StringVar(&format, "format", FormatText, "output format: text|json|yaml")
	cmd.Flags().StringVar(&tz, "tz", "", "IANA time zone for day boundaries (default local)")
	cmd.Flags().BoolVar(&onServer, "server-side", false, "aggregate on the server, synced sessions only")
	return cmd
}

func newWatchCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stay running and sync whenever the server becomes reachable again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := load(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return app.Watch(ctx)
		},
	}
}

// Watch loads the list for the saved identity, then syncs on every offline to online
// transition of the server until ctx is done.
func (a *App) Watch(ctx context.Context) error {
	uid, err := a.requireIdentity()
	if err != nil {
		return err
	}
	events := make(chan synchronizer.IdentityEvent, 1)
	events <- synchronizer.IdentityEvent{UserID: uid, SignedIn: true}
	go a.sync.WatchIdentity(ctx, events)

	watcher := connectivity.New(a.client.Health, a.settings.ProbeInterval, a.logger)
	fmt.Fprintf(a.out, "watching %s every %s, %d sessions pending\n", a.settings.Server, a.settings.ProbeInterval, a.sync.PendingCount())
	a.sync.WatchConnectivity(ctx, watcher.Run(ctx))
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}
