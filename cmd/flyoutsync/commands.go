package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/johnwards/flyoutsync/internal/database"
	"github.com/johnwards/flyoutsync/internal/domain"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := database.Open(a.cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer func() { _ = db.Close() }()

			if err := database.Migrate(cmd.Context(), db); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "database %s is up to date\n", a.cfg.DBPath)
			return nil
		},
	}
}

func newPushCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "push <inquiry|client> <id>",
		Short: "Push a record's current state to FlyOut",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entityType, err := domain.ParseEntityType(args[0])
			if err != nil {
				return err
			}
			sv, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = sv.Close() }()

			res, err := sv.engine.Coordinator.SyncNow(cmd.Context(), entityType, args[1])
			if res != nil {
				if werr := writeJSON(cmd.OutOrStdout(), res); werr != nil {
					return werr
				}
			}
			return err
		},
	}
}

func newRetryCommand(a *app) *cobra.Command {
	var delay time.Duration
	var all bool

	cmd := &cobra.Command{
		Use:   "retry [log-id]",
		Short: "Schedule a retry of a failed push, or run the retries that are due",
		Long: `With a sync log id, schedule a retry of that failed push.

Without arguments, run every queued retry that is due and exit. --all runs
queued retries even if their delay has not passed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sv, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = sv.Close() }()
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				entry, err := sv.store.SyncLogs.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				scheduled, err := sv.engine.Scheduler.ScheduleRetry(cmd.Context(), entry.EntityType, entry.EntityID, entry.ID, delay)
				if err != nil {
					return err
				}
				if scheduled {
					_, _ = fmt.Fprintf(out, "retry of %s scheduled\n", entry.ID)
				} else {
					_, _ = fmt.Fprintf(out, "retry of %s not scheduled: already pending or retry limit reached\n", entry.ID)
				}
				return nil
			}

			if all {
				sv.worker.SetClock(func() time.Time { return time.Now().Add(100 * 365 * 24 * time.Hour) })
			}
			n, err := sv.worker.RunDue(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "ran %d job(s)\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&delay, "delay", 0, "delay before the retry runs (default: backoff for the retry count)")
	cmd.Flags().BoolVar(&all, "all", false, "run queued retries that are not yet due")
	return cmd
}

func newLogsCommand(a *app) *cobra.Command {
	var f domain.LogFilter
	var direction, status, entityType, format string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "List sync log entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "text" && format != "json" {
				return fmt.Errorf("invalid format %q: must be text or json", format)
			}
			f.Direction = domain.Direction(direction)
			f.Status = domain.LogStatus(status)
			if entityType != "" {
				t, err := domain.ParseEntityType(entityType)
				if err != nil {
					return err
				}
				f.EntityType = t
			}

			sv, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = sv.Close() }()

			page, err := sv.store.SyncLogs.List(cmd.Context(), f)
			if err != nil {
				return err
			}
			if format == "json" {
				return writeJSON(cmd.OutOrStdout(), page)
			}
			return writeLogTable(cmd.OutOrStdout(), page)
		},
	}
	cmd.Flags().StringVar(&direction, "direction", "", "Inbound or Outbound")
	cmd.Flags().StringVar(&status, "status", "", "Received, Attempting, Success or Error")
	cmd.Flags().StringVar(&entityType, "entity-type", "", "inquiry or client")
	cmd.Flags().StringVar(&f.EntityID, "entity-id", "", "local record id")
	cmd.Flags().StringVar(&f.RemoteID, "remote-id", "", "FlyOut id")
	cmd.Flags().IntVar(&f.Limit, "limit", 20, "entries per page")
	cmd.Flags().StringVar(&f.Before, "after", "", "cursor from a previous page")
	cmd.Flags().StringVar(&format, "format", "text", "output format (text|json)")
	return cmd
}

func writeLogTable(w io.Writer, page *domain.LogPage) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "CREATED\tID\tDIRECTION\tSTATUS\tENTITY\tREMOTE\tRETRIES\tERROR")
	for _, e := range page.Results {
		entity := string(e.EntityType)
		if e.EntityID != "" {
			entity += "/" + e.EntityID
		}
		retries := fmt.Sprint(e.RetryCount)
		if e.RetryScheduled {
			retries += "+"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt, e.ID, e.Direction, e.Status, entity, e.RemoteID, retries, e.ErrorMessage)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if page.HasMore {
		_, _ = fmt.Fprintf(w, "more: --after %s\n", page.After)
	}
	return nil
}

func newSettingsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the FlyOut settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sv, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = sv.Close() }()

			st, err := sv.store.Settings.Get(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), st.Redacted())
		},
	}
	cmd.AddCommand(newSettingsSetCommand(a), newSettingsTestCommand(a))
	return cmd
}

func newSettingsSetCommand(a *app) *cobra.Command {
	var baseURL, apiKey string
	var enable bool

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update the FlyOut settings; unset flags keep their value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sv, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = sv.Close() }()

			st, err := sv.store.Settings.Get(cmd.Context())
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("base-url") {
				st.BaseURL = baseURL
			}
			if flags.Changed("api-key") {
				st.APIKey = apiKey
			}
			if flags.Changed("enable") {
				st.EnableSync = enable
			}

			saved, err := sv.store.Settings.Save(cmd.Context(), st)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), saved.Redacted())
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "", "FlyOut API base URL")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "FlyOut API key")
	cmd.Flags().BoolVar(&enable, "enable", false, "enable synchronization (--enable=false disables)")
	return cmd
}

func newSettingsTestCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Check the stored credentials against FlyOut",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sv, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = sv.Close() }()

			st, err := sv.store.Settings.Get(cmd.Context())
			if err != nil {
				return err
			}
			resp, err := sv.client.Ping(cmd.Context(), st.BaseURL, st.APIKey)
			if err != nil {
				return fmt.Errorf("connection test failed: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "connection to FlyOut successful (HTTP %d)\n", resp.StatusCode)
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
