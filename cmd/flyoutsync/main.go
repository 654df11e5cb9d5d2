package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/johnwards/flyoutsync/internal/config"
	"github.com/johnwards/flyoutsync/internal/database"
	"github.com/johnwards/flyoutsync/internal/domain"
	"github.com/johnwards/flyoutsync/internal/flyout"
	"github.com/johnwards/flyoutsync/internal/jobs"
	"github.com/johnwards/flyoutsync/internal/logging"
	"github.com/johnwards/flyoutsync/internal/seed"
	"github.com/johnwards/flyoutsync/internal/store"
	flysync "github.com/johnwards/flyoutsync/internal/sync"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

// app is the state shared by every subcommand.
type app struct {
	cfg       config.Config
	logCloser io.Closer
}

func newRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "flyoutsync",
		Short:         "Keep local inquiries and clients in sync with FlyOut",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.logCloser != nil {
				return a.logCloser.Close()
			}
			return nil
		},
	}

	cmd.PersistentFlags().String("db", "", "SQLite database path (FLYOUT_DB)")
	cmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (FLYOUT_LOG_LEVEL)")
	cmd.PersistentFlags().String("log-format", "", "log format: text or json (FLYOUT_LOG_FORMAT)")
	cmd.PersistentFlags().String("log-file", "", "rotating log file (FLYOUT_LOG_FILE)")

	cmd.AddCommand(
		newServeCommand(a),
		newMigrateCommand(a),
		newPushCommand(a),
		newRetryCommand(a),
		newLogsCommand(a),
		newSettingsCommand(a),
	)
	return cmd
}

// init loads the environment configuration, applies flag overrides and
// installs the logger.
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	override := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	override("db", &cfg.DBPath)
	override("log-level", &cfg.LogLevel)
	override("log-format", &cfg.LogFormat)
	override("log-file", &cfg.LogFile)

	closer, err := logging.Setup(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	a.cfg = cfg
	a.logCloser = closer
	return nil
}

// services is an opened database with the sync engine wired over it.
type services struct {
	store  *store.Store
	client *flyout.Client
	engine *flysync.Engine
	worker *jobs.Worker
}

func (sv *services) Close() error {
	return sv.store.DB.Close()
}

// open opens and migrates the database, seeds first-boot settings from the
// environment and wires the sync engine.
func (a *app) open(ctx context.Context) (*services, error) {
	maps, err := config.LoadStatusMaps(a.cfg.StatusMapPath)
	if err != nil {
		return nil, fmt.Errorf("load status maps: %w", err)
	}

	db, err := database.Open(a.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s := store.New(db)
	seeded, err := seed.Settings(ctx, s.Settings, domain.Settings{
		BaseURL:    a.cfg.BaseURL,
		APIKey:     a.cfg.APIKey,
		EnableSync: a.cfg.EnableSync,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if seeded {
		slog.Info("stored FlyOut settings from environment")
	}

	client := flyout.New(flyout.Options{RateLimit: a.cfg.RateLimit})
	engine := flysync.New(s, client, jobs.NewQueue(s.Jobs), flysync.Config{
		StatusMaps:          maps,
		HTTPMaxRetries:      a.cfg.HTTPMaxRetries,
		HTTPRetryDelay:      a.cfg.HTTPRetryDelay,
		HTTPTimeout:         a.cfg.HTTPTimeout,
		RetryBaseDelay:      a.cfg.RetryDelay,
		RetryMaxDelay:       a.cfg.RetryMaxDelay,
		MaxScheduledRetries: a.cfg.MaxScheduledRetries,
	})
	worker := jobs.NewWorker(s.Jobs, jobs.WorkerConfig{PollInterval: a.cfg.WorkerPoll})
	engine.RegisterJobs(worker)

	return &services{store: s, client: client, engine: engine, worker: worker}, nil
}
