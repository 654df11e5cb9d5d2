package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/johnwards/flyoutsync/internal/api"
	"github.com/johnwards/flyoutsync/internal/api/admin"
	"github.com/johnwards/flyoutsync/internal/api/records"
	"github.com/johnwards/flyoutsync/internal/api/settings"
	"github.com/johnwards/flyoutsync/internal/api/synclogs"
	"github.com/johnwards/flyoutsync/internal/api/webhooks"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand(a *app) *cobra.Command {
	var addr, adminToken string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the FlyOut webhooks and admin API and run the retry worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Addr = addr
			}
			if cmd.Flags().Changed("admin-token") {
				a.cfg.AdminToken = adminToken
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (FLYOUT_ADDR)")
	cmd.Flags().StringVar(&adminToken, "admin-token", "", "bearer token for the admin API (FLYOUT_ADMIN_TOKEN)")
	return cmd
}

func (a *app) serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sv, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = sv.Close() }()

	if a.cfg.AdminToken == "" {
		slog.Warn("FLYOUT_ADMIN_TOKEN is not set; the admin API is unauthenticated")
	}

	srv := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           newHandler(sv, a.cfg.AdminToken),
		ReadHeaderTimeout: 10 * time.Second,
	}

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := sv.worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("job worker stopped", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("starting flyoutsync server", "addr", a.cfg.Addr, "db", a.cfg.DBPath)
	err = srv.ListenAndServe()
	stop()
	<-workerDone
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// newHandler builds the full HTTP handler: webhook, record, sync log,
// settings and admin routes behind the standard middleware chain.
func newHandler(sv *services, adminToken string) http.Handler {
	mux := http.NewServeMux()

	webhooks.RegisterRoutes(mux, sv.store, sv.engine)
	records.RegisterRoutes(mux, sv.store, sv.engine)
	synclogs.RegisterRoutes(mux, sv.store, sv.engine)
	settings.RegisterRoutes(mux, sv.store, sv.client)
	admin.RegisterRoutes(mux, sv.store)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		api.WriteError(w, http.StatusNotFound, api.NewNotFoundError(
			fmt.Sprintf("No route found for %s %s", r.Method, r.URL.Path),
			api.CorrelationID(r.Context()),
		))
	})

	return api.Chain(mux,
		api.Recovery(),
		api.RequestID(),
		api.Auth(adminToken),
		api.JSONContentType(),
		api.Logging(),
	)
}
