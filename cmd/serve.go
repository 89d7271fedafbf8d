package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"jiragent/internal/bootstrap"
	"jiragent/internal/bootstrap/logging"
	"jiragent/internal/errs"
	"jiragent/internal/ports"
	"jiragent/internal/usecase/intake"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the connection health poller",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *intake.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		addr, _ := cmd.Flags().GetString("addr")
		addr = strings.TrimSpace(addr)
		if addr == "" {
			addr = app.Config.Server.Addr
		}

		pollCtx, stopPoller := context.WithCancel(ctx)
		defer stopPoller()
		go runHealthPoller(pollCtx, svc, app.Config.Server.HealthPollInterval)

		server := &http.Server{
			Addr:    addr,
			Handler: newAPIHandler(svc),
			BaseContext: func(net.Listener) context.Context {
				return ctx
			},
		}

		logging.Info(ctx, "api server started",
			slog.String("addr", addr),
			slog.Duration("health_poll_interval", app.Config.Server.HealthPollInterval),
		)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error(ctx, "api server failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "serve api")
		}
		return nil
	}),
}

// runHealthPoller periodically re-tests the active jira connection so a
// credential revocation surfaces without anyone pressing the test button. It
// shares no state with in-flight engine operations beyond the store itself.
func runHealthPoller(ctx context.Context, svc *intake.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		conn, err := svc.ActiveJiraConnection(ctx)
		if err != nil {
			if !errors.Is(err, ports.ErrNoActiveConnection) {
				logging.Warn(ctx, "health poll lookup failed", slog.Any("err", errs.Loggable(err)))
			}
			continue
		}

		result, err := svc.TestConnection(ctx, conn.ConnectionID)
		if err != nil {
			logging.Warn(ctx, "health poll failed",
				slog.Int64("connection_id", conn.ConnectionID),
				slog.Any("err", errs.Loggable(err)),
			)
			continue
		}
		if !result.Success {
			logging.Warn(ctx, "active connection went unhealthy",
				slog.Int64("connection_id", conn.ConnectionID),
				slog.String("reason", result.FailureReason),
			)
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (defaults to server.addr from config)")
}
