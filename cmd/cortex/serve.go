package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/cortex/internal/cli"
	"github.com/aretw0/cortex/internal/inbox"
	httpAdapter "github.com/aretw0/cortex/pkg/adapters/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP gateway",
	Long: `Starts the HTTP gateway: POST /run runs a session, GET /tools and
POST /call_tool expose the discovered tools, GET /events streams session
events and GET /metrics serves Prometheus metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		cfg, app, err := buildApp(sigCtx, cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr, _ = cmd.Flags().GetString("addr")
		}

		handler := httpAdapter.NewHandler(app.Sessions.Guard(app.Agent),
			httpAdapter.WithStreams(app.Streams),
			httpAdapter.WithToken(cfg.Server.Token),
			httpAdapter.WithLogger(app.Logger),
			httpAdapter.WithGatherer(prometheus.DefaultGatherer),
		)

		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		withInbox, _ := cmd.Flags().GetBool("inbox")
		if withInbox {
			poller, err := newPoller(cfg.Inbox, app)
			if err != nil {
				return err
			}
			go func() {
				if err := poller.Run(sigCtx); err != nil {
					app.Logger.Error("Inbox poller stopped", "err", err)
				}
			}()
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			app.Logger.Info("Starting Cortex gateway", "address", srv.Addr, "tools", len(app.Agent.Tools()))
			serverErrors <- srv.ListenAndServe()
		}()

		// Blocking main and waiting for shutdown.
		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case <-sigCtx.Done():
			app.Logger.Info("Start shutdown", "signal", fmt.Sprint(sigCtx.Signal()))

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				app.Logger.Warn("Graceful shutdown did not complete", "timeout", 5*time.Second, "err", err)
				if err := srv.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("killing server: %w", err)
				}
			}
			app.Logger.Info("Cortex gateway stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (overrides server.addr)")
	serveCmd.Flags().Bool("inbox", false, "Also run the inbox poller")
}

func newPoller(cfg inbox.Config, app *cli.App) (*inbox.Poller, error) {
	opts := []inbox.Option{inbox.WithLogger(app.Logger)}
	if app.Locker != nil {
		opts = append(opts, inbox.WithLocker(app.Locker))
	}
	return inbox.New(cfg, app.Agent, app.Registry, opts...)
}
