package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/statement-extractor/internal/domain/queue"
	"github.com/FACorreiaa/statement-extractor/internal/domain/remote"
)

var (
	serveAddr   string
	serveEvents bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the remote extraction capability over HTTP",
	Long: `serve exposes POST /extract/{capability} for every remote extractor, plus
/healthz and /metrics. With --events the service also publishes its own
started/completed/error events on the status stream.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(context.Background())
		defer cancel()

		deps, err := setup()
		if err != nil {
			return err
		}
		defer deps.Cleanup()

		var events *queue.Publisher
		if serveEvents {
			events = deps.Events
		}

		cfg := deps.Config.Remote
		srvCfg := remote.ServerConfig{
			RateLimitPerSecond: cfg.RateLimitPerSecond,
			RateLimitBurst:     cfg.RateLimitBurst,
			CORSOrigins:        cfg.CORSOrigins,
		}
		if deps.Config.Observability.MetricsEnabled {
			srvCfg.Metrics = deps.Metrics.Handler()
		}
		service := remote.NewServer(deps.Registry, deps.Text, events, deps.Metrics, srvCfg, deps.Logger)

		addr := serveAddr
		if addr == "" {
			addr = cfg.ListenAddr
		}
		srv := &http.Server{
			Addr:              addr,
			Handler:           service.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			deps.Logger.Info("extraction service listening", slog.String("addr", addr))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		deps.Logger.Info("shutting down extraction service")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancelShutdown()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address; defaults to REMOTE_LISTEN_ADDR")
	serveCmd.Flags().BoolVar(&serveEvents, "events", false, "Publish the service's own status events")
}
