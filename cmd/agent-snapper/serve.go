package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/agent-snapper/pkg/dispatch"
	"github.com/cuemby/agent-snapper/pkg/events"
	"github.com/cuemby/agent-snapper/pkg/log"
	"github.com/cuemby/agent-snapper/pkg/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve --snap NAME --config FILE",
	Short: "Run the agent lifecycle loop",
	Long: `Run a long-lived loop that stands in for the orchestrator's periodic
hooks: update-status every status_interval, redelivery of deferred events
every retry_interval, and config-changed whenever the configuration file
changes. Metrics are served on /metrics, health on /healthz and /ready.`,
	RunE: runServe,
}

func init() {
	addSpecFlags(serveCmd)
	serveCmd.Flags().StringP("config", "c", "", "Orchestrator configuration file (YAML)")
	serveCmd.Flags().Bool("leader", false, "This unit is the leader")
	serveCmd.Flags().String("metrics-addr", "", "Address for /metrics and health endpoints (overrides settings)")
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	leader, _ := cmd.Flags().GetBool("leader")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	if metricsAddr == "" {
		metricsAddr = settings.MetricsAddr
	}

	spec, err := specFromFlags(cmd)
	if err != nil {
		return err
	}
	logger := log.WithSnap(spec.Name).With().Str("component", "serve").Logger()

	if _, err := os.Stat(settings.SnapPath); err != nil {
		metrics.UpdateComponent(metrics.ComponentSnap, false, err.Error())
	} else {
		metrics.UpdateComponent(metrics.ComponentSnap, true, "")
	}

	store, err := openStore()
	if err != nil {
		metrics.UpdateComponent(metrics.ComponentJournal, false, err.Error())
		return err
	}
	defer store.Close()
	metrics.UpdateComponent(metrics.ComponentJournal, true, "")

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	// Mirror broker traffic into the debug log
	sub := broker.Subscribe()
	go func() {
		for ev := range sub {
			logger.Debug().Str("type", string(ev.Type)).Str("id", ev.ID).Msg(ev.Message)
		}
	}()
	defer broker.Unsubscribe(sub)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	server := &http.Server{
		Addr:              metricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server error: %w", err)
		}
	}()

	d := newDispatcher(spec, store, broker)
	loop := dispatch.NewLoop(d, dispatch.LoopConfig{
		Leader:         leader,
		StatusInterval: settings.StatusInterval.Duration,
		RetryInterval:  settings.RetryInterval.Duration,
		Source: func() (map[string]string, error) {
			return loadConfig(configPath)
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop.Start(ctx)

	logger.Info().
		Str("metrics_addr", metricsAddr).
		Bool("leader", leader).
		Dur("status_interval", settings.StatusInterval.Duration).
		Dur("retry_interval", settings.RetryInterval.Duration).
		Msg("Serving")

	// Wait for interrupt signal or metrics server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("Shutting down")
	}

	// Let the event in flight finish before closing the journal
	loop.Stop()
	metrics.UpdateComponent(metrics.ComponentDispatcher, false, "stopped")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Failed to stop metrics server")
	}
	return runErr
}
