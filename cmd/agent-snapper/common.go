package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/agent-snapper/pkg/agents"
	"github.com/cuemby/agent-snapper/pkg/config"
	"github.com/cuemby/agent-snapper/pkg/dispatch"
	"github.com/cuemby/agent-snapper/pkg/events"
	"github.com/cuemby/agent-snapper/pkg/reconciler"
	"github.com/cuemby/agent-snapper/pkg/snap"
	"github.com/cuemby/agent-snapper/pkg/status"
	"github.com/cuemby/agent-snapper/pkg/storage"
	"github.com/cuemby/agent-snapper/pkg/types"
)

// addSpecFlags registers the flags that describe the managed snap
func addSpecFlags(cmd *cobra.Command) {
	cmd.Flags().String("snap", "", "Snap to manage (required)")
	cmd.Flags().Bool("legacy", false, "Read configuration from the snap-config block")
	cmd.Flags().String("channel", "", "Default snap channel when snap-channel is not configured")
	cmd.Flags().StringSlice("require", nil, "Additional required configuration keys (not allowed with --legacy)")
	_ = cmd.MarkFlagRequired("snap")
}

func specFromFlags(cmd *cobra.Command) (types.PackageSpec, error) {
	name, _ := cmd.Flags().GetString("snap")
	legacy, _ := cmd.Flags().GetBool("legacy")
	channel, _ := cmd.Flags().GetString("channel")
	extra, _ := cmd.Flags().GetStringSlice("require")

	variant := types.VariantPrefixed
	if legacy {
		variant = types.VariantLegacy
	}
	return agents.SpecFor(name, variant, channel, extra)
}

// loadConfig reads the orchestrator configuration, empty when path is ""
func loadConfig(path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}
	return config.LoadRaw(path)
}

func openStore() (*storage.BoltStore, error) {
	store, err := storage.NewBoltStore(settings.StateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal in %s: %w", settings.StateDir, err)
	}
	return store, nil
}

// newDispatcher wires the engine, reporter and journal for spec. broker may
// be nil.
func newDispatcher(spec types.PackageSpec, store *storage.BoltStore, broker *events.Broker) *dispatch.Dispatcher {
	sinks := []status.Sink{status.NewJournalSink(store)}
	opts := []dispatch.Option{dispatch.WithDeferredStore(store)}
	if broker != nil {
		sinks = append(sinks, status.NewBrokerSink(broker))
		opts = append(opts, dispatch.WithBroker(broker))
	}

	reporter := status.NewReporter(spec.Name, sinks...)
	client := snap.NewClient(settings.SnapPath, snap.NewCommandRunner())
	engine := reconciler.NewEngine(spec, client, reconciler.WithInterimStatus(reporter.Interim))
	return dispatch.New(engine, reporter, opts...)
}

func formatStatus(tag types.StatusTag, message string) string {
	if tag == "" {
		return "(unchanged)"
	}
	return types.Status{Tag: tag, Message: message}.String()
}
