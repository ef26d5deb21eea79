package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/agent-snapper/pkg/dispatch"
	"github.com/cuemby/agent-snapper/pkg/types"
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch EVENT --snap NAME",
	Short: "Handle one lifecycle event",
	Long: `Handle a single lifecycle event for a snap and print the resulting
unit status. The outcome is recorded in the journal; an event that asks
for a retry is kept there until an equivalent event succeeds.

Events: install, config-changed, start, stop, remove, update-status

Examples:
  # Install the agent from the configured channel
  agent-snapper dispatch install --snap jobbergate-agent --config charm.yaml

  # Apply configuration on the leader unit
  agent-snapper dispatch config-changed --snap vantage-agent --config charm.yaml --leader`,
	Args: cobra.ExactArgs(1),
	RunE: runDispatch,
}

func init() {
	addSpecFlags(dispatchCmd)
	dispatchCmd.Flags().StringP("config", "c", "", "Orchestrator configuration file (YAML)")
	dispatchCmd.Flags().Bool("leader", false, "This unit is the leader")
	dispatchCmd.Flags().String("event-id", "", "Event ID (generated when empty)")
}

func runDispatch(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	leader, _ := cmd.Flags().GetBool("leader")
	eventID, _ := cmd.Flags().GetString("event-id")

	spec, err := specFromFlags(cmd)
	if err != nil {
		return err
	}
	raw, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := newDispatcher(spec, store, nil)
	record, err := d.Dispatch(ctx, types.Event{
		ID:     eventID,
		Kind:   types.EventKind(args[0]),
		Leader: leader,
		Config: raw,
	})
	if errors.Is(err, dispatch.ErrUnknownEvent) {
		return fmt.Errorf("%w (supported: %s)", err, supportedKinds())
	}
	if err != nil {
		return err
	}

	fmt.Printf("Event: %s (%s)\n", record.Kind, record.EventID)
	fmt.Printf("State: %s\n", record.State)
	fmt.Printf("Status: %s\n", formatStatus(record.Tag, record.Message))
	if record.Retry {
		fmt.Println("retry requested")
	}
	return nil
}

func supportedKinds() string {
	kinds := make([]string, 0, len(types.EventKinds))
	for _, k := range types.EventKinds {
		kinds = append(kinds, string(k))
	}
	return strings.Join(kinds, ", ")
}
