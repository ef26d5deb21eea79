package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cuemby/agent-snapper/pkg/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status --snap NAME",
	Short: "Show the last recorded outcome for a snap",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("snap")

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		record, err := store.LastOutcome(name)
		if errors.Is(err, storage.ErrNotFound) {
			fmt.Printf("No events recorded for %s\n", name)
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Printf("Snap: %s\n", record.Snap)
		fmt.Printf("Status: %s\n", formatStatus(record.Tag, record.Message))
		fmt.Printf("State: %s\n", record.State)
		fmt.Printf("Last event: %s (%s)\n", record.Kind, record.EventID)
		fmt.Printf("Leader: %t\n", record.Leader)
		fmt.Printf("At: %s\n", record.Timestamp.Format("2006-01-02 15:04:05 MST"))

		deferred, err := store.ListDeferred(name)
		if err != nil {
			return err
		}
		for _, ev := range deferred {
			fmt.Printf("Deferred: %s (attempts: %d, since %s)\n",
				ev.Kind, ev.Attempts, ev.Deferred.Format("2006-01-02 15:04:05 MST"))
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history --snap NAME",
	Short: "List recorded outcomes, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("snap")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.ListOutcomes(name, limit)
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		}

		if len(records) == 0 {
			fmt.Printf("No events recorded for %s\n", name)
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tEVENT\tLEADER\tSTATE\tSTATUS\tRETRY\tDURATION")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\t%t\t%s\n",
				r.Timestamp.Format("2006-01-02 15:04:05"),
				r.Kind, r.Leader, r.State,
				formatStatus(r.Tag, r.Message),
				r.Retry, r.Duration)
		}
		return w.Flush()
	},
}

func init() {
	statusCmd.Flags().String("snap", "", "Snap name (required)")
	_ = statusCmd.MarkFlagRequired("snap")

	historyCmd.Flags().String("snap", "", "Snap name (required)")
	historyCmd.Flags().Int("limit", 20, "Maximum number of outcomes (0 for all)")
	historyCmd.Flags().Bool("json", false, "Print outcomes as JSON")
	_ = historyCmd.MarkFlagRequired("snap")
}
