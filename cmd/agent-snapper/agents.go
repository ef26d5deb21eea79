package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cuemby/agent-snapper/pkg/agents"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List built-in agent presets",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tDESCRIPTION\tREQUIRED CONFIG")
		for _, p := range agents.List() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name, p.Description, strings.Join(p.Required(), ", "))
		}
		return w.Flush()
	},
}
