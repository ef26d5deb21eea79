package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/agent-snapper/pkg/config"
	"github.com/cuemby/agent-snapper/pkg/log"
	"github.com/cuemby/agent-snapper/pkg/metrics"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// DefaultSettingsPath is read when --settings is not given
const DefaultSettingsPath = "/etc/agent-snapper/settings.toml"

// settings is loaded once before any subcommand runs
var settings = config.DefaultSettings()

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "agent-snapper",
	Short: "agent-snapper - lifecycle manager for snapped agents",
	Long: `agent-snapper installs, configures and supervises a snap packaged
agent on behalf of an orchestrator that delivers lifecycle events
(install, config-changed, start, stop, remove, update-status).

Each event is reconciled against the snap CLI and ends with a unit
status; events that cannot run yet are recorded for redelivery.`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

func init() {
	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"agent-snapper version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("settings", DefaultSettingsPath, "Settings file (TOML)")
	rootCmd.PersistentFlags().String("state-dir", "", "Directory for the outcome journal (overrides settings)")
	rootCmd.PersistentFlags().String("snap-path", "", "Path to the snap binary (overrides settings)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides settings)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Emit logs as JSON")

	// Add subcommands
	rootCmd.AddCommand(dispatchCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadSettings(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("settings")

	// The default location is optional, an explicit path is not
	loaded, err := config.LoadSettings(path, !cmd.Flags().Changed("settings"))
	if err != nil {
		return err
	}

	if v, _ := cmd.Flags().GetString("state-dir"); v != "" {
		loaded.StateDir = v
	}
	if v, _ := cmd.Flags().GetString("snap-path"); v != "" {
		loaded.SnapPath = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		loaded.LogLevel = v
	}
	if cmd.Flags().Changed("log-json") {
		loaded.LogJSON, _ = cmd.Flags().GetBool("log-json")
	}
	settings = loaded

	log.Init(log.Config{
		Level:      log.ParseLevel(settings.LogLevel),
		JSONOutput: settings.LogJSON,
	})
	metrics.SetVersion(Version)
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("agent-snapper version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime)
	},
}
