package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openmorph/morphctl/pkg/morpheus"
	"github.com/openmorph/morphctl/pkg/telemetry"
)

var (
	// Global flags
	hostFlag     string
	tokenFlag    string
	insecureFlag bool
	logLevel     string
	logFormat    string
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "morphctl",
		Short: "Morphctl - declarative Morpheus data deployment",
		Long: `Morphctl deploys declarative YAML entity trees to the Morpheus
management API and tears them down again.

Features:
  - Directive-annotated YAML ($optionType, $task, $job, ...)
  - Dependency-ordered create-or-update with ${id:path:name} references
  - Idempotent deploys: unchanged entities are left untouched
  - Orphan cleanup via $deleteIds sweeps
  - Local run history in SQLite`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVar(&hostFlag, "host", "", "Morpheus host (defaults to MORPHEUS_HOST)")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "Morpheus API token (defaults to MORPHEUS_TOKEN)")
	rootCmd.PersistentFlags().BoolVar(&insecureFlag, "insecure", false, "skip TLS certificate verification")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (console, json)")

	// Add subcommands
	rootCmd.AddCommand(newDeployCommand())
	rootCmd.AddCommand(newUndeployCommand())
	rootCmd.AddCommand(newGetCommand())
	rootCmd.AddCommand(newExportCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return rootCmd
}

// newLogger builds the process logger from the global flags.
func newLogger() (*telemetry.Logger, error) {
	return telemetry.NewLogger(telemetry.LoggingConfig{
		Level:  logLevel,
		Format: logFormat,
		Output: "stderr",
	})
}

// newClient builds the API client from flags and environment. metrics
// may be nil for commands that do not collect any.
func newClient(logger *telemetry.Logger, metrics *telemetry.Metrics) (*morpheus.Client, error) {
	cfg := morpheus.ConfigFromEnv()
	if hostFlag != "" {
		cfg.Host = hostFlag
	}
	if tokenFlag != "" {
		cfg.Token = tokenFlag
	}
	if insecureFlag {
		cfg.InsecureSkipVerify = true
	}
	cfg.Metrics = metrics
	return morpheus.NewClient(cfg, logger.Zerolog())
}
