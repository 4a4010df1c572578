package commands

import (
	"github.com/spf13/cobra"
)

func newUndeployCommand() *cobra.Command {
	var (
		historyPath   string
		metricsListen string
		traceExporter string
		traceEndpoint string
	)

	cmd := &cobra.Command{
		Use:   "undeploy [file|dir]...",
		Short: "Remove previously deployed entity trees from Morpheus",
		Long: `Remove the entities described by one or more YAML files from the
Morpheus data API.

Deletion runs in the exact reverse of the deploy order, so parents are
removed before the children they reference. Entities that are already
absent are skipped without error, making a repeated undeploy a no-op.`,
		Example: `  # Undeploy a single file
  morphctl undeploy config/tasks.yaml

  # Undeploy a directory and record the run
  morphctl undeploy config/ --history runs.db`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(cmd.Context(), args, runOptions{
				undeploy:      true,
				historyPath:   historyPath,
				metricsListen: metricsListen,
				traceExporter: traceExporter,
				traceEndpoint: traceEndpoint,
			})
		},
	}

	cmd.Flags().StringVar(&historyPath, "history", "", "SQLite file to record run history in")
	cmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "expose Prometheus metrics on this address")
	cmd.Flags().StringVar(&traceExporter, "trace-exporter", "", "trace exporter (otlp, stdout)")
	cmd.Flags().StringVar(&traceEndpoint, "trace-endpoint", "", "OTLP trace endpoint")

	return cmd
}
