package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newHistoryCommand() *cobra.Command {
	var (
		historyPath string
		limit       int
		runID       string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded deploy and undeploy runs",
		Long: `List the runs recorded in a local history database, newest first.
With --run, the per-entity outcomes of that run are shown instead.`,
		Example: `  # Recent runs
  morphctl history --history runs.db

  # Outcomes of one run
  morphctl history --history runs.db --run 4f7c...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(cmd.Context(), historyPath)
			if err != nil {
				return err
			}
			defer store.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer w.Flush()

			if runID != "" {
				items, err := store.ListRunItems(cmd.Context(), runID)
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "KIND\tNAME\tOUTCOME\tENTITY ID\tERROR")
				for _, item := range items {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
						item.Kind, item.Name, item.Outcome,
						strOr(item.EntityID, "-"), strOr(item.Error, ""))
				}
				return nil
			}

			runs, err := store.ListRuns(cmd.Context(), limit, 0)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "RUN\tOPERATION\tSTATUS\tSTARTED\tSOURCES")
			for _, run := range runs {
				var sources []string
				_ = json.Unmarshal([]byte(run.Sources), &sources)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\n",
					run.ID, run.Operation, run.Status,
					run.StartedAt.Format("2006-01-02 15:04:05"), sources)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&historyPath, "history", "", "SQLite history file")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")
	cmd.Flags().StringVar(&runID, "run", "", "show the entity outcomes of this run")
	cmd.MarkFlagRequired("history")

	return cmd
}

func strOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
