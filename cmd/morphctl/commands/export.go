package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/openmorph/morphctl/pkg/directive"
)

func newExportCommand() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "export <path>",
		Short: "Export a remote entity as a deployable YAML document",
		Long: `Look a remote entity up by name and print it as a YAML document
keyed by its entity directive, ready to be committed and deployed.`,
		Example: `  # Export optionType foo
  morphctl export optionTypes --name foo > foo.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			client, err := newClient(logger, nil)
			if err != nil {
				return err
			}

			entity, err := client.LookupByName(cmd.Context(), args[0], name)
			if err != nil {
				return err
			}

			apiPath := directive.APIPath(args[0])
			doc := map[string]interface{}{
				"$" + directive.EntityFromPath(apiPath, "", true): entity,
			}
			out, err := yaml.Marshal(doc)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "entity name to export")
	cmd.MarkFlagRequired("name")

	return cmd
}
