package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newGetCommand() *cobra.Command {
	var (
		name       string
		yamlOutput bool
	)

	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Query the Morpheus data API",
		Long: `Query an API collection and print the response.

The path may be a collection alias (optionTypes), a relative API path
(library/option-types) or an absolute one (/api/library/option-types).
With --name, only the entity with that exact name is printed.`,
		Example: `  # Full collection response
  morphctl get optionTypes

  # One entity, as YAML
  morphctl get optionTypes --name foo -y`,
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

			var result interface{}
			if name != "" {
				result, err = client.LookupByName(cmd.Context(), args[0], name)
			} else {
				result, err = client.Call(cmd.Context(), "GET", args[0], nil)
			}
			if err != nil {
				return err
			}

			out, err := render(result, yamlOutput)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "entity name to look up")
	cmd.Flags().BoolVarP(&yamlOutput, "yaml", "y", false, "output YAML instead of JSON")

	return cmd
}

// render marshals an API response for terminal output.
func render(v interface{}, asYAML bool) (string, error) {
	if asYAML {
		out, err := yaml.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}
