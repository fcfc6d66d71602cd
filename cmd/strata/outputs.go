package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/eleven-am/strata/pkg/strata"
)

func newOutputsCmd(load loadFunc) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "outputs",
		Short: "Print the outputs document published for peers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			stack, err := strata.Connect(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			out, err := stack.Outputs(cmd.Context())
			if err != nil {
				return err
			}

			switch format {
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			case "yaml":
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				defer enc.Close()
				return enc.Encode(out)
			default:
				return fmt.Errorf("unknown format %q: want yaml or json", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "Output format: yaml or json")
	return cmd
}
