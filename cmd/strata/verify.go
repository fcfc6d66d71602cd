package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eleven-am/strata/pkg/strata"
)

func newVerifyCmd(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Audit peering routes and hardened defaults of the published network",
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

			findings, err := stack.Verify(cmd.Context())
			if err != nil {
				return err
			}
			for _, f := range findings {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
			if len(findings) > 0 {
				return fmt.Errorf("verification failed: %d finding(s)", len(findings))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "verification passed")
			return nil
		},
	}
}
