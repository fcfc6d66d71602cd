package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eleven-am/strata/pkg/strata"
)

func newUpCmd(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Provision the network, endpoints and peering, then publish outputs",
		Long: `up converges the network described by the config. Every resource is
looked up by its logical id first, so re-running after a failure picks up
where the last run stopped.

Endpoint failures are reported at the end and do not stop the rest of the
network; outputs are still published in that case.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			stack, err := strata.Connect(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}

			topo, err := stack.Up(cmd.Context())
			if topo != nil && topo.Network != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "vpc %s (%s) peering %s\n", topo.Network.ID, topo.Network.CIDR, topo.Peering.State)
				for _, res := range topo.Endpoints.Results {
					status := res.ID
					if res.Err != nil {
						status = "failed"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "  endpoint %-12s %-9s %s\n", res.Service, res.Kind, status)
				}
			}
			return err
		},
	}
}
