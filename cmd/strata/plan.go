package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eleven-am/strata/pkg/strata"
)

func newPlanCmd(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show the subnet tiers, address ranges and NAT strategy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}
			plan, err := strata.Preview(cfg)
			if err != nil {
				return err
			}
			printPlan(cmd.OutOrStdout(), cfg.Naming().Prefix(), plan)
			return nil
		},
	}
}

func printPlan(w io.Writer, prefix string, plan strata.Plan) {
	fmt.Fprintf(w, "network %s (%s)\n", prefix, plan.CIDR)
	fmt.Fprintf(w, "nat: %s\n", plan.NATStrategy)
	if len(plan.Tiers) == 0 {
		fmt.Fprintln(w, "tiers: none")
		return
	}
	fmt.Fprintln(w, "tiers:")
	for _, tier := range plan.Tiers {
		fmt.Fprintf(w, "  %-14s %-8s %s\n", tier.Tier.Label, tier.Tier.Kind.Class(), strings.Join(tier.CIDRs, " "))
	}
}
