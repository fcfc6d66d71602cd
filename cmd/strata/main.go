// Command strata provisions a tiered AWS VPC, its service endpoints and its
// peering to a bootstrap network.
//
// Usage:
//
//	strata plan    -c strata.yaml   Show the subnet plan without calling AWS
//	strata up      -c strata.yaml   Provision the network and publish outputs
//	strata verify  -c strata.yaml   Audit the published network
//	strata outputs -c strata.yaml   Print the published outputs
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/eleven-am/strata/internal/config"
)

// Set via -ldflags during a release.
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "strata",
		Short:         "Provision a tiered AWS network",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "strata.yaml", "Path to the network config (empty for env only)")

	load := func() (config.Config, *logrus.Entry, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return config.Config{}, nil, err
		}
		logger, err := cfg.Log.NewLogger()
		if err != nil {
			return config.Config{}, nil, err
		}
		logger.SetOutput(root.ErrOrStderr())
		return cfg, logger.WithField("stack", cfg.Naming().Prefix()), nil
	}

	root.AddCommand(
		newPlanCmd(load),
		newUpCmd(load),
		newVerifyCmd(load),
		newOutputsCmd(load),
	)
	return root
}

type loadFunc func() (config.Config, *logrus.Entry, error)
