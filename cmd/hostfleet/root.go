package main

import "github.com/spf13/cobra"

// newRootCmd returns the root command for the hostfleet CLI.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "hostfleet",
		Short:         "hostfleet — provision software across a fleet of hosts over SSH",
		Long:          "hostfleet drives checks, installers, and post-install verification across a set of target hosts, in parallel, from a single YAML manifest.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newGenerateConfigCmd())

	return root
}
