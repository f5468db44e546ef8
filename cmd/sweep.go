package cmd

import (
	"github.com/spf13/cobra"
)

var (
	sweepCmd = &cobra.Command{
		Use:   "sweep",
		Short: "Remove stale working directories",
		Args:  cobra.NoArgs,
		RunE:  sweep,
	}
)

func sweep(cmd *cobra.Command, args []string) error {
	return newController().Sweep()
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
