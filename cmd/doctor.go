package cmd

import (
	"fmt"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"os/exec"
)

var (
	doctorCmd = &cobra.Command{
		Use:   "doctor",
		Short: "Check that the external tools are available",
		Args:  cobra.NoArgs,
		RunE:  doctor,
	}
)

func doctor(cmd *cobra.Command, args []string) error {
	var result *multierror.Error
	out := cmd.OutOrStdout()

	for _, tool := range []string{cfg.AdbPath, cfg.SevenZipPath, cfg.UnrarPath} {
		path, err := exec.LookPath(tool)
		if err != nil {
			_, _ = fmt.Fprintf(out, "%-8s missing\n", tool)
			result = multierror.Append(result, err)
			continue
		}
		_, _ = fmt.Fprintf(out, "%-8s %s\n", tool, path)
	}

	version, err := newBridge().CheckVersion(cmd.Context(), cfg.MinAdbVersion)
	if err != nil {
		result = multierror.Append(result, err)
	}
	if version != nil {
		_, _ = fmt.Fprintf(out, "adb version %s (required %s)\n", version, cfg.MinAdbVersion)
	}

	return result.ErrorOrNil()
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
