package cmd

import (
	"encoding/json"
	"fmt"
	"github.com/ngyewch/sideloader/installer"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	scanCmd = &cobra.Command{
		Use:   "scan (archive or folder)",
		Short: "Report whether a bundle contains a package and assets",
		Args:  cobra.ExactArgs(1),
		RunE:  scan,
	}
)

func scan(cmd *cobra.Command, args []string) error {
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	result, err := installer.New(installer.Options{BaseDir: cfg.BaseDir}).Scan(args[0])
	if err != nil {
		return err
	}

	switch output {
	case "json":
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	case "yaml":
		encoder := yaml.NewEncoder(cmd.OutOrStdout())
		defer func(encoder *yaml.Encoder) {
			_ = encoder.Close()
		}(encoder)
		return encoder.Encode(result)
	default:
		return fmt.Errorf("unknown output format %q", output)
	}
}

func init() {
	scanCmd.Flags().StringP("output", "o", "yaml", "output format (yaml, json)")

	rootCmd.AddCommand(scanCmd)
}
