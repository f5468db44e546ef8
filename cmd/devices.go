package cmd

import (
	"fmt"
	"github.com/spf13/cobra"
	"sort"
	"strings"
	"text/tabwriter"
)

var (
	devicesCmd = &cobra.Command{
		Use:   "devices",
		Short: "List attached devices",
		Args:  cobra.NoArgs,
		RunE:  devices,
	}
)

func devices(cmd *cobra.Command, args []string) error {
	list, err := newBridge().Devices(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SERIAL\tSTATE\tATTRIBUTES")
	for _, device := range list {
		var attributes []string
		for key, value := range device.Attributes {
			attributes = append(attributes, key+"="+value)
		}
		sort.Strings(attributes)
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", device.Serial, device.State, strings.Join(attributes, " "))
	}
	return w.Flush()
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
