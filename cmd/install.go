package cmd

import (
	"context"
	"fmt"
	"github.com/ngyewch/sideloader/archive"
	"github.com/ngyewch/sideloader/installer"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"os"
	"os/signal"
	"syscall"
)

var (
	installCmd = &cobra.Command{
		Use:   "install (archive or folder)",
		Short: "Install a package and its assets on a device",
		Args:  cobra.ExactArgs(1),
		RunE:  install,
	}
)

func install(cmd *cobra.Command, args []string) error {
	source, err := archive.ParseSource(args[0])
	if err != nil {
		return err
	}

	modeFlag, err := cmd.Flags().GetString("mode")
	if err != nil {
		return err
	}
	mode, err := installer.ParseMode(modeFlag)
	if err != nil {
		return err
	}

	deviceID := cfg.DeviceID
	if cmd.Flags().Changed("device") {
		deviceID, err = cmd.Flags().GetString("device")
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if cfg.MinAdbVersion != "" {
		_, err = newBridge().CheckVersion(ctx, cfg.MinAdbVersion)
		if err != nil {
			log.Warnf("adb version check: %v", err)
		}
	}

	controller := newController()
	controller.StartHousekeeping(ctx)

	// Registered before Start so an interrupt never bypasses the cleanup.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)
	watcher := watchInterrupts(signals, controller, cmd.ErrOrStderr())

	events, err := controller.Start(ctx, installer.Request{
		Source:   source,
		Mode:     mode,
		DeviceID: deviceID,
	})
	if err != nil {
		return err
	}
	watcher.started()

	var previous installer.Event
	var last installer.Event
	for event := range events {
		last = event
		if event.Step == previous.Step && event.Percent == previous.Percent && event.Detail == previous.Detail {
			continue
		}
		previous = event
		fmt.Fprintln(cmd.OutOrStdout(), event.String())
	}

	if !last.Step.Terminal() {
		return fmt.Errorf("event stream ended without a result")
	}
	switch last.Step {
	case installer.StepCompleted:
		return nil
	case installer.StepCancelled:
		return installer.ErrCancelled
	default:
		return fmt.Errorf("%s failed: %w", last.LastStep, last.Err)
	}
}

func init() {
	installCmd.Flags().String("mode", "assets", "installation mode (package, assets)")
	installCmd.Flags().String("device", "", "target device serial")

	rootCmd.AddCommand(installCmd)
}
