package cmd

import (
	"fmt"
	versionInfoCobra "github.com/ngyewch/go-versioninfo/cobra"
	"github.com/ngyewch/sideloader/adb"
	"github.com/ngyewch/sideloader/config"
	"github.com/ngyewch/sideloader/extract"
	"github.com/ngyewch/sideloader/installer"
	"github.com/ngyewch/sideloader/logging"
	"github.com/ngyewch/sideloader/procexec"
	"github.com/spf13/cobra"
	"os"
)

const appName = "sideloader"

var (
	cfgFile string
	cfg     *config.Config

	rootCmd = &cobra.Command{
		Use:               fmt.Sprintf("%s [flags]", appName),
		Short:             "Android package and asset sideloader",
		RunE:              help,
		PersistentPreRunE: initConfig,
		SilenceUsage:      true,
	}
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func help(cmd *cobra.Command, args []string) error {
	err := cmd.Help()
	if err != nil {
		return err
	}
	return nil
}

func init() {
	defaults := config.Default()

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is sideloader.yaml in the user config directory or the current directory)")
	flags.String("log-level", defaults.LogLevel, "log level")
	flags.String("log-file", defaults.LogFile, "log file, or console")
	flags.String("base-dir", defaults.BaseDir, "directory holding working directories")
	flags.String("adb-path", defaults.AdbPath, "adb executable")
	flags.String("sevenzip-path", defaults.SevenZipPath, "7z executable")
	flags.String("unrar-path", defaults.UnrarPath, "unrar executable")

	versionInfoCobra.AddVersionCmd(rootCmd, nil)
}

func initConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	return logging.InitLog(cfg.LogLevel, cfg.LogFile)
}

func newBridge() *adb.Bridge {
	return adb.New(cfg.AdbPath, procexec.NewRunner())
}

func newController() *installer.Controller {
	runner := procexec.NewRunner()
	return installer.New(installer.Options{
		BaseDir: cfg.BaseDir,
		Bridge:  adb.New(cfg.AdbPath, runner),
		Extract: extract.Options{
			Runner:       runner,
			SevenZipPath: cfg.SevenZipPath,
			UnrarPath:    cfg.UnrarPath,
		},
		StaleAge:          cfg.StaleAge,
		SweepInterval:     cfg.SweepInterval,
		CleanupRetryDelay: cfg.CleanupRetryDelay,
		KillGrace:         cfg.KillGrace,
	})
}
