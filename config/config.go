package config

import (
	"errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const EnvPrefix = "SIDELOADER"

type Config struct {
	BaseDir           string        `mapstructure:"base_dir" yaml:"base_dir"`
	DeviceID          string        `mapstructure:"device_id" yaml:"device_id"`
	AdbPath           string        `mapstructure:"adb_path" yaml:"adb_path"`
	SevenZipPath      string        `mapstructure:"sevenzip_path" yaml:"sevenzip_path"`
	UnrarPath         string        `mapstructure:"unrar_path" yaml:"unrar_path"`
	MinAdbVersion     string        `mapstructure:"min_adb_version" yaml:"min_adb_version"`
	StaleAge          time.Duration `mapstructure:"stale_age" yaml:"stale_age"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
	CleanupRetryDelay time.Duration `mapstructure:"cleanup_retry_delay" yaml:"cleanup_retry_delay"`
	KillGrace         time.Duration `mapstructure:"kill_grace" yaml:"kill_grace"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFile           string        `mapstructure:"log_file" yaml:"log_file"`
}

func Default() *Config {
	return &Config{
		BaseDir:           filepath.Join(os.TempDir(), "sideloader"),
		AdbPath:           "adb",
		SevenZipPath:      "7z",
		UnrarPath:         "unrar",
		MinAdbVersion:     ">= 1.0.36",
		StaleAge:          24 * time.Hour,
		SweepInterval:     time.Hour,
		CleanupRetryDelay: 2 * time.Second,
		KillGrace:         3 * time.Second,
		LogLevel:          "info",
		LogFile:           "console",
	}
}

// Load reads the configuration file, SIDELOADER_* environment variables and
// any changed flags, in increasing order of precedence. Flags are looked up
// by key with underscores written as dashes.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	cfg := Default()
	v := viper.New()

	setDefaults(v, cfg)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("sideloader")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for _, key := range v.AllKeys() {
			flag := flags.Lookup(strings.ReplaceAll(key, "_", "-"))
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, err
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("base_dir", cfg.BaseDir)
	v.SetDefault("device_id", cfg.DeviceID)
	v.SetDefault("adb_path", cfg.AdbPath)
	v.SetDefault("sevenzip_path", cfg.SevenZipPath)
	v.SetDefault("unrar_path", cfg.UnrarPath)
	v.SetDefault("min_adb_version", cfg.MinAdbVersion)
	v.SetDefault("stale_age", cfg.StaleAge)
	v.SetDefault("sweep_interval", cfg.SweepInterval)
	v.SetDefault("cleanup_retry_delay", cfg.CleanupRetryDelay)
	v.SetDefault("kill_grace", cfg.KillGrace)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_file", cfg.LogFile)
}

func configDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("AppData"), "sideloader")
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "sideloader")
}
