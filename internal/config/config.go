// Package config loads the daemon configuration from /etc/battctl.toml,
// environment, and command-line flags, in ascending precedence.
package config

import (
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"codeberg.org/mutker/battctl/internal/errors"
)

const (
	DefaultLogLevel = "info"

	configName = "battctl"
	configType = "toml"
	configDir  = "/etc"
	envConfig  = "BATTCTL_CONFIG"

	defaultInterval         = 1
	defaultPlatform         = "auto"
	defaultCriticalCapacity = 20
	defaultBalanceMargin    = 10
	defaultHysteresis       = 3
	defaultStepCooldown     = 10
	defaultTrendWindow      = 5
	defaultLightLoad        = 300
)

type Config struct {
	Interval         int    `mapstructure:"interval"`
	Platform         string `mapstructure:"platform"`
	CriticalCapacity int    `mapstructure:"critical_capacity"`
	BalanceMargin    int    `mapstructure:"balance_margin"`
	Hysteresis       int    `mapstructure:"hysteresis"`
	StepCooldown     int    `mapstructure:"step_cooldown"`
	TrendWindow      int    `mapstructure:"trend_window"`
	LightLoad        int    `mapstructure:"light_load"`
	Monitor          bool   `mapstructure:"monitor"`
	Debug            bool   `mapstructure:"debug"`
	Verbose          bool   `mapstructure:"verbose"`
	LogLevel         string `mapstructure:"log_level"`
	Telemetry        bool   `mapstructure:"telemetry"`
	TelemetryDB      string `mapstructure:"database"`
}

func Load() (*Config, error) {
	errFactory := errors.New()

	v := viper.New()
	setDefaults(v)

	fs := pflag.NewFlagSet("battctl", pflag.ContinueOnError)
	fs.Int("interval", defaultInterval, "Seconds between control cycles")
	fs.String("platform", defaultPlatform, "Hardware platform (auto, pinephone, pinephone-pro)")
	fs.Int("critical-capacity", defaultCriticalCapacity, "Phone charge percentage treated as critical")
	fs.Int("balance-margin", defaultBalanceMargin, "Tolerated charge percentage gap between the batteries")
	fs.Int("hysteresis", defaultHysteresis, "Contrary cycles before a direction guess flips")
	fs.Int("step-cooldown", defaultStepCooldown, "Minimum cycles between limit steps")
	fs.Int("trend-window", defaultTrendWindow, "Cycles of voltage movement that count as a trend")
	fs.Int("light-load", defaultLightLoad, "Current draw in mA considered a light load")
	fs.Bool("monitor", false, "Only monitor, never touch the hardware")
	fs.Bool("debug", false, "Enable debugging mode")
	fs.Bool("verbose", false, "Enable verbose logging")
	fs.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	fs.Bool("telemetry", false, "Enable telemetry collection")
	fs.String("database", "", "Path to the telemetry database")

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	// Flags set on the command line beat the file and the defaults.
	fs.Visit(func(f *pflag.Flag) {
		v.Set(strings.ReplaceAll(f.Name, "-", "_"), f.Value.String())
	})

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("interval", defaultInterval)
	v.SetDefault("platform", defaultPlatform)
	v.SetDefault("critical_capacity", defaultCriticalCapacity)
	v.SetDefault("balance_margin", defaultBalanceMargin)
	v.SetDefault("hysteresis", defaultHysteresis)
	v.SetDefault("step_cooldown", defaultStepCooldown)
	v.SetDefault("trend_window", defaultTrendWindow)
	v.SetDefault("light_load", defaultLightLoad)
	v.SetDefault("monitor", false)
	v.SetDefault("debug", false)
	v.SetDefault("verbose", false)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("telemetry", false)
	v.SetDefault("database", "")
}

func readConfigFile(v *viper.Viper) error {
	errFactory := errors.New()

	if path := os.Getenv(envConfig); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
		return nil
	}

	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath(configDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	return nil
}

func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Interval < 1 {
		return errFactory.New(errors.ErrInvalidInterval)
	}
	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}
	if c.CriticalCapacity < 0 || c.CriticalCapacity > 100 {
		return errFactory.WithData(errors.ErrInvalidConfig, "critical_capacity out of range")
	}
	if c.BalanceMargin < 0 || c.BalanceMargin > 100 {
		return errFactory.WithData(errors.ErrInvalidConfig, "balance_margin out of range")
	}

	return nil
}
