package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"codeberg.org/mutker/hwctl/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultInterval = 2
	DefaultLogLevel = "info"

	DefaultServiceName        = "BZHDellSMMIO"
	DefaultDisplayName        = "BZH Dell SMM IO Driver"
	DefaultDevicePath         = `\\.\BZHDellSMMIO`
	DefaultIOCTLCode          = 0xB42B0000
	DefaultStartType          = "demand"
	DefaultErrorControl       = "normal"
	DefaultOpenRetries        = 5
	DefaultMaxFans            = 3
	DefaultMaxFanLevel        = 2
	DefaultTemperatureSensors = 4

	configName = "hwctl"
	configType = "toml"
)

type Config struct {
	Interval int    `mapstructure:"interval"`
	LogLevel string `mapstructure:"log_level"`
	Once     bool   `mapstructure:"once"`
	Cleanup  bool   `mapstructure:"cleanup"`

	Driver   DriverConfig   `mapstructure:"driver"`
	EC       ECConfig       `mapstructure:"ec"`
	GPU      GPUConfig      `mapstructure:"gpu"`
	Memory   MemoryConfig   `mapstructure:"memory"`
	Registry RegistryConfig `mapstructure:"registry"`
}

type DriverConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	ServiceName        string `mapstructure:"service_name"`
	DisplayName        string `mapstructure:"display_name"`
	BinaryPath         string `mapstructure:"binary_path"`
	DevicePath         string `mapstructure:"device_path"`
	IOCTLCode          uint32 `mapstructure:"ioctl_code"`
	StartType          string `mapstructure:"start_type"`
	ErrorControl       string `mapstructure:"error_control"`
	UninstallOnClose   bool   `mapstructure:"uninstall_on_close"`
	OpenRetries        int    `mapstructure:"open_retries"`
	MaxFans            int    `mapstructure:"max_fans"`
	MaxFanLevel        int    `mapstructure:"max_fan_level"`
	TemperatureSensors int    `mapstructure:"temperature_sensors"`
}

// ECSource describes one embedded controller register to expose as a sensor.
type ECSource struct {
	Name     string  `mapstructure:"name"`
	Register int     `mapstructure:"register"`
	Size     int     `mapstructure:"size"`
	Min      float64 `mapstructure:"min"`
	Max      float64 `mapstructure:"max"`
	Type     string  `mapstructure:"type"`
}

type ECConfig struct {
	Enabled bool       `mapstructure:"enabled"`
	Sources []ECSource `mapstructure:"sources"`
}

type GPUConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type MemoryConfig struct {
	DIMMReport bool `mapstructure:"dimm_report"`
}

type RegistryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from defaults, the config file, the environment
// and command line flags, in increasing order of precedence.
func Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := options{
		envPrefix: DefaultEnvPrefix,
		args:      os.Args[1:],
	}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, errFactory.Wrap(ErrInvalidOption, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	fs := newFlagSet()
	if err := fs.Parse(o.args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	for key, flagName := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(flagName)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v, resolveConfigPath(o, fs)); err != nil {
		return nil, err
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// normalize fills per-source defaults that viper cannot express for list entries.
func (c *Config) normalize() {
	for i := range c.EC.Sources {
		if c.EC.Sources[i].Size == 0 {
			c.EC.Sources[i].Size = 1
		}
		if c.EC.Sources[i].Type == "" {
			c.EC.Sources[i].Type = "temperature"
		}
	}
}

var flagKeys = map[string]string{
	"interval":       "interval",
	"log_level":      "log-level",
	"once":           "once",
	"cleanup":        "cleanup",
	"driver.enabled": "driver",
	"ec.enabled":     "ec",
	"gpu.enabled":    "gpu",
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet(configName, pflag.ContinueOnError)
	fs.StringP("config", "c", "", "Path to the configuration file")
	fs.IntP("interval", "i", DefaultInterval, "Seconds between hardware polls")
	fs.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	fs.Bool("once", false, "Poll once, print the inventory and exit")
	fs.Bool("cleanup", false, "Remove driver services left behind by earlier runs")
	fs.Bool("driver", false, "Install and use the SMM driver")
	fs.Bool("ec", false, "Read embedded controller registers")
	fs.Bool("gpu", true, "Expose NVIDIA GPUs through NVML")

	return fs
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("once", false)
	v.SetDefault("cleanup", false)

	v.SetDefault("driver.enabled", false)
	v.SetDefault("driver.service_name", DefaultServiceName)
	v.SetDefault("driver.display_name", DefaultDisplayName)
	v.SetDefault("driver.binary_path", "")
	v.SetDefault("driver.device_path", DefaultDevicePath)
	v.SetDefault("driver.ioctl_code", DefaultIOCTLCode)
	v.SetDefault("driver.start_type", DefaultStartType)
	v.SetDefault("driver.error_control", DefaultErrorControl)
	v.SetDefault("driver.uninstall_on_close", true)
	v.SetDefault("driver.open_retries", DefaultOpenRetries)
	v.SetDefault("driver.max_fans", DefaultMaxFans)
	v.SetDefault("driver.max_fan_level", DefaultMaxFanLevel)
	v.SetDefault("driver.temperature_sensors", DefaultTemperatureSensors)

	v.SetDefault("ec.enabled", false)
	v.SetDefault("gpu.enabled", true)
	v.SetDefault("memory.dimm_report", true)

	v.SetDefault("registry.enabled", false)
	v.SetDefault("registry.path", defaultRegistryPath())
}

func resolveConfigPath(o options, fs *pflag.FlagSet) string {
	if o.configPath != "" {
		return o.configPath
	}
	if path, err := fs.GetString("config"); err == nil && path != "" {
		return path
	}

	return os.Getenv(o.envPrefix + "_CONFIG")
}

func readConfigFile(v *viper.Viper, path string) error {
	errFactory := errors.New()

	v.SetConfigType(configType)
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}

		return nil
	}

	v.SetConfigName(configName)
	v.AddConfigPath("/etc")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	return nil
}

func defaultRegistryPath() string {
	if runtime.GOOS == "windows" {
		base := os.Getenv("ProgramData")
		if base == "" {
			base = `C:\ProgramData`
		}

		return filepath.Join(base, configName, "registry.db")
	}

	return "/var/lib/hwctl/registry.db"
}
