// Package config loads simdog settings from a config file, SIMDOG_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Defaults.
const (
	DefaultMinSize = "1"
	DefaultRadius  = 0
	DefaultMode    = "similar"
	DefaultHash    = "simhash"
	DefaultMetric  = "hamming"
	appName        = "simdog"
)

// Config is the merged application configuration.
type Config struct {
	MinSize     string   `mapstructure:"min_size"`
	Exclude     []string `mapstructure:"exclude"`
	ExcludeDirs []string `mapstructure:"exclude_dirs"`
	Extensions  []string `mapstructure:"extensions"`
	Recursive   bool     `mapstructure:"recursive"`
	Radius      int      `mapstructure:"radius"`
	Mode        string   `mapstructure:"mode"`
	Hash        string   `mapstructure:"hash"`
	Metric      string   `mapstructure:"metric"`
	Workers     int      `mapstructure:"workers"`
	Cache       bool     `mapstructure:"cache"`
	CacheFile   string   `mapstructure:"cache_file"`
	NoProgress  bool     `mapstructure:"no_progress"`
	Verbose     bool     `mapstructure:"verbose"`
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"min-size":    "min_size",
	"exclude":     "exclude",
	"exclude-dir": "exclude_dirs",
	"ext":         "extensions",
	"recursive":   "recursive",
	"radius":      "radius",
	"mode":        "mode",
	"hash":        "hash",
	"metric":      "metric",
	"workers":     "workers",
	"cache":       "cache",
	"cache-file":  "cache_file",
	"no-progress": "no_progress",
	"verbose":     "verbose",
}

// Dir returns the configuration directory ($XDG_CONFIG_HOME/simdog).
func Dir() string {
	return filepath.Join(xdg.ConfigHome, appName)
}

// DefaultCacheFile returns the default fingerprint cache location.
func DefaultCacheFile() string {
	return filepath.Join(xdg.CacheHome, appName, "fingerprints.db")
}

// Load merges defaults, the config file, environment and the flags that were
// explicitly set. An empty file searches Dir() for config.yaml; a missing
// default file is not an error, a missing explicit file is.
func Load(file string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(Dir())
	}

	v.SetEnvPrefix(strings.ToUpper(appName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("min_size", DefaultMinSize)
	v.SetDefault("exclude", []string{})
	v.SetDefault("exclude_dirs", []string{})
	v.SetDefault("extensions", []string{})
	v.SetDefault("recursive", true)
	v.SetDefault("radius", DefaultRadius)
	v.SetDefault("mode", DefaultMode)
	v.SetDefault("hash", DefaultHash)
	v.SetDefault("metric", DefaultMetric)
	v.SetDefault("workers", runtime.NumCPU())
	v.SetDefault("cache", false)
	v.SetDefault("cache_file", "")
	v.SetDefault("no_progress", false)
	v.SetDefault("verbose", false)

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Cache && cfg.CacheFile == "" {
		cfg.CacheFile = DefaultCacheFile()
	}
	return &cfg, nil
}
