package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the daemon's static configuration, per spec.md §6's plugin
// location conventions plus the ambient knobs SPEC_FULL.md adds.
type Config struct {
	// LibDir is the root plugin directory of the engine.BuildLibraryPath
	// naming convention. Plugins are resolved by name from the in-process
	// engine.Registry, not loaded from this directory.
	LibDir string `yaml:"lib_dir"`
	// DataDir is the root helper-script directory, per engine.HelperPath.
	DataDir string `yaml:"data_dir"`
	// GracePeriod is how long a finished transaction is retained before
	// the Transaction List forgets it. Zero means txlist.DefaultGrace.
	GracePeriod time.Duration `yaml:"grace_period"`
	// DeferTick is parsed from the file, but the daemon does not pass it
	// on: every engine uses engine.DeferTick for its Finished deferral.
	DeferTick time.Duration `yaml:"defer_tick"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// LogJSON selects JSON log output over the console writer.
	LogJSON bool `yaml:"log_json"`
	// MetricsAddr is the listen address for the Prometheus scrape
	// endpoint, e.g. ":9090". Empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		LibDir:      "/usr/lib",
		DataDir:     "/usr/share",
		GracePeriod: 5 * time.Second,
		LogLevel:    "info",
	}
}

// Load reads and parses a YAML configuration file. Fields the file omits
// keep their Default value; a field the file sets, even to a zero value,
// takes the value from the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
