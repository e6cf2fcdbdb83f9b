// Package config loads assetcached's configuration from a YAML file,
// environment variables (ASSETCACHE_ prefix), and built-in defaults. An
// environment variable overrides a key only when the file sets that key;
// when no file is found, environment variables are not read.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration for an assetcached process.
type Config struct {
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
	Engine      EngineConfig      `mapstructure:"engine" yaml:"engine"`
	Reliability ReliabilityConfig `mapstructure:"reliability" yaml:"reliability"`
	Persistence PersistenceConfig `mapstructure:"persistence" yaml:"persistence"`
	Metrics     MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
	API         APIConfig         `mapstructure:"api" yaml:"api"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to emit: debug, info, warn, error.
	Level string `mapstructure:"level" yaml:"level"`
	// Format is "text" or "json".
	Format string `mapstructure:"format" yaml:"format"`
	// Output is "stdout", "stderr", or a file path.
	Output string `mapstructure:"output" yaml:"output"`
}

// EngineConfig selects and configures the cache engine backend.
type EngineConfig struct {
	// Backend is "memory" or "fs".
	Backend string `mapstructure:"backend" yaml:"backend"`
	// CachePath is the root directory for the fs backend (ignored by memory).
	CachePath string `mapstructure:"cache_path" yaml:"cache_path"`
	// PageSize is the memory backend's page size in bytes.
	PageSize uint64 `mapstructure:"page_size" yaml:"page_size"`
	// MinFreeBlockSize is the memory backend's split/absorb threshold.
	MinFreeBlockSize uint64 `mapstructure:"min_free_block_size" yaml:"min_free_block_size"`
}

// ReliabilityConfig controls the optional high-reliability admission filter.
type ReliabilityConfig struct {
	// Enabled turns on the reliability filter wrapper.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Threshold is the number of additional matching observations required
	// beyond the first before a version is admitted.
	Threshold int `mapstructure:"threshold" yaml:"threshold"`
}

// PersistenceConfig selects the adapter used to persist the memory
// backend's index snapshot across restarts.
type PersistenceConfig struct {
	// Adapter is "noop", "badger", or "s3".
	Adapter string `mapstructure:"adapter" yaml:"adapter"`
	// BadgerPath is the database directory for the badger adapter.
	BadgerPath string `mapstructure:"badger_path" yaml:"badger_path"`
	// S3Bucket and S3Key configure the s3 adapter.
	S3Bucket string `mapstructure:"s3_bucket" yaml:"s3_bucket"`
	S3Key    string `mapstructure:"s3_key" yaml:"s3_key"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// APIConfig controls the HTTP transport.
type APIConfig struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
}

// Default returns a Config populated with the same defaults ApplyDefaults
// would fill in on top of an empty Config.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills in zero-valued fields with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
	if cfg.Engine.Backend == "" {
		cfg.Engine.Backend = "memory"
	}
	if cfg.Engine.PageSize == 0 {
		cfg.Engine.PageSize = 1 << 20
	}
	if cfg.Engine.MinFreeBlockSize == 0 {
		cfg.Engine.MinFreeBlockSize = 1 << 10
	}
	if cfg.Persistence.Adapter == "" {
		cfg.Persistence.Adapter = "noop"
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9090"
	}
	if cfg.API.Addr == "" {
		cfg.API.Addr = ":8080"
	}
	if cfg.API.ReadHeaderTimeout == 0 {
		cfg.API.ReadHeaderTimeout = 5 * time.Second
	}
}

// Validate checks invariants that ApplyDefaults cannot repair.
func Validate(cfg *Config) error {
	switch cfg.Engine.Backend {
	case "memory", "fs":
	default:
		return fmt.Errorf("config: engine.backend must be \"memory\" or \"fs\", got %q", cfg.Engine.Backend)
	}
	if cfg.Engine.Backend == "fs" && cfg.Engine.CachePath == "" {
		return fmt.Errorf("config: engine.cache_path is required for the fs backend")
	}
	switch cfg.Persistence.Adapter {
	case "noop", "badger", "s3":
	default:
		return fmt.Errorf("config: persistence.adapter must be \"noop\", \"badger\", or \"s3\", got %q", cfg.Persistence.Adapter)
	}
	if cfg.Persistence.Adapter == "badger" && cfg.Persistence.BadgerPath == "" {
		return fmt.Errorf("config: persistence.badger_path is required for the badger adapter")
	}
	if cfg.Persistence.Adapter == "s3" && (cfg.Persistence.S3Bucket == "" || cfg.Persistence.S3Key == "") {
		return fmt.Errorf("config: persistence.s3_bucket and persistence.s3_key are required for the s3 adapter")
	}
	if cfg.Reliability.Enabled && cfg.Reliability.Threshold < 0 {
		return fmt.Errorf("config: reliability.threshold must be >= 0")
	}
	return nil
}

// Load reads configuration from configPath (or the default location, if
// empty) and fills unset fields with defaults. ASSETCACHE_ environment
// variables override only keys present in the file that was read.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if found {
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("config: unmarshal: %w", err)
		}
	}

	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("ASSETCACHE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(configDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if ok := asConfigFileNotFoundError(err, &notFound); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("config: read config file: %w", err)
	}
	return true, nil
}

func asConfigFileNotFoundError(err error, target *viper.ConfigFileNotFoundError) bool {
	if e, ok := err.(viper.ConfigFileNotFoundError); ok {
		*target = e
		return true
	}
	return false
}

// configDir returns $XDG_CONFIG_HOME/assetcache, or ~/.config/assetcache,
// falling back to the current directory if neither can be determined.
func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "assetcache")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "assetcache")
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default
// location.
func DefaultConfigExists() bool {
	_, err := os.Stat(DefaultConfigPath())
	return err == nil
}
