package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/dgnsrekt/espeakng-go/espeakng"
	"github.com/dgnsrekt/espeakng-go/internal/cache"
)

// EnvPrefix prefixes every environment override, e.g. ESPEAKNG_VOICE.
const EnvPrefix = "ESPEAKNG_"

// Config is the complete configuration of the espeakng command.
type Config struct {
	// espeak-ng data directory; empty uses the library default
	DataPath string `yaml:"data_path" mapstructure:"data_path" env:"DATA_PATH"`

	// Voice selected before every command
	Voice string `yaml:"voice" mapstructure:"voice" env:"VOICE"`

	// Milliseconds of audio per synthesis callback, 0 for the engine default
	BufferLength int `yaml:"buffer_length" mapstructure:"buffer_length" env:"BUFFER_LENGTH"`

	// Absolute synthesis parameters by name (rate, volume, pitch, ...)
	Parameters map[string]int `yaml:"parameters" mapstructure:"parameters" env:"PARAMETERS"`

	Mbrola MbrolaConfig `yaml:"mbrola" mapstructure:"mbrola" envPrefix:"MBROLA_"`
	Cache  CacheConfig  `yaml:"cache" mapstructure:"cache" envPrefix:"CACHE_"`

	// Debug logging
	Debug bool `yaml:"debug" mapstructure:"debug" env:"DEBUG"`
}

// MbrolaConfig bounds the mbrola voice switch retry.
type MbrolaConfig struct {
	Attempts      int    `yaml:"attempts" mapstructure:"attempts" env:"ATTEMPTS"`
	RetryDelay    string `yaml:"retry_delay" mapstructure:"retry_delay" env:"RETRY_DELAY"`
	MaxRetryDelay string `yaml:"max_retry_delay" mapstructure:"max_retry_delay" env:"MAX_RETRY_DELAY"`
}

// CacheConfig holds cache-related settings
type CacheConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled" env:"ENABLED"`

	// Cache directory (defaults to the user cache dir)
	Directory string `yaml:"directory" mapstructure:"directory" env:"DIRECTORY"`

	// Maximum cache size in MB
	MaxSizeMB int `yaml:"max_size_mb" mapstructure:"max_size_mb" env:"MAX_SIZE_MB"`

	// Entries older than this are dropped, e.g. "720h"
	TTL string `yaml:"ttl" mapstructure:"ttl" env:"TTL"`

	// Zstd level 1-22, 0 stores audio uncompressed
	CompressionLevel int `yaml:"compression_level" mapstructure:"compression_level" env:"COMPRESSION_LEVEL"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Voice:      espeakng.DefaultVoice,
		Parameters: map[string]int{},
		Mbrola: MbrolaConfig{
			Attempts:      5,
			RetryDelay:    "10ms",
			MaxRetryDelay: "200ms",
		},
		Cache: CacheConfig{
			Enabled:          true,
			MaxSizeMB:        256,
			TTL:              "720h", // 30 days
			CompressionLevel: 3,
		},
	}
}

// Load builds the configuration from defaults, then v (config file and
// bound flags), then the environment.
func Load(v *viper.Viper) (*Config, error) {
	cfg := Default()

	if v != nil {
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration: %w", err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	var err error
	if cfg.DataPath, err = ExpandPath(cfg.DataPath); err != nil {
		return nil, err
	}
	if cfg.Cache.Directory, err = ExpandPath(cfg.Cache.Directory); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every value that can be checked without the engine.
func (c *Config) Validate() error {
	var errs []error

	if c.BufferLength < 0 {
		errs = append(errs, fmt.Errorf("buffer_length must not be negative, got %d", c.BufferLength))
	}
	if _, err := c.ParameterSettings(); err != nil {
		errs = append(errs, err)
	}
	if c.Mbrola.Attempts < 1 {
		errs = append(errs, fmt.Errorf("mbrola.attempts must be at least 1, got %d", c.Mbrola.Attempts))
	}
	for name, s := range map[string]string{
		"mbrola.retry_delay":     c.Mbrola.RetryDelay,
		"mbrola.max_retry_delay": c.Mbrola.MaxRetryDelay,
		"cache.ttl":              c.Cache.TTL,
	} {
		if _, err := parseDuration(s); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if c.Cache.MaxSizeMB < 1 || c.Cache.MaxSizeMB > 10000 {
		errs = append(errs, fmt.Errorf("cache.max_size_mb must be between 1 and 10000, got %d", c.Cache.MaxSizeMB))
	}
	if c.Cache.CompressionLevel < 0 || c.Cache.CompressionLevel > 22 {
		errs = append(errs, fmt.Errorf("cache.compression_level must be between 0 and 22, got %d", c.Cache.CompressionLevel))
	}

	return errors.Join(errs...)
}

// Setting is one parameter value to apply after initialisation.
type Setting struct {
	Parameter espeakng.Parameter
	Value     int
}

// ParameterSettings returns the configured parameters in native order.
func (c *Config) ParameterSettings() ([]Setting, error) {
	settings := make([]Setting, 0, len(c.Parameters))
	for name, value := range c.Parameters {
		p, err := espeakng.ParseParameter(name)
		if err != nil {
			return nil, fmt.Errorf("parameters: %w", err)
		}
		if err := p.Validate(value); err != nil {
			return nil, fmt.Errorf("parameters: %w", err)
		}
		settings = append(settings, Setting{Parameter: p, Value: value})
	}
	sort.Slice(settings, func(i, j int) bool {
		return settings[i].Parameter < settings[j].Parameter
	})
	return settings, nil
}

// SpeakerOptions converts the configuration to Initialise options.
func (c *Config) SpeakerOptions() []espeakng.Option {
	delay, _ := parseDuration(c.Mbrola.RetryDelay)
	maxDelay, _ := parseDuration(c.Mbrola.MaxRetryDelay)

	return []espeakng.Option{
		espeakng.WithVoicePath(c.DataPath),
		espeakng.WithVoice(c.Voice),
		espeakng.WithBufferLength(c.BufferLength),
		espeakng.WithMbrolaRetry(c.Mbrola.Attempts, delay, maxDelay),
	}
}

// CacheOptions returns the disk cache configuration, resolving the default
// directory when none is set.
func (c *Config) CacheOptions() (cache.Config, error) {
	dir := c.Cache.Directory
	if dir == "" {
		var err error
		if dir, err = DefaultCacheDir(); err != nil {
			return cache.Config{}, err
		}
	}

	ttl, _ := parseDuration(c.Cache.TTL)
	cfg := cache.DefaultConfig(dir)
	cfg.Capacity = int64(c.Cache.MaxSizeMB) * 1024 * 1024
	cfg.CompressionLevel = c.Cache.CompressionLevel
	cfg.TTL = ttl
	return cfg, nil
}

func parseDuration(s string) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must not be negative, got %s", s)
	}
	return d, nil
}

// ExpandPath expands a leading ~ and environment variables in path.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	expanded, err := homedir.Expand(os.ExpandEnv(path))
	if err != nil {
		return "", fmt.Errorf("unable to expand path %q: %w", path, err)
	}
	return filepath.Clean(expanded), nil
}

// Save writes c to path as yaml.
func Save(c *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Info("Saved configuration", "path", path)
	return nil
}

// Example returns a commented configuration file holding the defaults.
func Example() string {
	cfg := Default()
	cfg.Parameters = map[string]int{"rate": 175, "volume": 100}

	data, _ := yaml.Marshal(cfg)

	header := `# espeakng configuration
#
# Every key can be overridden from the environment with the ESPEAKNG_
# prefix, e.g. ESPEAKNG_VOICE=gmw/en-US or ESPEAKNG_CACHE_ENABLED=false.
# parameters: rate (80-450), volume, pitch and range (0-100),
# punctuation (0 none, 1 all, 2 some), capitals, wordgap.

`
	return header + string(data)
}
