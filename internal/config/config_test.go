package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/dgnsrekt/espeakng-go/espeakng"
)

func viperFromYAML(t *testing.T, doc string) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(doc)); err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Voice != espeakng.DefaultVoice {
		t.Errorf("Voice = %q, want %q", cfg.Voice, espeakng.DefaultVoice)
	}
	if !cfg.Cache.Enabled || cfg.Cache.MaxSizeMB != 256 {
		t.Errorf("unexpected cache defaults %+v", cfg.Cache)
	}
	if cfg.Mbrola.Attempts != 5 {
		t.Errorf("Mbrola.Attempts = %d, want 5", cfg.Mbrola.Attempts)
	}
}

func TestLoadFileAndEnvironment(t *testing.T) {
	v := viperFromYAML(t, `
voice: gmw/en-US
buffer_length: 250
parameters:
  rate: 200
  pitch: 40
mbrola:
  attempts: 3
cache:
  enabled: true
  max_size_mb: 64
`)
	t.Setenv("ESPEAKNG_VOICE", "gmw/de")
	t.Setenv("ESPEAKNG_CACHE_ENABLED", "false")
	t.Setenv("ESPEAKNG_MBROLA_RETRY_DELAY", "25ms")

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Voice != "gmw/de" {
		t.Errorf("environment should override file: Voice = %q", cfg.Voice)
	}
	if cfg.BufferLength != 250 {
		t.Errorf("BufferLength = %d, want 250", cfg.BufferLength)
	}
	if cfg.Cache.Enabled {
		t.Error("ESPEAKNG_CACHE_ENABLED=false was ignored")
	}
	if cfg.Cache.MaxSizeMB != 64 {
		t.Errorf("MaxSizeMB = %d, want 64", cfg.Cache.MaxSizeMB)
	}
	if cfg.Mbrola.Attempts != 3 || cfg.Mbrola.RetryDelay != "25ms" {
		t.Errorf("unexpected mbrola config %+v", cfg.Mbrola)
	}
	if cfg.Mbrola.MaxRetryDelay != "200ms" {
		t.Errorf("unset key lost its default: %q", cfg.Mbrola.MaxRetryDelay)
	}

	settings, err := cfg.ParameterSettings()
	if err != nil {
		t.Fatal(err)
	}
	want := []Setting{{espeakng.Rate, 200}, {espeakng.Pitch, 40}}
	if len(settings) != len(want) {
		t.Fatalf("settings = %v, want %v", settings, want)
	}
	for i := range want {
		if settings[i] != want[i] {
			t.Errorf("settings[%d] = %v, want %v", i, settings[i], want[i])
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"negative buffer", func(c *Config) { c.BufferLength = -1 }, "buffer_length"},
		{"unknown parameter", func(c *Config) { c.Parameters["loudness"] = 1 }, "unknown parameter"},
		{"rate out of range", func(c *Config) { c.Parameters["rate"] = 1000 }, "rate must be between"},
		{"no attempts", func(c *Config) { c.Mbrola.Attempts = 0 }, "mbrola.attempts"},
		{"bad delay", func(c *Config) { c.Mbrola.RetryDelay = "soon" }, "mbrola.retry_delay"},
		{"negative ttl", func(c *Config) { c.Cache.TTL = "-1h" }, "cache.ttl"},
		{"cache too large", func(c *Config) { c.Cache.MaxSizeMB = 20000 }, "cache.max_size_mb"},
		{"compression level", func(c *Config) { c.Cache.CompressionLevel = 23 }, "compression_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestCacheOptions(t *testing.T) {
	cfg := Default()
	cfg.Cache.Directory = t.TempDir()
	cfg.Cache.MaxSizeMB = 2
	cfg.Cache.TTL = "1h"

	opts, err := cfg.CacheOptions()
	if err != nil {
		t.Fatal(err)
	}
	if opts.Path != cfg.Cache.Directory {
		t.Errorf("Path = %q", opts.Path)
	}
	if opts.Capacity != 2*1024*1024 {
		t.Errorf("Capacity = %d", opts.Capacity)
	}
	if opts.TTL != time.Hour {
		t.Errorf("TTL = %v", opts.TTL)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := homedir.Dir()
	if err != nil {
		t.Skip("no home directory")
	}
	t.Setenv("ESPEAKNG_TEST_DIR", "voices")

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/usr/share/espeak-ng-data", "/usr/share/espeak-ng-data"},
		{"~/espeak", filepath.Join(home, "espeak")},
		{"/data/$ESPEAKNG_TEST_DIR/", "/data/voices"},
	}
	for _, tt := range tests {
		got, err := ExpandPath(tt.in)
		if err != nil {
			t.Errorf("ExpandPath(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSaveAndExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "espeakng.yml")
	cfg := Default()
	cfg.Voice = "gmw/en-GB-x-rp"
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(v)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Voice != cfg.Voice {
		t.Errorf("Voice = %q, want %q", loaded.Voice, cfg.Voice)
	}

	example := Example()
	if !strings.HasPrefix(example, "# espeakng configuration") {
		t.Error("example is missing its header")
	}
	var parsed Config
	if err := yaml.Unmarshal([]byte(example), &parsed); err != nil {
		t.Fatalf("example is not valid yaml: %v", err)
	}
	if parsed.Parameters["rate"] != 175 {
		t.Errorf("example parameters = %v", parsed.Parameters)
	}
}

func TestConfigDirs(t *testing.T) {
	t.Setenv("ESPEAKNG_CONFIG_HOME", "/tmp/espeakng-config")
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

	dirs, err := ConfigDirs()
	if err != nil {
		t.Fatal(err)
	}
	if len(dirs) < 2 || dirs[0] != "/tmp/espeakng-config" || dirs[1] != "/tmp/xdg/espeakng" {
		t.Errorf("ConfigDirs() = %v", dirs)
	}

	if f, err := LogFile(); err == nil && filepath.Base(f) != "espeakng.log" {
		t.Errorf("LogFile() = %q", f)
	}
}

func TestMain(m *testing.M) {
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, EnvPrefix) {
			os.Unsetenv(strings.SplitN(kv, "=", 2)[0])
		}
	}
	os.Exit(m.Run())
}
