package config

import (
	"fmt"
	"os"
	"path/filepath"

	gap "github.com/muesli/go-app-paths"
)

// AppName names the config, cache and log locations.
const AppName = "espeakng"

func scope() *gap.Scope {
	return gap.NewScope(gap.User, AppName)
}

// ConfigDirs lists the directories searched for espeakng.yml, most
// specific first.
func ConfigDirs() ([]string, error) {
	dirs, err := scope().ConfigDirs()
	if err != nil {
		return nil, fmt.Errorf("could not find configuration directory: %w", err)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, AppName)}, dirs...)
	}
	if c := os.Getenv(EnvPrefix + "CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}
	return dirs, nil
}

// DefaultCacheDir is where synthesized audio is cached.
func DefaultCacheDir() (string, error) {
	dir, err := scope().CacheDir()
	if err != nil {
		return "", fmt.Errorf("could not find cache directory: %w", err)
	}
	return filepath.Join(dir, "audio"), nil
}

// LogFile is where the command writes its log.
func LogFile() (string, error) {
	dir, err := scope().CacheDir()
	if err != nil {
		return "", fmt.Errorf("could not find log directory: %w", err)
	}
	return filepath.Join(dir, AppName+".log"), nil
}
