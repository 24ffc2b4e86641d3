package main

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/espeakng-go/espeakng"
	"github.com/dgnsrekt/espeakng-go/internal/cache"
)

var (
	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the synthesized audio cache",
	}

	cacheStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show cache usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := cacheStats()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), stats)
			return err
		},
	}

	cacheClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached recording",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dc, err := openCache()
			if err != nil {
				return err
			}
			defer dc.Close()
			if err := dc.Clear(); err != nil {
				return fmt.Errorf("unable to clear cache: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared")
			return err
		},
	}
)

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
}

var errCacheDisabled = errors.New("cache disabled")

func openCache() (*cache.DiskCache, error) {
	if !cfg.Cache.Enabled {
		return nil, errCacheDisabled
	}
	opts, err := cfg.CacheOptions()
	if err != nil {
		return nil, err
	}
	return cache.Open(opts)
}

func cacheStats() (string, error) {
	dc, err := openCache()
	if err != nil {
		return "", err
	}
	defer dc.Close()
	return dc.Stats().String(), nil
}

// cacheKey captures everything about s that changes the audio for text.
func cacheKey(s *espeakng.Speaker, text, format string) cache.Key {
	version, dataPath := s.Info()
	params := make([]int, 0, len(espeakng.Parameters()))
	for _, p := range espeakng.Parameters() {
		params = append(params, s.Parameter(p, false))
	}
	return cache.Key{
		EngineVersion: version,
		DataPath:      dataPath,
		Voice:         s.CurrentVoice().Filename(),
		Parameters:    params,
		Format:        format,
		Text:          text,
	}
}

// cachedRender returns the cached output for key, or renders and stores it.
func cachedRender(key cache.Key, useCache bool, render func() ([]byte, error)) ([]byte, error) {
	if !useCache {
		return render()
	}

	dc, err := openCache()
	if err != nil {
		if !errors.Is(err, errCacheDisabled) {
			log.Warn("Audio cache unavailable", "error", err)
		}
		return render()
	}
	defer func() {
		if err := dc.Close(); err != nil {
			log.Warn("Failed to save cache index", "error", err)
		}
	}()

	if data, err := dc.Get(key); err == nil {
		log.Debug("Audio cache hit", "voice", key.Voice, "bytes", len(data))
		return data, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		log.Warn("Discarding cached audio", "error", err)
	}

	data, err := render()
	if err != nil {
		return nil, err
	}
	if err := dc.Put(key, data); err != nil {
		log.Warn("Failed to cache audio", "error", err)
	}
	return data, nil
}
