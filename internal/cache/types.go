package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Common errors for cache operations
var (
	// ErrItemTooLarge is returned when an item exceeds the cache capacity
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrCacheMiss is returned when an item is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheCorrupted is returned when cache data is corrupted
	ErrCacheCorrupted = errors.New("cache data corrupted")
)

// Key identifies one synthesis result. Two keys with equal fields always
// describe the same audio for a given engine version and voice data.
type Key struct {
	EngineVersion string
	DataPath      string // espeak-ng data directory the voice was loaded from
	Voice         string
	Parameters    []int // absolute values in espeak_PARAMETER order
	Format        string
	Text          string
}

// Hash returns a stable hex digest of k.
func (k Key) Hash() string {
	h := sha256.New()
	for _, s := range []string{k.EngineVersion, k.DataPath, k.Voice, k.Format, k.Text} {
		// Length prefixes keep adjacent fields from running together.
		binary.Write(h, binary.LittleEndian, uint32(len(s)))
		h.Write([]byte(s))
	}
	for _, p := range k.Parameters {
		binary.Write(h, binary.LittleEndian, int64(p))
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}

// Stats holds cache performance metrics
type Stats struct {
	Capacity  int64 // Maximum capacity in bytes
	Size      int64 // Current size on disk in bytes
	Original  int64 // Uncompressed size of stored items
	ItemCount int64

	Hits      int64
	Misses    int64
	Evictions int64
	HitRate   float64 // hits / (hits + misses)

	LastAccess time.Time
	LastEvict  time.Time
}

// String renders stats for humans.
func (s Stats) String() string {
	ratio := 1.0
	if s.Size > 0 {
		ratio = float64(s.Original) / float64(s.Size)
	}
	last := "never"
	if !s.LastAccess.IsZero() {
		last = humanize.Time(s.LastAccess)
	}
	return fmt.Sprintf(
		"%s items, %s of %s (%.1fx compression), %.0f%% hit rate, %s evictions, last used %s",
		humanize.Comma(s.ItemCount),
		humanize.IBytes(uint64(s.Size)),
		humanize.IBytes(uint64(s.Capacity)),
		ratio,
		s.HitRate*100,
		humanize.Comma(s.Evictions),
		last,
	)
}

// Config holds configuration for a DiskCache
type Config struct {
	Path             string
	Capacity         int64         // Bytes
	CompressionLevel int           // Zstd compression level (1-22); 0 disables compression
	TTL              time.Duration // Entries older than this are pruned on open; 0 keeps them
}

// DefaultConfig returns default cache configuration
func DefaultConfig(path string) Config {
	return Config{
		Path:             path,
		Capacity:         256 * 1024 * 1024, // 256MB
		CompressionLevel: 3,                 // Balanced compression
		TTL:              30 * 24 * time.Hour,
	}
}
