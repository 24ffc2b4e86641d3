package cache

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"
)

const indexFile = "cache.index"

// DiskCache is a persistent cache of synthesized audio with optional zstd
// compression. It is safe for concurrent use within one process.
type DiskCache struct {
	basePath string
	capacity int64 // Maximum size in bytes
	size     int64 // Current size in bytes

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	index map[string]*diskEntry

	mu    sync.Mutex
	stats Stats
}

// diskEntry is persisted in the gob index, so its fields are exported.
type diskEntry struct {
	Hash         string
	FilePath     string
	Size         int64 // Size on disk (compressed)
	OriginalSize int64
	Timestamp    time.Time
	LastAccess   time.Time
	Hits         int64
	Compressed   bool
}

// Open opens or creates the cache described by cfg.
func Open(cfg Config) (*DiskCache, error) {
	if cfg.Path == "" {
		return nil, errors.New("cache path is empty")
	}
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dc := &DiskCache{
		basePath: cfg.Path,
		capacity: cfg.Capacity,
		index:    make(map[string]*diskEntry),
		stats:    Stats{Capacity: cfg.Capacity},
	}

	if cfg.CompressionLevel > 0 {
		var err error
		dc.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(cfg.CompressionLevel)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
	}
	// Entries written with compression stay readable after it is disabled.
	var err error
	dc.decoder, err = zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	if err := dc.loadIndex(); err != nil {
		log.Warn("Discarding unreadable cache index", "path", cfg.Path, "error", err)
		dc.index = make(map[string]*diskEntry)
	}
	dc.calculateSize()

	if cfg.TTL > 0 {
		if n := dc.removeOlderThan(time.Now().Add(-cfg.TTL)); n > 0 {
			log.Debug("Pruned expired cache entries", "count", n)
		}
	}

	return dc, nil
}

// Get returns the audio stored under k.
func (dc *DiskCache) Get(k Key) ([]byte, error) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	hash := k.Hash()
	entry, ok := dc.index[hash]
	if !ok {
		dc.stats.Misses++
		return nil, ErrCacheMiss
	}

	data, err := os.ReadFile(entry.FilePath)
	if err != nil {
		dc.drop(hash, entry)
		dc.stats.Misses++
		return nil, ErrCacheMiss
	}

	if entry.Compressed {
		decompressed, err := dc.decoder.DecodeAll(data, nil)
		if err != nil {
			dc.drop(hash, entry)
			dc.stats.Misses++
			return nil, fmt.Errorf("%w: %v", ErrCacheCorrupted, err)
		}
		data = decompressed
	}
	if int64(len(data)) != entry.OriginalSize {
		dc.drop(hash, entry)
		dc.stats.Misses++
		return nil, ErrCacheCorrupted
	}

	now := time.Now()
	entry.LastAccess = now
	entry.Hits++
	dc.stats.Hits++
	dc.stats.LastAccess = now

	return data, nil
}

// Put stores value under k, evicting least recently used entries as needed.
func (dc *DiskCache) Put(k Key, value []byte) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	hash := k.Hash()
	originalSize := int64(len(value))

	data := value
	var compressed bool
	if dc.encoder != nil && originalSize > 1024 { // Only compress if > 1KB
		if c := dc.encoder.EncodeAll(value, nil); len(c) < len(value) {
			data = c
			compressed = true
		}
	}
	diskSize := int64(len(data))

	if diskSize > dc.capacity {
		return ErrItemTooLarge
	}

	if existing, ok := dc.index[hash]; ok {
		dc.drop(hash, existing)
	}
	for dc.size+diskSize > dc.capacity && len(dc.index) > 0 {
		dc.evictOldest()
	}

	path := filepath.Join(dc.basePath, hash+".cache")
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	now := time.Now()
	dc.index[hash] = &diskEntry{
		Hash:         hash,
		FilePath:     path,
		Size:         diskSize,
		OriginalSize: originalSize,
		Timestamp:    now,
		LastAccess:   now,
		Compressed:   compressed,
	}
	dc.size += diskSize
	return nil
}

// Delete removes k from the cache.
func (dc *DiskCache) Delete(k Key) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	hash := k.Hash()
	if entry, ok := dc.index[hash]; ok {
		dc.drop(hash, entry)
	}
}

// Clear removes every entry and persists the empty index.
func (dc *DiskCache) Clear() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	for _, entry := range dc.index {
		os.Remove(entry.FilePath)
	}
	dc.index = make(map[string]*diskEntry)
	dc.size = 0

	return dc.saveIndex()
}

// Stats returns cache statistics.
func (dc *DiskCache) Stats() Stats {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	stats := dc.stats
	stats.Size = dc.size
	stats.ItemCount = int64(len(dc.index))
	for _, e := range dc.index {
		stats.Original += e.OriginalSize
	}
	if stats.Hits+stats.Misses > 0 {
		stats.HitRate = float64(stats.Hits) / float64(stats.Hits+stats.Misses)
	}
	return stats
}

// Close persists the index.
func (dc *DiskCache) Close() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if dc.encoder != nil {
		dc.encoder.Close()
	}
	dc.decoder.Close()
	return dc.saveIndex()
}

// LRU returns hashes ordered from least to most recently used.
func (dc *DiskCache) LRU() []string {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	entries := make([]*diskEntry, 0, len(dc.index))
	for _, e := range dc.index {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastAccess.Before(entries[j].LastAccess)
	})

	hashes := make([]string, len(entries))
	for i, e := range entries {
		hashes[i] = e.Hash
	}
	return hashes
}

func (dc *DiskCache) drop(hash string, entry *diskEntry) {
	os.Remove(entry.FilePath)
	dc.size -= entry.Size
	delete(dc.index, hash)
}

func (dc *DiskCache) evictOldest() {
	var oldest *diskEntry
	for _, entry := range dc.index {
		if oldest == nil || entry.LastAccess.Before(oldest.LastAccess) {
			oldest = entry
		}
	}
	if oldest == nil {
		return
	}
	dc.drop(oldest.Hash, oldest)
	dc.stats.Evictions++
	dc.stats.LastEvict = time.Now()
}

func (dc *DiskCache) removeOlderThan(cutoff time.Time) int {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	removed := 0
	for hash, entry := range dc.index {
		if entry.Timestamp.Before(cutoff) {
			dc.drop(hash, entry)
			removed++
		}
	}
	return removed
}

func (dc *DiskCache) calculateSize() {
	dc.size = 0
	for _, entry := range dc.index {
		dc.size += entry.Size
	}
}

func (dc *DiskCache) loadIndex() error {
	file, err := os.Open(filepath.Join(dc.basePath, indexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No index file yet
		}
		return err
	}
	defer file.Close()

	return gob.NewDecoder(file).Decode(&dc.index)
}

func (dc *DiskCache) saveIndex() error {
	file, err := os.CreateTemp(dc.basePath, indexFile+".*.tmp")
	if err != nil {
		return err
	}
	tempPath := file.Name()

	err = gob.NewEncoder(file).Encode(dc.index)
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempPath)
		return err
	}

	return os.Rename(tempPath, filepath.Join(dc.basePath, indexFile))
}

// writeFileAtomic writes to a temp file first, then renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		os.Remove(tempPath)
		return err
	}
	return os.Rename(tempPath, path)
}
