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

	"github.com/klauspost/compress/zstd"
)

const (
	indexFile  = "cache.index"
	fileSuffix = ".pcm"
)

// DiskCache is a persistent store of synthesized PCM keyed by Key.
type DiskCache struct {
	dir      string
	capacity int64 // Maximum size in bytes
	size     int64 // Current size in bytes

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	index map[string]*entry

	mu    sync.Mutex
	stats Stats
	now   func() time.Time
}

// entry is one indexed file. Fields are exported for gob.
type entry struct {
	Name         string
	Size         int64 // on disk
	OriginalSize int64
	Created      time.Time
	LastAccess   time.Time
	Hits         int64
	Compressed   bool
}

// Open opens or creates the cache in dir. A capacity of zero or less
// disables eviction.
func Open(dir string, capacity int64, compressionLevel int) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dc := &DiskCache{
		dir:      dir,
		capacity: capacity,
		index:    make(map[string]*entry),
		now:      time.Now,
	}

	var err error
	dc.encoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dc.decoder, err = zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	if err := dc.loadIndex(); err != nil {
		// An unreadable index only loses the bookkeeping, not the data.
		dc.index = make(map[string]*entry)
	}
	dc.reconcile()

	return dc, nil
}

// Dir returns the cache directory.
func (dc *DiskCache) Dir() string {
	return dc.dir
}

// Get returns the audio stored for k.
func (dc *DiskCache) Get(k Key) ([]byte, bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	name := k.String()
	e, ok := dc.index[name]
	if !ok {
		dc.stats.Misses++
		return nil, false
	}

	data, err := dc.read(e)
	if err != nil {
		dc.remove(name, e)
		dc.stats.Misses++
		return nil, false
	}

	e.LastAccess = dc.now()
	e.Hits++
	dc.stats.Hits++
	dc.stats.LastAccess = e.LastAccess

	return data, true
}

// Put stores pcm under k, evicting the least recently used entries when
// the cache would exceed its capacity.
func (dc *DiskCache) Put(k Key, pcm []byte) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	data := pcm
	compressed := false
	if len(pcm) > 1024 {
		enc := dc.encoder.EncodeAll(pcm, nil)
		if len(enc) < len(pcm) {
			data = enc
			compressed = true
		}
	}

	diskSize := int64(len(data))
	if dc.capacity > 0 && diskSize > dc.capacity {
		return ErrItemTooLarge
	}

	name := k.String()
	if existing, ok := dc.index[name]; ok {
		dc.remove(name, existing)
	}
	for dc.capacity > 0 && dc.size+diskSize > dc.capacity && len(dc.index) > 0 {
		dc.evictOldest()
	}

	if err := writeFile(dc.path(name), data); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	now := dc.now()
	dc.index[name] = &entry{
		Name:         name,
		Size:         diskSize,
		OriginalSize: int64(len(pcm)),
		Created:      now,
		LastAccess:   now,
		Compressed:   compressed,
	}
	dc.size += diskSize

	return nil
}

// Contains reports whether k is stored, without touching its access time.
func (dc *DiskCache) Contains(k Key) bool {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	_, ok := dc.index[k.String()]
	return ok
}

// Delete removes k.
func (dc *DiskCache) Delete(k Key) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	name := k.String()
	if e, ok := dc.index[name]; ok {
		dc.remove(name, e)
	}
	return nil
}

// Clear removes every entry, including files the index does not know.
func (dc *DiskCache) Clear() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	files, err := filepath.Glob(filepath.Join(dc.dir, "*"+fileSuffix))
	if err != nil {
		return err
	}
	var errs []error
	for _, f := range files {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}

	dc.index = make(map[string]*entry)
	dc.size = 0

	if err := dc.saveIndex(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Size returns the current cache size in bytes.
func (dc *DiskCache) Size() int64 {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	return dc.size
}

// Stats returns cache statistics.
func (dc *DiskCache) Stats() Stats {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	stats := dc.stats
	stats.Dir = dc.dir
	stats.Capacity = dc.capacity
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

// RemoveOlderThan removes entries last used before cutoff and returns how
// many were removed.
func (dc *DiskCache) RemoveOlderThan(cutoff time.Time) int {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	removed := 0
	for name, e := range dc.index {
		if e.LastAccess.Before(cutoff) {
			dc.remove(name, e)
			removed++
		}
	}
	return removed
}

// Close saves the index.
func (dc *DiskCache) Close() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	dc.encoder.Close()
	dc.decoder.Close()
	return dc.saveIndex()
}

func (dc *DiskCache) path(name string) string {
	return filepath.Join(dc.dir, name+fileSuffix)
}

func (dc *DiskCache) read(e *entry) ([]byte, error) {
	data, err := os.ReadFile(dc.path(e.Name))
	if err != nil {
		return nil, err
	}
	if !e.Compressed {
		return data, nil
	}
	out, err := dc.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheCorrupted, err)
	}
	return out, nil
}

// remove drops an entry and its file. Callers hold dc.mu.
func (dc *DiskCache) remove(name string, e *entry) {
	os.Remove(dc.path(name))
	delete(dc.index, name)
	dc.size -= e.Size
}

func (dc *DiskCache) evictOldest() {
	entries := make([]*entry, 0, len(dc.index))
	for _, e := range dc.index {
		entries = append(entries, e)
	}
	if len(entries) == 0 {
		return
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastAccess.Before(entries[j].LastAccess)
	})

	oldest := entries[0]
	dc.remove(oldest.Name, oldest)
	dc.stats.Evictions++
	dc.stats.LastEvict = dc.now()
}

// reconcile drops index entries whose file is gone and recomputes the
// size.
func (dc *DiskCache) reconcile() {
	dc.size = 0
	for name, e := range dc.index {
		info, err := os.Stat(dc.path(name))
		if err != nil {
			delete(dc.index, name)
			continue
		}
		e.Size = info.Size()
		dc.size += e.Size
	}
}

func (dc *DiskCache) loadIndex() error {
	file, err := os.Open(filepath.Join(dc.dir, indexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	return gob.NewDecoder(file).Decode(&dc.index)
}

func (dc *DiskCache) saveIndex() error {
	indexPath := filepath.Join(dc.dir, indexFile)
	tempPath := indexPath + ".tmp"

	file, err := os.Create(tempPath)
	if err != nil {
		return err
	}

	err = gob.NewEncoder(file).Encode(dc.index)
	closeErr := file.Close()

	if err != nil {
		os.Remove(tempPath)
		return err
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return closeErr
	}

	return os.Rename(tempPath, indexPath)
}

// writeFile writes to a temp file first, then renames it into place.
func writeFile(path string, data []byte) error {
	tempPath := path + ".tmp"

	file, err := os.Create(tempPath)
	if err != nil {
		return err
	}

	_, err = file.Write(data)
	closeErr := file.Close()

	if err != nil {
		os.Remove(tempPath)
		return err
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return closeErr
	}

	return os.Rename(tempPath, path)
}
