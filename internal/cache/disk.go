package cache

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/klauspost/compress/zstd"
)

const (
	indexFile = "cache.index"
	lockFile  = "cache.lock"

	// values below this size are stored uncompressed
	compressMinSize = 1024
)

var _ Cache = (*DiskCache)(nil)

// DiskCache is a persistent cache with optional zstd compression. The index
// is guarded by a lock file so several processes can share one directory.
type DiskCache struct {
	basePath string
	capacity int64
	size     int64

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	index map[string]*diskEntry
	lock  *flock.Flock

	mu     sync.Mutex
	stats  Stats
	closed bool
}

type diskEntry struct {
	Key          string
	File         string // name relative to basePath
	Size         int64  // bytes on disk
	OriginalSize int64
	Stored       time.Time
	LastAccess   time.Time
	Compressed   bool
}

// NewDiskCache opens or creates a disk cache in basePath.
func NewDiskCache(basePath string, capacity int64, compressionLevel int) (*DiskCache, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil { //nolint:gosec
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dc := &DiskCache{
		basePath: basePath,
		capacity: capacity,
		index:    make(map[string]*diskEntry),
		lock:     flock.New(filepath.Join(basePath, lockFile)),
		stats:    Stats{Capacity: capacity},
	}

	if compressionLevel > 0 {
		var err error
		dc.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
	}

	// Entries written compressed by another process stay readable when this
	// one runs with compression off.
	var err error
	dc.decoder, err = zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	if err := dc.withLock(dc.loadIndex); err != nil {
		// a broken index only costs a cold cache
		dc.index = make(map[string]*diskEntry)
	}
	dc.calculateSize()

	return dc, nil
}

// Get retrieves a value from disk.
func (dc *DiskCache) Get(key string) ([]byte, bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if dc.closed {
		return nil, false
	}

	entry, ok := dc.index[key]
	if !ok {
		// another process may have stored it since we loaded the index
		if err := dc.withLock(dc.loadIndex); err == nil {
			dc.calculateSize()
			entry, ok = dc.index[key]
		}
	}
	if !ok {
		dc.stats.Misses++
		return nil, false
	}

	path := filepath.Join(dc.basePath, entry.File)
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		dc.dropEntry(entry)
		dc.stats.Misses++
		return nil, false
	}

	if entry.Compressed {
		data, err = dc.decoder.DecodeAll(data, nil)
		if err != nil {
			_ = os.Remove(path)
			dc.dropEntry(entry)
			dc.stats.Misses++
			return nil, false
		}
	}

	now := time.Now()
	entry.LastAccess = now
	dc.stats.Hits++
	dc.stats.LastAccess = now
	return data, true
}

// Put compresses and stores value, evicting least recently used entries
// when the cache is full.
func (dc *DiskCache) Put(key string, value []byte) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if dc.closed {
		return ErrCacheClosed
	}

	data, compressed := dc.compress(value)
	diskSize := int64(len(data))
	if diskSize > dc.capacity {
		return ErrItemTooLarge
	}

	if existing, ok := dc.index[key]; ok {
		_ = os.Remove(filepath.Join(dc.basePath, existing.File))
		dc.dropEntry(existing)
	}

	if dc.size+diskSize > dc.capacity {
		dc.evict(dc.size + diskSize - dc.capacity)
	}

	name := fileName(key)
	if err := writeAtomic(filepath.Join(dc.basePath, name), data); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	now := time.Now()
	dc.index[key] = &diskEntry{
		Key:          key,
		File:         name,
		Size:         diskSize,
		OriginalSize: int64(len(value)),
		Stored:       now,
		LastAccess:   now,
		Compressed:   compressed,
	}
	dc.size += diskSize

	return dc.withLock(dc.syncIndex)
}

// Delete removes an entry and its file.
func (dc *DiskCache) Delete(key string) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	entry, ok := dc.index[key]
	if !ok {
		return nil
	}
	_ = os.Remove(filepath.Join(dc.basePath, entry.File))
	dc.dropEntry(entry)
	return dc.withLock(dc.syncIndex)
}

// Clear removes every entry.
func (dc *DiskCache) Clear() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	for _, entry := range dc.index {
		_ = os.Remove(filepath.Join(dc.basePath, entry.File))
	}
	dc.index = make(map[string]*diskEntry)
	dc.size = 0
	return dc.withLock(dc.saveIndex)
}

// Size returns the bytes used on disk.
func (dc *DiskCache) Size() int64 {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	return dc.size
}

// Contains checks if a key exists without updating recency.
func (dc *DiskCache) Contains(key string) bool {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	_, ok := dc.index[key]
	return ok
}

// Stats returns cache statistics.
func (dc *DiskCache) Stats() Stats {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	stats := dc.stats
	stats.Size = dc.size
	stats.ItemCount = int64(len(dc.index))
	stats.updateHitRate()
	return stats
}

// Close saves the index and releases the codecs.
func (dc *DiskCache) Close() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if dc.closed {
		return nil
	}
	dc.closed = true

	err := dc.withLock(dc.saveIndex)
	if dc.encoder != nil {
		err = errors.Join(err, dc.encoder.Close())
	}
	dc.decoder.Close()
	return err
}

func (dc *DiskCache) compress(value []byte) ([]byte, bool) {
	if dc.encoder == nil || len(value) <= compressMinSize {
		return value, false
	}
	packed := dc.encoder.EncodeAll(value, nil)
	if len(packed) >= len(value) {
		return value, false
	}
	return packed, true
}

// evict removes least recently used entries until at least need bytes are
// freed. Must be called with the lock held.
func (dc *DiskCache) evict(need int64) {
	entries := make([]*diskEntry, 0, len(dc.index))
	for _, e := range dc.index {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastAccess.Before(entries[j].LastAccess)
	})

	var freed int64
	for _, e := range entries {
		if freed >= need {
			break
		}
		_ = os.Remove(filepath.Join(dc.basePath, e.File))
		dc.dropEntry(e)
		freed += e.Size
		dc.stats.Evictions++
		dc.stats.LastEvict = time.Now()
	}
}

func (dc *DiskCache) dropEntry(e *diskEntry) {
	delete(dc.index, e.Key)
	dc.size -= e.Size
}

func (dc *DiskCache) calculateSize() {
	dc.size = 0
	for _, e := range dc.index {
		dc.size += e.Size
	}
}

func (dc *DiskCache) withLock(fn func() error) error {
	if err := dc.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock cache index: %w", err)
	}
	defer dc.lock.Unlock() //nolint:errcheck
	return fn()
}

// loadIndex merges the index on disk into memory. Entries whose files are
// gone are skipped.
func (dc *DiskCache) loadIndex() error {
	f, err := os.Open(filepath.Join(dc.basePath, indexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close() //nolint:errcheck

	var stored map[string]*diskEntry
	if err := gob.NewDecoder(f).Decode(&stored); err != nil {
		return err
	}
	for key, e := range stored {
		if _, ok := dc.index[key]; ok {
			continue
		}
		if _, err := os.Stat(filepath.Join(dc.basePath, e.File)); err != nil {
			continue
		}
		dc.index[key] = e
	}
	return nil
}

// syncIndex picks up entries stored by other processes, then writes the
// merged index back.
func (dc *DiskCache) syncIndex() error {
	if err := dc.loadIndex(); err != nil {
		return err
	}
	dc.calculateSize()
	return dc.saveIndex()
}

func (dc *DiskCache) saveIndex() error {
	f, err := os.CreateTemp(dc.basePath, indexFile+".*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	encErr := gob.NewEncoder(f).Encode(dc.index)
	closeErr := f.Close()
	if err := errors.Join(encErr, closeErr); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, filepath.Join(dc.basePath, indexFile))
}

func fileName(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:16]) + ".cache"
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil { //nolint:gosec
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
