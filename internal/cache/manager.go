package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// ManagerStats aggregates counters across levels.
type ManagerStats struct {
	Memory     Stats
	Disk       Stats
	Hits       int64
	Misses     int64
	Promotions int64
	HasDisk    bool
}

// Manager checks memory first and falls back to disk. Disk hits are promoted
// to memory. Writes go to both levels before Put returns.
type Manager struct {
	memory *MemoryCache
	disk   *DiskCache // nil when no disk path is configured
	logger *log.Logger

	mu     sync.Mutex
	closed bool
	stats  struct {
		hits       int64
		misses     int64
		promotions int64
	}
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger used for non-fatal disk errors.
func WithLogger(l *log.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates the cache levels described by config. An empty
// DiskPath gives a memory-only cache.
func NewManager(config Config, opts ...ManagerOption) (*Manager, error) {
	if config.MemoryCapacity <= 0 {
		config.MemoryCapacity = DefaultConfig().MemoryCapacity
	}

	m := &Manager{
		memory: NewMemoryCache(config.MemoryCapacity),
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if config.DiskPath != "" && config.DiskCapacity > 0 {
		disk, err := NewDiskCache(config.DiskPath, config.DiskCapacity, config.CompressionLevel)
		if err != nil {
			return nil, fmt.Errorf("failed to create disk cache: %w", err)
		}
		m.disk = disk
	}

	return m, nil
}

// Get looks the key up in memory, then on disk.
func (m *Manager) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, false
	}

	if data, ok := m.memory.Get(key); ok {
		m.stats.hits++
		return data, true
	}

	if m.disk != nil {
		if data, ok := m.disk.Get(key); ok {
			m.stats.hits++
			if err := m.memory.Put(key, data); err == nil {
				m.stats.promotions++
			}
			return data, true
		}
	}

	m.stats.misses++
	return nil, false
}

// Put stores value in every level. A value too large for memory is still
// written to disk. Disk failures are logged and do not fail the call.
func (m *Manager) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrCacheClosed
	}

	memErr := m.memory.Put(key, value)
	if memErr != nil && !errors.Is(memErr, ErrItemTooLarge) {
		return fmt.Errorf("memory cache: %w", memErr)
	}

	if m.disk == nil {
		return memErr
	}
	if err := m.disk.Put(key, value); err != nil {
		if errors.Is(memErr, ErrItemTooLarge) {
			return fmt.Errorf("disk cache: %w", err)
		}
		m.logger.Warn("Disk cache write failed", "key", key, "err", err)
	}
	return nil
}

// Delete removes key from every level.
func (m *Manager) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.memory.Delete(key)
	if m.disk != nil {
		err = errors.Join(err, m.disk.Delete(key))
	}
	return err
}

// Clear empties every level.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.memory.Clear()
	if m.disk != nil {
		err = errors.Join(err, m.disk.Clear())
	}
	return err
}

// Contains reports whether any level holds key.
func (m *Manager) Contains(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.memory.Contains(key) {
		return true
	}
	return m.disk != nil && m.disk.Contains(key)
}

// Stats returns counters for the manager and each level.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := ManagerStats{
		Memory:     m.memory.Stats(),
		Hits:       m.stats.hits,
		Misses:     m.stats.misses,
		Promotions: m.stats.promotions,
	}
	if m.disk != nil {
		s.Disk = m.disk.Stats()
		s.HasDisk = true
	}
	return s
}

// Close flushes the disk index. The manager is unusable afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	if m.disk != nil {
		return m.disk.Close()
	}
	return nil
}

// Key derives a cache key from its parts.
func Key(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(hash[:16])
}
