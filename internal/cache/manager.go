package cache

import (
	"errors"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/f1-visualizer/f1-visualizer/internal/logging"
	"github.com/f1-visualizer/f1-visualizer/internal/table"
)

const (
	// DefaultMemorySize 是内存层默认容量（条目数）。
	DefaultMemorySize = 256
	// DefaultDiskTTL 是磁盘条目默认有效期。
	DefaultDiskTTL = 24 * time.Hour
)

// ErrCacheDirRequired 表示未配置磁盘缓存目录。
var ErrCacheDirRequired = errors.New("cache dir required")

// Options 是 Manager 的构造参数，零值字段使用默认值。
type Options struct {
	Dir              string
	MemorySize       int
	DiskTTL          time.Duration
	Format           Format
	CompressionLevel int
	// Disabled 为 true 时 Manager 退化为直通：Get 总是未命中，Set 不做任何事。
	Disabled bool
	// Now 用于注入时钟，默认 time.Now。
	Now func() time.Time
}

// Stats 是 Manager 的只读快照。
type Stats struct {
	Enabled        bool    `json:"enabled"`
	MemoryEntries  int     `json:"memory_entries"`
	MemoryCapacity int     `json:"memory_capacity"`
	DiskEntries    int     `json:"disk_entries"`
	DiskSizeBytes  int64   `json:"disk_size_bytes"`
	DiskSizeMB     float64 `json:"disk_size_mb"`
	DiskSizeHuman  string  `json:"disk_size_human"`
	DiskTTLHours   float64 `json:"disk_ttl_hours"`
	DiskFormat     Format  `json:"disk_format"`
	Hits           int64   `json:"hits"`
	Misses         int64   `json:"misses"`
	DiskHits       int64   `json:"disk_hits"`
	Promotions     int64   `json:"promotions"`
	Evictions      int64   `json:"evictions"`
}

// Manager 独占内存层与磁盘层，对外只暴露键值契约。所有方法可并发调用，
// 除 NewManager 外不会返回错误：磁盘问题记录 warning 后按未命中处理。
type Manager struct {
	memory   *memoryTier
	disk     *diskTier
	locks    *keyLocks
	logger   *logrus.Logger
	disabled bool

	// guard 的读锁由所有按键加锁的操作持有，Clear 持有写锁，
	// 因此 Clear 不会与正在提升或写入的调用交错。
	guard sync.RWMutex
	hooks managerHooks

	hits       atomic.Int64
	misses     atomic.Int64
	diskHits   atomic.Int64
	promotions atomic.Int64
}

// managerHooks 供测试在关键步骤之间插入动作，生产环境全部为 nil。
type managerHooks struct {
	afterDiskRead func(key string)
	afterMiss     func(key string)
}

// NewManager 创建缓存目录并初始化两层缓存。目录无法创建或格式非法时返回错误。
func NewManager(opts Options, logger *logrus.Logger) (*Manager, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	if opts.MemorySize <= 0 {
		opts.MemorySize = DefaultMemorySize
	}
	if opts.DiskTTL <= 0 {
		opts.DiskTTL = DefaultDiskTTL
	}
	if opts.Format == "" {
		opts.Format = FormatPickle
	}

	c, err := newCodec(opts.Format, opts.CompressionLevel)
	if err != nil {
		return nil, err
	}
	disk, err := newDiskTier(opts.Dir, opts.DiskTTL, c, opts.Now)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		memory:   newMemoryTier(opts.MemorySize),
		disk:     disk,
		locks:    newKeyLocks(),
		logger:   logger,
		disabled: opts.Disabled,
	}

	logger.WithFields(logrus.Fields{
		"action":      "cache_init",
		"memory_size": opts.MemorySize,
		"disk_ttl":    opts.DiskTTL.String(),
		"disk_format": string(opts.Format),
		"dir":         disk.dir,
		"enabled":     !opts.Disabled,
	}).Info("cache manager initialized")
	return m, nil
}

// Dir 返回磁盘层的绝对路径。
func (m *Manager) Dir() string {
	return m.disk.dir
}

// Enabled 表示缓存是否处于工作状态。
func (m *Manager) Enabled() bool {
	return !m.disabled
}

// Get 依次查询内存层与磁盘层；磁盘命中会提升到内存层。第二个返回值为 false 表示未命中，
// 与缓存了空表的情况可以区分。
func (m *Manager) Get(key string) (*table.Frame, bool) {
	if m.disabled {
		return nil, false
	}
	if frame, ok := m.memory.get(key); ok {
		m.hits.Add(1)
		m.logger.WithFields(logging.CacheFields("cache_get", key)).WithField("tier", "memory").Debug("cache hit")
		return frame, true
	}

	m.guard.RLock()
	defer m.guard.RUnlock()
	unlock := m.locks.lock(key)
	defer unlock()

	// 等锁期间可能已被其他调用提升。
	if frame, ok := m.memory.get(key); ok {
		m.hits.Add(1)
		return frame, true
	}

	res := m.disk.read(key)
	if m.hooks.afterDiskRead != nil {
		m.hooks.afterDiskRead(key)
	}
	fields := logging.CacheFields("cache_get", key)
	switch res.status {
	case readHit:
		m.promote(key, res.frame)
		m.hits.Add(1)
		m.diskHits.Add(1)
		m.logger.WithFields(fields).WithField("tier", "disk").Debug("disk cache hit, promoted to memory")
		return res.frame, true
	case readStale:
		m.logger.WithFields(fields).Debug("disk cache entry expired")
		if res.err != nil {
			m.logger.WithFields(fields).WithError(res.err).Warn("failed to remove expired disk cache entry")
		}
	case readCorrupt:
		m.logger.WithFields(fields).WithError(res.err).Warn("failed to read disk cache, entry dropped")
	default:
		if res.err != nil {
			m.logger.WithFields(fields).WithError(res.err).Warn("failed to stat disk cache entry")
		}
	}

	m.misses.Add(1)
	m.logger.WithFields(fields).Debug("cache miss")
	return nil, false
}

// Set 总是写入内存层；disk 为 true 时同时落盘。落盘失败只记录日志，不回滚内存写入。
func (m *Manager) Set(key string, frame *table.Frame, disk bool) {
	if m.disabled {
		return
	}
	m.guard.RLock()
	defer m.guard.RUnlock()
	unlock := m.locks.lock(key)
	defer unlock()

	fields := logging.CacheFields("cache_set", key)
	m.putMemory(key, frame)
	m.logger.WithFields(fields).Debug("set memory cache")

	if !disk {
		return
	}
	if err := m.disk.write(key, frame); err != nil {
		m.logger.WithFields(fields).WithError(err).Warn("failed to write disk cache")
		return
	}
	m.logger.WithFields(fields).Debug("set disk cache")
}

// Invalidate 从两层中移除 key，key 不存在时什么也不做。
func (m *Manager) Invalidate(key string) {
	m.guard.RLock()
	defer m.guard.RUnlock()
	unlock := m.locks.lock(key)
	defer unlock()

	m.removeLocked(key)
	m.logger.WithFields(logging.CacheFields("cache_invalidate", key)).Info("invalidated cache entry")
}

// InvalidatePattern 移除键包含 substr 的所有条目（空字符串匹配全部），返回被移除的键数；
// 同时存在于两层的键只计一次。每个键在自己的锁内从两层一并删除。
func (m *Manager) InvalidatePattern(substr string) int {
	m.guard.RLock()
	defer m.guard.RUnlock()

	candidates := make(map[string]struct{})
	for _, key := range m.memory.matching(substr) {
		candidates[key] = struct{}{}
	}
	diskKeys, err := m.disk.matching(substr)
	if err != nil {
		m.logger.WithFields(logrus.Fields{"action": "cache_invalidate_pattern", "pattern": substr}).
			WithError(err).Warn("failed to list disk cache")
	}
	for _, key := range diskKeys {
		candidates[key] = struct{}{}
	}

	keys := make([]string, 0, len(candidates))
	for key := range candidates {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	count := 0
	for _, key := range keys {
		unlock := m.locks.lock(key)
		if m.removeLocked(key) {
			count++
		}
		unlock()
	}

	m.logger.WithFields(logrus.Fields{
		"action":  "cache_invalidate_pattern",
		"pattern": substr,
		"removed": count,
	}).Info("invalidated cache entries matching pattern")
	return count
}

// Clear 清空两层缓存。Clear 会等待进行中的读写完成，返回后不会再有旧值被提升回内存。
func (m *Manager) Clear() {
	m.guard.Lock()
	defer m.guard.Unlock()

	m.memory.clear()
	if err := m.disk.clearAll(); err != nil {
		m.logger.WithField("action", "cache_clear").WithError(err).Warn("failed to clear disk cache")
	}
	m.logger.WithField("action", "cache_clear").Info("cache cleared")
}

// ResizeMemory 调整内存层容量，缩容时立即淘汰多余条目。
func (m *Manager) ResizeMemory(capacity int) {
	evicted := m.memory.resize(capacity)
	if len(evicted) > 0 {
		m.logger.WithFields(logrus.Fields{
			"action":   "cache_resize",
			"capacity": capacity,
			"evicted":  len(evicted),
		}).Info("memory cache resized")
	}
}

// Stats 返回当前统计信息，不修改任何一层。
func (m *Manager) Stats() Stats {
	entries, capacity, evictions := m.memory.stats()
	diskEntries, diskSize, err := m.disk.usage()
	if err != nil {
		m.logger.WithField("action", "cache_stats").WithError(err).Warn("failed to scan disk cache")
	}
	return Stats{
		Enabled:        !m.disabled,
		MemoryEntries:  entries,
		MemoryCapacity: capacity,
		DiskEntries:    diskEntries,
		DiskSizeBytes:  diskSize,
		DiskSizeMB:     math.Round(float64(diskSize)/1e6*100) / 100,
		DiskSizeHuman:  humanize.Bytes(uint64(diskSize)),
		DiskTTLHours:   m.disk.ttl.Hours(),
		DiskFormat:     m.disk.codec.format(),
		Hits:           m.hits.Load(),
		Misses:         m.misses.Load(),
		DiskHits:       m.diskHits.Load(),
		Promotions:     m.promotions.Load(),
		Evictions:      evictions,
	}
}

func (m *Manager) promote(key string, frame *table.Frame) {
	m.putMemory(key, frame)
	m.promotions.Add(1)
}

func (m *Manager) putMemory(key string, frame *table.Frame) {
	for _, evicted := range m.memory.put(key, frame) {
		m.logger.WithFields(logging.CacheFields("cache_evict", evicted)).Debug("evicted LRU key from memory")
	}
}

// removeLocked 需在持有 key 锁时调用，返回 key 是否存在于任一层。
func (m *Manager) removeLocked(key string) bool {
	inMemory := m.memory.evict(key)
	onDisk, err := m.disk.delete(key)
	if err != nil {
		m.logger.WithFields(logging.CacheFields("cache_invalidate", key)).WithError(err).Warn("failed to delete disk cache entry")
	}
	return inMemory || onDisk
}
