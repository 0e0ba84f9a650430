package cache

import (
	"container/list"
	"strings"
	"sync"

	"github.com/f1-visualizer/f1-visualizer/internal/table"
)

// memoryTier 是按条目数限制容量的 LRU。items 的键集合与 order 中的键集合始终一致，
// 所有操作都在同一把锁内完成。
type memoryTier struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List // front = 最近使用
	evicted  int64
}

type memoryEntry struct {
	key   string
	frame *table.Frame
}

func newMemoryTier(capacity int) *memoryTier {
	if capacity < 1 {
		capacity = 1
	}
	return &memoryTier{
		capacity: capacity,
		items:    make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

func (m *memoryTier) get(key string) (*table.Frame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[key]
	if !ok {
		return nil, false
	}
	m.order.MoveToFront(elem)
	return elem.Value.(*memoryEntry).frame, true
}

// put 插入或覆盖 key，返回为腾出空间而被淘汰的键。
func (m *memoryTier) put(key string, frame *table.Frame) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.items[key]; ok {
		elem.Value.(*memoryEntry).frame = frame
		m.order.MoveToFront(elem)
		return nil
	}

	var evicted []string
	for m.order.Len() >= m.capacity {
		evicted = append(evicted, m.evictOldest())
	}
	m.items[key] = m.order.PushFront(&memoryEntry{key: key, frame: frame})
	return evicted
}

func (m *memoryTier) evict(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[key]
	if !ok {
		return false
	}
	m.order.Remove(elem)
	delete(m.items, key)
	return true
}

func (m *memoryTier) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = make(map[string]*list.Element, m.capacity)
	m.order.Init()
}

// resize 调整容量，缩容时立即淘汰多余的最久未用条目。
func (m *memoryTier) resize(capacity int) []string {
	if capacity < 1 {
		capacity = 1
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.capacity = capacity
	var evicted []string
	for m.order.Len() > m.capacity {
		evicted = append(evicted, m.evictOldest())
	}
	return evicted
}

// matching 返回包含 substr 的键，不影响访问顺序。
func (m *memoryTier) matching(substr string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	for key := range m.items {
		if strings.Contains(key, substr) {
			keys = append(keys, key)
		}
	}
	return keys
}

// keys 按从最久未用到最近使用的顺序返回键。
func (m *memoryTier) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, m.order.Len())
	for elem := m.order.Back(); elem != nil; elem = elem.Prev() {
		keys = append(keys, elem.Value.(*memoryEntry).key)
	}
	return keys
}

func (m *memoryTier) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *memoryTier) stats() (entries, capacity int, evicted int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items), m.capacity, m.evicted
}

// evictOldest 必须在持有锁时调用。
func (m *memoryTier) evictOldest() string {
	elem := m.order.Back()
	if elem == nil {
		return ""
	}
	entry := elem.Value.(*memoryEntry)
	m.order.Remove(elem)
	delete(m.items, entry.key)
	m.evicted++
	return entry.key
}
