package producer

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

var globalRegistry = newRegistry()

type registry struct {
	mu        sync.RWMutex
	producers map[string]Metadata
}

func newRegistry() *registry {
	return &registry{producers: make(map[string]Metadata)}
}

// Register 将生产者元数据加入全局注册表，重复键会返回错误。
func Register(meta Metadata) error {
	return globalRegistry.register(meta)
}

// MustRegister 在注册失败时 panic，适合在 init() 中调用。
func MustRegister(meta Metadata) {
	if err := Register(meta); err != nil {
		panic(err)
	}
}

// Resolve 返回指定键的生产者元数据。
func Resolve(key string) (Metadata, bool) {
	return globalRegistry.resolve(key)
}

// List 返回按键排序的元数据列表。
func List() []Metadata {
	return globalRegistry.list()
}

// Keys 返回所有已注册生产者的键，供调试或诊断使用。
func Keys() []string {
	items := List()
	result := make([]string, len(items))
	for i, meta := range items {
		result[i] = meta.Key
	}
	return result
}

func (r *registry) normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func (r *registry) register(meta Metadata) error {
	key := r.normalizeKey(meta.Key)
	if key == "" {
		return fmt.Errorf("producer key is required")
	}
	if strings.Contains(key, "_") {
		// 键包含下划线时 Pattern 可能误伤其他生产者。
		return fmt.Errorf("producer key %s must not contain '_'", key)
	}
	meta.Key = key
	if meta.Kind == "" {
		meta.Kind = KindFrame
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.producers[key]; exists {
		return fmt.Errorf("producer %s already registered", key)
	}
	r.producers[key] = meta
	return nil
}

func (r *registry) resolve(key string) (Metadata, bool) {
	if key == "" {
		return Metadata{}, false
	}
	normalized := r.normalizeKey(key)

	r.mu.RLock()
	defer r.mu.RUnlock()

	meta, ok := r.producers[normalized]
	return meta, ok
}

func (r *registry) list() []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.producers) == 0 {
		return nil
	}

	keys := make([]string, 0, len(r.producers))
	for key := range r.producers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([]Metadata, 0, len(keys))
	for _, key := range keys {
		result = append(result, r.producers[key])
	}
	return result
}
