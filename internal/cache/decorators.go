package cache

import (
	"reflect"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/f1-visualizer/f1-visualizer/internal/table"
)

// FrameFunc 是返回表格数据的生产者。参数既可以是位置参数，也可以是 Kw 构造的关键字参数。
type FrameFunc func(args ...any) (*table.Frame, error)

// FrameOptions 控制 CachedFrame 的键与落盘行为。
type FrameOptions struct {
	// Prefix 既参与摘要计算，也作为可读前缀拼在键前面。
	Prefix string
	// Name 标识被包装的函数，留空时使用函数符号名。
	Name string
	// MemoryOnly 为 true 时结果只进入内存层。
	MemoryOnly bool
}

// CachedFrame 为 fn 提供 cache-through 语义：命中直接返回缓存值，fn 不会被调用；
// 未命中时调用 fn，结果非空才写入缓存。同一键的并发未命中只会触发一次 fn。
func CachedFrame(m *Manager, opts FrameOptions, fn FrameFunc) FrameFunc {
	name := opts.Name
	if name == "" {
		name = funcName(fn)
	}
	var group singleflight.Group

	return func(args ...any) (*table.Frame, error) {
		key := callKey(opts.Prefix, name, args)
		if frame, ok := m.Get(key); ok {
			return frame, nil
		}
		if m.hooks.afterMiss != nil {
			m.hooks.afterMiss(key)
		}

		v, err, _ := group.Do(key, func() (any, error) {
			// 上一轮共享调用可能在本次未命中之后刚刚写入。
			if frame, ok := m.memory.get(key); ok && !m.disabled {
				return frame, nil
			}
			m.logger.WithField("action", "cache_compute").WithField("func", name).Debug("cache miss, computing")
			frame, err := fn(args...)
			if err != nil {
				return nil, err
			}
			if !frame.Empty() {
				m.Set(key, frame, !opts.MemoryOnly)
			}
			return frame, nil
		})
		if err != nil {
			return nil, err
		}
		frame, _ := v.(*table.Frame)
		return frame, nil
	}
}

// Memoized 是进程内、不限容量、不过期的结果缓存，键的推导方式与 CachedFrame 相同。
type Memoized[R any] struct {
	prefix string
	name   string
	fn     func(args ...any) (R, error)

	mu      sync.Mutex
	results map[string]R
}

// Memoize 包装任意返回值的函数。出错的调用不会被缓存。
func Memoize[R any](prefix, name string, fn func(args ...any) (R, error)) *Memoized[R] {
	if name == "" {
		name = funcName(fn)
	}
	return &Memoized[R]{
		prefix:  prefix,
		name:    name,
		fn:      fn,
		results: make(map[string]R),
	}
}

// Call 返回缓存结果，没有时调用被包装函数。
func (m *Memoized[R]) Call(args ...any) (R, error) {
	key := callKey(m.prefix, m.name, args)

	m.mu.Lock()
	if result, ok := m.results[key]; ok {
		m.mu.Unlock()
		return result, nil
	}
	m.mu.Unlock()

	result, err := m.fn(args...)
	if err != nil {
		return result, err
	}

	m.mu.Lock()
	m.results[key] = result
	m.mu.Unlock()
	return result, nil
}

// CacheClear 丢弃所有已缓存的结果。
func (m *Memoized[R]) CacheClear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = make(map[string]R)
}

// Len 返回已缓存的结果数量。
func (m *Memoized[R]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.results)
}

// InvalidateOnUpdate 包装会修改数据的函数：fn 成功返回后失效所有键包含 pattern 的条目；
// fn 返回错误时不做失效，错误原样返回。
func InvalidateOnUpdate[R any](m *Manager, pattern string, fn func(args ...any) (R, error)) func(args ...any) (R, error) {
	return func(args ...any) (R, error) {
		result, err := fn(args...)
		if err != nil {
			return result, err
		}
		m.InvalidatePattern(pattern)
		return result, nil
	}
}

// callKey 推导装饰器使用的键：prefix + 函数名 + 调用参数。
func callKey(prefix, name string, args []any) string {
	parts := make([]any, 0, len(args)+2)
	parts = append(parts, prefix, name)
	parts = append(parts, args...)
	return joinKey(prefix, DeriveKey(parts...))
}

func funcName(fn any) string {
	full := runtime.FuncForPC(reflect.ValueOf(fn).Pointer()).Name()
	if idx := strings.LastIndex(full, "/"); idx >= 0 {
		full = full[idx+1:]
	}
	return full
}
