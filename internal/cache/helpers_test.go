package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/f1-visualizer/f1-visualizer/internal/table"
)

// fakeClock 为 TTL 测试提供可拨动的时钟。
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 2, 15, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestManager(t *testing.T, opts Options) *Manager {
	t.Helper()
	if opts.Dir == "" {
		opts.Dir = t.TempDir()
	}
	m, err := NewManager(opts, nil)
	if err != nil {
		t.Fatalf("new manager error: %v", err)
	}
	return m
}

func sampleFrame(driver string) *table.Frame {
	return table.MustNew(
		table.Strings("Driver", driver, driver, driver),
		table.Ints("LapNumber", 1, 2, 3),
		table.Floats("LapTime", 92.1, 91.7, 91.9),
	)
}
