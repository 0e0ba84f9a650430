package cache

import (
	"fmt"
	"reflect"
	"sync"
	"testing"
)

func TestMemoryTierEvictsLeastRecentlyUsed(t *testing.T) {
	mem := newMemoryTier(2)
	mem.put("a", sampleFrame("VER"))
	mem.put("b", sampleFrame("HAM"))

	// 访问 a 使 b 成为最久未用。
	if _, ok := mem.get("a"); !ok {
		t.Fatalf("expected a to be present")
	}
	evicted := mem.put("c", sampleFrame("LEC"))
	if !reflect.DeepEqual(evicted, []string{"b"}) {
		t.Fatalf("expected b to be evicted, got %v", evicted)
	}
	if _, ok := mem.get("b"); ok {
		t.Fatalf("b should be gone")
	}
	if got := mem.keys(); !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Fatalf("unexpected LRU order %v", got)
	}
}

func TestMemoryTierOverwriteDoesNotEvict(t *testing.T) {
	mem := newMemoryTier(2)
	mem.put("a", sampleFrame("VER"))
	mem.put("b", sampleFrame("HAM"))
	if evicted := mem.put("a", sampleFrame("NOR")); len(evicted) != 0 {
		t.Fatalf("overwrite should not evict, got %v", evicted)
	}
	frame, _ := mem.get("a")
	col, _ := frame.Column("Driver")
	if col.Strings[0] != "NOR" {
		t.Fatalf("overwrite should replace value")
	}
	if mem.len() != 2 {
		t.Fatalf("expected 2 entries, got %d", mem.len())
	}
}

func TestMemoryTierResizeShrinks(t *testing.T) {
	mem := newMemoryTier(4)
	for _, key := range []string{"a", "b", "c", "d"} {
		mem.put(key, sampleFrame(key))
	}
	evicted := mem.resize(2)
	if !reflect.DeepEqual(evicted, []string{"a", "b"}) {
		t.Fatalf("expected oldest entries evicted, got %v", evicted)
	}
	entries, capacity, total := mem.stats()
	if entries != 2 || capacity != 2 || total != 2 {
		t.Fatalf("unexpected stats entries=%d capacity=%d evicted=%d", entries, capacity, total)
	}
}

func TestMemoryTierEvictAndClear(t *testing.T) {
	mem := newMemoryTier(3)
	mem.put("laps_1", sampleFrame("VER"))
	mem.put("laps_2", sampleFrame("HAM"))
	mem.put("session_1", sampleFrame("LEC"))

	if !mem.evict("laps_1") {
		t.Fatalf("evict should report existing key")
	}
	if mem.evict("laps_1") {
		t.Fatalf("second evict should report missing key")
	}
	if got := mem.matching("laps_"); !reflect.DeepEqual(got, []string{"laps_2"}) {
		t.Fatalf("unexpected matching keys %v", got)
	}

	mem.clear()
	if mem.len() != 0 || len(mem.keys()) != 0 {
		t.Fatalf("clear should drop every entry")
	}
}

func TestMemoryTierConcurrentAccess(t *testing.T) {
	mem := newMemoryTier(8)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (g*7+i)%16)
				mem.put(key, sampleFrame(key))
				mem.get(key)
				if i%5 == 0 {
					mem.evict(key)
				}
			}
		}(g)
	}
	wg.Wait()

	if mem.len() > 8 {
		t.Fatalf("capacity exceeded: %d", mem.len())
	}
	if len(mem.keys()) != mem.len() {
		t.Fatalf("order list and index diverged")
	}
}
