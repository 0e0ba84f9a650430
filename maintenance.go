package main

import (
	"encoding/json"
	"fmt"

	"github.com/f1-visualizer/f1-visualizer/internal/cache"
)

// runMaintenance 依次执行 -invalidate、-clear 与 -stats，统计最后输出以反映维护结果。
func runMaintenance(opts cliOptions, manager *cache.Manager) error {
	if opts.invalidate != "" {
		removed := manager.InvalidatePattern(opts.invalidate)
		fmt.Fprintf(stdOut, "removed %d cache entries matching %q\n", removed, opts.invalidate)
	}
	if opts.clearCache {
		manager.Clear()
		fmt.Fprintf(stdOut, "cleared cache at %s\n", manager.Dir())
	}
	if opts.showStats {
		encoder := json.NewEncoder(stdOut)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(manager.Stats()); err != nil {
			return fmt.Errorf("encode stats: %w", err)
		}
	}
	return nil
}
