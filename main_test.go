package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/f1-visualizer/f1-visualizer/internal/cache"
	"github.com/f1-visualizer/f1-visualizer/internal/table"
)

func TestParseCLIFlagsPriority(t *testing.T) {
	t.Setenv("F1_CONFIG", "/tmp/env.toml")

	opts, err := parseCLIFlags([]string{})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/env.toml" {
		t.Fatalf("应优先使用环境变量，得到 %s", opts.configPath)
	}

	opts, err = parseCLIFlags([]string{"--config", "/tmp/flag.toml"})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/flag.toml" {
		t.Fatalf("flag 应高于环境变量，得到 %s", opts.configPath)
	}
}

func TestParseCLIFlagsMaintenance(t *testing.T) {
	t.Setenv("F1_CONFIG", "/tmp/env.toml")

	opts, err := parseCLIFlags([]string{"-stats", "-invalidate", "laps_"})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if !opts.showStats || opts.invalidate != "laps_" || opts.clearCache {
		t.Fatalf("维护参数解析错误: %+v", opts)
	}
	if !opts.maintenance() {
		t.Fatalf("应识别为维护模式")
	}

	if _, err := parseCLIFlags([]string{"-unknown"}); err == nil {
		t.Fatalf("未知参数应报错")
	}
	if _, err := parseCLIFlags([]string{"extra"}); err == nil {
		t.Fatalf("多余的位置参数应报错")
	}
}

func TestRunCheckConfigSuccess(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{configPath: configFixture(t, "valid.toml"), checkOnly: true})
	if code != 0 {
		t.Fatalf("期望退出码 0，得到 %d: %s", code, stdErrBuffer().String())
	}
}

func TestRunCheckConfigFailure(t *testing.T) {
	useBufferWriters(t)
	for _, name := range []string{"missing.toml", "invalid.toml"} {
		code := run(cliOptions{configPath: configFixture(t, name), checkOnly: true})
		if code == 0 {
			t.Fatalf("%s: 无效配置应返回非零退出码", name)
		}
	}
}

func TestRunVersionOutput(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{showVersion: true})
	if code != 0 {
		t.Fatalf("version 模式应成功退出，得到 %d", code)
	}
	if !strings.Contains(stdOutBuffer().String(), "f1-visualizer") {
		t.Fatalf("version 输出应包含 f1-visualizer 标识")
	}
}

func TestRunMaintenanceCommands(t *testing.T) {
	cacheDir := t.TempDir()
	configPath := writeConfigFile(t, fmt.Sprintf(`
LogLevel = "warn"
DataDir = %q

[Cache]
Dir = %q
`, t.TempDir(), cacheDir))

	seed, err := cache.NewManager(cache.Options{Dir: cacheDir}, nil)
	if err != nil {
		t.Fatalf("初始化缓存失败: %v", err)
	}
	frame := table.MustNew(table.Ints("LapNumber", 1, 2))
	seed.Set("laps_2024_r1", frame, true)
	seed.Set("laps_2024_r2", frame, true)
	seed.Set("session_2024", frame, true)

	useBufferWriters(t)
	if code := run(cliOptions{configPath: configPath, invalidate: "laps_"}); code != 0 {
		t.Fatalf("invalidate 应成功，得到 %d: %s", code, stdErrBuffer().String())
	}
	if !strings.Contains(stdOutBuffer().String(), "removed 2 cache entries") {
		t.Fatalf("invalidate 输出不符: %s", stdOutBuffer().String())
	}

	stdOutBuffer().Reset()
	if code := run(cliOptions{configPath: configPath, showStats: true}); code != 0 {
		t.Fatalf("stats 应成功，得到 %d", code)
	}
	var stats cache.Stats
	if err := json.Unmarshal(stdOutBuffer().Bytes(), &stats); err != nil {
		t.Fatalf("stats 输出应为 JSON: %v", err)
	}
	if stats.DiskEntries != 1 || stats.DiskFormat != cache.FormatPickle {
		t.Fatalf("stats 内容不符: %+v", stats)
	}

	stdOutBuffer().Reset()
	if code := run(cliOptions{configPath: configPath, clearCache: true}); code != 0 {
		t.Fatalf("clear 应成功，得到 %d", code)
	}
	matches, _ := filepath.Glob(filepath.Join(cacheDir, "*.pkl"))
	if len(matches) != 0 {
		t.Fatalf("clear 后不应残留缓存文件: %v", matches)
	}
}

func TestRunFailsWhenCacheDirUnusable(t *testing.T) {
	blocker := writeConfigFile(t, "")
	configPath := writeConfigFile(t, fmt.Sprintf(`
[Cache]
Dir = %q
`, filepath.Join(blocker, "cache")))

	useBufferWriters(t)
	if code := run(cliOptions{configPath: configPath, showStats: true}); code == 0 {
		t.Fatalf("缓存目录不可创建时应失败")
	}
	if !strings.Contains(stdErrBuffer().String(), "初始化缓存失败") {
		t.Fatalf("应输出缓存初始化错误: %s", stdErrBuffer().String())
	}
}
