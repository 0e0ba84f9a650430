package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/f1-visualizer/f1-visualizer/internal/cache"
	"github.com/f1-visualizer/f1-visualizer/internal/config"
	"github.com/f1-visualizer/f1-visualizer/internal/logging"
	"github.com/f1-visualizer/f1-visualizer/internal/version"
)

// defaultConfigPath 在未指定 -config 与 F1_CONFIG 时使用，文件不存在则只使用默认值与环境变量。
const defaultConfigPath = "config.toml"

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
	showStats   bool
	clearCache  bool
	invalidate  string
}

// maintenance 表示本次运行只做缓存维护，不启动 HTTP 服务。
func (o cliOptions) maintenance() bool {
	return o.showStats || o.clearCache || o.invalidate != ""
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["cache_dir"] = cfg.Cache.Dir
		fields["cache_enabled"] = cfg.Cache.Enabled
		fields["disk_format"] = cfg.Cache.DiskFormat
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	manager, err := newCacheManager(cfg.Cache, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存失败: %v\n", err)
		return 1
	}

	if opts.maintenance() {
		if err := runMaintenance(opts, manager); err != nil {
			fmt.Fprintf(stdErr, "缓存维护失败: %v\n", err)
			return 1
		}
		return 0
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["data_dir"] = cfg.Global.DataDir
	fields["cache_dir"] = manager.Dir()
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(cfg, manager, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// newCacheManager 把 [Cache] 配置转换为 cache.Options。
func newCacheManager(cfg config.CacheConfig, logger *logrus.Logger) (*cache.Manager, error) {
	format, err := cache.ParseFormat(cfg.DiskFormat)
	if err != nil {
		return nil, err
	}
	return cache.NewManager(cache.Options{
		Dir:              cfg.Dir,
		MemorySize:       cfg.MemorySize,
		DiskTTL:          cfg.DiskTTL(),
		Format:           format,
		CompressionLevel: cfg.CompressionLevel,
		Disabled:         !cfg.Enabled,
	}, logger)
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("f1-visualizer", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var opts cliOptions
	var configFlag string

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 F1_CONFIG 覆盖）")
	fs.BoolVar(&opts.checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&opts.showVersion, "version", false, "显示版本信息")
	fs.BoolVar(&opts.showStats, "stats", false, "输出缓存统计后退出")
	fs.BoolVar(&opts.clearCache, "clear", false, "清空内存与磁盘缓存后退出")
	fs.StringVar(&opts.invalidate, "invalidate", "", "删除键包含该子串的缓存条目后退出")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}
	if fs.NArg() > 0 {
		return cliOptions{}, fmt.Errorf("未知参数: %v", fs.Args())
	}

	path := os.Getenv("F1_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		} else if !errors.Is(err, os.ErrNotExist) {
			return cliOptions{}, fmt.Errorf("检查默认配置失败: %w", err)
		}
	}
	opts.configPath = path
	return opts, nil
}
