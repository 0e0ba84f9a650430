package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// GlobalConfig 描述进程级运行参数：HTTP 端口、日志与数据目录。
type GlobalConfig struct {
	ListenPort      int      `mapstructure:"ListenPort"`
	LogLevel        string   `mapstructure:"LogLevel"`
	LogFilePath     string   `mapstructure:"LogFilePath"`
	LogMaxSize      int      `mapstructure:"LogMaxSize"`
	LogMaxBackups   int      `mapstructure:"LogMaxBackups"`
	LogCompress     bool     `mapstructure:"LogCompress"`
	DataDir         string   `mapstructure:"DataDir"`
	ShutdownTimeout Duration `mapstructure:"ShutdownTimeout"`
}

// CacheConfig 对应 [Cache] 段，也可通过 F1_CACHE_* 环境变量覆盖。
type CacheConfig struct {
	Enabled          bool   `mapstructure:"Enabled"`
	Dir              string `mapstructure:"Dir"`
	MemorySize       int    `mapstructure:"MemorySize"`
	DiskTTLHours     int    `mapstructure:"DiskTTLHours"`
	DiskFormat       string `mapstructure:"DiskFormat"`
	CompressionLevel int    `mapstructure:"CompressionLevel"`
}

// DiskTTL 将小时数换算为 time.Duration。
func (c CacheConfig) DiskTTL() time.Duration {
	return time.Duration(c.DiskTTLHours) * time.Hour
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
	Cache  CacheConfig  `mapstructure:"Cache"`
}
