package config

import (
	"errors"
	"fmt"
)

var supportedDiskFormats = map[string]struct{}{
	"pickle":  {},
	"parquet": {},
}

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.LogMaxSize < 0 {
		return newFieldError("Global.LogMaxSize", "不能为负数")
	}
	if g.LogMaxBackups < 0 {
		return newFieldError("Global.LogMaxBackups", "不能为负数")
	}
	if g.DataDir == "" {
		return newFieldError("Global.DataDir", "不能为空")
	}
	if g.ShutdownTimeout.DurationValue() <= 0 {
		return newFieldError("Global.ShutdownTimeout", "必须大于 0")
	}

	cache := c.Cache
	if cache.Dir == "" {
		return newFieldError(cacheField("Dir"), "不能为空")
	}
	if cache.MemorySize < 1 {
		return newFieldError(cacheField("MemorySize"), "必须大于 0")
	}
	if cache.DiskTTLHours < 1 {
		return newFieldError(cacheField("DiskTTLHours"), "至少为 1 小时")
	}
	if _, ok := supportedDiskFormats[cache.DiskFormat]; !ok {
		return newFieldError(cacheField("DiskFormat"), fmt.Sprintf("仅支持 pickle|parquet，得到 %q", cache.DiskFormat))
	}
	if cache.CompressionLevel < 0 || cache.CompressionLevel > 22 {
		return newFieldError(cacheField("CompressionLevel"), "必须在 0-22")
	}
	return nil
}
