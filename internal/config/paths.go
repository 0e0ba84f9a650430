package config

import (
	"fmt"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
)

const appName = "f1-visualizer"

// DefaultCacheDir 返回用户级缓存目录（XDG_CACHE_HOME 等），无法确定时退回 ./.cache。
func DefaultCacheDir() string {
	scope := gap.NewScope(gap.User, appName)
	if dir, err := scope.CacheDir(); err == nil && dir != "" {
		return dir
	}
	return ".cache"
}

// resolvePaths 展开 ~ 并转为绝对路径，保证多 worker 进程共享同一磁盘缓存目录。
func (c *Config) resolvePaths() error {
	var err error
	if c.Cache.Dir, err = absPath(c.Cache.Dir); err != nil {
		return fmt.Errorf("无法解析缓存目录: %w", err)
	}
	if c.Global.DataDir, err = absPath(c.Global.DataDir); err != nil {
		return fmt.Errorf("无法解析数据目录: %w", err)
	}
	if c.Global.LogFilePath != "" {
		if c.Global.LogFilePath, err = absPath(c.Global.LogFilePath); err != nil {
			return fmt.Errorf("无法解析日志路径: %w", err)
		}
	}
	return nil
}

func absPath(p string) (string, error) {
	expanded, err := homedir.Expand(p)
	if err != nil {
		return "", err
	}
	return filepath.Abs(expanded)
}
