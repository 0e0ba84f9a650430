package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/f1-visualizer/f1-visualizer/internal/table"
)

// readStatus 描述一次磁盘读取的结果，软失败与未命中在这里可区分，便于测试观察。
type readStatus int

const (
	readAbsent  readStatus = iota // 文件不存在
	readHit                       // 读取并解码成功
	readStale                     // 超过 TTL，文件已删除
	readCorrupt                   // 读取或解码失败，文件已删除
)

func (s readStatus) String() string {
	switch s {
	case readHit:
		return "hit"
	case readStale:
		return "stale"
	case readCorrupt:
		return "corrupt"
	default:
		return "absent"
	}
}

type readResult struct {
	status readStatus
	frame  *table.Frame
	err    error
}

// diskTier 以 <dir>/<key>.<ext> 的布局持久化条目，没有子目录与索引文件；
// 写入采用临时文件 + rename，读者不会看到写了一半的文件。
type diskTier struct {
	dir   string
	ttl   time.Duration
	codec codec
	now   func() time.Time
}

// newDiskTier 解析并创建缓存目录，目录不可用时返回错误（构造期致命）。
func newDiskTier(dir string, ttl time.Duration, c codec, now func() time.Time) (*diskTier, error) {
	if dir == "" {
		return nil, ErrCacheDirRequired
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve cache dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	if now == nil {
		now = time.Now
	}
	return &diskTier{dir: abs, ttl: ttl, codec: c, now: now}, nil
}

func (d *diskTier) pathFor(key string) string {
	return filepath.Join(d.dir, key+d.codec.format().Ext())
}

// isValid 在文件存在且 now - mtime < ttl 时返回 true。
func (d *diskTier) isValid(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return d.fresh(info)
}

func (d *diskTier) fresh(info fs.FileInfo) bool {
	return d.now().Sub(info.ModTime()) < d.ttl
}

func (d *diskTier) read(key string) readResult {
	path := d.pathFor(key)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return readResult{status: readAbsent}
		}
		return readResult{status: readAbsent, err: err}
	}
	if info.IsDir() {
		return readResult{status: readAbsent}
	}
	if !d.fresh(info) {
		return readResult{status: readStale, err: removeFile(path)}
	}

	data, err := os.ReadFile(path)
	if err == nil {
		var frame *table.Frame
		frame, err = d.codec.unmarshal(data)
		if err == nil {
			return readResult{status: readHit, frame: frame}
		}
	}
	if rmErr := removeFile(path); rmErr != nil {
		err = errors.Join(err, rmErr)
	}
	return readResult{status: readCorrupt, err: err}
}

// write 序列化后原子落盘，并把 mtime 设为当前时钟，TTL 以此为起点。
func (d *diskTier) write(key string, frame *table.Frame) error {
	data, err := d.codec.marshal(frame)
	if err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(d.dir, ".cache-*")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()

	_, err = tempFile.Write(data)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return err
	}

	path := d.pathFor(key)
	if err := os.Rename(tempName, path); err != nil {
		os.Remove(tempName)
		return err
	}

	modTime := d.now()
	return os.Chtimes(path, modTime, modTime)
}

// delete 删除 key 在任一格式下的文件，返回是否真的删除了文件。缺失不算错误。
func (d *diskTier) delete(key string) (bool, error) {
	removed := false
	var errs []error
	for _, ext := range knownExts {
		err := os.Remove(filepath.Join(d.dir, key+ext))
		switch {
		case err == nil:
			removed = true
		case errors.Is(err, fs.ErrNotExist):
		default:
			errs = append(errs, err)
		}
	}
	return removed, errors.Join(errs...)
}

// deleteMatching 删除键包含 substr 的所有条目，返回被删除的键。
func (d *diskTier) deleteMatching(substr string) ([]string, error) {
	entries, err := d.list()
	if err != nil {
		return nil, err
	}
	var (
		keys []string
		errs []error
	)
	for _, e := range entries {
		if !strings.Contains(e.key, substr) {
			continue
		}
		if err := removeFile(e.path); err != nil {
			errs = append(errs, err)
			continue
		}
		keys = append(keys, e.key)
	}
	return keys, errors.Join(errs...)
}

func (d *diskTier) clearAll() error {
	entries, err := d.list()
	if err != nil {
		return err
	}
	var errs []error
	for _, e := range entries {
		if err := removeFile(e.path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// matching 返回磁盘上键包含 substr 的条目键，不删除任何文件。
func (d *diskTier) matching(substr string) ([]string, error) {
	entries, err := d.list()
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, e := range entries {
		if strings.Contains(e.key, substr) {
			keys = append(keys, e.key)
		}
	}
	return keys, nil
}

// usage 统计条目数与总字节数，不区分是否过期，与目录实际占用一致。
func (d *diskTier) usage() (int, int64, error) {
	entries, err := d.list()
	if err != nil {
		return 0, 0, err
	}
	var size int64
	for _, e := range entries {
		size += e.size
	}
	return len(entries), size, nil
}

type diskEntry struct {
	key     string
	path    string
	size    int64
	modTime time.Time
}

// list 枚举目录下所有识别扩展名的普通文件；临时文件与子目录被忽略。
func (d *diskTier) list() ([]diskEntry, error) {
	dirEntries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, err
	}
	entries := make([]diskEntry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if !de.Type().IsRegular() {
			continue
		}
		name := de.Name()
		ext := filepath.Ext(name)
		if !isKnownExt(ext) || strings.HasPrefix(name, ".") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			// 并发删除导致的竞争，跳过即可。
			continue
		}
		entries = append(entries, diskEntry{
			key:     strings.TrimSuffix(name, ext),
			path:    filepath.Join(d.dir, name),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
	}
	return entries, nil
}

func isKnownExt(ext string) bool {
	for _, known := range knownExts {
		if ext == known {
			return true
		}
	}
	return false
}

func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
