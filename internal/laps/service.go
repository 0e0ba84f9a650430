package laps

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/f1-visualizer/f1-visualizer/internal/cache"
	"github.com/f1-visualizer/f1-visualizer/internal/logging"
	"github.com/f1-visualizer/f1-visualizer/internal/producer"
	"github.com/f1-visualizer/f1-visualizer/internal/table"
)

const (
	// ProducerKey 同时是 lap 表缓存键的前缀。
	ProducerKey = "laps"
	// SeasonsKey 标识赛季列表的进程内缓存。
	SeasonsKey = "seasons"

	filePrefix = "transformed_laps_"
	fileExt    = ".csv"
)

// Sessions 是数据目录下支持的会话子目录。
var Sessions = []string{"race", "sprint"}

var (
	// ErrUnknownSession 表示会话名不在 Sessions 中。
	ErrUnknownSession = errors.New("unknown session")
	// ErrNotFound 表示对应赛季与会话的数据文件不存在。
	ErrNotFound = errors.New("lap data not found")
	// ErrUnknownDriver 表示数据中没有该车手。
	ErrUnknownDriver = errors.New("driver not available")
	// ErrMissingColumn 表示数据缺少计算所需的列或列类型不符。
	ErrMissingColumn = errors.New("missing column")
)

func init() {
	producer.MustRegister(producer.Metadata{
		Key:         ProducerKey,
		Description: "transformed lap tables by season and session",
		Kind:        producer.KindFrame,
		Persist:     true,
	})
	producer.MustRegister(producer.Metadata{
		Key:         SeasonsKey,
		Description: "seasons available in the data directory",
		Kind:        producer.KindMemo,
	})
}

// Service 读取并修改数据目录中的 lap 表，所有读取都经过缓存。
type Service struct {
	dataDir string
	logger  *logrus.Logger

	// writeMu 串行化对 CSV 的读改写。
	writeMu sync.Mutex

	laps    cache.FrameFunc
	addGap  func(args ...any) (*table.Frame, error)
	seasons *cache.Memoized[[]int]
}

// NewService 以 dataDir 为根目录创建 Service，读取结果缓存在 m 中。
func NewService(dataDir string, m *cache.Manager, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Service{dataDir: dataDir, logger: logger}
	s.laps = cache.CachedFrame(m, cache.FrameOptions{Prefix: ProducerKey, Name: "load_laps"}, s.load)
	s.addGap = cache.InvalidateOnUpdate(m, ProducerKey+"_", s.writeGap)
	s.seasons = cache.Memoize(SeasonsKey, "list_seasons", s.listSeasons)
	return s
}

// Path 返回赛季与会话对应的 CSV 路径。
func (s *Service) Path(season int, session string) string {
	return filepath.Join(s.dataDir, session, filePrefix+strconv.Itoa(season)+fileExt)
}

// Laps 返回某个赛季某个会话的 lap 表。返回值与缓存共享，调用方不得修改。
func (s *Service) Laps(season int, session string) (*table.Frame, error) {
	session, err := normalizeSession(session)
	if err != nil {
		return nil, err
	}
	return s.laps(season, session)
}

// AddGap 为数据文件追加（或重算）GapTo<DRIVER> 列并写回磁盘，成功后所有 lap 表缓存失效。
func (s *Service) AddGap(season int, session, driver string) (*table.Frame, error) {
	session, err := normalizeSession(session)
	if err != nil {
		return nil, err
	}
	driver = strings.ToUpper(strings.TrimSpace(driver))
	if driver == "" {
		return nil, fmt.Errorf("%w: empty driver", ErrUnknownDriver)
	}
	return s.addGap(season, session, driver)
}

// Seasons 返回数据目录中存在的赛季，升序。
func (s *Service) Seasons() ([]int, error) {
	return s.seasons.Call()
}

func (s *Service) load(args ...any) (*table.Frame, error) {
	season, session := args[0].(int), args[1].(string)
	path := s.Path(season, session)
	frame, err := readFrame(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: season %d %s", ErrNotFound, season, session)
		}
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"action":  "laps_load",
		"season":  season,
		"session": session,
		"rows":    frame.Len(),
	}).Info("loaded lap data")
	return frame, nil
}

func (s *Service) writeGap(args ...any) (*table.Frame, error) {
	season, session, driver := args[0].(int), args[1].(string), args[2].(string)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current, err := s.laps(season, session)
	if err != nil {
		return nil, err
	}
	updated, err := computeGap(current, driver)
	if err != nil {
		return nil, err
	}
	if err := writeFrame(s.Path(season, session), updated); err != nil {
		return nil, fmt.Errorf("write lap data: %w", err)
	}
	s.seasons.CacheClear()

	s.logger.WithFields(logrus.Fields{
		"action":  "laps_add_gap",
		"season":  season,
		"session": session,
		"driver":  driver,
	}).Info("added gap column")
	return updated, nil
}

func (s *Service) listSeasons(...any) ([]int, error) {
	seen := make(map[int]struct{})
	for _, session := range Sessions {
		entries, err := os.ReadDir(filepath.Join(s.dataDir, session))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileExt) {
				continue
			}
			season, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileExt))
			if err != nil {
				continue
			}
			seen[season] = struct{}{}
		}
	}
	seasons := make([]int, 0, len(seen))
	for season := range seen {
		seasons = append(seasons, season)
	}
	sort.Ints(seasons)
	return seasons, nil
}

func normalizeSession(session string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(session))
	for _, known := range Sessions {
		if normalized == known {
			return normalized, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSession, session)
}

// ClearSeasons 丢弃赛季列表的进程内缓存，下次调用 Seasons 时重新扫描目录。
func (s *Service) ClearSeasons() {
	s.seasons.CacheClear()
}
