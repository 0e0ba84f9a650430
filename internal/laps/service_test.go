package laps

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/f1-visualizer/f1-visualizer/internal/cache"
	"github.com/f1-visualizer/f1-visualizer/internal/producer"
	"github.com/f1-visualizer/f1-visualizer/internal/table"
)

const sampleCSV = `Driver,RoundNumber,LapNumber,Time,PitInTime,PitOutTime,TrackStatus,FreshTyre,IsPersonalBest,Position
VER,1,1,0 days 01:00:10.000000,,,1,True,True,1
HAM,1,1,0 days 01:00:12.500000,,,1,False,False,2
VER,1,2,,,,12,True,False,1
HAM,1,2,0 days 01:01:45.000000,,,12,False,True,2
HAM,1,3,0 days 01:03:20.000000,,,1,False,False,1
`

func newTestService(t *testing.T) (*Service, *cache.Manager, string) {
	t.Helper()
	dataDir := t.TempDir()
	writeLaps(t, dataDir, "race", 2024, sampleCSV)

	m, err := cache.NewManager(cache.Options{Dir: t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("new manager error: %v", err)
	}
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
	return NewService(dataDir, m, logger), m, dataDir
}

func writeLaps(t *testing.T, dataDir, session string, season int, content string) {
	t.Helper()
	dir := filepath.Join(dataDir, session)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir error: %v", err)
	}
	path := filepath.Join(dir, "transformed_laps_"+strconv.Itoa(season)+".csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv error: %v", err)
	}
}

func TestLapsLoadsAndInfersKinds(t *testing.T) {
	svc, _, _ := newTestService(t)
	frame, err := svc.Laps(2024, "Race")
	if err != nil {
		t.Fatalf("laps error: %v", err)
	}
	if frame.Len() != 5 {
		t.Fatalf("expected 5 rows, got %d", frame.Len())
	}

	want := map[string]table.Kind{
		"Driver":         table.KindString,
		"RoundNumber":    table.KindInt,
		"LapNumber":      table.KindInt,
		"Time":           table.KindFloat,
		"PitInTime":      table.KindFloat,
		"TrackStatus":    table.KindString,
		"FreshTyre":      table.KindString,
		"IsPersonalBest": table.KindBool,
		"Position":       table.KindInt,
	}
	for name, kind := range want {
		col, ok := frame.Column(name)
		if !ok {
			t.Fatalf("missing column %s", name)
		}
		if col.Kind != kind {
			t.Fatalf("column %s: expected %s, got %s", name, kind, col.Kind)
		}
	}

	timeCol, _ := frame.Column("Time")
	if timeCol.Floats[0] != 3610 || !math.IsNaN(timeCol.Floats[2]) {
		t.Fatalf("unexpected time values %v", timeCol.Floats)
	}
}

func TestLapsAreServedFromCache(t *testing.T) {
	svc, m, dataDir := newTestService(t)
	first, err := svc.Laps(2024, "race")
	if err != nil {
		t.Fatalf("laps error: %v", err)
	}
	if err := os.Remove(filepath.Join(dataDir, "race", "transformed_laps_2024.csv")); err != nil {
		t.Fatalf("remove error: %v", err)
	}
	second, err := svc.Laps(2024, "race")
	if err != nil {
		t.Fatalf("cached laps should not touch the file: %v", err)
	}
	if !first.Equal(second) {
		t.Fatalf("cached frame differs")
	}
	if stats := m.Stats(); stats.DiskEntries != 1 || stats.Hits != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if removed := m.InvalidatePattern(ProducerKey + "_"); removed != 1 {
		t.Fatalf("producer pattern should match the cached table, removed %d", removed)
	}
}

func TestLapsErrors(t *testing.T) {
	svc, m, _ := newTestService(t)
	if _, err := svc.Laps(2024, "qualifying"); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("expected ErrUnknownSession, got %v", err)
	}
	if _, err := svc.Laps(2019, "race"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if stats := m.Stats(); stats.MemoryEntries != 0 {
		t.Fatalf("errors should not be cached, got %+v", stats)
	}
}

func TestAddGapRewritesDataAndInvalidates(t *testing.T) {
	svc, m, _ := newTestService(t)
	if _, err := svc.Laps(2024, "race"); err != nil {
		t.Fatalf("laps error: %v", err)
	}

	updated, err := svc.AddGap(2024, "race", "ver")
	if err != nil {
		t.Fatalf("add gap error: %v", err)
	}
	gap, ok := updated.Column("GapToVER")
	if !ok {
		t.Fatalf("expected GapToVER column, got %v", updated.Names())
	}
	if gap.Floats[0] != 0 || gap.Floats[1] != 2.5 || gap.Floats[3] != 95 {
		t.Fatalf("unexpected gaps %v", gap.Floats)
	}
	if !math.IsNaN(gap.Floats[4]) {
		t.Fatalf("lap without reference should be NaN, got %v", gap.Floats[4])
	}
	if stats := m.Stats(); stats.MemoryEntries != 0 || stats.DiskEntries != 0 {
		t.Fatalf("successful update should invalidate lap tables, got %+v", stats)
	}

	reloaded, err := svc.Laps(2024, "race")
	if err != nil {
		t.Fatalf("reload error: %v", err)
	}
	if !reloaded.Equal(updated) {
		t.Fatalf("rewritten CSV should load back to the updated frame")
	}
}

func TestAddGapUnknownDriverKeepsCache(t *testing.T) {
	svc, m, _ := newTestService(t)
	if _, err := svc.Laps(2024, "race"); err != nil {
		t.Fatalf("laps error: %v", err)
	}
	if _, err := svc.AddGap(2024, "race", "LEC"); !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("expected ErrUnknownDriver, got %v", err)
	}
	if stats := m.Stats(); stats.MemoryEntries != 1 {
		t.Fatalf("failed update must not invalidate, got %+v", stats)
	}
}

func TestSeasonsMemoizedUntilUpdate(t *testing.T) {
	svc, _, dataDir := newTestService(t)
	writeLaps(t, dataDir, "sprint", 2023, sampleCSV)

	seasons, err := svc.Seasons()
	if err != nil {
		t.Fatalf("seasons error: %v", err)
	}
	if !reflect.DeepEqual(seasons, []int{2023, 2024}) {
		t.Fatalf("unexpected seasons %v", seasons)
	}

	writeLaps(t, dataDir, "race", 2025, sampleCSV)
	if seasons, _ := svc.Seasons(); len(seasons) != 2 {
		t.Fatalf("seasons should be memoized, got %v", seasons)
	}

	if _, err := svc.AddGap(2024, "race", "HAM"); err != nil {
		t.Fatalf("add gap error: %v", err)
	}
	if seasons, _ := svc.Seasons(); !reflect.DeepEqual(seasons, []int{2023, 2024, 2025}) {
		t.Fatalf("update should clear seasons memo, got %v", seasons)
	}
}

func TestProducersAreRegistered(t *testing.T) {
	meta, ok := producer.Resolve(ProducerKey)
	if !ok || !meta.Persist || meta.Pattern() != "laps_" {
		t.Fatalf("laps producer not registered correctly: %+v", meta)
	}
	if _, ok := producer.Resolve(SeasonsKey); !ok {
		t.Fatalf("seasons producer not registered")
	}
}
