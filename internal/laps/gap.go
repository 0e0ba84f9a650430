package laps

import (
	"fmt"
	"math"

	"github.com/f1-visualizer/f1-visualizer/internal/table"
)

const gapPrefix = "GapTo"

type lapKey struct {
	round int64
	lap   int64
}

// GapColumn 返回到 driver 的差距列名，例如 GapToVER。
func GapColumn(driver string) string {
	return gapPrefix + driver
}

// computeGap 以 (RoundNumber, LapNumber) 对齐 driver 自己的 Time，计算每一行与其的差值（秒）。
// driver 缺失的 Time 按其自身行顺序向前填充；driver 未跑的圈位结果为 NaN。
func computeGap(frame *table.Frame, driver string) (*table.Frame, error) {
	drivers, err := requireColumn(frame, "Driver", table.KindString)
	if err != nil {
		return nil, err
	}
	rounds, err := requireColumn(frame, "RoundNumber", table.KindInt)
	if err != nil {
		return nil, err
	}
	lapNumbers, err := requireLapNumbers(frame)
	if err != nil {
		return nil, err
	}
	times, err := requireColumn(frame, "Time", table.KindFloat)
	if err != nil {
		return nil, err
	}

	reference := make(map[lapKey]float64)
	last := math.NaN()
	found := false
	for i, d := range drivers.Strings {
		if d != driver {
			continue
		}
		found = true
		key := lapKey{round: rounds.Ints[i], lap: lapNumbers[i]}
		if _, dup := reference[key]; dup {
			return nil, fmt.Errorf("driver %s has duplicate lap %d in round %d", driver, key.lap, key.round)
		}
		t := times.Floats[i]
		if math.IsNaN(t) {
			t = last
		} else {
			last = t
		}
		reference[key] = t
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}

	gaps := make([]float64, frame.Len())
	for i := range gaps {
		ref, ok := reference[lapKey{round: rounds.Ints[i], lap: lapNumbers[i]}]
		if !ok {
			gaps[i] = math.NaN()
			continue
		}
		gaps[i] = times.Floats[i] - ref
	}
	return frame.WithColumn(table.Floats(GapColumn(driver), gaps...))
}

func requireColumn(frame *table.Frame, name string, kind table.Kind) (table.Column, error) {
	col, ok := frame.Column(name)
	if !ok {
		return table.Column{}, fmt.Errorf("%w: %s", ErrMissingColumn, name)
	}
	if col.Kind != kind {
		return table.Column{}, fmt.Errorf("%w: %s is %s, want %s", ErrMissingColumn, name, col.Kind, kind)
	}
	return col, nil
}

// requireLapNumbers 兼容因缺失值被推断为 float 的 LapNumber 列。
func requireLapNumbers(frame *table.Frame) ([]int64, error) {
	col, ok := frame.Column("LapNumber")
	if !ok {
		return nil, fmt.Errorf("%w: LapNumber", ErrMissingColumn)
	}
	switch col.Kind {
	case table.KindInt:
		return col.Ints, nil
	case table.KindFloat:
		out := make([]int64, len(col.Floats))
		for i, f := range col.Floats {
			if math.IsNaN(f) {
				out[i] = -1
				continue
			}
			out[i] = int64(f)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: LapNumber is %s", ErrMissingColumn, col.Kind)
	}
}
