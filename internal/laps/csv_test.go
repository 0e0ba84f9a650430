package laps

import (
	"bytes"
	"math"
	"testing"

	"github.com/f1-visualizer/f1-visualizer/internal/table"
)

func TestParseTimedelta(t *testing.T) {
	testCases := []struct {
		raw  string
		want float64
	}{
		{"0 days 01:02:03.500000", 3723.5},
		{"1 days 00:00:01", 86401},
		{"00:01:30", 90},
		{"91.25", 91.25},
	}
	for _, tc := range testCases {
		got, err := parseTimedelta(tc.raw)
		if err != nil || got != tc.want {
			t.Fatalf("%q: got %v / %v, want %v", tc.raw, got, err, tc.want)
		}
	}

	for _, raw := range []string{"", "NaT"} {
		got, err := parseTimedelta(raw)
		if err != nil || !math.IsNaN(got) {
			t.Fatalf("%q should be NaN, got %v / %v", raw, got, err)
		}
	}
	if _, err := parseTimedelta("soon"); err == nil {
		t.Fatalf("expected error for invalid timedelta")
	}
}

func TestParseColumnInference(t *testing.T) {
	testCases := []struct {
		name   string
		column string
		values []string
		want   table.Kind
	}{
		{"ints", "Position", []string{"1", "2"}, table.KindInt},
		{"ints with gap become floats", "Position", []string{"1", ""}, table.KindFloat},
		{"floats", "LapTime", []string{"91.5", "92"}, table.KindFloat},
		{"bools", "IsPersonalBest", []string{"True", "False"}, table.KindBool},
		{"bools with gap become strings", "Deleted", []string{"True", ""}, table.KindString},
		{"strings", "Compound", []string{"SOFT", "HARD"}, table.KindString},
		{"forced string", "TrackStatus", []string{"1", "12"}, table.KindString},
		{"gap column stays float", "GapToVER", []string{"0", "3"}, table.KindFloat},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			col, err := parseColumn(tc.column, tc.values)
			if err != nil {
				t.Fatalf("parse error: %v", err)
			}
			if col.Kind != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, col.Kind)
			}
			if col.Len() != len(tc.values) {
				t.Fatalf("length mismatch: %d", col.Len())
			}
		})
	}
}

func TestEncodeFrame(t *testing.T) {
	frame := table.MustNew(
		table.Strings("Driver", "VER"),
		table.Floats("Time", math.NaN()),
		table.Bools("IsPersonalBest", true),
		table.Ints("LapNumber", 7),
	)
	var buf bytes.Buffer
	if err := encodeFrame(&buf, frame); err != nil {
		t.Fatalf("encode error: %v", err)
	}
	want := "Driver,Time,IsPersonalBest,LapNumber\nVER,,True,7\n"
	if buf.String() != want {
		t.Fatalf("unexpected csv %q", buf.String())
	}
}
