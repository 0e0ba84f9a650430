package laps

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/f1-visualizer/f1-visualizer/internal/table"
)

// timedeltaColumns 以 "0 days 01:02:03.456000" 形式存储，加载时统一转换为秒。
var timedeltaColumns = map[string]struct{}{
	"Time":       {},
	"PitInTime":  {},
	"PitOutTime": {},
}

// stringColumns 即使内容全是数字也按字符串处理，例如 TrackStatus "12"。
var stringColumns = map[string]struct{}{
	"TrackStatus": {},
	"FreshTyre":   {},
}

func readFrame(path string) (*table.Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%s: empty file", path)
		}
		return nil, err
	}
	raw := make([][]string, len(header))
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		for i := range header {
			raw[i] = append(raw[i], record[i])
		}
	}

	cols := make([]table.Column, len(header))
	for i, name := range header {
		col, err := parseColumn(name, raw[i])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		cols[i] = col
	}
	return table.New(cols...)
}

// parseColumn 依次尝试 int、float、bool（True/False），都失败时退回 string。
// 空单元格只与 float 兼容（视为 NaN）。
func parseColumn(name string, values []string) (table.Column, error) {
	if _, ok := stringColumns[name]; ok {
		return table.Strings(name, values...), nil
	}
	if _, ok := timedeltaColumns[name]; ok {
		seconds := make([]float64, len(values))
		for i, v := range values {
			s, err := parseTimedelta(v)
			if err != nil {
				return table.Column{}, fmt.Errorf("column %s row %d: %w", name, i+1, err)
			}
			seconds[i] = s
		}
		return table.Floats(name, seconds...), nil
	}
	if strings.HasPrefix(name, gapPrefix) {
		floats, ok := parseFloats(values)
		if !ok {
			return table.Column{}, fmt.Errorf("column %s: gap values must be numeric", name)
		}
		return table.Floats(name, floats...), nil
	}
	if ints, ok := parseInts(values); ok {
		return table.Ints(name, ints...), nil
	}
	if floats, ok := parseFloats(values); ok {
		return table.Floats(name, floats...), nil
	}
	if bools, ok := parseBools(values); ok {
		return table.Bools(name, bools...), nil
	}
	return table.Strings(name, values...), nil
}

func parseInts(values []string) ([]int64, bool) {
	out := make([]int64, len(values))
	for i, v := range values {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, false
		}
		out[i] = n
	}
	return out, true
}

func parseFloats(values []string) ([]float64, bool) {
	out := make([]float64, len(values))
	for i, v := range values {
		if v == "" {
			out[i] = math.NaN()
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

func parseBools(values []string) ([]bool, bool) {
	out := make([]bool, len(values))
	for i, v := range values {
		switch v {
		case "True":
			out[i] = true
		case "False":
		default:
			return nil, false
		}
	}
	return out, true
}

// parseTimedelta 接受纯秒数或 "D days HH:MM:SS[.ffffff]"，空值与 NaT 返回 NaN。
func parseTimedelta(raw string) (float64, error) {
	v := strings.TrimSpace(raw)
	if v == "" || v == "NaT" {
		return math.NaN(), nil
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f, nil
	}

	var days float64
	clock := v
	if idx := strings.Index(v, " days "); idx >= 0 {
		d, err := strconv.ParseFloat(v[:idx], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid timedelta %q", raw)
		}
		days = d
		clock = v[idx+len(" days "):]
	}
	parts := strings.Split(clock, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid timedelta %q", raw)
	}
	hours, err1 := strconv.ParseFloat(parts[0], 64)
	minutes, err2 := strconv.ParseFloat(parts[1], 64)
	seconds, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, fmt.Errorf("invalid timedelta %q", raw)
	}
	return days*86400 + hours*3600 + minutes*60 + seconds, nil
}

// writeFrame 先写临时文件再 rename，读者不会看到写了一半的 CSV。
func writeFrame(path string, frame *table.Frame) error {
	temp, err := os.CreateTemp(filepath.Dir(path), ".laps-*")
	if err != nil {
		return err
	}
	tempName := temp.Name()

	err = encodeFrame(temp, frame)
	if closeErr := temp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return err
	}
	if err := os.Rename(tempName, path); err != nil {
		os.Remove(tempName)
		return err
	}
	return nil
}

func encodeFrame(w io.Writer, frame *table.Frame) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(frame.Names()); err != nil {
		return err
	}
	record := make([]string, frame.Width())
	for row := 0; row < frame.Len(); row++ {
		for i, col := range frame.Columns {
			record[i] = formatCell(col, row)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatCell(col table.Column, row int) string {
	switch col.Kind {
	case table.KindInt:
		return strconv.FormatInt(col.Ints[row], 10)
	case table.KindFloat:
		if math.IsNaN(col.Floats[row]) {
			return ""
		}
		return strconv.FormatFloat(col.Floats[row], 'f', -1, 64)
	case table.KindBool:
		if col.Bools[row] {
			return "True"
		}
		return "False"
	default:
		return col.Strings[row]
	}
}
