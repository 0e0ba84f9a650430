package table

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

var (
	// ErrRagged 表示列长度不一致。
	ErrRagged = errors.New("columns have different lengths")
	// ErrDuplicateColumn 表示列名重复。
	ErrDuplicateColumn = errors.New("duplicate column name")
	// ErrUnknownKind 表示列类型不在支持范围内。
	ErrUnknownKind = errors.New("unknown column kind")
)

// Kind 描述列的元素类型。
type Kind uint8

const (
	KindInt Kind = iota + 1
	KindFloat
	KindString
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int64"
	case KindFloat:
		return "float64"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Column 是一列数据，只有与 Kind 对应的切片有值。
type Column struct {
	Name    string
	Kind    Kind
	Ints    []int64
	Floats  []float64
	Strings []string
	Bools   []bool
}

// Ints 构造 int64 列。
func Ints(name string, values ...int64) Column {
	return Column{Name: name, Kind: KindInt, Ints: values}
}

// Floats 构造 float64 列。
func Floats(name string, values ...float64) Column {
	return Column{Name: name, Kind: KindFloat, Floats: values}
}

// Strings 构造字符串列。
func Strings(name string, values ...string) Column {
	return Column{Name: name, Kind: KindString, Strings: values}
}

// Bools 构造布尔列。
func Bools(name string, values ...bool) Column {
	return Column{Name: name, Kind: KindBool, Bools: values}
}

// Len 返回列的行数。
func (c Column) Len() int {
	switch c.Kind {
	case KindInt:
		return len(c.Ints)
	case KindFloat:
		return len(c.Floats)
	case KindString:
		return len(c.Strings)
	case KindBool:
		return len(c.Bools)
	default:
		return 0
	}
}

// Value 返回第 i 行的值，越界时 panic，与切片语义一致。
func (c Column) Value(i int) any {
	switch c.Kind {
	case KindInt:
		return c.Ints[i]
	case KindFloat:
		return c.Floats[i]
	case KindString:
		return c.Strings[i]
	case KindBool:
		return c.Bools[i]
	default:
		return nil
	}
}

func (c Column) clone() Column {
	return Column{
		Name:    c.Name,
		Kind:    c.Kind,
		Ints:    slices.Clone(c.Ints),
		Floats:  slices.Clone(c.Floats),
		Strings: slices.Clone(c.Strings),
		Bools:   slices.Clone(c.Bools),
	}
}

func (c Column) equal(other Column) bool {
	if c.Name != other.Name || c.Kind != other.Kind || c.Len() != other.Len() {
		return false
	}
	switch c.Kind {
	case KindInt:
		return slices.Equal(c.Ints, other.Ints)
	case KindFloat:
		// NaN 在缺失值场景下很常见，视为相等。
		return slices.EqualFunc(c.Floats, other.Floats, func(a, b float64) bool {
			return a == b || (math.IsNaN(a) && math.IsNaN(b))
		})
	case KindString:
		return slices.Equal(c.Strings, other.Strings)
	case KindBool:
		return slices.Equal(c.Bools, other.Bools)
	}
	return false
}

// Frame 是按列存储的矩形数据集。零值是一个没有列的空表。
type Frame struct {
	Columns []Column
}

// New 校验列后构建 Frame：类型必须合法，列名唯一，长度一致。
func New(cols ...Column) (*Frame, error) {
	seen := make(map[string]struct{}, len(cols))
	rows := -1
	for _, col := range cols {
		if col.Kind < KindInt || col.Kind > KindBool {
			return nil, fmt.Errorf("%w: column %q", ErrUnknownKind, col.Name)
		}
		if _, dup := seen[col.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, col.Name)
		}
		seen[col.Name] = struct{}{}
		if rows >= 0 && col.Len() != rows {
			return nil, fmt.Errorf("%w: column %q has %d rows, want %d", ErrRagged, col.Name, col.Len(), rows)
		}
		rows = col.Len()
	}
	return &Frame{Columns: cols}, nil
}

// MustNew 与 New 相同，但在出错时 panic，适合测试与常量数据。
func MustNew(cols ...Column) *Frame {
	f, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return f
}

// Len 返回行数。
func (f *Frame) Len() int {
	if f == nil || len(f.Columns) == 0 {
		return 0
	}
	return f.Columns[0].Len()
}

// Width 返回列数。
func (f *Frame) Width() int {
	if f == nil {
		return 0
	}
	return len(f.Columns)
}

// Empty 在没有行或没有列时返回 true。
func (f *Frame) Empty() bool {
	return f.Len() == 0
}

// Names 按顺序返回列名。
func (f *Frame) Names() []string {
	if f == nil {
		return nil
	}
	names := make([]string, len(f.Columns))
	for i, col := range f.Columns {
		names[i] = col.Name
	}
	return names
}

// Column 按名称查找列。
func (f *Frame) Column(name string) (Column, bool) {
	if f == nil {
		return Column{}, false
	}
	for _, col := range f.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// Clone 深拷贝整个 Frame。
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	cols := make([]Column, len(f.Columns))
	for i, col := range f.Columns {
		cols[i] = col.clone()
	}
	return &Frame{Columns: cols}
}

// Equal 比较列顺序、列名、类型和所有值。
func (f *Frame) Equal(other *Frame) bool {
	if f == nil || other == nil {
		return f == other
	}
	if len(f.Columns) != len(other.Columns) {
		return false
	}
	for i := range f.Columns {
		if !f.Columns[i].equal(other.Columns[i]) {
			return false
		}
	}
	return true
}

// WithColumn 返回追加（或同名替换）一列后的新 Frame，原 Frame 不变。
func (f *Frame) WithColumn(col Column) (*Frame, error) {
	cols := make([]Column, 0, f.Width()+1)
	replaced := false
	if f != nil {
		for _, existing := range f.Columns {
			if existing.Name == col.Name {
				cols = append(cols, col)
				replaced = true
				continue
			}
			cols = append(cols, existing)
		}
	}
	if !replaced {
		cols = append(cols, col)
	}
	return New(cols...)
}

// Rows 以行为单位展开数据，主要用于 JSON 输出；NaN 输出为 nil。
func (f *Frame) Rows() []map[string]any {
	n := f.Len()
	rows := make([]map[string]any, n)
	for i := 0; i < n; i++ {
		row := make(map[string]any, len(f.Columns))
		for _, col := range f.Columns {
			if col.Kind == KindFloat && math.IsNaN(col.Floats[i]) {
				row[col.Name] = nil
				continue
			}
			row[col.Name] = col.Value(i)
		}
		rows[i] = row
	}
	return rows
}
