package cache

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/parquet-go/parquet-go"

	"github.com/f1-visualizer/f1-visualizer/internal/table"
)

// Format 是磁盘层的序列化格式，进程级配置，不能按调用切换。
type Format string

const (
	// FormatPickle 是通用二进制格式（gob，可选 zstd 压缩），文件扩展名 .pkl。
	FormatPickle Format = "pickle"
	// FormatParquet 是列式格式，文件扩展名 .parquet。
	FormatParquet Format = "parquet"
)

var (
	// ErrUnknownFormat 表示配置了不支持的磁盘格式。
	ErrUnknownFormat = errors.New("unknown disk format")
	// ErrNotTabular 表示值无法以表格形式序列化（nil 或没有列）。
	ErrNotTabular = errors.New("value is not a tabular frame")
)

// ParseFormat 解析配置中的格式名称，空字符串回退为 pickle。
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatPickle:
		return FormatPickle, nil
	case FormatParquet:
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, raw)
	}
}

// Ext 返回该格式对应的文件扩展名（含点）。
func (f Format) Ext() string {
	if f == FormatParquet {
		return ".parquet"
	}
	return ".pkl"
}

// knownExts 列出磁盘层识别的所有扩展名，切换格式后旧文件仍能被统计与清理。
var knownExts = []string{FormatPickle.Ext(), FormatParquet.Ext()}

// codec 为两种格式提供统一的读写契约。
type codec interface {
	format() Format
	marshal(*table.Frame) ([]byte, error)
	unmarshal([]byte) (*table.Frame, error)
}

func newCodec(format Format, compressionLevel int) (codec, error) {
	switch format {
	case FormatPickle:
		return newGobCodec(compressionLevel)
	case FormatParquet:
		return parquetCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// zstdMagic 是 zstd 帧头，读取时据此判断是否需要解压，压缩级别变更后旧文件依然可读。
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

type gobCodec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newGobCodec(level int) (*gobCodec, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	c := &gobCodec{decoder: decoder}
	if level > 0 {
		c.encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
	}
	return c, nil
}

func (c *gobCodec) format() Format { return FormatPickle }

func (c *gobCodec) marshal(f *table.Frame) ([]byte, error) {
	if f == nil {
		return nil, ErrNotTabular
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(f); err != nil {
		return nil, fmt.Errorf("gob encode: %w", err)
	}
	if c.encoder == nil {
		return buf.Bytes(), nil
	}
	return c.encoder.EncodeAll(buf.Bytes(), nil), nil
}

func (c *gobCodec) unmarshal(data []byte) (*table.Frame, error) {
	if len(data) == 0 {
		return nil, io.ErrUnexpectedEOF
	}
	if bytes.HasPrefix(data, zstdMagic) {
		decoded, err := c.decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decode: %w", err)
		}
		data = decoded
	}
	var f table.Frame
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&f); err != nil {
		return nil, fmt.Errorf("gob decode: %w", err)
	}
	// 反序列化结果同样需要满足 Frame 的不变量。
	return table.New(f.Columns...)
}

// columnOrderKey 记录原始列顺序；parquet.Group 会按名称排序叶子列。
const columnOrderKey = "f1.column_order"

type parquetCodec struct{}

func (parquetCodec) format() Format { return FormatParquet }

func (parquetCodec) marshal(f *table.Frame) ([]byte, error) {
	if f == nil || f.Width() == 0 {
		return nil, ErrNotTabular
	}

	group := make(parquet.Group, f.Width())
	index := make(map[string]int, f.Width())
	for i, col := range f.Columns {
		node, err := parquetNode(col.Kind)
		if err != nil {
			return nil, err
		}
		group[col.Name] = node
		index[col.Name] = i
	}
	schema := parquet.NewSchema("frame", group)

	leaves := schema.Fields()
	order := make([]int, len(leaves))
	for leaf, field := range leaves {
		order[leaf] = index[field.Name()]
	}

	names, err := json.Marshal(f.Names())
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := parquet.NewWriter(&buf, schema, parquet.KeyValueMetadata(columnOrderKey, string(names)))
	rows := make([]parquet.Row, f.Len())
	for r := range rows {
		row := make(parquet.Row, len(order))
		for leaf, ci := range order {
			row[leaf] = parquetValue(f.Columns[ci], r).Level(0, 0, leaf)
		}
		rows[r] = row
	}
	if _, err := writer.WriteRows(rows); err != nil {
		return nil, fmt.Errorf("parquet write rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("parquet close: %w", err)
	}
	return buf.Bytes(), nil
}

func (parquetCodec) unmarshal(data []byte) (*table.Frame, error) {
	file, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parquet open: %w", err)
	}

	fields := file.Schema().Fields()
	cols := make([]table.Column, len(fields))
	for i, field := range fields {
		kind, err := frameKind(field.Type().Kind())
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", field.Name(), err)
		}
		cols[i] = table.Column{Name: field.Name(), Kind: kind}
	}

	buf := make([]parquet.Row, 256)
	for _, rg := range file.RowGroups() {
		if err := readRowGroup(rg, buf, cols); err != nil {
			return nil, err
		}
	}

	if raw, ok := file.Lookup(columnOrderKey); ok {
		var names []string
		if err := json.Unmarshal([]byte(raw), &names); err != nil {
			return nil, fmt.Errorf("column order metadata: %w", err)
		}
		cols, err = reorder(cols, names)
		if err != nil {
			return nil, err
		}
	}
	return table.New(cols...)
}

func readRowGroup(rg parquet.RowGroup, buf []parquet.Row, cols []table.Column) error {
	rows := rg.Rows()
	defer rows.Close()

	for {
		n, err := rows.ReadRows(buf)
		for _, row := range buf[:n] {
			for _, v := range row {
				c := v.Column()
				if c < 0 || c >= len(cols) {
					return fmt.Errorf("parquet value for unknown column %d", c)
				}
				appendValue(&cols[c], v)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("parquet read rows: %w", err)
		}
	}
}

func reorder(cols []table.Column, names []string) ([]table.Column, error) {
	if len(names) != len(cols) {
		return nil, fmt.Errorf("column order metadata lists %d columns, file has %d", len(names), len(cols))
	}
	byName := make(map[string]table.Column, len(cols))
	for _, col := range cols {
		byName[col.Name] = col
	}
	ordered := make([]table.Column, 0, len(cols))
	for _, name := range names {
		col, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("column order metadata names unknown column %q", name)
		}
		ordered = append(ordered, col)
	}
	return ordered, nil
}

func parquetNode(kind table.Kind) (parquet.Node, error) {
	switch kind {
	case table.KindInt:
		return parquet.Int(64), nil
	case table.KindFloat:
		return parquet.Leaf(parquet.DoubleType), nil
	case table.KindString:
		return parquet.String(), nil
	case table.KindBool:
		return parquet.Leaf(parquet.BooleanType), nil
	default:
		return nil, table.ErrUnknownKind
	}
}

func parquetValue(col table.Column, row int) parquet.Value {
	switch col.Kind {
	case table.KindInt:
		return parquet.Int64Value(col.Ints[row])
	case table.KindFloat:
		return parquet.DoubleValue(col.Floats[row])
	case table.KindString:
		return parquet.ByteArrayValue([]byte(col.Strings[row]))
	default:
		return parquet.BooleanValue(col.Bools[row])
	}
}

func frameKind(kind parquet.Kind) (table.Kind, error) {
	switch kind {
	case parquet.Int64:
		return table.KindInt, nil
	case parquet.Double:
		return table.KindFloat, nil
	case parquet.ByteArray:
		return table.KindString, nil
	case parquet.Boolean:
		return table.KindBool, nil
	default:
		return 0, fmt.Errorf("%w: parquet kind %v", table.ErrUnknownKind, kind)
	}
}

func appendValue(col *table.Column, v parquet.Value) {
	switch col.Kind {
	case table.KindInt:
		col.Ints = append(col.Ints, v.Int64())
	case table.KindFloat:
		col.Floats = append(col.Floats, v.Double())
	case table.KindString:
		col.Strings = append(col.Strings, string(v.ByteArray()))
	case table.KindBool:
		col.Bools = append(col.Bools, v.Boolean())
	}
}
