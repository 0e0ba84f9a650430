package cache

import (
	"crypto/md5" //nolint:gosec // 仅用于缓存键，不涉及安全。
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Named 表示一个关键字参数。DeriveKey 会把所有 Named 按名称排序后追加在位置参数之后，
// 因此关键字参数的传入顺序不影响结果。
type Named struct {
	Name  string
	Value any
}

// Kw 构造关键字参数。
func Kw(name string, value any) Named {
	return Named{Name: name, Value: value}
}

// DeriveKey 将参数序列映射为固定 32 位十六进制摘要（128 bit），跨进程稳定。
//
// 每个值以 Go 语法格式（字符串带引号与转义）写入，值中出现分隔符也不会与其他参数序列混淆。
// 调用方只应传入基础类型或字符串表示稳定的值；map 等无序结构需先自行规范化。
func DeriveKey(parts ...any) string {
	var (
		b     strings.Builder
		named []Named
	)
	b.WriteString("(")
	for _, part := range parts {
		if n, ok := part.(Named); ok {
			named = append(named, n)
			continue
		}
		fmt.Fprintf(&b, "%T:%#v,", part, part)
	}
	b.WriteString(")[")
	sort.SliceStable(named, func(i, j int) bool { return named[i].Name < named[j].Name })
	for _, n := range named {
		fmt.Fprintf(&b, "%q=%T:%#v,", n.Name, n.Value, n.Value)
	}
	b.WriteString("]")

	sum := md5.Sum([]byte(b.String())) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// joinKey 为摘要加上可读前缀，使 InvalidatePattern(prefix+"_") 能命中同一生产者的条目。
func joinKey(prefix, digest string) string {
	if prefix == "" {
		return digest
	}
	return prefix + "_" + digest
}
