package producer

// Kind 描述生产者的缓存方式。
type Kind string

const (
	// KindFrame 表示结果经 CachedFrame 进入两级缓存。
	KindFrame Kind = "frame"
	// KindMemo 表示结果只在进程内 Memoize。
	KindMemo Kind = "memo"
)

// Metadata 记录一个生产者的静态信息，供诊断端与失效接口使用。
type Metadata struct {
	Key         string `json:"key"`
	Description string `json:"description"`
	Kind        Kind   `json:"kind"`
	// Persist 表示结果是否写入磁盘层。
	Persist bool `json:"persist"`
}

// Pattern 返回该生产者所有缓存键共享的子串。
func (m Metadata) Pattern() string {
	return m.Key + "_"
}
