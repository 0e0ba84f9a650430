// Package producer 登记所有带缓存的数据生产者，并提供统一的注册入口。
//
// 生产者作者需要：
//   1. 用 cache.CachedFrame 或 cache.Memoize 包装自己的计算函数；
//   2. 在 init() 中通过 MustRegister 注册元数据，Key 同时作为缓存键前缀；
//   3. 修改底层数据的函数用 cache.InvalidateOnUpdate 包装，模式取 Pattern()。
//
// 诊断端据此列出生产者，并按 Key 失效对应的缓存条目。
package producer
