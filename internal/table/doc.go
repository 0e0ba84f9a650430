// Package table defines Frame, the rectangular dataset (rows x named, typed
// columns) that data producers return and the cache stores. A Frame is a
// plain value: no indexes, no lazy evaluation, columns are contiguous slices
// so both the binary and the columnar disk codecs can encode them directly.
package table
