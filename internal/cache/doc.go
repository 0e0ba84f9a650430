// Package cache implements the two-tier cache that sits between expensive
// data producers (lap loading, feature extraction, clustering, ranking) and
// the dashboard request cycle.
//
// A Manager owns an in-process LRU memory tier and an on-disk tier stored as
// <dir>/<key>.<ext>, one file per entry, validated against a TTL using the
// file modification time. Reads go memory → disk (promoting disk hits into
// memory); writes go to memory and optionally to disk. Disk problems are soft:
// they are logged and degrade to a cache miss, never to an error returned to
// the caller. Only construction can fail.
//
// CachedFrame, Memoize and InvalidateOnUpdate adapt ordinary functions to
// cache-through, memoized and invalidate-after-mutation behaviour.
package cache
