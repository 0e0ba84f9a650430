// Package laps loads the transformed per-season lap tables from the data
// directory and serves them through the cache manager. Reads go through a
// cache-through wrapper keyed by season and session; AddGap rewrites the CSV
// on disk and then invalidates every cached lap table.
package laps
