// Package cache stores synthesized audio on disk, zstd-compressed and
// bounded in size. The least recently used entries are evicted first.
package cache
