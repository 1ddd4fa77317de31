// Package cache provides a small in-process LRU with per-entry expiry.
package cache

// Cache is a keyed store of short-lived values.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Len() int

	// CleanExpired drops expired entries and reports how many went.
	CleanExpired() int
}

var _ Cache[int] = (*LRU[int])(nil)
