// Package cache implements the raw-response store: a byte store keyed by
// string, with modification times so callers can apply a TTL policy.
//
// Three implementations exist: a filesystem directory (the default), an
// S3-compatible object store, and an in-memory store used in tests.
package cache

import "time"

// Store is the raw-store capability used by the catalog client and the
// sync engine. Freshness is the caller's concern; Get returns the stored
// bytes together with their modification time.
type Store interface {
	Get(key string) ([]byte, time.Time, error)
	Put(key string, data []byte) error
}

// Fresh reports whether data written at mtime is still usable under ttl.
func Fresh(mtime time.Time, ttl time.Duration) bool {
	return time.Since(mtime) < ttl
}
