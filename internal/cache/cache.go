// Package cache memoizes derived values (normalized tokens, gazetteer
// responses) for the lifetime of a run.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache defines the interface for caching
type Cache[V any] interface {
	Get(key string) (V, bool)
	Set(key string, value V, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key builds a namespaced cache key. Long inputs are hashed so keys stay
// bounded.
func Key(namespace, input string) string {
	if len(input) <= 64 {
		return "labelsort:v1:" + namespace + ":" + input
	}
	hash := sha256.Sum256([]byte(input))
	return "labelsort:v1:" + namespace + ":" + hex.EncodeToString(hash[:])
}
