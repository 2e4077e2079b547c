package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Key returns the cache key for a request URL scoped by prefix.
func Key(prefix, url string) string {
	return prefix + ":" + Hash([]byte(prefix+url))
}
