// Package md5 provides MD5 hashing for cache keys and record
// fingerprints. The digests are identity signals, not security material.
package md5

import (
	"crypto/md5" // #nosec G501 -- non-cryptographic fingerprinting
	"encoding/hex"
)

// Hasher implements scraper.Hasher using MD5.
type Hasher struct{}

// New returns an MD5 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := md5.Sum(data) // #nosec G401
	return hex.EncodeToString(sum[:]), nil
}
