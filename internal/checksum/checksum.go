// Package checksum fingerprints uploaded files so repeated submissions of
// the same bytes can be flagged to operators.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded sha256 digest of data.
func Sum(data []byte) string {
	digest := sha256.Sum256(data)
	return hex.EncodeToString(digest[:])
}

// Matches reports whether data hashes to expected. An empty expected value
// never matches.
func Matches(expected string, data []byte) bool {
	if expected == "" {
		return false
	}
	return Sum(data) == expected
}
