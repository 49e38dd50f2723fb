package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashKey returns a stable hex digest for values that should not be stored raw,
// such as client IPs used in rate-limit keys.
func HashKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
