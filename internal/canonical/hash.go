package canonical

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash computes the SHA-256 content digest of raw artifact bytes, hex encoded.
// Screenshot comparison is exact-match on this digest; there is no perceptual
// similarity threshold anywhere in the harness.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashValue computes the content digest of a value's canonical serialization.
func HashValue(v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", err
	}
	return Hash(data), nil
}
