package security

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken returns a hex-encoded SHA-256 hash of the raw token string. The
// revocation store keys entries by this hash so raw tokens are never stored.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
