package metrics

import (
	"crypto/sha256"
	"encoding/hex"
)

// hashIP one-way hashes a client IP with the process-wide salt before
// anything is stored. Truncated to 16 hex chars: this is an
// anonymization scheme, not a security boundary, so the short digest is
// an intentional size/collision tradeoff.
func hashIP(salt, ip string) string {
	sum := sha256.Sum256([]byte(salt + ":" + ip))
	return hex.EncodeToString(sum[:])[:16]
}
