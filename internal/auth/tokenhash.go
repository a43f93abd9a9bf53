// Package auth implements identity and session management: local
// email+password accounts, bcrypt hashing with transparent legacy-scheme
// upgrade, and opaque bearer session tokens looked up by hash.
//
// SESSION TOKENS, NOT JWT:
//
// Session tokens here are 256 bits of crypto/rand output, handed to the
// client as a bearer string and stored server-side only as a SHA-256
// hash keyed row (internal/dbx.SessionDB). This is a deliberate departure
// from stateless JWT: a session the store no longer has a row for is
// immediately invalid everywhere, with no signature-verification window
// during which a revoked token still validates. The cost is a database
// hit per request instead of a pure CPU check; internal/cache's
// read-through layer absorbs that cost when Redis is configured.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// TokenHasher generates bearer tokens and hashes them for storage lookup.
type TokenHasher struct{}

// NewTokenHasher creates a new token hasher.
func NewTokenHasher() *TokenHasher {
	return &TokenHasher{}
}

// GenerateToken returns a new bearer token (plain, given to the client)
// and its SHA-256 hash (stored, used for lookup). 32 bytes of entropy
// keeps the token a full 256-bit random value.
func (t *TokenHasher) GenerateToken() (plainToken, tokenHash string, err error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", fmt.Errorf("failed to generate session token: %w", err)
	}
	plainToken = base64.URLEncoding.EncodeToString(bytes)
	tokenHash = t.Hash(plainToken)
	return plainToken, tokenHash, nil
}

// Hash computes the lookup hash for a bearer token. Lookups then proceed
// as an exact-match indexed query, never comparing the plaintext bearer
// value against a stored plaintext column.
func (t *TokenHasher) Hash(plainToken string) string {
	sum := sha256.Sum256([]byte(plainToken))
	return hex.EncodeToString(sum[:])
}
