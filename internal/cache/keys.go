// Package cache provides Redis-based read-through caching for the signalstudio API.
//
// This file defines standardized cache key naming conventions and patterns
// for the two things this service caches: session-token lookups and
// rendered view responses.
//
// Key Naming Convention:
//   - Format: {prefix}:{resource}:{identifier}
//   - Example: session:a1b2c3...  (session token hash)
//   - Example: view:sess-1:[0 3]:10.000-20.000:500 (a rendered view response)
package cache

import "fmt"

// Key prefixes for different resource types.
const (
	PrefixSession = "session"
	PrefixView    = "view"
)

// SessionKey addresses a cached User by session-token hash.
func SessionKey(tokenHash string) string {
	return fmt.Sprintf("%s:%s", PrefixSession, tokenHash)
}

// SessionPattern matches every cached session entry, for bulk invalidation
// (e.g. an admin "purge expired sessions" sweep).
func SessionPattern() string {
	return fmt.Sprintf("%s:*", PrefixSession)
}

// ViewKey addresses a cached view response for one recording session,
// a specific set of signal indices, time range and point budget. Any
// preload against sessionID invalidates every entry under ViewPattern.
func ViewKey(sessionID string, indices []int, t0, t1 float64, maxPoints int) string {
	return fmt.Sprintf("%s:%s:%v:%.3f-%.3f:%d", PrefixView, sessionID, indices, t0, t1, maxPoints)
}

// ViewPattern matches every cached view response for one recording session.
func ViewPattern(sessionID string) string {
	return fmt.Sprintf("%s:%s:*", PrefixView, sessionID)
}
