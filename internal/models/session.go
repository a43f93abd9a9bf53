package models

import "time"

// SessionToken is an opaque bearer session row: 256-bit random value, the
// user it authenticates, creation/expiry timestamps, and the request
// metadata captured at creation (origin ip and truncated user-agent).
type SessionToken struct {
	Token     string    `json:"-" db:"token"`
	UserID    string    `json:"-" db:"user_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	ExpiresAt time.Time `json:"expiresAt" db:"expires_at"`
	IPAddress string    `json:"ipAddress,omitempty" db:"ip_address"`
	UserAgent string    `json:"userAgent,omitempty" db:"user_agent"`
}
