package dbx

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fieldtrace/signalstudio/internal/models"
)

// SessionDB handles database operations for opaque bearer session tokens.
// Tokens are stored by their SHA-256 hash (see internal/auth.TokenHasher):
// the lookup key is a fast, exact-match hash, never the bearer value
// itself, so a leaked database dump cannot be replayed as a live token.
type SessionDB struct {
	db *sql.DB
}

// NewSessionDB creates a new SessionDB instance.
func NewSessionDB(db *sql.DB) *SessionDB {
	return &SessionDB{db: db}
}

// Create stores a new session keyed by the hash of its bearer token.
func (s *SessionDB) Create(ctx context.Context, tokenHash string, session *models.SessionToken) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (token, user_id, created_at, expires_at, ip_address, user_agent)
		VALUES (?, ?, ?, ?, ?, ?)
	`, tokenHash, session.UserID, session.CreatedAt, session.ExpiresAt, session.IPAddress, session.UserAgent)
	return err
}

// Get retrieves a session by its token hash. Returns nil, nil when the
// hash is unknown or the session has expired (callers treat both as an
// invalid token, never distinguishing the two to a caller).
func (s *SessionDB) Get(ctx context.Context, tokenHash string) (*models.SessionToken, error) {
	session := &models.SessionToken{}
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, created_at, expires_at, ip_address, user_agent
		FROM sessions WHERE token = ?
	`, tokenHash).Scan(&session.UserID, &session.CreatedAt, &session.ExpiresAt,
		&session.IPAddress, &session.UserAgent)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if time.Now().After(session.ExpiresAt) {
		_ = s.Delete(ctx, tokenHash)
		return nil, nil
	}

	return session, nil
}

// Touch extends a session's expiry on activity (sliding idle timeout).
func (s *SessionDB) Touch(ctx context.Context, tokenHash string, newExpiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET expires_at = ? WHERE token = ?`, newExpiresAt, tokenHash)
	return err
}

// Delete removes a single session (logout).
func (s *SessionDB) Delete(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, tokenHash)
	return err
}

// DeleteAllForUser revokes every session belonging to a user (password
// change, account deactivation).
func (s *SessionDB) DeleteAllForUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	return err
}

// CountForUser reports how many live sessions a user currently holds,
// used to enforce the per-user session cap.
func (s *SessionDB) CountForUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sessions WHERE user_id = ? AND expires_at > ?
	`, userID, time.Now()).Scan(&n)
	return n, err
}

// OldestForUser returns the token hash of a user's least-recently-created
// session, used to evict on overflow of the per-user session cap.
func (s *SessionDB) OldestForUser(ctx context.Context, userID string) (string, error) {
	var tokenHash string
	err := s.db.QueryRowContext(ctx, `
		SELECT token FROM sessions WHERE user_id = ? ORDER BY created_at ASC LIMIT 1
	`, userID).Scan(&tokenHash)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return tokenHash, nil
}

// DeleteExpired purges all expired sessions; called by the admin
// sessions-cleanup endpoint via auth.Manager.PurgeExpiredSessions.
func (s *SessionDB) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}
