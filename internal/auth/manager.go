// Package auth is the identity and session store: register/login/logout,
// session validation with idle-timeout sliding expiry and a per-user
// session cap, password changes, and the small set of admin operations
// (list/deactivate users, force-expire sessions).
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/fieldtrace/signalstudio/internal/apperr"
	"github.com/fieldtrace/signalstudio/internal/dbx"
	"github.com/fieldtrace/signalstudio/internal/logger"
	"github.com/fieldtrace/signalstudio/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// featuresByRole maps each role to the feature set it unlocks. Handlers
// consult this instead of scattering role string comparisons. Each tier is
// a strict superset of the one below: admin ⊃ user ⊃ public.
var (
	publicFeatures = []string{"health", "metrics:health"}
	userFeatures   = append(publicFeatures[:len(publicFeatures):len(publicFeatures)],
		"recordings", "layouts", "scripts", "sandbox", "run_scripts", "storage", "convert", "concat")
	adminFeatures = append(userFeatures[:len(userFeatures):len(userFeatures)],
		"admin:users", "admin:sessions", "admin:metrics")

	featuresByRole = map[models.Role][]string{
		models.RoleUser:  userFeatures,
		models.RoleAdmin: adminFeatures,
	}
)

// Features returns the feature set unlocked by a role.
func Features(role models.Role) []string { return featuresByRole[role] }

// Manager is the Identity & Session Store.
type Manager struct {
	users    *dbx.UserDB
	sessions *dbx.SessionDB
	hasher   *TokenHasher

	tokenTTL    time.Duration
	idleTimeout time.Duration
	maxSessions int
}

// NewManager constructs a Manager.
func NewManager(users *dbx.UserDB, sessions *dbx.SessionDB, tokenTTL, idleTimeout time.Duration, maxSessions int) *Manager {
	return &Manager{
		users:       users,
		sessions:    sessions,
		hasher:      NewTokenHasher(),
		tokenTTL:    tokenTTL,
		idleTimeout: idleTimeout,
		maxSessions: maxSessions,
	}
}

// Register creates a new local account and signs the caller straight in.
func (m *Manager) Register(ctx context.Context, req *models.RegisterRequest, ip, userAgent string) (*models.AuthResponse, error) {
	if _, err := m.users.GetUserByEmail(ctx, req.Email); err == nil {
		return nil, apperr.Conflict("an account with this email already exists")
	}
	user, err := m.users.CreateUser(ctx, req)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "failed to create account", err)
	}
	return m.issueSession(ctx, user, ip, userAgent)
}

// issueSession mints a fresh bearer token and session row for user.
func (m *Manager) issueSession(ctx context.Context, user *models.User, ip, userAgent string) (*models.AuthResponse, error) {
	plainToken, tokenHash, err := m.hasher.GenerateToken()
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "failed to generate session token", err)
	}

	now := time.Now()
	session := &models.SessionToken{
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.tokenTTL),
		IPAddress: ip,
		UserAgent: truncateUserAgent(userAgent),
	}
	if err := m.sessions.Create(ctx, tokenHash, session); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "failed to create session", err)
	}

	user.PasswordHash = ""
	return &models.AuthResponse{User: user, Token: plainToken}, nil
}

// Login verifies credentials and issues a new session token.
//
// Failure paths (unknown email, disabled account, wrong password) all
// return the same generic apperr.Unauthorized — the caller's error does
// not leak which of those occurred, and the duration of the two
// credential-lookup paths is kept close by always running bcrypt against
// either the real hash or a static decoy, so a timing side channel can't
// distinguish "no such user" from "wrong password".
func (m *Manager) Login(ctx context.Context, email, password, ip, userAgent string) (*models.AuthResponse, error) {
	user, err := m.users.VerifyPassword(ctx, email, password)
	if err != nil {
		// VerifyPassword only reaches bcrypt for an active account with a
		// bcrypt hash; every other failure path spends the decoy instead.
		if known, lookupErr := m.users.GetUserByEmail(ctx, email); lookupErr != nil || !known.Active || !strings.HasPrefix(known.PasswordHash, "$2") {
			equalizeTiming(password)
		}
		return nil, apperr.Unauthorized("invalid email or password")
	}

	if err := m.enforceSessionCap(ctx, user.ID); err != nil {
		logger.Security().Warn().Err(err).Str("user_id", user.ID).Msg("failed to enforce session cap")
	}

	return m.issueSession(ctx, user, ip, userAgent)
}

// enforceSessionCap evicts the oldest session once a login would exceed
// maxSessions, keeping the sliding window of concurrent sessions bounded.
func (m *Manager) enforceSessionCap(ctx context.Context, userID string) error {
	if m.maxSessions <= 0 {
		return nil
	}
	count, err := m.sessions.CountForUser(ctx, userID)
	if err != nil {
		return err
	}
	if count < m.maxSessions {
		return nil
	}
	oldest, err := m.sessions.OldestForUser(ctx, userID)
	if err != nil || oldest == "" {
		return err
	}
	return m.sessions.Delete(ctx, oldest)
}

// equalizeTiming spends roughly the time a real bcrypt comparison would,
// so a failed lookup (no such user) and a failed comparison (wrong
// password) are not distinguishable from response latency.
func equalizeTiming(password string) {
	decoyHash := "$2a$10$CwTycUXWue0Thq9StjUM0uJ8.p8X4khXQHTEZ/HH4QznwREQxg9ba"
	_ = bcrypt.CompareHashAndPassword([]byte(decoyHash), []byte(password))
}

func truncateUserAgent(ua string) string {
	const max = 256
	if len(ua) > max {
		return ua[:max]
	}
	return ua
}

// ValidateToken resolves a bearer token to its user and session row,
// sliding the idle-timeout expiry forward on activity. A missing or
// expired session and an unknown token are indistinguishable to the
// caller: both just return apperr.Unauthorized.
func (m *Manager) ValidateToken(ctx context.Context, plainToken string) (*models.User, error) {
	if plainToken == "" {
		return nil, apperr.Unauthorized("authentication required")
	}
	tokenHash := m.hasher.Hash(plainToken)

	session, err := m.sessions.Get(ctx, tokenHash)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "failed to look up session", err)
	}
	if session == nil {
		return nil, apperr.Unauthorized("invalid or expired session")
	}

	user, err := m.users.GetUser(ctx, session.UserID)
	if err != nil {
		return nil, apperr.Unauthorized("invalid or expired session")
	}
	if !user.Active {
		return nil, apperr.Forbidden("account disabled")
	}

	if m.idleTimeout > 0 {
		newExpiry := time.Now().Add(m.idleTimeout)
		// Only write back when the slide is worth a row update, so an
		// active session doesn't touch the database on every request.
		if newExpiry.Sub(session.ExpiresAt) > time.Minute {
			_ = m.sessions.Touch(ctx, tokenHash, newExpiry)
		}
	}

	user.PasswordHash = ""
	return user, nil
}

// tokenHashOf derives the session-table lookup hash for a bearer token;
// Logout uses it to find the row to delete.
func (m *Manager) tokenHashOf(plainToken string) string { return m.hasher.Hash(plainToken) }

// Logout revokes a single session.
func (m *Manager) Logout(ctx context.Context, plainToken string) error {
	return m.sessions.Delete(ctx, m.tokenHashOf(plainToken))
}

// GetUser fetches a user's public profile by ID.
func (m *Manager) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := m.users.GetUser(ctx, userID)
	if err != nil {
		return nil, apperr.NotFound("user")
	}
	user.PasswordHash = ""
	return user, nil
}

// UpdateProfile applies a self-service update (display name, settings).
func (m *Manager) UpdateProfile(ctx context.Context, userID string, req *models.ProfileUpdateRequest) (*models.User, error) {
	if err := m.users.UpdateProfile(ctx, userID, req); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "failed to update profile", err)
	}
	return m.GetUser(ctx, userID)
}

// UpdateUser applies an admin-controlled update (role, active flag). The
// last remaining admin can be neither demoted nor deactivated: the
// deployment must always have at least one administrable account.
func (m *Manager) UpdateUser(ctx context.Context, userID string, req *models.UpdateUserRequest) (*models.User, error) {
	demoting := req.Role != nil && *req.Role != models.RoleAdmin
	deactivating := req.Active != nil && !*req.Active
	if demoting || deactivating {
		target, err := m.users.GetUser(ctx, userID)
		if err == nil && target.Role == models.RoleAdmin {
			if n, err := m.users.CountAdmins(ctx); err == nil && n <= 1 {
				return nil, apperr.Forbidden("cannot demote or deactivate the last admin")
			}
		}
	}
	if err := m.users.UpdateUser(ctx, userID, req); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "failed to update user", err)
	}
	return m.GetUser(ctx, userID)
}

// ChangePassword verifies the current password, stores the new one,
// revokes every session belonging to the user, and mints a fresh token so
// the caller stays signed in while everyone else is kicked out.
func (m *Manager) ChangePassword(ctx context.Context, userID string, req *models.ChangePasswordRequest, ip, userAgent string) (*models.AuthResponse, error) {
	user, err := m.users.GetUser(ctx, userID)
	if err != nil {
		return nil, apperr.NotFound("user")
	}

	if _, err := m.users.VerifyPassword(ctx, user.Email, req.OldPassword); err != nil {
		return nil, apperr.Unauthorized("current password is incorrect")
	}

	if err := m.users.UpdatePassword(ctx, userID, req.NewPassword); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "failed to update password", err)
	}

	if err := m.sessions.DeleteAllForUser(ctx, userID); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "failed to revoke sessions", err)
	}

	return m.issueSession(ctx, user, ip, userAgent)
}

// --- Admin operations ---

// ListUsers returns every account (admin operation).
func (m *Manager) ListUsers(ctx context.Context) ([]*models.User, error) {
	users, err := m.users.ListUsers(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "failed to list users", err)
	}
	for _, u := range users {
		u.PasswordHash = ""
	}
	return users, nil
}

// DeactivateUser disables an account and revokes all of its sessions.
func (m *Manager) DeactivateUser(ctx context.Context, userID string) error {
	target, err := m.users.GetUser(ctx, userID)
	if err != nil {
		return apperr.NotFound("user")
	}
	if target.Role == models.RoleAdmin {
		if n, err := m.users.CountAdmins(ctx); err == nil && n <= 1 {
			return apperr.Forbidden("cannot demote or deactivate the last admin")
		}
	}
	if err := m.users.SetActive(ctx, userID, false); err != nil {
		return apperr.Wrap(apperr.CodeInternal, "failed to deactivate user", err)
	}
	return m.sessions.DeleteAllForUser(ctx, userID)
}

// ForceExpireSessions revokes every session for a user (admin action).
// DeactivateUser and ChangePassword revoke sessions through the session
// store directly.
func (m *Manager) ForceExpireSessions(ctx context.Context, userID string) error {
	return m.sessions.DeleteAllForUser(ctx, userID)
}

// PurgeExpiredSessions deletes expired session rows; expired tokens are
// otherwise only deleted lazily when observed, so this is the
// admin-driven sweep behind POST /api/admin/sessions/cleanup.
func (m *Manager) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return m.sessions.DeleteExpired(ctx)
}
