package dbx

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/fieldtrace/signalstudio/internal/models"
)

// legacyPrefix marks a password hash produced by the salt$sha256hex scheme
// this service inherited from an older auth system. VerifyPassword accepts
// it once, then transparently re-hashes with bcrypt.
const legacyPrefix = "legacy1$"

// UserDB handles database operations for users.
type UserDB struct {
	db *sql.DB
}

// NewUserDB creates a new UserDB instance.
func NewUserDB(db *sql.DB) *UserDB {
	return &UserDB{db: db}
}

// CreateUser creates a new local user with a bcrypt-hashed password.
func (u *UserDB) CreateUser(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	// The first account ever registered is promoted to admin so a fresh
	// deployment can be administered without a seeding step.
	role := models.RoleUser
	if n, err := u.CountUsers(ctx); err == nil && n == 0 {
		role = models.RoleAdmin
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hashed),
		Name:         req.Name,
		Role:         role,
		Active:       true,
		Settings:     map[string]any{},
		CreatedAt:    time.Now(),
	}

	settingsJSON, _ := json.Marshal(user.Settings)

	_, err = u.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, name, role, active, settings, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, user.ID, user.Email, user.PasswordHash, user.Name, user.Role, user.Active, string(settingsJSON), user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if _, err := u.db.ExecContext(ctx, `
		INSERT INTO user_quotas (user_id, quota_bytes) VALUES (?, ?)
	`, user.ID, defaultQuotaBytes); err != nil {
		return nil, fmt.Errorf("failed to create default quota: %w", err)
	}

	return user, nil
}

// defaultQuotaBytes is overridden at startup by cmd/server from config via
// SetDefaultQuotaBytes; this value applies until then.
var defaultQuotaBytes int64 = 5 * 1024 * 1024 * 1024

// SetDefaultQuotaBytes updates the quota assigned to newly created users.
func SetDefaultQuotaBytes(n int64) { defaultQuotaBytes = n }

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var settingsJSON string
	var lastLogin sql.NullTime

	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Name,
		&user.Role, &user.Active, &settingsJSON, &user.CreatedAt, &lastLogin)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user not found")
		}
		return nil, err
	}

	if lastLogin.Valid {
		user.LastLogin = &lastLogin.Time
	}
	_ = json.Unmarshal([]byte(settingsJSON), &user.Settings)

	return user, nil
}

// CountUsers returns the total number of accounts.
func (u *UserDB) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := u.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// CountAdmins returns the number of active admin accounts.
func (u *UserDB) CountAdmins(ctx context.Context) (int, error) {
	var n int
	err := u.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role = ? AND active = 1`, models.RoleAdmin).Scan(&n)
	return n, err
}

// GetUser retrieves a user by ID.
func (u *UserDB) GetUser(ctx context.Context, userID string) (*models.User, error) {
	row := u.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, name, role, active, settings, created_at, last_login
		FROM users WHERE id = ?
	`, userID)
	return scanUser(row)
}

// GetUserByEmail retrieves a user by (lowercased) email.
func (u *UserDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := u.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, name, role, active, settings, created_at, last_login
		FROM users WHERE email = ?
	`, strings.ToLower(strings.TrimSpace(email)))
	return scanUser(row)
}

// UpdateUser applies an admin-controlled update (role, active flag).
func (u *UserDB) UpdateUser(ctx context.Context, userID string, req *models.UpdateUserRequest) error {
	updates := []string{}
	args := []interface{}{}

	if req.Role != nil {
		updates = append(updates, "role = ?")
		args = append(args, *req.Role)
	}
	if req.Active != nil {
		updates = append(updates, "active = ?")
		args = append(args, *req.Active)
	}

	if len(updates) == 0 {
		return nil
	}

	args = append(args, userID)
	query := fmt.Sprintf("UPDATE users SET %s WHERE id = ?", strings.Join(updates, ", "))
	_, err := u.db.ExecContext(ctx, query, args...)
	return err
}

// UpdateProfile applies a self-service update to name/settings.
func (u *UserDB) UpdateProfile(ctx context.Context, userID string, req *models.ProfileUpdateRequest) error {
	updates := []string{}
	args := []interface{}{}

	if req.Name != nil {
		updates = append(updates, "name = ?")
		args = append(args, *req.Name)
	}
	if req.Settings != nil {
		settingsJSON, err := json.Marshal(req.Settings)
		if err != nil {
			return fmt.Errorf("failed to encode settings: %w", err)
		}
		updates = append(updates, "settings = ?")
		args = append(args, string(settingsJSON))
	}

	if len(updates) == 0 {
		return nil
	}

	args = append(args, userID)
	query := fmt.Sprintf("UPDATE users SET %s WHERE id = ?", strings.Join(updates, ", "))
	_, err := u.db.ExecContext(ctx, query, args...)
	return err
}

// SetActive enables or disables an account.
func (u *UserDB) SetActive(ctx context.Context, userID string, active bool) error {
	_, err := u.db.ExecContext(ctx, `UPDATE users SET active = ? WHERE id = ?`, active, userID)
	return err
}

// ListUsers returns every account, ordered by creation time.
func (u *UserDB) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := u.db.QueryContext(ctx, `
		SELECT id, email, password_hash, name, role, active, settings, created_at, last_login
		FROM users ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user := &models.User{}
		var settingsJSON string
		var lastLogin sql.NullTime
		if err := rows.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Name,
			&user.Role, &user.Active, &settingsJSON, &user.CreatedAt, &lastLogin); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		if lastLogin.Valid {
			user.LastLogin = &lastLogin.Time
		}
		_ = json.Unmarshal([]byte(settingsJSON), &user.Settings)
		users = append(users, user)
	}
	return users, rows.Err()
}

// UpdateLastLogin stamps the user's most recent successful authentication.
func (u *UserDB) UpdateLastLogin(ctx context.Context, userID string) error {
	_, err := u.db.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, time.Now(), userID)
	return err
}

// UpdatePassword re-hashes and stores a new password with bcrypt.
func (u *UserDB) UpdatePassword(ctx context.Context, userID, newPassword string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	_, err = u.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, string(hashed), userID)
	return err
}

// VerifyPassword checks credentials, upgrading a legacy salt$sha256hex hash
// to bcrypt transparently on a successful legacy match. Callers should
// treat any returned error uniformly (generic "invalid credentials") to
// avoid revealing whether the email exists.
func (u *UserDB) VerifyPassword(ctx context.Context, email, password string) (*models.User, error) {
	user, err := u.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, fmt.Errorf("account disabled")
	}

	if strings.HasPrefix(user.PasswordHash, legacyPrefix) {
		if !verifyLegacyHash(user.PasswordHash, password) {
			return nil, fmt.Errorf("invalid password")
		}
		if err := u.UpdatePassword(ctx, user.ID, password); err != nil {
			return nil, fmt.Errorf("failed to upgrade password hash: %w", err)
		}
	} else {
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
			return nil, fmt.Errorf("invalid password")
		}
	}

	_ = u.UpdateLastLogin(ctx, user.ID)
	return user, nil
}

// verifyLegacyHash checks a password against the "legacy1$salt$hexdigest"
// scheme: sha256(salt || password), hex-encoded, constant-time compared.
func verifyLegacyHash(stored, password string) bool {
	parts := strings.SplitN(strings.TrimPrefix(stored, legacyPrefix), "$", 2)
	if len(parts) != 2 {
		return false
	}
	salt, digestHex := parts[0], parts[1]

	sum := sha256.Sum256([]byte(salt + password))
	computed := hex.EncodeToString(sum[:])

	return subtle.ConstantTimeCompare([]byte(computed), []byte(digestHex)) == 1
}
