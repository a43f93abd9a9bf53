package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldtrace/signalstudio/internal/dbx"
	"github.com/fieldtrace/signalstudio/internal/models"
)

func newTestManager(t *testing.T, tokenTTL time.Duration) *Manager {
	t.Helper()
	dir := t.TempDir()
	database, err := dbx.NewDatabase(dbx.Config{Path: filepath.Join(dir, "auth.db")})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate())

	return NewManager(dbx.NewUserDB(database.DB()), dbx.NewSessionDB(database.DB()), tokenTTL, 0, 5)
}

func register(t *testing.T, m *Manager, email string) *models.AuthResponse {
	t.Helper()
	resp, err := m.Register(context.Background(), &models.RegisterRequest{
		Email:    email,
		Password: "Abcdefg1",
		Name:     "Test User",
	}, "127.0.0.1", "test-agent")
	require.NoError(t, err)
	return resp
}

func TestRegister_FirstUserIsAdmin(t *testing.T) {
	m := newTestManager(t, time.Hour)

	first := register(t, m, "a@b.co")
	assert.Equal(t, models.RoleAdmin, first.User.Role)
	assert.NotEmpty(t, first.Token)

	second := register(t, m, "c@d.co")
	assert.Equal(t, models.RoleUser, second.User.Role)
}

func TestRegister_DuplicateEmailCaseInsensitive(t *testing.T) {
	m := newTestManager(t, time.Hour)
	register(t, m, "a@b.co")

	_, err := m.Register(context.Background(), &models.RegisterRequest{
		Email:    "A@B.CO",
		Password: "Abcdefg1",
		Name:     "Dup",
	}, "127.0.0.1", "test-agent")
	require.Error(t, err)
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	m := newTestManager(t, time.Hour)
	register(t, m, "a@b.co")

	_, errUnknown := m.Login(context.Background(), "nobody@b.co", "Abcdefg1", "127.0.0.1", "ua")
	_, errWrongPw := m.Login(context.Background(), "a@b.co", "wrong-password", "127.0.0.1", "ua")

	require.Error(t, errUnknown)
	require.Error(t, errWrongPw)
	assert.Equal(t, errUnknown.Error(), errWrongPw.Error())
}

func TestValidateToken_RoundTripAndExpiry(t *testing.T) {
	m := newTestManager(t, 50*time.Millisecond)
	resp := register(t, m, "a@b.co")

	user, err := m.ValidateToken(context.Background(), resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, user.ID)

	time.Sleep(80 * time.Millisecond)
	_, err = m.ValidateToken(context.Background(), resp.Token)
	assert.Error(t, err)
}

func TestChangePassword_RevokesOtherSessionsAndMintsFresh(t *testing.T) {
	m := newTestManager(t, time.Hour)
	first := register(t, m, "a@b.co")

	other, err := m.Login(context.Background(), "a@b.co", "Abcdefg1", "10.0.0.2", "other-agent")
	require.NoError(t, err)

	fresh, err := m.ChangePassword(context.Background(), first.User.ID, &models.ChangePasswordRequest{
		OldPassword: "Abcdefg1",
		NewPassword: "Zyxwvut9",
	}, "127.0.0.1", "test-agent")
	require.NoError(t, err)
	require.NotEmpty(t, fresh.Token)

	_, err = m.ValidateToken(context.Background(), first.Token)
	assert.Error(t, err, "pre-change token should be revoked")
	_, err = m.ValidateToken(context.Background(), other.Token)
	assert.Error(t, err, "other session should be revoked")

	_, err = m.ValidateToken(context.Background(), fresh.Token)
	assert.NoError(t, err)

	_, err = m.Login(context.Background(), "a@b.co", "Zyxwvut9", "127.0.0.1", "ua")
	assert.NoError(t, err)
}

func TestChangePassword_WrongCurrentPassword(t *testing.T) {
	m := newTestManager(t, time.Hour)
	resp := register(t, m, "a@b.co")

	_, err := m.ChangePassword(context.Background(), resp.User.ID, &models.ChangePasswordRequest{
		OldPassword: "not-it",
		NewPassword: "Zyxwvut9",
	}, "127.0.0.1", "ua")
	assert.Error(t, err)
}

func TestUpdateUser_LastAdminCannotBeDemoted(t *testing.T) {
	m := newTestManager(t, time.Hour)
	admin := register(t, m, "a@b.co")

	role := models.RoleUser
	_, err := m.UpdateUser(context.Background(), admin.User.ID, &models.UpdateUserRequest{Role: &role})
	require.Error(t, err)

	// Promote a second account to admin; demoting the first then works.
	second := register(t, m, "c@d.co")
	adminRole := models.RoleAdmin
	_, err = m.UpdateUser(context.Background(), second.User.ID, &models.UpdateUserRequest{Role: &adminRole})
	require.NoError(t, err)

	_, err = m.UpdateUser(context.Background(), admin.User.ID, &models.UpdateUserRequest{Role: &role})
	assert.NoError(t, err)
}

func TestDeactivateUser_LastAdminGuardAndSessionRevocation(t *testing.T) {
	m := newTestManager(t, time.Hour)
	admin := register(t, m, "a@b.co")
	second := register(t, m, "c@d.co")

	require.Error(t, m.DeactivateUser(context.Background(), admin.User.ID))

	require.NoError(t, m.DeactivateUser(context.Background(), second.User.ID))
	_, err := m.ValidateToken(context.Background(), second.Token)
	assert.Error(t, err)
}

func TestFeatures_AdminIsSupersetOfUser(t *testing.T) {
	userSet := map[string]bool{}
	for _, f := range Features(models.RoleUser) {
		userSet[f] = true
	}
	adminSet := map[string]bool{}
	for _, f := range Features(models.RoleAdmin) {
		adminSet[f] = true
	}
	for f := range userSet {
		assert.True(t, adminSet[f], "admin should include user feature %q", f)
	}
	assert.Greater(t, len(adminSet), len(userSet))
}
