package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldtrace/signalstudio/internal/artifacts"
	"github.com/fieldtrace/signalstudio/internal/auth"
	"github.com/fieldtrace/signalstudio/internal/dbx"
	"github.com/fieldtrace/signalstudio/internal/decoder"
	"github.com/fieldtrace/signalstudio/internal/ratelimit"
	"github.com/fieldtrace/signalstudio/internal/recording"
	"github.com/fieldtrace/signalstudio/internal/storage"
	"github.com/fieldtrace/signalstudio/internal/tasks"
	"github.com/fieldtrace/signalstudio/internal/view"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router   *gin.Engine
	opener   *decoder.FakeOpener
	sessions *recording.Manager
	deps     *Deps
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	database, err := dbx.NewDatabase(dbx.Config{Path: filepath.Join(dir, "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate())

	opener := decoder.NewFakeOpener()
	sessions := recording.NewManager(opener, time.Hour, 50, nil)
	store := storage.New(dbx.NewFileDB(database.DB()), storage.Config{
		Root: filepath.Join(dir, "storage"),
	})

	deps := &Deps{
		Auth: auth.NewManager(dbx.NewUserDB(database.DB()), dbx.NewSessionDB(database.DB()),
			time.Hour, 0, 5),
		Limiter:   ratelimit.New(time.Minute, 5, time.Minute),
		Store:     store,
		Sessions:  sessions,
		View:      view.New(sessions),
		Pipeline:  tasks.New(opener, &decoder.FakeConcatenator{Opener: opener}, tasks.Config{WorkDir: dir}),
		Artifacts: artifacts.New(store),
		WorkDir:   filepath.Join(dir, "work"),
	}

	return &testEnv{router: NewRouter(deps), opener: opener, sessions: sessions, deps: deps}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewReader(raw)
	} else {
		payload = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// registerUser registers an account and returns its bearer token.
func (e *testEnv) registerUser(t *testing.T, email string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"email":    email,
		"password": "Abcdefg1",
		"name":     "Test User",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestSecurityHeadersPresent(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
}

func TestRegister_FirstUserIsAdminWithToken(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"email":    "a@b.co",
		"password": "Abcdefg1",
		"name":     "First",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		User struct {
			Role string `json:"role"`
		} `json:"user"`
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "admin", resp.User.Role)
	assert.NotEmpty(t, resp.Token)
}

func TestLogin_FailureBodiesIdentical(t *testing.T) {
	env := newTestEnv(t)
	env.registerUser(t, "a@b.co")

	var bodies []string
	for i := 0; i < 3; i++ {
		w := env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
			"email":    "a@b.co",
			"password": "wrong-password",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		bodies = append(bodies, w.Body.String())
	}
	assert.Equal(t, bodies[0], bodies[1])
	assert.Equal(t, bodies[1], bodies[2])
}

func TestLogin_LockoutAfterRepeatedFailures(t *testing.T) {
	env := newTestEnv(t)
	env.registerUser(t, "a@b.co")

	for i := 0; i < 5; i++ {
		env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
			"email":    "a@b.co",
			"password": "wrong-password",
		})
	}
	w := env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "a@b.co",
		"password": "Abcdefg1",
	})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{
		"/api/storage/files",
		"/api/layouts",
		"/api/scripts",
		"/api/sources",
	} {
		w := env.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestInvalidIDRejectedBeforeLookup(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerUser(t, "a@b.co")

	w := env.do(t, http.MethodGet, "/api/storage/files/bad!!id/download", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminRoutesForbiddenForPlainUser(t *testing.T) {
	env := newTestEnv(t)
	env.registerUser(t, "admin@b.co")
	userToken := env.registerUser(t, "user@b.co")

	w := env.do(t, http.MethodGet, "/api/admin/users", userToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLayoutCRUDRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerUser(t, "a@b.co")

	body := gin.H{
		"name": "My Layout",
		"body": gin.H{
			"tabs": []gin.H{{
				"name": "Tab 1",
				"plots": []gin.H{{
					"name": "Plot",
					"signals": []gin.H{{
						"name":  "Engine_Speed",
						"style": gin.H{"color": "#FF0000", "width": 2, "dash": "solid"},
					}},
				}},
			}},
		},
	}
	w := env.do(t, http.MethodPost, "/api/layouts", token, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	w = env.do(t, http.MethodGet, "/api/layouts/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodDelete, "/api/layouts/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/layouts/"+created.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLayoutValidationRejectsEmptyTabs(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerUser(t, "a@b.co")

	w := env.do(t, http.MethodPost, "/api/layouts", token, gin.H{
		"name": "Broken",
		"body": gin.H{"tabs": []gin.H{}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScriptValidateEndpointFlagsUnsafeCode(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerUser(t, "a@b.co")

	w := env.do(t, http.MethodPost, "/api/scripts/validate", token, gin.H{"code": "import os"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Safe   bool     `json:"safe"`
		Errors []string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Safe)
	require.NotEmpty(t, resp.Errors)
	assert.Contains(t, resp.Errors[0], "os")
}

func registerDemoRecording(t *testing.T, env *testEnv, sessionID, owner string) {
	t.Helper()
	n := 1000
	ts := make([]float64, n)
	vals := make([]float64, n)
	for i := range ts {
		ts[i] = float64(i) * 0.01
		vals[i] = float64(i % 100)
	}
	env.opener.Register("demo.mf4", decoder.NewFakeRecording([]decoder.FakeChannel{
		{Channel: decoder.Channel{Group: 0, Index: 0, Name: "Engine_Speed", Unit: "rpm"}, Timestamps: ts, Samples: vals},
		{Channel: decoder.Channel{Group: 0, Index: 1, Name: "Vehicle_Speed", Unit: "km/h"}, Timestamps: ts, Samples: vals},
	}))
	require.NoError(t, env.sessions.CreateSession(sessionID, owner, "demo.mf4", ""))
}

func currentUserID(t *testing.T, env *testEnv, token string) string {
	t.Helper()
	w := env.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	return me.ID
}

func TestEDAListPreloadView(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerUser(t, "a@b.co")
	owner := currentUserID(t, env, token)

	registerDemoRecording(t, env, "sess1", owner)

	w := env.do(t, http.MethodGet, "/api/eda/list-signals/sess1", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var signals []struct {
		Index  int    `json:"index"`
		Name   string `json:"name"`
		Loaded bool   `json:"loaded"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &signals))
	require.Len(t, signals, 2)
	for _, s := range signals {
		assert.False(t, s.Loaded)
	}

	w = env.do(t, http.MethodPost, "/api/eda/preload-signal/sess1/0", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/eda/view/sess1?signals=0,1&start=1&end=5&max_points=150", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var viewResp struct {
		Signals []struct {
			ReturnedPoints int  `json:"returnedPoints"`
			IsComplete     bool `json:"isComplete"`
		} `json:"signals"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &viewResp))
	require.Len(t, viewResp.Signals, 2)
	for _, s := range viewResp.Signals {
		assert.LessOrEqual(t, s.ReturnedPoints, 150)
		assert.False(t, s.IsComplete)
	}
}

func TestEDASessionOwnershipEnforced(t *testing.T) {
	env := newTestEnv(t)
	ownerToken := env.registerUser(t, "a@b.co")
	owner := currentUserID(t, env, ownerToken)
	otherToken := env.registerUser(t, "c@d.co")

	registerDemoRecording(t, env, "sess1", owner)

	w := env.do(t, http.MethodGet, "/api/eda/list-signals/sess1", otherToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestComputedVariableLifecycle(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerUser(t, "a@b.co")
	owner := currentUserID(t, env, token)

	registerDemoRecording(t, env, "sess1", owner)
	// Catalog must exist before signals can be referenced by name.
	w := env.do(t, http.MethodGet, "/api/eda/list-signals/sess1", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/create-variable", token, gin.H{
		"session": "sess1",
		"name":    "Speed_Sum",
		"unit":    "mixed",
		"formula": "A + B",
		"mapping": gin.H{"A": "Engine_Speed", "B": "Vehicle_Speed"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/computed-variables?session=sess1", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var vars []struct {
		Name     string `json:"name"`
		Computed bool   `json:"computed"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &vars))
	require.Len(t, vars, 1)
	assert.Equal(t, "Speed_Sum", vars[0].Name)

	// Non-computed signals cannot be removed through this path.
	w = env.do(t, http.MethodDelete, "/api/computed-variables/Engine_Speed?session=sess1", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodDelete, "/api/computed-variables/Speed_Sum?session=sess1", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStorageQuotaVisibleInInfo(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerUser(t, "a@b.co")

	w := env.do(t, http.MethodGet, "/api/storage/info", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var info struct {
		QuotaBytes int64 `json:"quotaBytes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Greater(t, info.QuotaBytes, int64(0))
}

func TestMetricsHealthIsPublic(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/metrics/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsReportsAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	env.registerUser(t, "admin@b.co")
	userToken := env.registerUser(t, "user@b.co")

	w := env.do(t, http.MethodGet, "/api/metrics/current", userToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestViewQueryValidation(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerUser(t, "a@b.co")
	owner := currentUserID(t, env, token)
	registerDemoRecording(t, env, "sess1", owner)

	for _, q := range []string{
		"",                       // missing signals
		"signals=a,b&start=0&end=1", // non-numeric indices
		"signals=0&start=x&end=1",   // non-numeric start
	} {
		w := env.do(t, http.MethodGet, fmt.Sprintf("/api/eda/view/sess1?%s", q), token, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}
