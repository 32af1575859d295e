// internal/app/app_test.go
package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/drawatale/drawatale-backend/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		DataDir:                 filepath.Join(dir, "data"),
		LogDir:                  filepath.Join(dir, "logs"),
		StorageDriver:           "file",
		SecretKey:               "app-test-secret",
		TokenExpireMinutes:      15,
		CORSOrigins:             []string{"*"},
		RateLimitPerMinute:      100,
		StoryRateLimitPerMinute: 10,
	}
}

func TestNewRegistersServices(t *testing.T) {
	cfg := testConfig(t)

	a, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	for _, name := range []string{"store", "metrics", "llm", "user", "drawing", "story", "quest", "ai", "live_sessions"} {
		assert.True(t, a.Container().Has(name), "missing service %s", name)
	}

	assert.DirExists(t, cfg.DataDir)
	assert.DirExists(t, cfg.LogDir)
	assert.FileExists(t, filepath.Join(cfg.DataDir, "config.json"))
}

func TestRouterServesHealth(t *testing.T) {
	a, err := New(testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	router, err := a.Router()
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, false, body["llm_ready"])
	assert.Equal(t, "ok", body["storage"])
}

func TestNewRejectsBadHeuristics(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(t.TempDir(), "tables.yaml")
	require.NoError(t, os.WriteFile(path, []byte("theme_keywords: [unclosed"), 0644))
	cfg.HeuristicsFile = path

	_, err := New(cfg)
	assert.ErrorContains(t, err, "load heuristics")
}

func TestNewRejectsUnknownStorage(t *testing.T) {
	cfg := testConfig(t)
	cfg.StorageDriver = "mongo"

	_, err := New(cfg)
	assert.ErrorContains(t, err, "unsupported storage driver")
}

func TestCloseIsIdempotent(t *testing.T) {
	a, err := New(testConfig(t))
	require.NoError(t, err)

	require.NoError(t, a.Close())
	assert.NoError(t, a.Close())
}

func TestTokenConfig(t *testing.T) {
	cfg := &config.Config{SecretKey: "s3cret", TokenExpireMinutes: 45}
	tokens, err := tokenConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, []byte("s3cret"), tokens.Secret)
	assert.Equal(t, 45*time.Minute, tokens.Expiration)
	assert.Equal(t, tokenIssuer, tokens.Issuer)

	tokens, err = tokenConfig(&config.Config{})
	require.NoError(t, err)
	assert.Len(t, tokens.Secret, 32)
	assert.Equal(t, 30*time.Minute, tokens.Expiration)
}

func TestSweepClosesIdleLiveSessions(t *testing.T) {
	a, err := New(testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	sessions, sockets := a.sweep()
	assert.Zero(t, sessions)
	assert.Zero(t, sockets)

	_, err = a.Router()
	require.NoError(t, err)
	a.sessions.CreateSession("session-1", "user-1")

	sessions, sockets = a.sweep()
	assert.Zero(t, sessions)
	assert.Zero(t, sockets)
	assert.Equal(t, 1, a.sessions.Count())
}
