package configapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	cfg "github.com/rachmataditiya/odoo-mcp-server/internal/config"
)

func newTestServer(t *testing.T) (*Server, *cfg.Store) {
	t.Helper()
	store, err := cfg.NewStore(t.TempDir())
	require.NoError(t, err)
	return New(Options{Store: store}), store
}

func TestHandleKindDocument_GetReturnsSeedDocument(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/config/instances", nil)
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"instances"`)
}

func TestHandleKindDocument_UnknownKindIs404(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/config/bogus", nil)
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleKindDocument_PostValidDocumentSucceeds(t *testing.T) {
	s, _ := newTestServer(t)

	body := `{"instances":[{"name":"default","url":"https://odoo.example.com","db":"prod","apiKey":"k"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/config/instances", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"success":true`)
}

func TestHandleKindDocument_PostInvalidDocumentReturns200WithSuccessFalse(t *testing.T) {
	s, _ := newTestServer(t)

	body := `{"instances":[{"name":"","url":""}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/config/instances", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"success":false`)
}

func TestAuthStatus_ReportsDisabledByDefault(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/config/auth/status", nil)
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"authEnabled":false`)
}

func TestRequireBearer_PassesThroughWhenAuthDisabled(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/config/instances", nil)
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireBearer_RejectsMissingTokenWhenEnabled(t *testing.T) {
	s, store := newTestServer(t)
	enableAuthWithToken(t, store, "swordfish")

	req := httptest.NewRequest(http.MethodGet, "/api/config/instances", nil)
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireBearer_AcceptsCorrectToken(t *testing.T) {
	s, store := newTestServer(t)
	enableAuthWithToken(t, store, "swordfish")

	req := httptest.NewRequest(http.MethodGet, "/api/config/instances", nil)
	req.Header.Set("Authorization", "Bearer swordfish")
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestTokenGenerate_RejectsWrongUICredentials(t *testing.T) {
	s, store := newTestServer(t)
	setUICredentials(t, store, "admin", "correct-horse")

	req := httptest.NewRequest(http.MethodPost, "/api/config/auth/token/generate", nil)
	req.SetBasicAuth("admin", "wrong")
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTokenGenerate_AcceptsUICredentialsAndPersistsToken(t *testing.T) {
	s, store := newTestServer(t)
	setUICredentials(t, store, "admin", "correct-horse")

	req := httptest.NewRequest(http.MethodPost, "/api/config/auth/token/generate", nil)
	req.SetBasicAuth("admin", "correct-horse")
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"token"`)

	meta, err := store.LoadServerMetadata()
	require.NoError(t, err)
	require.NotEmpty(t, meta.AuthToken)
}

func TestHandleAuthCredentials_RejectsEmptyPassword(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/config/auth/credentials", strings.NewReader(`{"username":"admin","password":""}`))
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"success":false`)
}

func TestHandleHealth_UsesConfiguredCheck(t *testing.T) {
	s := New(Options{HealthCheck: func(ctx context.Context) HealthReport {
		return HealthReport{Status: "ok", Instances: map[string]string{"default": "reachable"}}
	}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "reachable")
}

func enableAuthWithToken(t *testing.T, store *cfg.Store, token string) {
	t.Helper()
	meta, err := store.LoadServerMetadata()
	require.NoError(t, err)
	meta.AuthEnabled = true
	meta.AuthToken = token
	data, err := json.Marshal(meta)
	require.NoError(t, err)
	require.NoError(t, store.Save(cfg.KindServer, data))
}

func setUICredentials(t *testing.T, store *cfg.Store, username, password string) {
	t.Helper()
	meta, err := store.LoadServerMetadata()
	require.NoError(t, err)
	meta.UIUsername = username
	meta.UIPasswordHash = hashPassword(password)
	data, err := json.Marshal(meta)
	require.NoError(t, err)
	require.NoError(t, store.Save(cfg.KindServer, data))
}
