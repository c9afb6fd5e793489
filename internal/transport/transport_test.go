package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseKinds_DefaultsToStdio(t *testing.T) {
	kinds, err := ParseKinds("")
	require.NoError(t, err)
	require.Equal(t, []Kind{KindStdio}, kinds)
}

func TestParseKinds_CommaSeparatedList(t *testing.T) {
	kinds, err := ParseKinds("sse, streamable-http, websocket")
	require.NoError(t, err)
	require.Equal(t, []Kind{KindSSE, KindStreamableHTTP, KindWebSocket}, kinds)
}

func TestParseKinds_RejectsUnknownTransport(t *testing.T) {
	_, err := ParseKinds("carrier-pigeon")
	require.Error(t, err)
}

func TestParseKinds_RejectsStdioCombinedWithOthers(t *testing.T) {
	_, err := ParseKinds("stdio,sse")
	require.Error(t, err)
}

func TestAuthMiddleware_RejectsMissingBearerToken(t *testing.T) {
	m := &Manager{opts: Options{AuthToken: "secret"}}
	handler := m.authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddleware_AcceptsCorrectBearerToken(t *testing.T) {
	m := &Manager{opts: Options{AuthToken: "secret"}}
	handler := m.authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddleware_NoTokenConfiguredPassesThrough(t *testing.T) {
	m := &Manager{opts: Options{}}
	handler := m.authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleHealth_UsesConfiguredCheck(t *testing.T) {
	m := &Manager{opts: Options{
		HealthCheck: func(ctx context.Context) HealthReport {
			return HealthReport{Status: "ok", Instances: map[string]string{"default": "reachable"}}
		},
	}}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	m.handleHealth(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "reachable")
}

func TestHandleOpenAPI_ServesDescriptor(t *testing.T) {
	m := &Manager{}
	req := httptest.NewRequest(http.MethodGet, "/openapi.json", nil)
	rec := httptest.NewRecorder()
	m.handleOpenAPI(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "openapi")
}
