// Package configapi implements ConfigHttpApi: the REST surface for editing
// the four ConfigStore documents and for managing the config UI's own
// authentication, served on its own port separate from the MCP transports.
package configapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	cfg "github.com/rachmataditiya/odoo-mcp-server/internal/config"
	"github.com/rachmataditiya/odoo-mcp-server/pkg/logging"
)

// HealthReport is the body of GET /health.
type HealthReport struct {
	Status    string            `json:"status"`
	Instances map[string]string `json:"instances"`
}

// Options configures a Server.
type Options struct {
	Store       *cfg.Store
	HealthCheck func(ctx context.Context) HealthReport
}

// Server serves the ConfigHttpApi endpoints over the Store Options wraps.
// It carries no auth state of its own: the enabled flag, bearer token, and
// UI credential hash all live in server.json so they reload on change the
// same way every other config document does.
type Server struct {
	store       *cfg.Store
	healthCheck func(ctx context.Context) HealthReport
}

// New creates a Server backed by opts.Store.
func New(opts Options) *Server {
	return &Server{store: opts.Store, healthCheck: opts.HealthCheck}
}

// Mux builds the routed handler for every ConfigHttpApi endpoint.
func (s *Server) Mux() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)

	mux.Handle("/api/config/auth/status", s.requireBearer(http.HandlerFunc(s.handleAuthStatus)))
	mux.Handle("/api/config/auth/enable", s.requireBearer(http.HandlerFunc(s.handleAuthEnable)))
	mux.Handle("/api/config/auth/credentials", s.requireBearer(http.HandlerFunc(s.handleAuthCredentials)))
	// token/generate is the login exchange itself: it authenticates against
	// the UI username/password rather than the bearer token it is about to
	// mint, since a caller rotating the token may not hold a valid one yet.
	mux.Handle("/api/config/auth/token/generate", s.requireUICredentials(http.HandlerFunc(s.handleTokenGenerate)))

	mux.Handle("/api/config/", s.requireBearer(http.HandlerFunc(s.handleKindDocument)))

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := HealthReport{Status: "ok"}
	if s.healthCheck != nil {
		report = s.healthCheck(r.Context())
	}
	writeJSON(w, http.StatusOK, report)
}

// handleKindDocument serves GET/POST /api/config/{kind}.
func (s *Server) handleKindDocument(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/config/")
	kind, ok := parseKind(name)
	if !ok {
		http.Error(w, "unknown config kind", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		data, err := s.store.Load(kind)
		if err != nil {
			writeDocumentError(w, kind, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)

	case http.MethodPost:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}
		if err := s.store.Save(kind, body); err != nil {
			writeDocumentError(w, kind, err)
			return
		}
		writeJSON(w, http.StatusOK, saveEnvelope{Success: true, Message: "saved"})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func parseKind(name string) (cfg.Kind, bool) {
	switch cfg.Kind(name) {
	case cfg.KindInstances, cfg.KindTools, cfg.KindPrompts, cfg.KindServer:
		return cfg.Kind(name), true
	default:
		return "", false
	}
}

// saveEnvelope is the response shape for POST /api/config/{kind}.
type saveEnvelope struct {
	Success           bool    `json:"success"`
	Message           string  `json:"message"`
	Warning           *string `json:"warning"`
	RollbackPerformed bool    `json:"rollback_performed"`
}

// writeDocumentError maps a ConfigStore error to the REST envelope.
// Validation and rollback failures are 2xx with success:false; only
// protocol-level failures (bad kind, bad auth, malformed body) are non-2xx.
func writeDocumentError(w http.ResponseWriter, kind cfg.Kind, err error) {
	switch e := err.(type) {
	case *cfg.InvalidError:
		writeJSON(w, http.StatusOK, saveEnvelope{Success: false, Message: e.Error()})
	case *cfg.SaveRolledBackError:
		warning := e.Error()
		writeJSON(w, http.StatusOK, saveEnvelope{Success: false, Message: warning, Warning: &warning, RollbackPerformed: true})
	case *cfg.NotFoundError:
		http.Error(w, e.Error(), http.StatusNotFound)
	default:
		logging.Error("ConfigHttpApi", err, "unexpected error serving %s", kind)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// requireBearer enforces bearer auth against the current server.json auth
// state. Auth is only enforced while AuthEnabled is set; disabling it opens
// every endpoint below, matching "HTTP-auth-enabled flag" semantics.
func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta, err := s.store.LoadServerMetadata()
		if err != nil {
			http.Error(w, "config unavailable", http.StatusInternalServerError)
			return
		}
		if !meta.AuthEnabled {
			next.ServeHTTP(w, r)
			return
		}
		presented := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if presented == r.Header.Get("Authorization") || !constantTimeEqual(presented, meta.AuthToken) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireUICredentials enforces HTTP Basic auth against the UI
// username/password, the one exchange exempted from bearer-token auth since
// it is what mints the bearer token in the first place.
func (s *Server) requireUICredentials(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta, err := s.store.LoadServerMetadata()
		if err != nil {
			http.Error(w, "config unavailable", http.StatusInternalServerError)
			return
		}
		username, password, ok := r.BasicAuth()
		if !ok || !constantTimeEqual(username, meta.UIUsername) || !constantTimeEqual(hashPassword(password), meta.UIPasswordHash) {
			w.Header().Set("WWW-Authenticate", `Basic realm="config"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

type authStatusResponse struct {
	AuthEnabled     bool `json:"authEnabled"`
	TokenConfigured bool `json:"tokenConfigured"`
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	meta, err := s.store.LoadServerMetadata()
	if err != nil {
		http.Error(w, "config unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, authStatusResponse{
		AuthEnabled:     meta.AuthEnabled,
		TokenConfigured: meta.AuthToken != "",
	})
}

type enableRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleAuthEnable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req enableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}
	err := s.mutateServerMetadata(func(meta *cfg.ServerMetadata) {
		meta.AuthEnabled = req.Enabled
	})
	if err != nil {
		writeDocumentError(w, cfg.KindServer, err)
		return
	}
	writeJSON(w, http.StatusOK, saveEnvelope{Success: true, Message: "auth toggled"})
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleTokenGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	token := uuid.New().String()
	err := s.mutateServerMetadata(func(meta *cfg.ServerMetadata) {
		meta.AuthToken = token
	})
	if err != nil {
		writeDocumentError(w, cfg.KindServer, err)
		return
	}
	logging.Audit(logging.AuditEvent{Action: "auth_token_generate", Outcome: "success", Target: "config-ui"})
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleAuthCredentials(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeJSON(w, http.StatusOK, saveEnvelope{Success: false, Message: "username and password must not be empty"})
		return
	}
	err := s.mutateServerMetadata(func(meta *cfg.ServerMetadata) {
		meta.UIUsername = req.Username
		meta.UIPasswordHash = hashPassword(req.Password)
	})
	if err != nil {
		writeDocumentError(w, cfg.KindServer, err)
		return
	}
	logging.Audit(logging.AuditEvent{Action: "credentials_update", Outcome: "success", Target: "config-ui"})
	writeJSON(w, http.StatusOK, saveEnvelope{Success: true, Message: "credentials updated"})
}

func (s *Server) mutateServerMetadata(mutate func(*cfg.ServerMetadata)) error {
	meta, err := s.store.LoadServerMetadata()
	if err != nil {
		return err
	}
	mutate(&meta)
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return s.store.Save(cfg.KindServer, data)
}
