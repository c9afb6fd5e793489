// Package transport implements four framings over the same mark3labs/mcp-go
// server.MCPServer: standard streams, streamable HTTP, SSE+POST, and
// WebSocket. A single process may run any combination of the three HTTP-family
// framings concurrently, or stdio on its own; Manager owns the listeners for
// whichever set is requested.
package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/rachmataditiya/odoo-mcp-server/internal/mcpsession"
	"github.com/rachmataditiya/odoo-mcp-server/pkg/logging"
)

// Kind names one of the four supported framings.
type Kind string

const (
	KindStdio          Kind = "stdio"
	KindStreamableHTTP Kind = "streamable-http"
	KindSSE            Kind = "sse"
	KindWebSocket      Kind = "websocket"
)

// ParseKinds splits a comma-separated --transport flag value into the
// requested Kinds, rejecting unrecognized names and any list that contains
// stdio together with another entry (stdio only ever makes sense alone, since
// it owns the process's stdin).
func ParseKinds(flag string) ([]Kind, error) {
	if strings.TrimSpace(flag) == "" {
		return []Kind{KindStdio}, nil
	}
	var kinds []Kind
	for _, part := range strings.Split(flag, ",") {
		k := Kind(strings.TrimSpace(part))
		switch k {
		case KindStdio, KindStreamableHTTP, KindSSE, KindWebSocket:
			kinds = append(kinds, k)
		default:
			return nil, fmt.Errorf("unrecognized transport %q", part)
		}
	}
	if len(kinds) > 1 {
		for _, k := range kinds {
			if k == KindStdio {
				return nil, fmt.Errorf("stdio cannot be combined with other transports")
			}
		}
	}
	return kinds, nil
}

// BindError reports a failure to bind the HTTP-family listener address, the
// condition the CLI maps to its transport-bind-failure exit code.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string { return fmt.Sprintf("bind %s: %v", e.Addr, e.Err) }
func (e *BindError) Unwrap() error { return e.Err }

// Options configures the listeners Manager starts.
type Options struct {
	Kinds       []Kind
	ListenAddr  string // host:port shared by every HTTP-family transport
	AuthToken   string // bearer token; empty disables auth
	HealthCheck func(ctx context.Context) HealthReport
}

// HealthReport is the body of GET /health.
type HealthReport struct {
	Status    string            `json:"status"`
	Instances map[string]string `json:"instances"`
}

// Manager owns every transport-specific server started for one process.
type Manager struct {
	opts    Options
	session *mcpsession.Session

	mu         sync.Mutex
	httpServer *http.Server
}

// New creates a Manager that will serve session over opts.Kinds once
// Start is called.
func New(session *mcpsession.Session, opts Options) *Manager {
	return &Manager{session: session, opts: opts}
}

// Start launches every requested transport. HTTP-family transports (SSE,
// streamable HTTP, WebSocket) share one *http.Server and one ServeMux, since
// they differ only in the endpoints they register on it; stdio runs in its
// own goroutine reading os.Stdin directly. Start returns once every listener
// has bound, or the first bind failure.
func (m *Manager) Start(ctx context.Context, errCallback func(error)) error {
	var httpKinds []Kind
	for _, k := range m.opts.Kinds {
		switch k {
		case KindStdio:
			m.startStdio(ctx, errCallback)
		case KindStreamableHTTP, KindSSE, KindWebSocket:
			httpKinds = append(httpKinds, k)
		}
	}
	if len(httpKinds) == 0 {
		return nil
	}
	return m.startHTTP(ctx, httpKinds, errCallback)
}

func (m *Manager) startStdio(ctx context.Context, errCallback func(error)) {
	logging.Info("Transport", "starting stdio transport")
	stdio := mcpserver.NewStdioServer(m.session.MCPServer())
	go func() {
		if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil {
			logging.Error("Transport", err, "stdio transport terminated")
			errCallback(err)
		}
	}()
}

func (m *Manager) startHTTP(ctx context.Context, kinds []Kind, errCallback func(error)) error {
	mux := http.NewServeMux()
	baseURL := "http://" + m.opts.ListenAddr

	mux.HandleFunc("/health", m.handleHealth)
	mux.HandleFunc("/openapi.json", m.handleOpenAPI)

	for _, k := range kinds {
		switch k {
		case KindStreamableHTTP:
			httpSrv := mcpserver.NewStreamableHTTPServer(m.session.MCPServer())
			mux.Handle("/mcp", m.authMiddleware(httpSrv))
			logging.Info("Transport", "streamable HTTP endpoint mounted at /mcp")
		case KindSSE:
			sseSrv := mcpserver.NewSSEServer(
				m.session.MCPServer(),
				mcpserver.WithBaseURL(baseURL),
				mcpserver.WithSSEEndpoint("/sse"),
				mcpserver.WithMessageEndpoint("/message"),
				mcpserver.WithKeepAlive(true),
				mcpserver.WithKeepAliveInterval(30*time.Second),
			)
			mux.Handle("/sse", m.authMiddleware(sseSrv))
			mux.Handle("/message", m.authMiddleware(sseSrv))
			logging.Info("Transport", "SSE endpoints mounted at /sse and /message")
		case KindWebSocket:
			mux.Handle("/ws", m.authMiddleware(http.HandlerFunc(m.handleWebSocket)))
			logging.Info("Transport", "WebSocket endpoint mounted at /ws")
		}
	}

	listener, err := net.Listen("tcp", m.opts.ListenAddr)
	if err != nil {
		return &BindError{Addr: m.opts.ListenAddr, Err: err}
	}

	srv := &http.Server{Handler: mux}
	m.mu.Lock()
	m.httpServer = srv
	m.mu.Unlock()

	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			logging.Error("Transport", err, "HTTP transport server error")
			errCallback(err)
		}
	}()

	logging.Info("Transport", "HTTP transports listening on %s", m.opts.ListenAddr)
	return nil
}

// authMiddleware enforces bearer-token authentication on the MCP HTTP
// endpoints when a token is configured; GET /health and GET /openapi.json
// are wired outside of this middleware and remain unauthenticated.
func (m *Manager) authMiddleware(next http.Handler) http.Handler {
	if m.opts.AuthToken == "" {
		return next
	}
	expected := "Bearer " + m.opts.AuthToken
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != expected {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Manager) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := HealthReport{Status: "ok"}
	if m.opts.HealthCheck != nil {
		report = m.opts.HealthCheck(r.Context())
	}
	writeJSON(w, http.StatusOK, report)
}

func (m *Manager) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, openAPIDescriptor())
}

// Shutdown stops every running transport, waiting up to the context's
// deadline for in-flight requests to drain.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	srv := m.httpServer
	m.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
