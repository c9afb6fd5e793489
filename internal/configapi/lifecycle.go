package configapi

import (
	"context"
	"net"
	"net/http"
	"sync"

	"github.com/rachmataditiya/odoo-mcp-server/internal/transport"
	"github.com/rachmataditiya/odoo-mcp-server/pkg/logging"
)

// listener owns the bound HTTP server for a Server's Start/Shutdown pair.
type listener struct {
	mu  sync.Mutex
	srv *http.Server
}

// Start binds listenAddr and serves the ConfigHttpApi mux until Shutdown is
// called or the listener fails. errCallback receives any error that ends the
// serve loop other than a clean Shutdown.
func (s *Server) Start(ctx context.Context, listenAddr string, errCallback func(error)) (*listener, error) {
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, &transport.BindError{Addr: listenAddr, Err: err}
	}

	httpSrv := &http.Server{Handler: s.Mux()}
	l := &listener{srv: httpSrv}

	go func() {
		if err := httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logging.Error("ConfigHttpApi", err, "config API server error")
			errCallback(err)
		}
	}()

	logging.Info("ConfigHttpApi", "config API listening on %s", listenAddr)
	return l, nil
}

// Shutdown gracefully stops the server l.Start returned.
func (l *listener) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	srv := l.srv
	l.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
