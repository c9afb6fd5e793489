// Package app wires every component (ConfigStore, ConfigWatcher, Registry,
// ClientPool, MetadataCache, Dispatcher, McpSession, the transport layer,
// and ConfigHttpApi) into one running process.
package app

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rachmataditiya/odoo-mcp-server/pkg/logging"
)

// Application is the fully bootstrapped process, ready to Run.
type Application struct {
	config   *Config
	services *Services
}

// NewApplication loads configuration and initializes every service. It
// returns a non-nil error only for conditions that should produce a
// non-zero exit on startup: an unreadable/invalid config directory, an
// invalid instances/tools/prompts/server document, or a failed filesystem
// watch.
func NewApplication(cfg *Config) (*Application, error) {
	level := logging.LevelInfo
	if cfg.Debug {
		level = logging.LevelDebug
	}
	var out io.Writer = os.Stderr
	logging.InitForCLI(level, out)

	services, err := InitializeServices(cfg)
	if err != nil {
		logging.Error("Bootstrap", err, "service initialization failed")
		return nil, err
	}

	return &Application{config: cfg, services: services}, nil
}

// Run starts the config watcher, every requested transport, and the config
// API, then blocks until ctx is cancelled or a listener fails. It returns
// the first fatal error (a transport bind failure maps to the CLI's
// transport-bind exit code); a clean ctx cancellation returns nil.
func (a *Application) Run(ctx context.Context) error {
	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()

	go a.services.Watcher.Run(watchCtx)
	go a.consumeConfigEvents(watchCtx)

	fatal := make(chan error, 2)
	onFatal := func(err error) {
		select {
		case fatal <- err:
		default:
		}
	}

	if err := a.services.Transport.Start(ctx, onFatal); err != nil {
		return err
	}
	configListener, err := a.services.ConfigAPI.Start(ctx, a.config.ConfigServerAddr, onFatal)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.services.Transport.Shutdown(shutdownCtx); err != nil {
			logging.Warn("Bootstrap", "transport shutdown: %v", err)
		}
		if err := configListener.Shutdown(shutdownCtx); err != nil {
			logging.Warn("Bootstrap", "config API shutdown: %v", err)
		}
		_ = a.services.Watcher.Close()
		return nil
	case err := <-fatal:
		return err
	}
}

// consumeConfigEvents reloads the Registry and resyncs the McpSession on
// every relevant config change, so a tools.json/prompts.json/server.json
// edit takes effect without a process restart.
func (a *Application) consumeConfigEvents(ctx context.Context) {
	events := a.services.Watcher.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := a.services.Registry.Reload(); err != nil {
				logging.Warn("Bootstrap", "reload after %s change failed: %v", ev.Kind, err)
				continue
			}
			a.services.Session.Sync()
		}
	}
}
