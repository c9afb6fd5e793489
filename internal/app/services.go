package app

import (
	"fmt"
	"time"

	cfg "github.com/rachmataditiya/odoo-mcp-server/internal/config"
	"github.com/rachmataditiya/odoo-mcp-server/internal/configapi"
	"github.com/rachmataditiya/odoo-mcp-server/internal/dispatcher"
	"github.com/rachmataditiya/odoo-mcp-server/internal/erpclient"
	"github.com/rachmataditiya/odoo-mcp-server/internal/mcpsession"
	"github.com/rachmataditiya/odoo-mcp-server/internal/registry"
	"github.com/rachmataditiya/odoo-mcp-server/internal/transport"
	"github.com/rachmataditiya/odoo-mcp-server/pkg/logging"
)

// serverVersion is reported to MCP clients during initialize.
const serverVersion = "1.0.0"

// Services holds every initialized component for one process. Construction
// order mirrors each component's dependencies: store before registry and
// dispatcher, pool/metadata before dispatcher, registry/dispatcher before
// the session, session before the transports.
type Services struct {
	Store      *cfg.Store
	Watcher    *cfg.Watcher
	Registry   *registry.Registry
	Pool       *erpclient.ClientPool
	Metadata   *erpclient.MetadataCache
	Dispatcher *dispatcher.Dispatcher
	Session    *mcpsession.Session
	Transport  *transport.Manager
	ConfigAPI  *configapi.Server

	settings cfg.ProcessSettings
}

// InitializeServices performs the complete bootstrap sequence, failing fast
// on any error that would leave the process unable to serve traffic:
// ConfigStore directory creation, the first load of instances.json, the first
// Registry.Reload (a malformed instances.json/tools.json/prompts.json/
// server.json at startup is fatal, since a misconfigured server should never
// start listening), and the ConfigWatcher bind. Optional components never fail the whole bootstrap.
func InitializeServices(appCfg *Config) (*Services, error) {
	settings := cfg.OSProcessSettings{}

	dir := appCfg.ConfigDir
	if dir == "" {
		resolved, err := cfg.DefaultConfigDir(settings)
		if err != nil {
			return nil, fmt.Errorf("resolve config directory: %w", err)
		}
		dir = resolved
	}

	store, err := cfg.NewStore(dir)
	if err != nil {
		return nil, fmt.Errorf("open config store at %s: %w", dir, err)
	}

	if _, err := store.LoadInstances(); err != nil {
		return nil, fmt.Errorf("initial instances load: %w", err)
	}

	reg := registry.New(store, settings)
	if err := reg.Reload(); err != nil {
		return nil, fmt.Errorf("initial registry load: %w", err)
	}

	watcher, err := cfg.NewWatcher(dir)
	if err != nil {
		return nil, fmt.Errorf("watch config directory %s: %w", dir, err)
	}

	pool := erpclient.NewClientPool()

	ttl := time.Duration(cfg.MetadataCacheTTLSeconds(settings)) * time.Second
	metadata, err := erpclient.NewMetadataCache(ttl)
	if err != nil {
		return nil, fmt.Errorf("create metadata cache: %w", err)
	}

	disp := dispatcher.New(store, pool, metadata, settings)

	serverMeta := reg.ServerMetadata()
	session := mcpsession.New(reg, disp, serverMeta.ServerName, serverVersion)
	session.Sync()

	authToken := ""
	if enabled, _ := settings.Lookup(cfg.EnvAuthEnabled); cfg.IsTruthy(enabled) {
		if v, ok := settings.Lookup(cfg.EnvAuthToken); ok {
			authToken = v
		}
	}

	transportMgr := transport.New(session, transport.Options{
		Kinds:       appCfg.Transports,
		ListenAddr:  appCfg.ListenAddr,
		AuthToken:   authToken,
		HealthCheck: transportHealthCheck(store, pool),
	})

	configAPISrv := configapi.New(configapi.Options{
		Store:       store,
		HealthCheck: configAPIHealthCheck(store, pool),
	})

	logging.Info("Bootstrap", "services initialized: config dir %s, %d transport kind(s)", dir, len(appCfg.Transports))

	return &Services{
		Store:      store,
		Watcher:    watcher,
		Registry:   reg,
		Pool:       pool,
		Metadata:   metadata,
		Dispatcher: disp,
		Session:    session,
		Transport:  transportMgr,
		ConfigAPI:  configAPISrv,
		settings:   settings,
	}, nil
}
