package app

import "github.com/rachmataditiya/odoo-mcp-server/internal/transport"

// Config holds the process-wide settings resolved from CLI flags before
// bootstrap begins.
type Config struct {
	Debug bool

	Transports       []transport.Kind
	ListenAddr       string // host:port for the MCP HTTP-family transports
	ConfigServerAddr string // host:port for ConfigHttpApi

	// ConfigDir overrides ODOO_CONFIG_DIR's resolution when set.
	ConfigDir string
}

// NewConfig creates an application Config.
func NewConfig(debug bool, transports []transport.Kind, listenAddr, configServerAddr, configDir string) *Config {
	return &Config{
		Debug:            debug,
		Transports:       transports,
		ListenAddr:       listenAddr,
		ConfigServerAddr: configServerAddr,
		ConfigDir:        configDir,
	}
}
