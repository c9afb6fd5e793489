package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rachmataditiya/odoo-mcp-server/internal/app"
	"github.com/rachmataditiya/odoo-mcp-server/internal/transport"
)

var (
	serveDebug            bool
	serveTransport        string
	serveListen           string
	serveConfigServerPort int
	serveConfigDir        string
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Starts the MCP server over the requested transport(s) and the
ConfigHttpApi REST surface on its own port.

--transport accepts a comma-separated list of stdio, streamable-http, sse,
websocket. stdio cannot be combined with any other transport, since it owns
the process's standard input.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().BoolVar(&serveDebug, "debug", false, "enable debug logging")
	cmd.Flags().StringVar(&serveTransport, "transport", "stdio", "comma-separated transport list: stdio, streamable-http, sse, websocket")
	cmd.Flags().StringVar(&serveListen, "listen", "localhost:8080", "host:port for the HTTP-family MCP transports")
	cmd.Flags().IntVar(&serveConfigServerPort, "config-server-port", 8091, "port for the ConfigHttpApi REST surface")
	cmd.Flags().StringVar(&serveConfigDir, "config-dir", "", "configuration directory (default: $ODOO_CONFIG_DIR or ~/.config/odoo-mcp)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	kinds, err := transport.ParseKinds(serveTransport)
	if err != nil {
		return fmt.Errorf("invalid --transport: %w", err)
	}

	configServerAddr := fmt.Sprintf("localhost:%d", serveConfigServerPort)
	appCfg := app.NewConfig(serveDebug, kinds, serveListen, configServerAddr, serveConfigDir)

	application, err := app.NewApplication(appCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return application.Run(ctx)
}
