// Package cmd implements the CLI surface: the root command, serve (the
// long-running server), and validate-config (a one-shot config check).
package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/rachmataditiya/odoo-mcp-server/internal/transport"
)

// Exit codes: 0 on clean shutdown, non-zero on startup misconfiguration.
const (
	ExitCodeSuccess       = 0
	ExitCodeMisconfig     = 1
	ExitCodeTransportBind = 2
)

var rootCmd = &cobra.Command{
	Use:          "odoo-mcp-server",
	Short:        "MCP server exposing one or more Odoo ERP instances as tools",
	SilenceUsage: true,
}

// SetVersion injects the build-time version into the root command.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute runs the root command and translates its error, if any, into the
// process exit code.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a returned error to a process exit code. A transport bind
// failure gets its own code so deployment tooling can distinguish "the
// server never started listening" from other misconfiguration.
func exitCodeFor(err error) int {
	var bindErr *transport.BindError
	if errors.As(err, &bindErr) {
		return ExitCodeTransportBind
	}
	return ExitCodeMisconfig
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newValidateConfigCmd())
}
