package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	cfg "github.com/rachmataditiya/odoo-mcp-server/internal/config"
)

var validateConfigDir string

func newValidateConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate-config",
		Short: "Validate the configuration directory without starting the server",
		Args:  cobra.NoArgs,
		RunE:  runValidateConfig,
	}
	cmd.Flags().StringVar(&validateConfigDir, "config-dir", "", "configuration directory (default: $ODOO_CONFIG_DIR or ~/.config/odoo-mcp)")
	return cmd
}

func runValidateConfig(cmd *cobra.Command, args []string) error {
	dir := validateConfigDir
	if dir == "" {
		resolved, err := cfg.DefaultConfigDir(cfg.OSProcessSettings{})
		if err != nil {
			return fmt.Errorf("resolve config directory: %w", err)
		}
		dir = resolved
	}

	store, err := cfg.NewStore(dir)
	if err != nil {
		return fmt.Errorf("open config store at %s: %w", dir, err)
	}

	kinds := []cfg.Kind{cfg.KindInstances, cfg.KindTools, cfg.KindPrompts, cfg.KindServer}
	var failed bool
	for _, kind := range kinds {
		if _, err := store.Load(kind); err != nil {
			failed = true
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: INVALID: %v\n", kind, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: OK\n", kind)
	}

	if failed {
		return fmt.Errorf("one or more configuration documents in %s are invalid", dir)
	}
	return nil
}
