// Package cli implements the posledger command line.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/counterline/posledger/config"
	"github.com/counterline/posledger/pos"
	"github.com/counterline/posledger/store/sqlite"
)

// RootOptions holds global flags and the loaded configuration.
type RootOptions struct {
	Config config.Config

	DBPath    string
	RemoteURL string
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "posledger",
		Short: "Point-of-sale ledger for a single counter",
		Long: `posledger records sales, cancellations and cash-drawer shifts in a local
SQLite ledger and syncs orders to a remote order store when one is configured.

Configuration comes from the environment (or a .env file); flags override it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if opts.DBPath != "" {
				cfg.DBPath = opts.DBPath
			}
			if opts.RemoteURL != "" {
				cfg.RemoteURL = opts.RemoteURL
			}
			opts.Config = cfg
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "SQLite database path (overrides POS_DB_PATH)")
	cmd.PersistentFlags().StringVar(&opts.RemoteURL, "remote", "", "remote order store URL (overrides POS_REMOTE_URL)")

	// Add subcommands
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewReportCommand(opts))

	return cmd
}

// openLedger opens the SQLite store and loads the ledger from it.
func openLedger(ctx context.Context, cfg config.Config) (*sqlite.Store, *pos.Ledger, error) {
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	ledger, err := pos.Open(ctx, store, pos.Options{
		Location:     cfg.Location,
		RetainOrders: cfg.OrderRetention,
	})
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("load ledger: %w", err)
	}
	return store, ledger, nil
}
