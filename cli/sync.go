package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/counterline/posledger/remote"
	"github.com/counterline/posledger/syncqueue"
)

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push pending and failed orders to the remote store once",
		Long: `Run a single sync pass against the remote order store and exit.

Orders that fail stay marked failed and are retried by the next pass.

Example:
  posledger sync --remote https://orders.example.com/api`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.Config
			if !cfg.SyncEnabled() {
				return errors.New("no remote store configured (set POS_REMOTE_URL or --remote)")
			}

			store, ledger, err := openLedger(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			queue := syncqueue.New(ledger, remote.NewClient(cfg.RemoteURL, cfg.RemoteRPS))
			queue.Timeout = cfg.SyncTimeout
			queue.Concurrency = cfg.SyncConcurrency

			res, err := queue.RunPass(cmd.Context())
			if err != nil {
				return fmt.Errorf("sync pass: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "eligible:  %d\n", res.Eligible)
			fmt.Fprintf(out, "synced:    %d\n", res.Synced)
			fmt.Fprintf(out, "failed:    %d\n", res.Failed)
			if res.Aborted > 0 {
				fmt.Fprintf(out, "aborted:   %d\n", res.Aborted)
			}

			if res.Failed > 0 {
				return fmt.Errorf("%d order(s) failed to sync", res.Failed)
			}
			return nil
		},
	}

	return cmd
}
