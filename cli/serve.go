package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/counterline/posledger/api"
	"github.com/counterline/posledger/config"
	"github.com/counterline/posledger/remote"
	"github.com/counterline/posledger/syncqueue"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background sync worker",
		Long: `Start the ledger API.

Startup sequence:
  1. Open the SQLite store and load the ledger
  2. If a remote store is configured, start the sync worker
     (one pass now, one shortly after each sale or cancellation,
     and one every POS_SYNC_INTERVAL)
  3. Serve HTTP until SIGINT/SIGTERM, then shut down gracefully

Example:
  posledger serve --db ./posledger.db --addr :8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.Config
			if addr != "" {
				cfg.ListenAddr = addr
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides POS_LISTEN_ADDR)")

	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, ledger, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	handler := api.NewHandler(ledger)

	if cfg.SyncEnabled() {
		client := remote.NewClient(cfg.RemoteURL, cfg.RemoteRPS)
		queue := syncqueue.New(ledger, client)
		queue.Timeout = cfg.SyncTimeout
		queue.Concurrency = cfg.SyncConcurrency

		worker := syncqueue.NewWorker(queue)
		worker.Interval = cfg.SyncInterval
		worker.Debounce = cfg.SyncDebounce
		ledger.OnCommit(worker.Notify)
		worker.Start(ctx)
		defer worker.Stop()

		handler.Queue = queue
		handler.Menu = client
	} else {
		log.Println("[sync] No remote store configured, orders stay pending locally")
	}

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("[http] Listening on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Println("[http] Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Println("[http] Server stopped")
	return nil
}
