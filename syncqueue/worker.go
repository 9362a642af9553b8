/*
worker.go - Background sync scheduler

PURPOSE:
  Decides when sync passes run. The ledger never touches timers; it only
  calls Notify after a commit.

TRIGGERS:
  - Once immediately on Start (after the ledger has loaded)
  - Debounce after the first Notify since the last commit pass (a burst of
    sales becomes one pass, and a steady stream cannot postpone it)
  - Every Interval on a ticker

  Passes run one at a time on the worker goroutine. A manual pass (the
  API's POST /api/sync) can overlap with it; the Queue's in-flight set keeps
  the two from sending the same order twice.

USAGE:
  worker := syncqueue.NewWorker(queue)
  ledger.OnCommit(worker.Notify)
  worker.Start(ctx)
  // ... later
  worker.Stop()
*/
package syncqueue

import (
	"context"
	"log"
	"sync"
	"time"
)

const (
	DefaultInterval = 30 * time.Second
	DefaultDebounce = 2 * time.Second
)

// Passer runs one sync pass.
type Passer interface {
	RunPass(ctx context.Context) (PassResult, error)
}

// Worker runs passes in the background.
type Worker struct {
	Passer   Passer
	Interval time.Duration
	Debounce time.Duration
	Enabled  bool

	kick   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewWorker creates a new worker.
func NewWorker(p Passer) *Worker {
	return &Worker{
		Passer:   p,
		Interval: DefaultInterval,
		Debounce: DefaultDebounce,
		Enabled:  true,
		kick:     make(chan struct{}, 1),
	}
}

// Notify schedules a pass shortly. It never blocks.
func (w *Worker) Notify() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// Start begins the worker. Cancelling ctx has the same effect as Stop.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.Enabled {
		log.Println("[worker] Disabled, not starting")
		return
	}
	if w.cancel != nil {
		return
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.run(ctx)

	log.Printf("[worker] Started: interval=%v debounce=%v", w.Interval, w.Debounce)
}

// Stop cancels any pass in progress and waits for the worker to exit.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
		w.wg.Wait()
		w.cancel = nil
		log.Println("[worker] Stopped")
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	// Run immediately on start
	w.pass(ctx, "startup")

	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()

	var (
		debounce  *time.Timer
		debounceC <-chan time.Time
	)
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.pass(ctx, "timer")
		case <-w.kick:
			if debounceC != nil {
				continue // already armed
			}
			if debounce == nil {
				debounce = time.NewTimer(w.debounce())
			} else {
				debounce.Reset(w.debounce())
			}
			debounceC = debounce.C
		case <-debounceC:
			debounceC = nil
			w.pass(ctx, "commit")
		}
	}
}

func (w *Worker) pass(ctx context.Context, trigger string) {
	res, err := w.Passer.RunPass(ctx)
	if err != nil {
		log.Printf("[worker] %s pass: %v", trigger, err)
		return
	}
	if res.Attempted > 0 || res.Skipped > 0 {
		log.Printf("[worker] %s pass: %d synced, %d failed, %d aborted, %d skipped",
			trigger, res.Synced, res.Failed, res.Aborted, res.Skipped)
	}
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return DefaultInterval
	}
	return w.Interval
}

func (w *Worker) debounce() time.Duration {
	if w.Debounce <= 0 {
		return DefaultDebounce
	}
	return w.Debounce
}
