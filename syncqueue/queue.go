/*
Package syncqueue delivers locally committed orders to the remote store.

PURPOSE:
  The queue has no state of its own beyond what is in flight. Each pass
  re-derives "what needs syncing" from the ledger (pending or failed
  orders), fans the save requests out concurrently and folds the outcomes
  back into the ledger.

PASS SEMANTICS:
  - The snapshot is taken at pass start; orders placed later wait for the
    next pass.
  - An empty snapshot never touches the remote store.
  - Each request has its own timeout. A timed-out or failed request marks
    that order failed; other orders in the pass are unaffected.
  - An order is marked synced only on an explicit success reply.
  - If the pass context is cancelled, requests it aborted are not folded
    back, so those orders keep their pre-pass state.
  - Orders already in flight in another pass are skipped, so overlapping
    passes never send the same order twice at once.

SEE ALSO:
  - worker.go: when passes run
  - remote/client.go: the transport
  - pos/orders.go: ApplySyncResults
*/
package syncqueue

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/counterline/posledger/pos"
)

const (
	DefaultTimeout     = 10 * time.Second
	DefaultConcurrency = 4
)

// OrderSource is the ledger side of a pass.
type OrderSource interface {
	UnsyncedOrders() []pos.Order
	Order(id string) (pos.Order, bool)
	ApplySyncResults(ctx context.Context, results []pos.SyncResult) (int, error)
}

// Remote saves one order. It must return nil only when the remote store
// acknowledged the save.
type Remote interface {
	SaveOrder(ctx context.Context, o pos.Order) error
}

// PassResult summarizes one pass.
type PassResult struct {
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Eligible   int       `json:"eligible"`
	Attempted  int       `json:"attempted"`
	Synced     int       `json:"synced"`
	Failed     int       `json:"failed"`
	Aborted    int       `json:"aborted"`
	Skipped    int       `json:"skipped"` // in flight elsewhere or settled since the snapshot
}

// Queue runs sync passes.
type Queue struct {
	Source      OrderSource
	Remote      Remote
	Timeout     time.Duration
	Concurrency int

	mu       sync.Mutex
	inFlight map[string]bool
	last     PassResult
	passes   int
}

// New creates a queue with default timeout and concurrency.
func New(source OrderSource, remote Remote) *Queue {
	return &Queue{
		Source:      source,
		Remote:      remote,
		Timeout:     DefaultTimeout,
		Concurrency: DefaultConcurrency,
		inFlight:    make(map[string]bool),
	}
}

// RunPass performs one synchronization pass. The returned error is only
// about folding results back into the ledger; delivery failures are
// recorded on the orders themselves.
func (q *Queue) RunPass(ctx context.Context) (PassResult, error) {
	res := PassResult{StartedAt: time.Now()}

	snapshot := q.Source.UnsyncedOrders()
	batch := q.claim(snapshot)
	res.Eligible = len(snapshot)
	res.Skipped = len(snapshot) - len(batch)
	if len(batch) == 0 {
		res.FinishedAt = time.Now()
		q.record(res)
		return res, nil
	}
	defer q.release(batch)

	results := make([]pos.SyncResult, len(batch))
	aborted := make([]bool, len(batch))

	var g errgroup.Group
	g.SetLimit(q.concurrency())
	for i, o := range batch {
		g.Go(func() error {
			results[i], aborted[i] = q.deliver(ctx, o)
			return nil
		})
	}
	g.Wait()

	var apply []pos.SyncResult
	for i, r := range results {
		switch {
		case aborted[i]:
			res.Aborted++
			continue
		case r.State == pos.SyncSynced:
			res.Synced++
		default:
			res.Failed++
		}
		apply = append(apply, r)
	}
	res.Attempted = len(batch)

	// The fold-back must land even when the pass was cancelled mid-flight.
	_, err := q.Source.ApplySyncResults(context.WithoutCancel(ctx), apply)
	res.FinishedAt = time.Now()
	q.record(res)
	if err != nil {
		log.Printf("[sync] failed to record pass results: %v", err)
		return res, err
	}
	return res, nil
}

func (q *Queue) deliver(ctx context.Context, o pos.Order) (pos.SyncResult, bool) {
	r := pos.SyncResult{OrderID: o.ID, Status: o.Status, State: pos.SyncSynced}

	reqCtx, cancel := context.WithTimeout(ctx, q.timeout())
	defer cancel()

	err := q.Remote.SaveOrder(reqCtx, o)
	if err == nil {
		return r, false
	}
	if ctx.Err() != nil {
		return r, true
	}
	r.State = pos.SyncFailed
	r.Err = &pos.SyncError{OrderID: o.ID, Err: err}
	log.Printf("[sync] %v", r.Err)
	return r, false
}

// LastPass returns the most recent pass summary and how many passes ran.
func (q *Queue) LastPass() (PassResult, int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.last, q.passes
}

// claim marks orders in flight and returns their current ledger copies.
// Orders another pass is sending, or that a pass settled after the
// snapshot was taken, are left out.
func (q *Queue) claim(orders []pos.Order) []pos.Order {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.inFlight == nil {
		q.inFlight = make(map[string]bool)
	}
	var out []pos.Order
	for _, o := range orders {
		if q.inFlight[o.ID] {
			continue
		}
		cur, ok := q.Source.Order(o.ID)
		if !ok || !cur.SyncState.NeedsSync() {
			continue
		}
		q.inFlight[o.ID] = true
		out = append(out, cur)
	}
	return out
}

func (q *Queue) release(orders []pos.Order) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, o := range orders {
		delete(q.inFlight, o.ID)
	}
}

func (q *Queue) record(res PassResult) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.last = res
	q.passes++
}

func (q *Queue) timeout() time.Duration {
	if q.Timeout <= 0 {
		return DefaultTimeout
	}
	return q.Timeout
}

func (q *Queue) concurrency() int {
	if q.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return q.Concurrency
}
