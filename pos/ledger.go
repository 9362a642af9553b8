/*
ledger.go - Single-writer owner of orders and shifts

PURPOSE:
  Ledger is the authoritative local record. It holds an in-memory table of
  orders keyed by id, the open shift (if any) and the closed-shift history,
  all loaded from a TxStore on Open and written through on every mutation.

CONCURRENCY:
  All mutations (place, cancel, start/close shift, paid in/out, sync
  fold-back) take the write lock and are serialized. Readers take the read
  lock and receive deep copies, so they always see a consistent snapshot.

WRITE-THROUGH:
  A mutation builds its new records, persists them inside WithTx and only
  then applies them to memory. A failed store write leaves the Ledger as it
  was.

COMMIT HOOK:
  OnCommit registers a callback fired after each committed sale or
  cancellation. The sync worker uses it to schedule a pass. The hook must not
  block and must not call back into the Ledger.
*/
package pos

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultOrderRetention is the number of orders kept locally.
const DefaultOrderRetention = 500

// Options configures a Ledger.
type Options struct {
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
	// Location decides calendar days for identifiers and daily queries.
	// Defaults to time.Local.
	Location *time.Location
	// RetainOrders caps the local order table. Zero means DefaultOrderRetention.
	RetainOrders int
}

// Ledger owns the order set and the shift state.
type Ledger struct {
	store  TxStore
	now    func() time.Time
	loc    *time.Location
	retain int

	mu       sync.RWMutex
	orders   map[string]*Order
	sequence []string // order ids in creation order
	ids      *dailyCounter
	open     *Shift
	history  []Shift
	onCommit func()
}

// Open loads the ledger from store.
func Open(ctx context.Context, store TxStore, opts Options) (*Ledger, error) {
	l := &Ledger{
		store:  store,
		now:    opts.Now,
		loc:    opts.Location,
		retain: opts.RetainOrders,
		orders: make(map[string]*Order),
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.loc == nil {
		l.loc = time.Local
	}
	if l.retain <= 0 {
		l.retain = DefaultOrderRetention
	}

	orders, err := store.LoadOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		o := o.Clone()
		l.orders[o.ID] = &o
		l.sequence = append(l.sequence, o.ID)
		ids = append(ids, o.ID)
	}
	l.ids = newDailyCounter(ids)

	shifts, err := store.LoadShifts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load shifts: %w", err)
	}
	for _, s := range shifts {
		switch s.Status {
		case ShiftOpen:
			if l.open != nil {
				return nil, fmt.Errorf("store holds two open shifts: %s and %s", l.open.ID, s.ID)
			}
			open := s.Clone()
			l.open = &open
		default:
			l.history = append(l.history, s.Clone())
		}
	}
	sort.SliceStable(l.history, func(i, j int) bool {
		return l.history[i].StartedAt.Before(l.history[j].StartedAt)
	})

	log.Printf("[ledger] loaded %d orders, %d closed shifts, open shift: %v",
		len(l.orders), len(l.history), l.open != nil)
	return l, nil
}

// OnCommit registers fn to run after each committed sale or cancellation.
func (l *Ledger) OnCommit(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onCommit = fn
}

func (l *Ledger) clock() time.Time {
	return l.now().In(l.loc)
}

// Now returns the ledger's current time in its location.
func (l *Ledger) Now() time.Time { return l.clock() }

// Location returns the location that decides calendar days.
func (l *Ledger) Location() *time.Location { return l.loc }

func (l *Ledger) notifyLocked() {
	if l.onCommit != nil {
		l.onCommit()
	}
}

func newActivity(at time.Time, typ ActivityType, amount Money, method PaymentMethod, desc, orderID string) Activity {
	return Activity{
		ID:            uuid.NewString(),
		At:            at,
		Type:          typ,
		Amount:        amount,
		PaymentMethod: method,
		Description:   desc,
		OrderID:       orderID,
	}
}

// =============================================================================
// RETENTION
// =============================================================================

// pruneLocked drops the oldest orders beyond the retention cap. Only synced
// orders from earlier days are eligible: unsynced orders must still reach
// the remote store and today's orders anchor the daily sequence.
func (l *Ledger) pruneLocked(ctx context.Context, now time.Time) {
	excess := len(l.sequence) - l.retain
	if excess <= 0 {
		return
	}
	today := DayKey(now)
	var drop []string
	for _, id := range l.sequence {
		if len(drop) == excess {
			break
		}
		o := l.orders[id]
		if o.SyncState != SyncSynced || DayKey(o.CreatedAt.In(l.loc)) == today {
			continue
		}
		drop = append(drop, id)
	}
	if len(drop) == 0 {
		return
	}
	if err := l.store.PruneOrders(ctx, drop); err != nil {
		log.Printf("[ledger] retention prune failed: %v", err)
		return
	}
	dropped := make(map[string]bool, len(drop))
	for _, id := range drop {
		dropped[id] = true
		delete(l.orders, id)
	}
	kept := l.sequence[:0]
	for _, id := range l.sequence {
		if !dropped[id] {
			kept = append(kept, id)
		}
	}
	l.sequence = kept
}
