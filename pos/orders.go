package pos

import (
	"context"
	"fmt"
	"log"
	"time"
)

// =============================================================================
// ORDER LEDGER - Sales, cancellations and reversals
// =============================================================================

// PlaceOrderRequest describes a completed sale.
type PlaceOrderRequest struct {
	Lines         []MenuLine
	Discount      Discount
	VATEnabled    bool
	PaymentMethod PaymentMethod
}

// PlaceOrder records a completed sale. The order starts completed and
// pending sync. If a shift is open a SALE activity is appended to it.
func (l *Ledger) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (Order, error) {
	if !req.PaymentMethod.Valid() {
		return Order{}, invalid("paymentMethod", "%q is not cash or qr", req.PaymentMethod)
	}
	totals, err := Price(req.Lines, req.Discount, req.VATEnabled)
	if err != nil {
		return Order{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	id, err := l.ids.next(DayKey(now))
	if err != nil {
		return Order{}, err
	}

	order := Order{
		ID:            id,
		Lines:         append([]MenuLine(nil), req.Lines...),
		Subtotal:      totals.Subtotal,
		DiscountValue: totals.DiscountValue,
		Tax:           totals.Tax,
		Total:         totals.Total,
		CreatedAt:     now,
		PaymentMethod: req.PaymentMethod,
		TaxRate:       totals.TaxRate,
		Status:        OrderCompleted,
		SyncState:     SyncPending,
	}

	var sale *Activity
	if l.open != nil {
		a := newActivity(now, ActivitySale, order.Total, order.PaymentMethod, "Sale "+order.ID, order.ID)
		sale = &a
	}

	err = l.store.WithTx(ctx, func(s Store) error {
		if err := s.SaveOrder(ctx, order); err != nil {
			return err
		}
		if sale != nil {
			return s.AppendActivity(ctx, l.open.ID, *sale)
		}
		return nil
	})
	if err != nil {
		return Order{}, fmt.Errorf("place order %s: %w", id, err)
	}

	l.insertLocked(order)
	if sale != nil {
		l.open.Activities = append(l.open.Activities, *sale)
	}
	log.Printf("[ledger] placed %s total=%s via %s", order.ID, order.Total, order.PaymentMethod)

	l.pruneLocked(ctx, now)
	l.notifyLocked()
	return order.Clone(), nil
}

// CancelOrder marks a completed order cancelled and appends its reversal.
//
// The original keeps its monetary fields; only status, cancelledAt and
// syncState change (the status change must reach the remote store too). The
// reversal copies the lines, negates subtotal, tax and total, copies the
// discount value unchanged and points back through ReversalOf. If a shift is
// open a REFUND activity carrying the original's positive total is appended.
//
// Returns the reversal order.
func (l *Ledger) CancelOrder(ctx context.Context, orderID string) (Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	orig, ok := l.orders[orderID]
	if !ok {
		return Order{}, fmt.Errorf("%w: %s", ErrNotFound, orderID)
	}
	if orig.IsReversal() {
		return Order{}, fmt.Errorf("%w: %s is a reversal and cannot be cancelled", ErrNotFound, orderID)
	}
	if orig.Status == OrderCancelled {
		return Order{}, fmt.Errorf("%w: %s", ErrAlreadyCancelled, orderID)
	}

	now := l.clock()
	reversalID, err := l.ids.next(DayKey(now))
	if err != nil {
		return Order{}, err
	}

	cancelled := orig.Clone()
	cancelled.Status = OrderCancelled
	cancelled.CancelledAt = &now
	cancelled.SyncState = SyncPending

	reversal := Order{
		ID:            reversalID,
		Lines:         append([]MenuLine(nil), orig.Lines...),
		Subtotal:      orig.Subtotal.Neg(),
		DiscountValue: orig.DiscountValue,
		Tax:           orig.Tax.Neg(),
		Total:         orig.Total.Neg(),
		CreatedAt:     now,
		PaymentMethod: orig.PaymentMethod,
		TaxRate:       orig.TaxRate,
		Status:        OrderCompleted,
		SyncState:     SyncPending,
		ReversalOf:    orig.ID,
	}

	var refund *Activity
	if l.open != nil {
		a := newActivity(now, ActivityRefund, orig.Total, orig.PaymentMethod, "Refund "+orig.ID, orig.ID)
		refund = &a
	}

	err = l.store.WithTx(ctx, func(s Store) error {
		if err := s.SaveOrder(ctx, cancelled); err != nil {
			return err
		}
		if err := s.SaveOrder(ctx, reversal); err != nil {
			return err
		}
		if refund != nil {
			return s.AppendActivity(ctx, l.open.ID, *refund)
		}
		return nil
	})
	if err != nil {
		return Order{}, fmt.Errorf("cancel order %s: %w", orderID, err)
	}

	*orig = cancelled
	l.insertLocked(reversal)
	if refund != nil {
		l.open.Activities = append(l.open.Activities, *refund)
	}
	log.Printf("[ledger] cancelled %s, reversal %s total=%s", orig.ID, reversal.ID, reversal.Total)

	l.pruneLocked(ctx, now)
	l.notifyLocked()
	return reversal.Clone(), nil
}

func (l *Ledger) insertLocked(o Order) {
	stored := o.Clone()
	l.orders[o.ID] = &stored
	l.sequence = append(l.sequence, o.ID)
	l.ids.observe(o.ID)
}

// =============================================================================
// SYNC STATE
// =============================================================================

// ApplySyncResults folds delivery outcomes back into the ledger. Only
// syncState changes. A result is skipped when the order no longer exists or
// its status differs from the delivered one (the newer status still has to
// be delivered, so the order stays pending). Returns the number applied.
func (l *Ledger) ApplySyncResults(ctx context.Context, results []SyncResult) (int, error) {
	if len(results) == 0 {
		return 0, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var updated []Order
	for _, r := range results {
		o, ok := l.orders[r.OrderID]
		if !ok || o.Status != r.Status || o.SyncState == r.State {
			continue
		}
		next := o.Clone()
		next.SyncState = r.State
		updated = append(updated, next)
	}
	if len(updated) == 0 {
		return 0, nil
	}

	err := l.store.WithTx(ctx, func(s Store) error {
		for _, o := range updated {
			if err := s.SaveOrder(ctx, o); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("apply sync results: %w", err)
	}

	for _, o := range updated {
		*l.orders[o.ID] = o
	}
	l.pruneLocked(ctx, l.clock())
	return len(updated), nil
}

// =============================================================================
// QUERIES
// =============================================================================

// Order returns the order with id.
func (l *Ledger) Order(id string) (Order, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	o, ok := l.orders[id]
	if !ok {
		return Order{}, false
	}
	return o.Clone(), true
}

// ListOrders returns every retained order in creation order.
func (l *Ledger) ListOrders() []Order {
	return l.filter(func(Order) bool { return true })
}

// OrdersForDay returns the orders created on day's calendar date.
func (l *Ledger) OrdersForDay(day time.Time) []Order {
	key := DayKey(day.In(l.loc))
	return l.filter(func(o Order) bool { return DayKey(o.CreatedAt.In(l.loc)) == key })
}

// NetSales sums the totals of the day's non-cancelled orders. Reversals are
// included; their negative totals net out the reversed sale.
func (l *Ledger) NetSales(day time.Time) Money {
	var net Money
	for _, o := range l.OrdersForDay(day) {
		if o.Status != OrderCancelled {
			net = net.Add(o.Total)
		}
	}
	return net
}

func (l *Ledger) CancelledOrders() []Order {
	return l.filter(func(o Order) bool { return o.Status == OrderCancelled })
}

// UnsyncedOrders returns orders that are pending or failed.
func (l *Ledger) UnsyncedOrders() []Order {
	return l.filter(func(o Order) bool { return o.SyncState.NeedsSync() })
}

func (l *Ledger) SyncCounts() SyncCounts {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var c SyncCounts
	for _, o := range l.orders {
		switch o.SyncState {
		case SyncPending:
			c.Pending++
		case SyncSynced:
			c.Synced++
		case SyncFailed:
			c.Failed++
		}
	}
	return c
}

func (l *Ledger) filter(keep func(Order) bool) []Order {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := []Order{}
	for _, id := range l.sequence {
		o := l.orders[id]
		if keep(*o) {
			out = append(out, o.Clone())
		}
	}
	return out
}
