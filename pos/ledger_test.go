package pos_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/counterline/posledger/pos"
	"github.com/counterline/posledger/pos/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func oct17(hour, min int) time.Time {
	return time.Date(2026, time.October, 17, hour, min, 0, 0, time.UTC)
}

func openLedger(t *testing.T, s pos.TxStore, clock *testClock) *pos.Ledger {
	t.Helper()
	l, err := pos.Open(context.Background(), s, pos.Options{Now: clock.Now, Location: time.UTC})
	require.NoError(t, err)
	return l
}

func newTestLedger(t *testing.T) (*pos.Ledger, *store.Memory, *testClock) {
	t.Helper()
	mem := store.NewMemory()
	clock := &testClock{t: oct17(8, 0)}
	return openLedger(t, mem, clock), mem, clock
}

func money(s string) pos.Money { return pos.MustMoney(s) }

func line(id, price string, qty int) pos.MenuLine {
	return pos.MenuLine{ProductID: id, UnitPrice: money(price), Quantity: qty}
}

func sale(method pos.PaymentMethod, lines ...pos.MenuLine) pos.PlaceOrderRequest {
	return pos.PlaceOrderRequest{Lines: lines, PaymentMethod: method}
}

// failingStore rejects every transaction once armed.
type failingStore struct {
	*store.Memory
	fail bool
}

func (f *failingStore) WithTx(ctx context.Context, fn func(pos.Store) error) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.Memory.WithTx(ctx, fn)
}

// =============================================================================
// ORDER LEDGER
// =============================================================================

func TestPlaceOrder_CashSaleAndCancel_DrawerReturnsToFloat(t *testing.T) {
	// GIVEN: an open shift with a 500 float
	// WHEN: a 300 cash sale is placed, then cancelled
	// THEN: expected cash goes 500 -> 800 -> 500 and a -300 reversal exists
	l, _, clock := newTestLedger(t)
	ctx := context.Background()

	_, err := l.StartShift(ctx, money("500"))
	require.NoError(t, err)

	clock.Advance(time.Hour)
	order, err := l.PlaceOrder(ctx, sale(pos.PaymentCash, line("latte", "100", 2), line("cake", "100", 1)))
	require.NoError(t, err)
	assert.Equal(t, "300.00", order.Total.String())
	assert.Equal(t, pos.OrderCompleted, order.Status)
	assert.Equal(t, pos.SyncPending, order.SyncState)

	live, err := l.LiveSummary()
	require.NoError(t, err)
	assert.Equal(t, "800.00", live.ExpectedCash.String())

	clock.Advance(time.Minute)
	reversal, err := l.CancelOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "-300.00", reversal.Total.String())
	assert.Equal(t, order.ID, reversal.ReversalOf)
	assert.NotEqual(t, order.ID, reversal.ID)

	orig, ok := l.Order(order.ID)
	require.True(t, ok)
	assert.Equal(t, pos.OrderCancelled, orig.Status)
	require.NotNil(t, orig.CancelledAt)
	assert.True(t, orig.CancelledAt.Equal(clock.Now()))
	assert.Equal(t, "300.00", orig.Total.String(), "original monetary fields are never mutated")

	live, err = l.LiveSummary()
	require.NoError(t, err)
	assert.Equal(t, "500.00", live.ExpectedCash.String())
	assert.Equal(t, "300.00", live.TotalSales.String())
	assert.Equal(t, "300.00", live.TotalPaidOut.String())
}

func TestPlaceOrder_PercentDiscountWithVAT(t *testing.T) {
	l, _, _ := newTestLedger(t)

	discount, err := pos.ParseDiscount("10%")
	require.NoError(t, err)

	order, err := l.PlaceOrder(context.Background(), pos.PlaceOrderRequest{
		Lines:         []pos.MenuLine{line("tea", "50", 4)},
		Discount:      discount,
		VATEnabled:    true,
		PaymentMethod: pos.PaymentQR,
	})
	require.NoError(t, err)

	assert.Equal(t, "200.00", order.Subtotal.String())
	assert.Equal(t, "20.00", order.DiscountValue.String())
	assert.Equal(t, "12.60", order.Tax.String())
	assert.Equal(t, "192.60", order.Total.String())
	assert.Equal(t, "0.07", order.TaxRate.String())
	assert.True(t, order.Balanced())
}

func TestPlaceOrder_TotalInvariantHolds(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	cases := []struct {
		discount string
		vat      bool
	}{
		{"", false},
		{"", true},
		{"15", true},
		{"33%", true},
		{"12.5%", false},
		{"1000", true}, // larger than the bill
		{"150%", true},
	}
	for _, tc := range cases {
		d, err := pos.ParseDiscount(tc.discount)
		require.NoError(t, err)
		o, err := l.PlaceOrder(ctx, pos.PlaceOrderRequest{
			Lines:         []pos.MenuLine{line("a", "19.99", 3), line("b", "7.35", 1)},
			Discount:      d,
			VATEnabled:    tc.vat,
			PaymentMethod: pos.PaymentCash,
		})
		require.NoError(t, err)
		assert.True(t, o.Balanced(), "discount %q vat %v: %s - %s + %s != %s",
			tc.discount, tc.vat, o.Subtotal, o.DiscountValue, o.Tax, o.Total)
		assert.False(t, o.Total.IsNegative())

		rev, err := l.CancelOrder(ctx, o.ID)
		require.NoError(t, err)
		assert.True(t, rev.Balanced())
		assert.True(t, rev.Subtotal.Equal(o.Subtotal.Neg()))
		assert.True(t, rev.Tax.Equal(o.Tax.Neg()))
		assert.True(t, rev.Total.Equal(o.Total.Neg()))
		assert.True(t, rev.DiscountValue.Equal(o.DiscountValue), "discount is copied, not negated")
	}
}

func TestPlaceOrder_InvalidInput_LedgerUnchanged(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	bad := []pos.PlaceOrderRequest{
		{PaymentMethod: pos.PaymentCash},
		sale("card", line("a", "10", 1)),
		sale(pos.PaymentCash, line("", "10", 1)),
		sale(pos.PaymentCash, line("a", "10", 0)),
		sale(pos.PaymentCash, line("a", "-1", 1)),
	}
	for _, req := range bad {
		_, err := l.PlaceOrder(ctx, req)
		require.Error(t, err)
		assert.True(t, pos.IsClientError(err), "%v", err)
	}
	assert.Empty(t, l.ListOrders())
}

func TestCancelOrder_Twice_AlreadyCancelled(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	o, err := l.PlaceOrder(ctx, sale(pos.PaymentCash, line("a", "10", 1)))
	require.NoError(t, err)
	_, err = l.CancelOrder(ctx, o.ID)
	require.NoError(t, err)

	_, err = l.CancelOrder(ctx, o.ID)
	assert.ErrorIs(t, err, pos.ErrAlreadyCancelled)
	assert.Len(t, l.ListOrders(), 2, "no second reversal")
}

func TestCancelOrder_UnknownOrReversal_NotFound(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := l.CancelOrder(ctx, "20261017-0042")
	assert.ErrorIs(t, err, pos.ErrNotFound)

	o, err := l.PlaceOrder(ctx, sale(pos.PaymentCash, line("a", "10", 1)))
	require.NoError(t, err)
	rev, err := l.CancelOrder(ctx, o.ID)
	require.NoError(t, err)

	_, err = l.CancelOrder(ctx, rev.ID)
	assert.ErrorIs(t, err, pos.ErrNotFound)
}

func TestCancelOrder_ResetsSyncStateOfOriginal(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	o, err := l.PlaceOrder(ctx, sale(pos.PaymentCash, line("a", "10", 1)))
	require.NoError(t, err)
	n, err := l.ApplySyncResults(ctx, []pos.SyncResult{{OrderID: o.ID, Status: pos.OrderCompleted, State: pos.SyncSynced}})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = l.CancelOrder(ctx, o.ID)
	require.NoError(t, err)

	got, _ := l.Order(o.ID)
	assert.Equal(t, pos.SyncPending, got.SyncState)
	assert.Len(t, l.UnsyncedOrders(), 2)
}

func TestOrderIDs_DailySequence_SurvivesRestart(t *testing.T) {
	// GIVEN: three orders placed today
	// WHEN: the ledger is rebuilt from the same store
	// THEN: numbering continues at 0004, and restarts at 0001 the next day
	l, mem, clock := newTestLedger(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		o, err := l.PlaceOrder(ctx, sale(pos.PaymentCash, line("a", "1", 1)))
		require.NoError(t, err)
		ids = append(ids, o.ID)
	}
	assert.Equal(t, []string{"20261017-0001", "20261017-0002", "20261017-0003"}, ids)

	reopened := openLedger(t, mem, clock)
	o, err := reopened.PlaceOrder(ctx, sale(pos.PaymentCash, line("a", "1", 1)))
	require.NoError(t, err)
	assert.Equal(t, "20261017-0004", o.ID)

	clock.Advance(24 * time.Hour)
	o, err = reopened.PlaceOrder(ctx, sale(pos.PaymentCash, line("a", "1", 1)))
	require.NoError(t, err)
	assert.Equal(t, "20261018-0001", o.ID)
}

func TestNetSales_ReversalsNetOut(t *testing.T) {
	l, _, clock := newTestLedger(t)
	ctx := context.Background()

	a, err := l.PlaceOrder(ctx, sale(pos.PaymentCash, line("a", "100", 1)))
	require.NoError(t, err)
	_, err = l.PlaceOrder(ctx, sale(pos.PaymentQR, line("b", "40", 1)))
	require.NoError(t, err)
	_, err = l.CancelOrder(ctx, a.ID)
	require.NoError(t, err)

	// cancelled original excluded, reversal (-100) included: 40 - 100
	assert.Equal(t, "-60.00", l.NetSales(clock.Now()).String())
	assert.Len(t, l.OrdersForDay(clock.Now()), 3)
	assert.Empty(t, l.OrdersForDay(clock.Now().AddDate(0, 0, -1)))

	cancelled := l.CancelledOrders()
	require.Len(t, cancelled, 1)
	assert.Equal(t, a.ID, cancelled[0].ID)
}

func TestApplySyncResults_SkipsOrdersChangedInFlight(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	a, err := l.PlaceOrder(ctx, sale(pos.PaymentCash, line("a", "10", 1)))
	require.NoError(t, err)
	b, err := l.PlaceOrder(ctx, sale(pos.PaymentCash, line("b", "10", 1)))
	require.NoError(t, err)

	// a is cancelled while its "completed" version is being delivered
	_, err = l.CancelOrder(ctx, a.ID)
	require.NoError(t, err)

	n, err := l.ApplySyncResults(ctx, []pos.SyncResult{
		{OrderID: a.ID, Status: pos.OrderCompleted, State: pos.SyncSynced},
		{OrderID: b.ID, Status: pos.OrderCompleted, State: pos.SyncFailed},
		{OrderID: "missing", Status: pos.OrderCompleted, State: pos.SyncSynced},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	gotA, _ := l.Order(a.ID)
	gotB, _ := l.Order(b.ID)
	assert.Equal(t, pos.SyncPending, gotA.SyncState)
	assert.Equal(t, pos.SyncFailed, gotB.SyncState)
	assert.Equal(t, pos.SyncCounts{Pending: 2, Failed: 1}, l.SyncCounts())
}

func TestStoreFailure_LedgerUnchanged(t *testing.T) {
	fs := &failingStore{Memory: store.NewMemory()}
	clock := &testClock{t: oct17(9, 0)}
	l := openLedger(t, fs, clock)
	ctx := context.Background()

	_, err := l.StartShift(ctx, money("100"))
	require.NoError(t, err)
	o, err := l.PlaceOrder(ctx, sale(pos.PaymentCash, line("a", "10", 1)))
	require.NoError(t, err)

	fs.fail = true
	_, err = l.PlaceOrder(ctx, sale(pos.PaymentCash, line("a", "10", 1)))
	assert.Error(t, err)
	_, err = l.CancelOrder(ctx, o.ID)
	assert.Error(t, err)
	_, err = l.CloseShift(ctx, money("110"), money("0"))
	assert.Error(t, err)

	assert.Len(t, l.ListOrders(), 1)
	got, _ := l.Order(o.ID)
	assert.Equal(t, pos.OrderCompleted, got.Status)
	shift, ok := l.CurrentShift()
	require.True(t, ok)
	assert.Len(t, shift.Activities, 2)

	// The failed attempt did not burn an identifier.
	fs.fail = false
	next, err := l.PlaceOrder(ctx, sale(pos.PaymentCash, line("a", "10", 1)))
	require.NoError(t, err)
	assert.Equal(t, "20261017-0002", next.ID)
}

func TestRetention_PrunesOnlySyncedOrdersFromEarlierDays(t *testing.T) {
	mem := store.NewMemory()
	clock := &testClock{t: oct17(9, 0)}
	l, err := pos.Open(context.Background(), mem, pos.Options{Now: clock.Now, Location: time.UTC, RetainOrders: 2})
	require.NoError(t, err)
	ctx := context.Background()

	old1, err := l.PlaceOrder(ctx, sale(pos.PaymentCash, line("a", "1", 1)))
	require.NoError(t, err)
	old2, err := l.PlaceOrder(ctx, sale(pos.PaymentCash, line("a", "1", 1)))
	require.NoError(t, err)
	_, err = l.ApplySyncResults(ctx, []pos.SyncResult{{OrderID: old1.ID, Status: pos.OrderCompleted, State: pos.SyncSynced}})
	require.NoError(t, err)

	clock.Advance(24 * time.Hour)
	_, err = l.PlaceOrder(ctx, sale(pos.PaymentCash, line("a", "1", 1)))
	require.NoError(t, err)

	_, ok := l.Order(old1.ID)
	assert.False(t, ok, "synced order from an earlier day is pruned")
	_, ok = l.Order(old2.ID)
	assert.True(t, ok, "unsynced order is never pruned")

	stored, err := mem.LoadOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestOnCommit_FiresForSalesAndCancellations(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	calls := 0
	l.OnCommit(func() { calls++ })

	o, err := l.PlaceOrder(ctx, sale(pos.PaymentCash, line("a", "1", 1)))
	require.NoError(t, err)
	_, err = l.CancelOrder(ctx, o.ID)
	require.NoError(t, err)
	_, err = l.ApplySyncResults(ctx, []pos.SyncResult{{OrderID: o.ID, Status: pos.OrderCancelled, State: pos.SyncSynced}})
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
}
