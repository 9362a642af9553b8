package pos_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/counterline/posledger/pos"
)

// A full day at the counter: float, two sales, paid in/out, a cancelled
// cash sale and a close that comes up 10 short.
func TestRenderShiftReport_ClosedShift(t *testing.T) {
	l, _, clock := newTestLedger(t)
	ctx := context.Background()
	at := func(hour int) { clock.t = oct17(hour, 0) }

	_, err := l.StartShift(ctx, money("500"))
	require.NoError(t, err)

	at(9)
	cashSale, err := l.PlaceOrder(ctx, sale(pos.PaymentCash, line("espresso", "100", 3)))
	require.NoError(t, err)
	at(10)
	_, err = l.PlaceOrder(ctx, sale(pos.PaymentQR, line("cake", "60", 2)))
	require.NoError(t, err)
	at(11)
	_, err = l.RecordPaidInOut(ctx, pos.ActivityPaidIn, money("50"), "Change top-up")
	require.NoError(t, err)
	at(12)
	_, err = l.RecordPaidInOut(ctx, pos.ActivityPaidOut, money("30"), "Ice delivery")
	require.NoError(t, err)
	at(13)
	_, err = l.CancelOrder(ctx, cashSale.ID)
	require.NoError(t, err)
	at(17)
	closed, err := l.CloseShift(ctx, money("510"), money("200"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, pos.RenderShiftReport(&buf, closed))

	g := goldie.New(t)
	g.Assert(t, "shift_report", buf.Bytes())
}

func TestRenderShiftReport_OpenShiftUsesLiveFold(t *testing.T) {
	l, _, clock := newTestLedger(t)
	ctx := context.Background()

	_, err := l.StartShift(ctx, money("100"))
	require.NoError(t, err)
	clock.Advance(30 * time.Minute)
	_, err = l.PlaceOrder(ctx, sale(pos.PaymentCash, line("tea", "25", 1)))
	require.NoError(t, err)

	open, ok := l.CurrentShift()
	require.True(t, ok)

	var buf bytes.Buffer
	require.NoError(t, pos.RenderShiftReport(&buf, open))
	out := buf.String()

	require.Contains(t, out, "SHIFT REPORT 20261017-S1\n")
	require.Contains(t, out, "Expected cash                     125.00\n")
	require.NotContains(t, out, "Counted cash")
	require.Contains(t, out, "08:30 SALE            25.00  Sale 20261017-0001\n")
}
