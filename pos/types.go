/*
Package pos provides the point-of-sale ledger engine for a single-counter shop.

PURPOSE:
  Records sales, turns cancellations into signed reversal orders, tracks the
  cash drawer across work shifts, and exposes the per-order sync state that
  the sync queue drives toward the remote order store.

KEY CONCEPTS IN THIS FILE (types.go):
  - Order: a completed sale or a reversal of one
  - MenuLine: a point-in-time snapshot of a sold product
  - Activity: an immutable cash-drawer event within a shift
  - Shift: a bounded work session opened with a float and closed with a count

DESIGN PRINCIPLES:
  1. Immutability: monetary fields are written once. Cancelling an order
     flips its status and appends a negated reversal order.
  2. Precision: all amounts are Money (shopspring/decimal, 2dp).
  3. Derivability: drawer totals are always a fold over activities, never a
     running counter.
  4. Single writer: every mutation goes through Ledger under one lock.

SEE ALSO:
  - ledger.go: Ledger state, loading, persistence
  - orders.go: PlaceOrder, CancelOrder and order queries
  - shift.go: StartShift, RecordPaidInOut, CloseShift and summaries
*/
package pos

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultTaxRate is the VAT rate applied when VAT is enabled on a sale.
var DefaultTaxRate = decimal.RequireFromString("0.07")

// =============================================================================
// ENUMS
// =============================================================================

type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentQR   PaymentMethod = "qr"
)

func (p PaymentMethod) Valid() bool { return p == PaymentCash || p == PaymentQR }

type OrderStatus string

const (
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

// SyncState is an order's delivery status to the remote store.
type SyncState string

const (
	SyncPending SyncState = "pending" // not yet acknowledged
	SyncSynced  SyncState = "synced"  // acknowledged success
	SyncFailed  SyncState = "failed"  // attempted, eligible for retry
)

// NeedsSync reports whether the sync queue should deliver the order.
func (s SyncState) NeedsSync() bool { return s == SyncPending || s == SyncFailed }

type ActivityType string

const (
	ActivityShiftStart ActivityType = "SHIFT_START"
	ActivitySale       ActivityType = "SALE"
	ActivityRefund     ActivityType = "REFUND"
	ActivityPaidIn     ActivityType = "PAID_IN"
	ActivityPaidOut    ActivityType = "PAID_OUT"
	ActivityShiftEnd   ActivityType = "SHIFT_END"
)

type ShiftStatus string

const (
	ShiftOpen   ShiftStatus = "OPEN"
	ShiftClosed ShiftStatus = "CLOSED"
)

// =============================================================================
// ORDER
// =============================================================================

// MenuLine is a product as it was sold. It never references the live catalog.
type MenuLine struct {
	ProductID string `json:"productId"`
	Name      string `json:"name,omitempty"`
	UnitPrice Money  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
}

// LineTotal is UnitPrice × Quantity.
func (l MenuLine) LineTotal() Money {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Order is a completed sale or a reversal of one.
//
// Invariant: Total == Subtotal − DiscountValue + Tax. A reversal negates
// Subtotal, Tax and Total but copies DiscountValue unchanged, so for
// reversals Total == Subtotal + DiscountValue + Tax.
//
// Only Status, CancelledAt and SyncState change after creation.
type Order struct {
	ID            string          `json:"id"`
	Lines         []MenuLine      `json:"items"`
	Subtotal      Money           `json:"subtotal"`
	DiscountValue Money           `json:"discountValue"`
	Tax           Money           `json:"tax"`
	Total         Money           `json:"total"`
	CreatedAt     time.Time       `json:"createdAt"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	TaxRate       decimal.Decimal `json:"taxRate"`
	Status        OrderStatus     `json:"status"`
	CancelledAt   *time.Time      `json:"cancelledAt,omitempty"`
	SyncState     SyncState       `json:"syncState"`
	ReversalOf    string          `json:"reversalOf,omitempty"`
}

// IsReversal reports whether the order negates an earlier order.
func (o Order) IsReversal() bool { return o.ReversalOf != "" }

// Balanced checks the total equation for the order's kind.
func (o Order) Balanced() bool {
	if o.IsReversal() {
		return o.Total.Equal(o.Subtotal.Add(o.DiscountValue).Add(o.Tax))
	}
	return o.Total.Equal(o.Subtotal.Sub(o.DiscountValue).Add(o.Tax))
}

// Clone returns a deep copy.
func (o Order) Clone() Order {
	c := o
	c.Lines = append([]MenuLine(nil), o.Lines...)
	if o.CancelledAt != nil {
		t := *o.CancelledAt
		c.CancelledAt = &t
	}
	return c
}

// =============================================================================
// CASH DRAWER
// =============================================================================

// Activity is a cash-drawer event. Amount is never negative; the direction
// is implied by Type.
type Activity struct {
	ID            string        `json:"id"`
	At            time.Time     `json:"timestamp"`
	Type          ActivityType  `json:"type"`
	Amount        Money         `json:"amount"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	Description   string        `json:"description"`
	OrderID       string        `json:"orderId,omitempty"`
}

// Shift is a work session. Closing is nil until the shift is closed.
type Shift struct {
	ID           string        `json:"id"`
	Status       ShiftStatus   `json:"status"`
	StartedAt    time.Time     `json:"startTime"`
	EndedAt      *time.Time    `json:"endTime,omitempty"`
	OpeningFloat Money         `json:"openingFloat"`
	Activities   []Activity    `json:"activities"`
	Closing      *ShiftClosing `json:"closing,omitempty"`
}

// ShiftClosing holds the figures frozen when a shift closes.
type ShiftClosing struct {
	CountedCash      Money `json:"closingCash"`
	ExpectedCash     Money `json:"expectedCash"`
	OverShort        Money `json:"overShort"`
	TotalSales       Money `json:"totalSales"`
	TotalCashSales   Money `json:"totalCashSales"`
	TotalQrSales     Money `json:"totalQrSales"`
	TotalPaidIn      Money `json:"totalPaidIn"`
	TotalPaidOut     Money `json:"totalPaidOut"`
	CashForNextShift Money `json:"cashForNextShift"`
	CashToDeposit    Money `json:"cashToDeposit"`
}

// Clone returns a deep copy.
func (s Shift) Clone() Shift {
	c := s
	c.Activities = append([]Activity(nil), s.Activities...)
	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}
	if s.Closing != nil {
		cl := *s.Closing
		c.Closing = &cl
	}
	return c
}

// Summary is the fold of a shift's activities.
type Summary struct {
	OpeningFloat   Money `json:"openingFloat"`
	TotalSales     Money `json:"totalSales"`
	TotalCashSales Money `json:"totalCashSales"`
	TotalQrSales   Money `json:"totalQrSales"`
	TotalRefunds   Money `json:"totalRefunds"`
	TotalPaidIn    Money `json:"totalPaidIn"`
	TotalPaidOut   Money `json:"totalPaidOut"`
	ExpectedCash   Money `json:"expectedCashInDrawer"`
}

// =============================================================================
// SYNC
// =============================================================================

// SyncResult is the outcome of one delivery attempt, folded back by
// Ledger.ApplySyncResults.
type SyncResult struct {
	OrderID string
	// Status is the order status that was delivered. A result is ignored if
	// the order's status changed while the request was in flight.
	Status OrderStatus
	State  SyncState
	Err    error
}

// SyncCounts tallies orders by sync state.
type SyncCounts struct {
	Pending int `json:"pending"`
	Synced  int `json:"synced"`
	Failed  int `json:"failed"`
}
