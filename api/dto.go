/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Orders, shifts and
  activities are served in their pos JSON form; these types cover request
  bodies and composite responses.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done by the ledger, not in DTOs. DTOs are pure data carriers.
  Amounts accept JSON numbers or quoted decimal strings.

SEE ALSO:
  - handlers.go: Uses these types
  - pos/types.go: Order, Shift, Activity JSON form
*/
package api

import (
	"github.com/counterline/posledger/pos"
	"github.com/counterline/posledger/syncqueue"
)

// =============================================================================
// ORDERS
// =============================================================================

// OrderLineRequest is one line of a sale.
type OrderLineRequest struct {
	ProductID string    `json:"productId"`
	Name      string    `json:"name,omitempty"`
	UnitPrice pos.Money `json:"unitPrice"`
	Quantity  int       `json:"quantity"`
}

// PlaceOrderRequest is the body of POST /api/orders.
type PlaceOrderRequest struct {
	Items []OrderLineRequest `json:"items"`
	// Discount is "" (none), an amount such as "25" or a percentage such as "10%".
	Discount      string            `json:"discount,omitempty"`
	VATEnabled    bool              `json:"vatEnabled"`
	PaymentMethod pos.PaymentMethod `json:"paymentMethod"`
}

// CancelOrderResponse returns both sides of a cancellation.
type CancelOrderResponse struct {
	Cancelled pos.Order `json:"cancelled"`
	Reversal  pos.Order `json:"reversal"`
}

// NetSalesDTO is the net sales figure for one calendar day.
type NetSalesDTO struct {
	Date       string    `json:"date"`
	NetSales   pos.Money `json:"netSales"`
	OrderCount int       `json:"orderCount"`
}

// =============================================================================
// SHIFTS
// =============================================================================

type StartShiftRequest struct {
	OpeningFloat pos.Money `json:"openingFloat"`
}

// CashMovementRequest records a paid-in or paid-out.
type CashMovementRequest struct {
	Type        pos.ActivityType `json:"type"`
	Amount      pos.Money        `json:"amount"`
	Description string           `json:"description"`
}

type CloseShiftRequest struct {
	CountedCash      pos.Money `json:"countedCash"`
	CashForNextShift pos.Money `json:"cashForNextShift"`
}

// ShiftDTO is a shift with its folded summary.
type ShiftDTO struct {
	pos.Shift
	Summary pos.Summary `json:"summary"`
}

func toShiftDTO(s pos.Shift) ShiftDTO {
	if s.Activities == nil {
		s.Activities = []pos.Activity{}
	}
	return ShiftDTO{Shift: s, Summary: pos.ComputeSummary(s)}
}

// =============================================================================
// SYNC
// =============================================================================

// SyncStatusDTO reports sync health.
type SyncStatusDTO struct {
	Enabled  bool                  `json:"enabled"`
	Counts   pos.SyncCounts        `json:"counts"`
	Passes   int                   `json:"passes"`
	LastPass *syncqueue.PassResult `json:"lastPass,omitempty"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}
