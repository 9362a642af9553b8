/*
handlers.go - HTTP API handlers for the point-of-sale ledger

PURPOSE:
  Exposes the ledger engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to pos.Ledger. No business rules live
  here.

ENDPOINTS:
  Orders:
    POST   /api/orders                 Place a sale
    GET    /api/orders?date=YYYY-MM-DD List orders (all, or one day)
    GET    /api/orders/{id}            Get one order
    POST   /api/orders/{id}/cancel     Cancel, returns the reversal
    GET    /api/orders/cancelled       Cancelled orders
    GET    /api/orders/unsynced        Pending/failed sync
    GET    /api/sales/net?date=        Net sales for a day (default today)

  Shifts:
    POST   /api/shifts                 Start a shift
    GET    /api/shifts/current         Open shift + live summary
    POST   /api/shifts/current/cash    Paid in / paid out
    POST   /api/shifts/current/close   Count and close
    GET    /api/shifts/history         Closed shifts
    GET    /api/shifts/{id}            One shift + summary
    GET    /api/shifts/{id}/report     Plain-text shift report

  Sync & catalog:
    POST   /api/sync                   Run a sync pass now
    GET    /api/sync/status            Counts and last pass
    GET    /api/menu                   Remote catalog (read-only)

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Order/shift not found
  - 409: Conflict (already cancelled, shift open / no shift)
  - 502: Remote store failed (menu)
  - 503: Sync or remote store not configured
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. The API is meant to listen on the
  counter machine only.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/counterline/posledger/pos"
	"github.com/counterline/posledger/remote"
	"github.com/counterline/posledger/syncqueue"
)

const dateLayout = "2006-01-02"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// MenuSource fetches the remote catalog.
type MenuSource interface {
	FetchMenu(ctx context.Context) (remote.Menu, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger *pos.Ledger

	// Queue and Menu are nil when no remote store is configured.
	Queue *syncqueue.Queue
	Menu  MenuSource
}

// NewHandler creates a new handler over ledger.
func NewHandler(ledger *pos.Ledger) *Handler {
	return &Handler{Ledger: ledger}
}

// =============================================================================
// ORDER HANDLERS
// =============================================================================

// PlaceOrder records a completed sale.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	discount, err := pos.ParseDiscount(req.Discount)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	lines := make([]pos.MenuLine, len(req.Items))
	for i, it := range req.Items {
		lines[i] = pos.MenuLine{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		}
	}

	order, err := h.Ledger.PlaceOrder(r.Context(), pos.PlaceOrderRequest{
		Lines:         lines,
		Discount:      discount,
		VATEnabled:    req.VATEnabled,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// ListOrders returns every retained order, or one day's with ?date=.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("date") == "" {
		writeJSON(w, http.StatusOK, h.Ledger.ListOrders())
		return
	}
	day, err := h.parseDay(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	writeJSON(w, http.StatusOK, h.Ledger.OrdersForDay(day))
}

// GetOrder returns a single order.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	order, ok := h.Ledger.Order(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Order not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// CancelOrder cancels an order and returns it with its reversal.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	reversal, err := h.Ledger.CancelOrder(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	cancelled, _ := h.Ledger.Order(id)

	writeJSON(w, http.StatusOK, CancelOrderResponse{
		Cancelled: cancelled,
		Reversal:  reversal,
	})
}

func (h *Handler) ListCancelledOrders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Ledger.CancelledOrders())
}

func (h *Handler) ListUnsyncedOrders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Ledger.UnsyncedOrders())
}

// GetNetSales returns net sales for ?date= (default today).
func (h *Handler) GetNetSales(w http.ResponseWriter, r *http.Request) {
	day, err := h.parseDay(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	writeJSON(w, http.StatusOK, NetSalesDTO{
		Date:       day.Format(dateLayout),
		NetSales:   h.Ledger.NetSales(day),
		OrderCount: len(h.Ledger.OrdersForDay(day)),
	})
}

// =============================================================================
// SHIFT HANDLERS
// =============================================================================

// StartShift opens a shift.
func (h *Handler) StartShift(w http.ResponseWriter, r *http.Request) {
	var req StartShiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	shift, err := h.Ledger.StartShift(r.Context(), req.OpeningFloat)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toShiftDTO(shift))
}

// GetCurrentShift returns the open shift with its live summary.
func (h *Handler) GetCurrentShift(w http.ResponseWriter, r *http.Request) {
	shift, ok := h.Ledger.CurrentShift()
	if !ok {
		writeError(w, http.StatusNotFound, "No open shift", nil)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(shift))
}

// RecordCashMovement records a paid-in or paid-out on the open shift.
func (h *Handler) RecordCashMovement(w http.ResponseWriter, r *http.Request) {
	var req CashMovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	activity, err := h.Ledger.RecordPaidInOut(r.Context(), req.Type, req.Amount, req.Description)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, activity)
}

// CloseShift counts the drawer and closes the open shift.
func (h *Handler) CloseShift(w http.ResponseWriter, r *http.Request) {
	var req CloseShiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	shift, err := h.Ledger.CloseShift(r.Context(), req.CountedCash, req.CashForNextShift)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(shift))
}

func (h *Handler) ListShiftHistory(w http.ResponseWriter, r *http.Request) {
	history := h.Ledger.ShiftHistory()
	dtos := make([]ShiftDTO, len(history))
	for i, s := range history {
		dtos[i] = toShiftDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetShift(w http.ResponseWriter, r *http.Request) {
	shift, ok := h.Ledger.Shift(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Shift not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(shift))
}

// GetShiftReport renders the plain-text shift report.
func (h *Handler) GetShiftReport(w http.ResponseWriter, r *http.Request) {
	shift, ok := h.Ledger.Shift(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Shift not found", nil)
		return
	}

	var buf bytes.Buffer
	if err := pos.RenderShiftReport(&buf, shift); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render report", err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// =============================================================================
// SYNC & CATALOG HANDLERS
// =============================================================================

// TriggerSync runs a sync pass and returns its summary.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if h.Queue == nil {
		writeError(w, http.StatusServiceUnavailable, "Sync is not configured", nil)
		return
	}

	res, err := h.Queue.RunPass(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record sync results", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) GetSyncStatus(w http.ResponseWriter, r *http.Request) {
	status := SyncStatusDTO{
		Enabled: h.Queue != nil,
		Counts:  h.Ledger.SyncCounts(),
	}
	if h.Queue != nil {
		last, passes := h.Queue.LastPass()
		status.Passes = passes
		if passes > 0 {
			status.LastPass = &last
		}
	}
	writeJSON(w, http.StatusOK, status)
}

// GetMenu proxies the remote catalog.
func (h *Handler) GetMenu(w http.ResponseWriter, r *http.Request) {
	if h.Menu == nil {
		writeError(w, http.StatusServiceUnavailable, "Remote store is not configured", nil)
		return
	}

	menu, err := h.Menu.FetchMenu(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "Failed to fetch menu", err)
		return
	}
	writeJSON(w, http.StatusOK, menu)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) parseDay(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return h.Ledger.Now(), nil
	}
	return time.ParseInLocation(dateLayout, raw, h.Ledger.Location())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps ledger errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	var verr *pos.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "Validation failed",
			Code:    "validation_failed",
			Details: map[string]string{"field": verr.Field, "message": verr.Message},
		})
	case pos.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
	case pos.IsConflict(err), errors.Is(err, pos.ErrSequenceExhausted):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "conflict"})
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
