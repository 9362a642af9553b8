/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests from the till front-end

ROUTE GROUPS:
  /api/orders/*   Sales and cancellations
  /api/sales/*    Daily figures
  /api/shifts/*   Shift and cash drawer
  /api/sync/*     Sync queue
  /api/menu       Remote catalog

SEE ALSO:
  - handlers.go: Handler implementations
  - cli/serve.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Order routes
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListOrders)
			r.Post("/", h.PlaceOrder)
			r.Get("/cancelled", h.ListCancelledOrders)
			r.Get("/unsynced", h.ListUnsyncedOrders)
			r.Get("/{id}", h.GetOrder)
			r.Post("/{id}/cancel", h.CancelOrder)
		})

		r.Get("/sales/net", h.GetNetSales)

		// Shift routes
		r.Route("/shifts", func(r chi.Router) {
			r.Post("/", h.StartShift)
			r.Get("/current", h.GetCurrentShift)
			r.Post("/current/cash", h.RecordCashMovement)
			r.Post("/current/close", h.CloseShift)
			r.Get("/history", h.ListShiftHistory)
			r.Get("/{id}", h.GetShift)
			r.Get("/{id}/report", h.GetShiftReport)
		})

		// Sync routes
		r.Route("/sync", func(r chi.Router) {
			r.Post("/", h.TriggerSync)
			r.Get("/status", h.GetSyncStatus)
		})

		r.Get("/menu", h.GetMenu)
	})

	return r
}
