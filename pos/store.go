/*
store.go - Persistence interface for orders, shifts and drawer activities

PURPOSE:
  Defines the boundary between the Ledger and local storage. The Ledger owns
  all business rules; a Store only persists what it is given.

CONTRACT:
  - SaveOrder inserts a new order or updates the mutable fields of an
    existing one (status, cancelledAt, syncState). Monetary fields of an
    existing order are never rewritten.
  - AppendActivity is append-only. Activities are never updated or deleted.
  - PruneOrders exists only for local retention; the Ledger decides which
    orders are safe to drop.
  - WithTx runs fn atomically: either every write inside it lands or none.

IMPLEMENTATIONS:
  - store/sqlite: durable SQLite store
  - pos/store: in-memory store for tests and development
*/
package pos

import "context"

// Store persists ledger state.
type Store interface {
	// LoadOrders returns every order in creation order.
	LoadOrders(ctx context.Context) ([]Order, error)

	SaveOrder(ctx context.Context, o Order) error

	PruneOrders(ctx context.Context, ids []string) error

	// LoadShifts returns every shift with its activities, oldest first.
	LoadShifts(ctx context.Context) ([]Shift, error)

	// SaveShift writes the shift header (status, end time, closing figures).
	// Activities are written through AppendActivity.
	SaveShift(ctx context.Context, s Shift) error

	AppendActivity(ctx context.Context, shiftID string, a Activity) error
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
