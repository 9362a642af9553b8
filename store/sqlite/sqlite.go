/*
Package sqlite provides a SQLite-backed implementation of pos.TxStore.

PURPOSE:
  Durable local storage for the counter. Orders, shifts and drawer
  activities survive restarts so the daily order sequence, the open shift
  and unsynced orders all pick up where they left off.

INTERFACES IMPLEMENTED:
  pos.Store:   Orders, shifts, activities
  pos.TxStore: Atomic multi-record writes

WRITE RULES:
  - orders: INSERT for new ids; an existing id only ever has status,
    cancelled_at and sync_state updated. Monetary columns are write-once.
  - drawer_activities: INSERT only. No UPDATE, no DELETE.
  - shifts: header upsert (status, ended_at, closing figures).

KEY TABLES:
  orders:            One row per order, lines stored as JSON
  shifts:            Shift headers, closing figures as JSON once closed
  drawer_activities: Append-only cash-drawer events

INDEXES:
  - idx_one_open_shift: at most one shift with status OPEN
  - idx_orders_sync_state: unsynced order scans
  - idx_activities_shift: per-shift fold

CONCURRENCY:
  A single connection is used (SetMaxOpenConns(1)) so ":memory:" databases
  are shared by every query and writers never contend. The Ledger already
  serializes mutations; the RWMutex keeps direct callers safe too.

USAGE:
  store, err := sqlite.New("./posledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger, err := pos.Open(ctx, store, pos.Options{})

SEE ALSO:
  - pos/store.go: Interface definitions
  - pos/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/counterline/posledger/pos"
)

const timeLayout = time.RFC3339Nano

// Store implements pos.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Orders (monetary columns are write-once)
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		lines_json TEXT NOT NULL,
		subtotal TEXT NOT NULL,
		discount_value TEXT NOT NULL,
		tax TEXT NOT NULL,
		total TEXT NOT NULL,
		created_at TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		tax_rate TEXT NOT NULL,
		status TEXT NOT NULL,
		cancelled_at TEXT,
		sync_state TEXT NOT NULL,
		reversal_of TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_orders_sync_state
		ON orders(sync_state) WHERE sync_state <> 'synced';
	CREATE INDEX IF NOT EXISTS idx_orders_created_at
		ON orders(created_at);

	-- Shifts
	CREATE TABLE IF NOT EXISTS shifts (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		started_at TEXT NOT NULL,
		ended_at TEXT,
		opening_float TEXT NOT NULL,
		closing_json TEXT
	);

	-- At most one open shift, enforced by the database as well
	CREATE UNIQUE INDEX IF NOT EXISTS idx_one_open_shift
		ON shifts(status) WHERE status = 'OPEN';

	-- Drawer activities (append-only)
	CREATE TABLE IF NOT EXISTS drawer_activities (
		id TEXT PRIMARY KEY,
		shift_id TEXT NOT NULL REFERENCES shifts(id),
		at TEXT NOT NULL,
		type TEXT NOT NULL,
		amount TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		description TEXT NOT NULL,
		order_id TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_activities_shift
		ON drawer_activities(shift_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ORDERS
// =============================================================================

// LoadOrders returns every order in insertion order.
func (s *Store) LoadOrders(ctx context.Context) ([]pos.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return loadOrders(ctx, s.db)
}

// SaveOrder inserts o, or updates the lifecycle columns of an existing order.
func (s *Store) SaveOrder(ctx context.Context, o pos.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return saveOrder(ctx, s.db, o)
}

// PruneOrders deletes orders by id.
func (s *Store) PruneOrders(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return pruneOrders(ctx, s.db, ids)
}

func saveOrder(ctx context.Context, db querier, o pos.Order) error {
	linesJSON, err := json.Marshal(o.Lines)
	if err != nil {
		return fmt.Errorf("failed to encode lines of %s: %w", o.ID, err)
	}

	query := `
		INSERT INTO orders
		(id, lines_json, subtotal, discount_value, tax, total, created_at,
		 payment_method, tax_rate, status, cancelled_at, sync_state, reversal_of)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			cancelled_at = excluded.cancelled_at,
			sync_state = excluded.sync_state
	`

	_, err = db.ExecContext(ctx, query,
		o.ID,
		string(linesJSON),
		o.Subtotal,
		o.DiscountValue,
		o.Tax,
		o.Total,
		o.CreatedAt.Format(timeLayout),
		o.PaymentMethod,
		o.TaxRate.String(),
		o.Status,
		nullTime(o.CancelledAt),
		o.SyncState,
		nullString(o.ReversalOf),
	)
	if err != nil {
		return fmt.Errorf("failed to save order %s: %w", o.ID, err)
	}
	return nil
}

func pruneOrders(ctx context.Context, db querier, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := db.ExecContext(ctx, "DELETE FROM orders WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return fmt.Errorf("failed to prune orders: %w", err)
	}
	return nil
}

func loadOrders(ctx context.Context, db querier) ([]pos.Order, error) {
	query := `
		SELECT id, lines_json, subtotal, discount_value, tax, total, created_at,
		       payment_method, tax_rate, status, cancelled_at, sync_state, reversal_of
		FROM orders
		ORDER BY rowid ASC
	`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []pos.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}

	return orders, rows.Err()
}

func scanOrder(rows *sql.Rows) (pos.Order, error) {
	var (
		o           pos.Order
		linesJSON   string
		createdAt   string
		taxRate     string
		cancelledAt sql.NullString
		reversalOf  sql.NullString
	)

	err := rows.Scan(
		&o.ID, &linesJSON, &o.Subtotal, &o.DiscountValue, &o.Tax, &o.Total,
		&createdAt, &o.PaymentMethod, &taxRate, &o.Status, &cancelledAt,
		&o.SyncState, &reversalOf,
	)
	if err != nil {
		return o, fmt.Errorf("failed to scan order: %w", err)
	}

	if err := json.Unmarshal([]byte(linesJSON), &o.Lines); err != nil {
		return o, fmt.Errorf("failed to decode lines of %s: %w", o.ID, err)
	}
	if o.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return o, fmt.Errorf("order %s: bad created_at: %w", o.ID, err)
	}
	if o.TaxRate, err = decimal.NewFromString(taxRate); err != nil {
		return o, fmt.Errorf("order %s: bad tax_rate: %w", o.ID, err)
	}
	if o.CancelledAt, err = parseNullTime(cancelledAt); err != nil {
		return o, fmt.Errorf("order %s: bad cancelled_at: %w", o.ID, err)
	}
	o.ReversalOf = reversalOf.String

	return o, nil
}

// =============================================================================
// SHIFTS & ACTIVITIES
// =============================================================================

// LoadShifts returns every shift, oldest first, with its activities.
func (s *Store) LoadShifts(ctx context.Context) ([]pos.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return loadShifts(ctx, s.db)
}

// SaveShift upserts the shift header.
func (s *Store) SaveShift(ctx context.Context, sh pos.Shift) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return saveShift(ctx, s.db, sh)
}

// AppendActivity adds a drawer activity to a shift.
func (s *Store) AppendActivity(ctx context.Context, shiftID string, a pos.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return appendActivity(ctx, s.db, shiftID, a)
}

func saveShift(ctx context.Context, db querier, sh pos.Shift) error {
	var closingJSON sql.NullString
	if sh.Closing != nil {
		b, err := json.Marshal(sh.Closing)
		if err != nil {
			return fmt.Errorf("failed to encode closing of %s: %w", sh.ID, err)
		}
		closingJSON = sql.NullString{String: string(b), Valid: true}
	}

	query := `
		INSERT INTO shifts (id, status, started_at, ended_at, opening_float, closing_json)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			ended_at = excluded.ended_at,
			closing_json = excluded.closing_json
	`

	_, err := db.ExecContext(ctx, query,
		sh.ID,
		sh.Status,
		sh.StartedAt.Format(timeLayout),
		nullTime(sh.EndedAt),
		sh.OpeningFloat,
		closingJSON,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: cannot save %s", pos.ErrShiftAlreadyOpen, sh.ID)
		}
		return fmt.Errorf("failed to save shift %s: %w", sh.ID, err)
	}
	return nil
}

func appendActivity(ctx context.Context, db querier, shiftID string, a pos.Activity) error {
	query := `
		INSERT INTO drawer_activities
		(id, shift_id, at, type, amount, payment_method, description, order_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		a.ID,
		shiftID,
		a.At.Format(timeLayout),
		a.Type,
		a.Amount,
		a.PaymentMethod,
		a.Description,
		nullString(a.OrderID),
	)
	if err != nil {
		return fmt.Errorf("failed to append activity to %s: %w", shiftID, err)
	}
	return nil
}

func loadShifts(ctx context.Context, db querier) ([]pos.Shift, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, status, started_at, ended_at, opening_float, closing_json
		FROM shifts
		ORDER BY started_at ASC, rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query shifts: %w", err)
	}
	defer rows.Close()

	var shifts []pos.Shift
	index := make(map[string]int)
	for rows.Next() {
		sh, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		index[sh.ID] = len(shifts)
		shifts = append(shifts, sh)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	activities, err := db.QueryContext(ctx, `
		SELECT shift_id, id, at, type, amount, payment_method, description, order_id
		FROM drawer_activities
		ORDER BY rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer activities.Close()

	for activities.Next() {
		var (
			shiftID string
			a       pos.Activity
			at      string
			orderID sql.NullString
		)
		if err := activities.Scan(&shiftID, &a.ID, &at, &a.Type, &a.Amount,
			&a.PaymentMethod, &a.Description, &orderID); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		if a.At, err = time.Parse(timeLayout, at); err != nil {
			return nil, fmt.Errorf("activity %s: bad timestamp: %w", a.ID, err)
		}
		a.OrderID = orderID.String

		i, ok := index[shiftID]
		if !ok {
			continue
		}
		shifts[i].Activities = append(shifts[i].Activities, a)
	}

	return shifts, activities.Err()
}

func scanShift(rows *sql.Rows) (pos.Shift, error) {
	var (
		sh          pos.Shift
		startedAt   string
		endedAt     sql.NullString
		closingJSON sql.NullString
	)

	if err := rows.Scan(&sh.ID, &sh.Status, &startedAt, &endedAt, &sh.OpeningFloat, &closingJSON); err != nil {
		return sh, fmt.Errorf("failed to scan shift: %w", err)
	}

	var err error
	if sh.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
		return sh, fmt.Errorf("shift %s: bad started_at: %w", sh.ID, err)
	}
	if sh.EndedAt, err = parseNullTime(endedAt); err != nil {
		return sh, fmt.Errorf("shift %s: bad ended_at: %w", sh.ID, err)
	}
	if closingJSON.Valid && closingJSON.String != "" {
		var c pos.ShiftClosing
		if err := json.Unmarshal([]byte(closingJSON.String), &c); err != nil {
			return sh, fmt.Errorf("shift %s: bad closing figures: %w", sh.ID, err)
		}
		sh.Closing = &c
	}

	return sh, nil
}

// =============================================================================
// TRANSACTIONAL STORE (pos.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store pos.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore routes every call through the open transaction. With a single
// connection, touching s.db here would block forever.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) LoadOrders(ctx context.Context) ([]pos.Order, error) {
	return loadOrders(ctx, ts.tx)
}

func (ts *txStore) SaveOrder(ctx context.Context, o pos.Order) error {
	return saveOrder(ctx, ts.tx, o)
}

func (ts *txStore) PruneOrders(ctx context.Context, ids []string) error {
	return pruneOrders(ctx, ts.tx, ids)
}

func (ts *txStore) LoadShifts(ctx context.Context) ([]pos.Shift, error) {
	return loadShifts(ctx, ts.tx)
}

func (ts *txStore) SaveShift(ctx context.Context, sh pos.Shift) error {
	return saveShift(ctx, ts.tx, sh)
}

func (ts *txStore) AppendActivity(ctx context.Context, shiftID string, a pos.Activity) error {
	return appendActivity(ctx, ts.tx, shiftID, a)
}

// =============================================================================
// UTILITIES
// =============================================================================

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(timeLayout), Valid: true}
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
