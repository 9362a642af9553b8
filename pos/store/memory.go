// Package store provides an in-memory pos.TxStore.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/counterline/posledger/pos"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu    sync.RWMutex
	state memoryState
}

type memoryState struct {
	orders   map[string]pos.Order
	orderSeq []string
	shifts   map[string]pos.Shift
	shiftSeq []string
}

func NewMemory() *Memory {
	return &Memory{state: memoryState{
		orders: make(map[string]pos.Order),
		shifts: make(map[string]pos.Shift),
	}}
}

func (m *Memory) LoadOrders(_ context.Context) ([]pos.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.loadOrders(), nil
}

func (m *Memory) SaveOrder(_ context.Context, o pos.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.saveOrder(o)
}

func (m *Memory) PruneOrders(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.pruneOrders(ids)
	return nil
}

func (m *Memory) LoadShifts(_ context.Context) ([]pos.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.loadShifts(), nil
}

func (m *Memory) SaveShift(_ context.Context, s pos.Shift) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.saveShift(s)
}

func (m *Memory) AppendActivity(_ context.Context, shiftID string, a pos.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.appendActivity(shiftID, a)
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(_ context.Context, fn func(pos.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	if err := fn(&txMemoryView{state: &m.state}); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

// =============================================================================
// STATE - operations shared by Memory and the transactional view
// =============================================================================

func (s *memoryState) loadOrders() []pos.Order {
	out := make([]pos.Order, 0, len(s.orderSeq))
	for _, id := range s.orderSeq {
		out = append(out, s.orders[id].Clone())
	}
	return out
}

func (s *memoryState) saveOrder(o pos.Order) error {
	existing, ok := s.orders[o.ID]
	if !ok {
		s.orders[o.ID] = o.Clone()
		s.orderSeq = append(s.orderSeq, o.ID)
		return nil
	}
	// Monetary fields are immutable; only the lifecycle fields move.
	existing.Status = o.Status
	existing.SyncState = o.SyncState
	existing.CancelledAt = o.Clone().CancelledAt
	s.orders[o.ID] = existing
	return nil
}

func (s *memoryState) pruneOrders(ids []string) {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
		delete(s.orders, id)
	}
	kept := make([]string, 0, len(s.orderSeq))
	for _, id := range s.orderSeq {
		if !drop[id] {
			kept = append(kept, id)
		}
	}
	s.orderSeq = kept
}

func (s *memoryState) loadShifts() []pos.Shift {
	out := make([]pos.Shift, 0, len(s.shiftSeq))
	for _, id := range s.shiftSeq {
		out = append(out, s.shifts[id].Clone())
	}
	return out
}

func (s *memoryState) saveShift(sh pos.Shift) error {
	if sh.Status == pos.ShiftOpen {
		for id, other := range s.shifts {
			if id != sh.ID && other.Status == pos.ShiftOpen {
				return fmt.Errorf("shift %s is already open", id)
			}
		}
	}
	existing, ok := s.shifts[sh.ID]
	header := sh.Clone()
	if ok {
		header.Activities = existing.Activities
	} else {
		header.Activities = nil
		s.shiftSeq = append(s.shiftSeq, sh.ID)
	}
	s.shifts[sh.ID] = header
	return nil
}

func (s *memoryState) appendActivity(shiftID string, a pos.Activity) error {
	sh, ok := s.shifts[shiftID]
	if !ok {
		return fmt.Errorf("shift %s not found", shiftID)
	}
	sh.Activities = append(append([]pos.Activity(nil), sh.Activities...), a)
	s.shifts[shiftID] = sh
	return nil
}

func (s *memoryState) clone() memoryState {
	c := memoryState{
		orders:   make(map[string]pos.Order, len(s.orders)),
		orderSeq: append([]string(nil), s.orderSeq...),
		shifts:   make(map[string]pos.Shift, len(s.shifts)),
		shiftSeq: append([]string(nil), s.shiftSeq...),
	}
	for k, v := range s.orders {
		c.orders[k] = v.Clone()
	}
	for k, v := range s.shifts {
		c.shifts[k] = v.Clone()
	}
	return c
}

// =============================================================================
// TRANSACTIONAL VIEW - runs with Memory.mu already held
// =============================================================================

type txMemoryView struct {
	state *memoryState
}

func (tv *txMemoryView) LoadOrders(_ context.Context) ([]pos.Order, error) {
	return tv.state.loadOrders(), nil
}

func (tv *txMemoryView) SaveOrder(_ context.Context, o pos.Order) error {
	return tv.state.saveOrder(o)
}

func (tv *txMemoryView) PruneOrders(_ context.Context, ids []string) error {
	tv.state.pruneOrders(ids)
	return nil
}

func (tv *txMemoryView) LoadShifts(_ context.Context) ([]pos.Shift, error) {
	return tv.state.loadShifts(), nil
}

func (tv *txMemoryView) SaveShift(_ context.Context, s pos.Shift) error {
	return tv.state.saveShift(s)
}

func (tv *txMemoryView) AppendActivity(_ context.Context, shiftID string, a pos.Activity) error {
	return tv.state.appendActivity(shiftID, a)
}
