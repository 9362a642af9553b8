package pos

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// =============================================================================
// SHIFT LEDGER - NoShift -> OPEN -> CLOSED
// =============================================================================

// StartShift opens a new shift seeded with a SHIFT_START activity.
func (l *Ledger) StartShift(ctx context.Context, openingFloat Money) (Shift, error) {
	if openingFloat.IsNegative() {
		return Shift{}, invalid("openingFloat", "must not be negative")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.open != nil {
		return Shift{}, fmt.Errorf("%w: %s", ErrShiftAlreadyOpen, l.open.ID)
	}

	now := l.clock()
	today := DayKey(now)
	n := 1
	for _, h := range l.history {
		if DayKey(h.StartedAt.In(l.loc)) == today {
			n++
		}
	}

	start := newActivity(now, ActivityShiftStart, openingFloat, PaymentCash, "Shift opened", "")
	shift := Shift{
		ID:           ShiftID(now, n),
		Status:       ShiftOpen,
		StartedAt:    now,
		OpeningFloat: openingFloat,
		Activities:   []Activity{start},
	}

	err := l.store.WithTx(ctx, func(s Store) error {
		if err := s.SaveShift(ctx, shift); err != nil {
			return err
		}
		return s.AppendActivity(ctx, shift.ID, start)
	})
	if err != nil {
		return Shift{}, fmt.Errorf("start shift %s: %w", shift.ID, err)
	}

	l.open = &shift
	log.Printf("[ledger] shift %s opened with float %s", shift.ID, openingFloat)
	return shift.Clone(), nil
}

// RecordPaidInOut appends a PAID_IN or PAID_OUT activity to the open shift.
func (l *Ledger) RecordPaidInOut(ctx context.Context, typ ActivityType, amount Money, description string) (Activity, error) {
	if typ != ActivityPaidIn && typ != ActivityPaidOut {
		return Activity{}, invalid("type", "%q is not PAID_IN or PAID_OUT", typ)
	}
	if !amount.IsPositive() {
		return Activity{}, invalid("amount", "must be greater than zero")
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return Activity{}, invalid("description", "must not be empty")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.open == nil {
		return Activity{}, ErrNoOpenShift
	}

	a := newActivity(l.clock(), typ, amount, PaymentCash, description, "")
	err := l.store.WithTx(ctx, func(s Store) error {
		return s.AppendActivity(ctx, l.open.ID, a)
	})
	if err != nil {
		return Activity{}, fmt.Errorf("record %s: %w", typ, err)
	}

	l.open.Activities = append(l.open.Activities, a)
	return a, nil
}

// CloseShift counts the drawer, freezes the summary and moves the shift into
// history. overShort = countedCash − expected; cashToDeposit = countedCash −
// cashForNextShift.
func (l *Ledger) CloseShift(ctx context.Context, countedCash, cashForNextShift Money) (Shift, error) {
	if countedCash.IsNegative() {
		return Shift{}, invalid("countedCash", "must not be negative")
	}
	if cashForNextShift.IsNegative() {
		return Shift{}, invalid("cashForNextShift", "must not be negative")
	}
	if cashForNextShift.GreaterThan(countedCash) {
		return Shift{}, invalid("cashForNextShift", "cannot exceed counted cash %s", countedCash)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.open == nil {
		return Shift{}, ErrNoOpenShift
	}

	now := l.clock()
	sum := ComputeSummary(*l.open)
	end := newActivity(now, ActivityShiftEnd, countedCash, PaymentCash, "Shift closed", "")

	closed := l.open.Clone()
	closed.Status = ShiftClosed
	closed.EndedAt = &now
	closed.Activities = append(closed.Activities, end)
	closed.Closing = &ShiftClosing{
		CountedCash:      countedCash,
		ExpectedCash:     sum.ExpectedCash,
		OverShort:        countedCash.Sub(sum.ExpectedCash),
		TotalSales:       sum.TotalSales,
		TotalCashSales:   sum.TotalCashSales,
		TotalQrSales:     sum.TotalQrSales,
		TotalPaidIn:      sum.TotalPaidIn,
		TotalPaidOut:     sum.TotalPaidOut,
		CashForNextShift: cashForNextShift,
		CashToDeposit:    countedCash.Sub(cashForNextShift),
	}

	err := l.store.WithTx(ctx, func(s Store) error {
		if err := s.AppendActivity(ctx, closed.ID, end); err != nil {
			return err
		}
		return s.SaveShift(ctx, closed)
	})
	if err != nil {
		return Shift{}, fmt.Errorf("close shift %s: %w", closed.ID, err)
	}

	l.open = nil
	l.history = append(l.history, closed)
	log.Printf("[ledger] shift %s closed: expected=%s counted=%s over/short=%s",
		closed.ID, sum.ExpectedCash, countedCash, closed.Closing.OverShort)
	return closed.Clone(), nil
}

// =============================================================================
// SUMMARIES
// =============================================================================

// ComputeSummary folds a shift's activities. It is pure and repeatable.
//
// Refunds count as cash leaving the drawer whatever the original payment
// method was.
func ComputeSummary(s Shift) Summary {
	sum := Summary{OpeningFloat: s.OpeningFloat}
	for _, a := range s.Activities {
		switch a.Type {
		case ActivitySale:
			sum.TotalSales = sum.TotalSales.Add(a.Amount)
			switch a.PaymentMethod {
			case PaymentCash:
				sum.TotalCashSales = sum.TotalCashSales.Add(a.Amount)
			case PaymentQR:
				sum.TotalQrSales = sum.TotalQrSales.Add(a.Amount)
			}
		case ActivityRefund:
			sum.TotalRefunds = sum.TotalRefunds.Add(a.Amount)
			sum.TotalPaidOut = sum.TotalPaidOut.Add(a.Amount)
		case ActivityPaidOut:
			sum.TotalPaidOut = sum.TotalPaidOut.Add(a.Amount)
		case ActivityPaidIn:
			sum.TotalPaidIn = sum.TotalPaidIn.Add(a.Amount)
		}
	}
	sum.ExpectedCash = s.OpeningFloat.
		Add(sum.TotalCashSales).
		Add(sum.TotalPaidIn).
		Sub(sum.TotalPaidOut)
	return sum
}

// CurrentShift returns the open shift, if any.
func (l *Ledger) CurrentShift() (Shift, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.open == nil {
		return Shift{}, false
	}
	return l.open.Clone(), true
}

// LiveSummary folds the open shift.
func (l *Ledger) LiveSummary() (Summary, error) {
	s, ok := l.CurrentShift()
	if !ok {
		return Summary{}, ErrNoOpenShift
	}
	return ComputeSummary(s), nil
}

// ShiftHistory returns closed shifts, oldest first.
func (l *Ledger) ShiftHistory() []Shift {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Shift, len(l.history))
	for i, s := range l.history {
		out[i] = s.Clone()
	}
	return out
}

// Shift returns an open or closed shift by id.
func (l *Ledger) Shift(id string) (Shift, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.open != nil && l.open.ID == id {
		return l.open.Clone(), true
	}
	for _, s := range l.history {
		if s.ID == id {
			return s.Clone(), true
		}
	}
	return Shift{}, false
}
