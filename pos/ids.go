package pos

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// DAILY IDENTIFIERS
// =============================================================================
//
// Orders are numbered YYYYMMDD-NNNN and shifts YYYYMMDD-S<n>. The order
// sequence is max(same-day sequence)+1 over the existing order set, so it
// survives restarts. dailyCounter caches the per-day maximum and is always
// rebuilt from the loaded orders.

const (
	dayLayout         = "20060102"
	maxDailySequence  = 9999
	orderSeqSeparator = "-"
)

// DayKey returns the YYYYMMDD key of t in t's own location.
func DayKey(t time.Time) string { return t.Format(dayLayout) }

// ParseOrderID splits an order identifier into its day key and sequence.
func ParseOrderID(id string) (day string, seq int, ok bool) {
	day, rest, found := strings.Cut(id, orderSeqSeparator)
	if !found || len(day) != len(dayLayout) || len(rest) != 4 {
		return "", 0, false
	}
	if _, err := time.Parse(dayLayout, day); err != nil {
		return "", 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return "", 0, false
	}
	return day, n, true
}

// FormatOrderID builds the identifier for a day key and sequence.
func FormatOrderID(day string, seq int) string {
	return fmt.Sprintf("%s%s%04d", day, orderSeqSeparator, seq)
}

// NextOrderID recomputes the next identifier for day from scratch.
func NextOrderID(day time.Time, existing []string) (string, error) {
	return newDailyCounter(existing).next(DayKey(day))
}

// ShiftID formats the identifier of the n-th shift of a day (1-based).
func ShiftID(day time.Time, n int) string {
	return fmt.Sprintf("%s-S%d", DayKey(day), n)
}

type dailyCounter struct {
	last map[string]int
}

func newDailyCounter(ids []string) *dailyCounter {
	c := &dailyCounter{last: make(map[string]int)}
	for _, id := range ids {
		c.observe(id)
	}
	return c
}

// next returns the identifier that would be assigned. It does not reserve
// it; call observe once the order is committed.
func (c *dailyCounter) next(day string) (string, error) {
	seq := c.last[day] + 1
	if seq > maxDailySequence {
		return "", fmt.Errorf("%w: %s", ErrSequenceExhausted, day)
	}
	return FormatOrderID(day, seq), nil
}

func (c *dailyCounter) observe(id string) {
	day, seq, ok := ParseOrderID(id)
	if !ok {
		return
	}
	if seq > c.last[day] {
		c.last[day] = seq
	}
}
