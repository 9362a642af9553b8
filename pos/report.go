package pos

import (
	"fmt"
	"io"
	"strings"
)

const (
	reportWidth      = 40
	reportTimeLayout = "2006-01-02 15:04"
)

// RenderShiftReport writes a plain-text drawer report for s. Closed shifts
// print their frozen closing figures; open shifts print the live fold.
func RenderShiftReport(w io.Writer, s Shift) error {
	var b strings.Builder
	rule := strings.Repeat("-", reportWidth) + "\n"
	row := func(label, value string) {
		fmt.Fprintf(&b, "%-20s%20s\n", label, value)
	}

	fmt.Fprintf(&b, "SHIFT REPORT %s\n", s.ID)
	row("Status", string(s.Status))
	row("Opened", s.StartedAt.Format(reportTimeLayout))
	if s.EndedAt != nil {
		row("Closed", s.EndedAt.Format(reportTimeLayout))
	}
	b.WriteString(rule)

	sum := ComputeSummary(s)
	expected := sum.ExpectedCash
	if s.Closing != nil {
		expected = s.Closing.ExpectedCash
	}
	row("Opening float", s.OpeningFloat.String())
	row("Cash sales", sum.TotalCashSales.String())
	row("QR sales", sum.TotalQrSales.String())
	row("Total sales", sum.TotalSales.String())
	row("Paid in", sum.TotalPaidIn.String())
	row("Paid out", sum.TotalPaidOut.String())
	row("Expected cash", expected.String())
	if c := s.Closing; c != nil {
		row("Counted cash", c.CountedCash.String())
		row("Over/short", c.OverShort.String())
		row("Cash for next shift", c.CashForNextShift.String())
		row("Cash to deposit", c.CashToDeposit.String())
	}
	b.WriteString(rule)

	for _, a := range s.Activities {
		fmt.Fprintf(&b, "%s %-11s%10s  %s\n", a.At.Format("15:04"), a.Type, a.Amount, a.Description)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
