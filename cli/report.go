package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/counterline/posledger/pos"
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
	Date    string
	ShiftID string
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print net sales for a day and a shift report",
		Long: `Print the net sales for a calendar day followed by the report of a shift.

Without --shift the open shift is reported, or the most recently closed one
when no shift is open.

Examples:
  posledger report
  posledger report --date 2026-10-17 --shift 20261017-S1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Date, "date", "", "calendar day (YYYY-MM-DD), defaults to today")
	cmd.Flags().StringVar(&opts.ShiftID, "shift", "", "shift id to report")

	return cmd
}

func runReport(cmd *cobra.Command, opts *ReportOptions) error {
	store, ledger, err := openLedger(cmd.Context(), opts.Config)
	if err != nil {
		return err
	}
	defer store.Close()

	day := ledger.Now()
	if opts.Date != "" {
		day, err = time.ParseInLocation("2006-01-02", opts.Date, ledger.Location())
		if err != nil {
			return fmt.Errorf("invalid --date %q: expected YYYY-MM-DD", opts.Date)
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Net sales %s: %s (%d orders)\n\n",
		day.Format("2006-01-02"), ledger.NetSales(day), len(ledger.OrdersForDay(day)))

	shift, ok := pickShift(ledger, opts.ShiftID)
	if !ok {
		if opts.ShiftID != "" {
			return fmt.Errorf("shift %s not found", opts.ShiftID)
		}
		fmt.Fprintln(out, "No shifts recorded.")
		return nil
	}
	return pos.RenderShiftReport(out, shift)
}

func pickShift(ledger *pos.Ledger, id string) (pos.Shift, bool) {
	if id != "" {
		return ledger.Shift(id)
	}
	if s, ok := ledger.CurrentShift(); ok {
		return s, true
	}
	history := ledger.ShiftHistory()
	if len(history) == 0 {
		return pos.Shift{}, false
	}
	return history[len(history)-1], true
}
