package report

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// WriteText renders s as aligned plain text for terminals.
func WriteText(w io.Writer, s Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Owner\t%s\t\n", s.Owner)
	fmt.Fprintf(tw, "Period\t%s .. %s (%s)\t\n", s.Start, s.End, s.Granularity)
	fmt.Fprintf(tw, "\t\t\n")
	fmt.Fprintf(tw, "Total revenue\t%s\t\n", s.Metrics.TotalRevenue)
	fmt.Fprintf(tw, "Total expenses\t%s\t\n", s.Metrics.TotalExpenses)
	fmt.Fprintf(tw, "Net profit\t%s\t\n", s.Metrics.NetProfit)
	fmt.Fprintf(tw, "Passengers\t%d\t\n", s.Metrics.PassengerCount)
	fmt.Fprintf(tw, "Unique passengers\t%d\t\n", s.Metrics.UniquePassengers)

	if p := s.Performance; p != nil {
		fmt.Fprintf(tw, "\t\t\n")
		fmt.Fprintf(tw, "Trips\t%d\t\n", p.TotalTrips)
		fmt.Fprintf(tw, "Avg passengers per trip\t%s\t\n", p.AvgPassengersPerTrip.StringFixed(2))
		fmt.Fprintf(tw, "Avg revenue per trip\t%s\t\n", p.AvgRevenuePerTrip)
	}

	if len(s.Revenue) > 0 {
		fmt.Fprintf(tw, "\t\t\n")
		for _, pr := range s.Revenue {
			fmt.Fprintf(tw, "%s\t%s\t\n", pr.Period, pr.Revenue)
		}
	}
	if len(s.Expenses) > 0 {
		fmt.Fprintf(tw, "\t\t\n")
		for _, e := range s.Expenses {
			fmt.Fprintf(tw, "%s\t%s\t\n", e.Type, e.Amount)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
