package report

import (
	"fmt"
	"io"

	"github.com/phpdave11/gofpdf"
)

// RenderPDF writes s as a one-document A4 report.
func RenderPDF(w io.Writer, s Summary) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Fareboard report", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "Revenue & expense report")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 6, fmt.Sprintf("Owner: %s", s.Owner))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Period: %s to %s (%s)", s.Start, s.End, s.Granularity))
	pdf.Ln(6)
	pdf.Cell(0, 6, "Generated: "+s.GeneratedAt.Format("2006-01-02 15:04 MST"))
	pdf.Ln(10)

	section(pdf, "Key metrics")
	rows(pdf, [][2]string{
		{"Total revenue", s.Metrics.TotalRevenue.String()},
		{"Total expenses", s.Metrics.TotalExpenses.String()},
		{"Net profit", s.Metrics.NetProfit.String()},
		{"Passengers", fmt.Sprint(s.Metrics.PassengerCount)},
		{"Unique passengers", fmt.Sprint(s.Metrics.UniquePassengers)},
	})

	section(pdf, "Performance")
	if s.Performance == nil {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.Cell(0, 6, "No journeys in this period.")
		pdf.Ln(10)
	} else {
		p := s.Performance
		rows(pdf, [][2]string{
			{"Trips", fmt.Sprint(p.TotalTrips)},
			{"Passengers", fmt.Sprint(p.TotalPassengers)},
			{"Avg passengers per trip", p.AvgPassengersPerTrip.StringFixed(2)},
			{"Avg revenue per trip", p.AvgRevenuePerTrip.String()},
			{"Expenses", p.TotalExpenses.String()},
		})
	}

	section(pdf, "Revenue by period")
	if len(s.Revenue) == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.Cell(0, 6, "No revenue recorded.")
		pdf.Ln(10)
	} else {
		table := make([][2]string, 0, len(s.Revenue))
		for _, pr := range s.Revenue {
			table = append(table, [2]string{fmt.Sprintf("%s (%d journeys)", pr.Period, pr.Journeys), pr.Revenue.String()})
		}
		rows(pdf, table)
	}

	section(pdf, "Expenses by type")
	if len(s.Expenses) == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.Cell(0, 6, "No expenses recorded.")
		pdf.Ln(10)
	} else {
		table := make([][2]string, 0, len(s.Expenses))
		for _, e := range s.Expenses {
			table = append(table, [2]string{string(e.Type), e.Amount.String()})
		}
		rows(pdf, table)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

func section(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, title)
	pdf.Ln(9)
}

func rows(pdf *gofpdf.Fpdf, table [][2]string) {
	pdf.SetFont("Helvetica", "", 11)
	for _, r := range table {
		pdf.CellFormat(90, 7, r[0], "B", 0, "L", false, 0, "")
		pdf.CellFormat(40, 7, r[1], "B", 1, "R", false, 0, "")
	}
	pdf.Ln(6)
}
