package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/electricity-bill-converter/internal/models"
)

// Export is a set of bills to write, with the file or query they came from.
type Export struct {
	Source string
	Bills  []models.Bill
}

var columns = []string{
	"ID", "Account Number", "Bill Date", "Period Start", "Period End",
	"Bill Amount", "Units Consumed", "Units Per Day", "Meter Reading", "Estimated",
}

// row renders one bill in column order.
func row(b models.Bill) []string {
	id := ""
	if b.ID != uuid.Nil {
		id = b.ID.String()
	}
	estimated := "No"
	if b.IsEstimated {
		estimated = "Yes"
	}
	return []string{
		id,
		b.AccountNumber,
		b.BillDate,
		b.BillDateRangeStart,
		b.BillDateRangeEnd,
		formatAmount(b.BillAmount),
		b.TotalUnitsConsumed.String(),
		b.UnitsPerDay.Round(models.UnitsPerDayPlaces).String(),
		b.MeterReading.String(),
		estimated,
	}
}

// metadata returns the "# key, value" rows written above the table.
func metadata(e *Export) [][]string {
	var rows [][]string
	if e.Source != "" {
		rows = append(rows, []string{"# Source", e.Source})
	}
	if len(e.Bills) == 0 {
		return rows
	}

	account := e.Bills[0].AccountNumber
	start, end := e.Bills[0].BillDateRangeStart, e.Bills[0].BillDateRangeEnd
	total := decimal.Zero
	for _, b := range e.Bills {
		if b.AccountNumber != account {
			account = ""
		}
		if b.BillDateRangeStart < start {
			start = b.BillDateRangeStart
		}
		if b.BillDateRangeEnd > end {
			end = b.BillDateRangeEnd
		}
		total = total.Add(b.BillAmount)
	}
	if account != "" {
		rows = append(rows, []string{"# Account Number", account})
	}
	rows = append(rows,
		[]string{"# Period", start + " to " + end},
		[]string{"# Total Billed", formatAmount(total)},
	)
	return rows
}

// CSVWriter writes bills to CSV format.
type CSVWriter struct {
	IncludeHeader bool
}

// WriteToFile writes bills to a CSV file at the given path.
func (w *CSVWriter) WriteToFile(path string, e *Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	defer f.Close()

	return w.Write(f, e)
}

// Write writes bills in CSV format to the given writer.
func (w *CSVWriter) Write(out io.Writer, e *Export) error {
	writer := csv.NewWriter(out)

	if w.IncludeHeader {
		for _, r := range metadata(e) {
			if err := writer.Write(r); err != nil {
				return fmt.Errorf("failed to write CSV metadata: %w", err)
			}
		}
	}

	if err := writer.Write(columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, b := range e.Bills {
		if err := writer.Write(row(b)); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}
