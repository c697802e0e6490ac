package writer

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Bills"

// XLSXWriter writes bills to an Excel workbook with one row per bill.
type XLSXWriter struct {
	IncludeHeader bool
}

// WriteToFile writes the workbook to path.
func (w *XLSXWriter) WriteToFile(path string, e *Export) error {
	f, err := w.build(e)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %q: %w", path, err)
	}
	return nil
}

// Write writes the workbook to out.
func (w *XLSXWriter) Write(out io.Writer, e *Export) error {
	f, err := w.build(e)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func (w *XLSXWriter) build(e *Export) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		f.Close()
		return nil, err
	}

	line := 1
	writeRow := func(values []string) error {
		for i, v := range values {
			cell, err := excelize.CoordinatesToCellName(i+1, line)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return err
			}
		}
		line++
		return nil
	}

	if w.IncludeHeader {
		for _, r := range metadata(e) {
			if err := writeRow(r); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to write metadata: %w", err)
			}
		}
	}

	headerLine := line
	if err := writeRow(columns); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		first, _ := excelize.CoordinatesToCellName(1, headerLine)
		last, _ := excelize.CoordinatesToCellName(len(columns), headerLine)
		_ = f.SetCellStyle(sheetName, first, last, style)
	}

	for _, b := range e.Bills {
		if err := writeRow(row(b)); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row: %w", err)
		}
	}
	return f, nil
}
