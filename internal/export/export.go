// Package export writes record slices as CSV or XLSX downloads.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"techbiz/internal/core"
)

const (
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	sheetName = "Records"
)

// Columns is the header row shared by both formats.
var Columns = []string{
	"ID", "Name", "Date", "Place", "Service type", "Income",
	"Cost", "Profit", "Hours", "Status", "Notes", "Confirms",
}

// Filename names a download, e.g. records_20240105.csv.
func Filename(ext string, now time.Time) string {
	return fmt.Sprintf("records_%s.%s", now.Format("20060102"), ext)
}

// CSV writes a UTF-8 BOM, the header and one line per record.
// Absent quantities are empty fields.
func CSV(w io.Writer, records []core.Record) error {
	// BOM so spreadsheet apps detect UTF-8
	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			strconv.FormatInt(r.ID, 10),
			r.Name,
			r.Date,
			r.Place,
			r.ServiceType,
			r.Income.String(),
			r.Cost.String(),
			strconv.FormatFloat(r.Profit(), 'f', 2, 64),
			r.Hours.String(),
			r.Status,
			r.Notes,
			r.Confirms.String(),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// XLSX writes a workbook with a single Records sheet. Quantities are numeric
// cells so the spreadsheet can sum them.
func XLSX(w io.Writer, records []core.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#1976D2"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(Columns))
	if err := f.SetCellStyle(sheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			r.ID,
			r.Name,
			r.Date,
			r.Place,
			r.ServiceType,
			numberCell(r.Income),
			numberCell(r.Cost),
			r.Profit(),
			numberCell(r.Hours),
			r.Status,
			r.Notes,
			r.Confirms.String(),
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", r.ID, err)
		}
	}

	f.SetColWidth(sheetName, "B", "B", 20)
	f.SetColWidth(sheetName, "C", "E", 14)
	f.SetColWidth(sheetName, "K", "K", 30)

	return f.Write(w)
}

func numberCell(n core.Number) any {
	if v, ok := n.Float(); ok {
		return v
	}
	return nil
}
