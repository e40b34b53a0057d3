package record

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet written by WriteXLSX.
const SheetName = "Financials"

func header(rows []FinancialRow) []string {
	if len(rows) == 0 {
		return nil
	}
	return rows[0].Columns
}

// CellString formats a row value for text output; nil is empty.
func CellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// WriteCSV writes a header and one line per row.
func WriteCSV(w io.Writer, rows []FinancialRow) error {
	cols := header(rows)
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		rec := make([]string, len(cols))
		for i, c := range cols {
			rec[i] = CellString(r.Values[c])
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row %s: %w", r.Year, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes rows to a single-sheet workbook. Numeric cells stay numeric.
func WriteXLSX(w io.Writer, rows []FinancialRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	cols := header(rows)
	for i, c := range cols {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, cell, c); err != nil {
			return fmt.Errorf("set header %s: %w", cell, err)
		}
	}
	for r, row := range rows {
		for i, c := range cols {
			v := row.Values[c]
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(i+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}
	if len(cols) > 0 {
		last, _ := excelize.ColumnNumberToName(len(cols))
		if err := f.SetColWidth(SheetName, "A", last, 18); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// WriteJSON writes rows as an indented JSON array.
func WriteJSON(w io.Writer, rows []FinancialRow) error {
	if rows == nil {
		rows = []FinancialRow{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

// Output formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatJSON = "json"
)

var contentTypes = map[string]string{
	FormatCSV:  "text/csv; charset=utf-8",
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	FormatJSON: "application/json",
}

// ContentType returns the MIME type of format, or "" if it is unknown.
func ContentType(format string) string { return contentTypes[format] }

// FormatForPath picks a format from a file extension, defaulting to CSV.
func FormatForPath(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if _, ok := contentTypes[ext]; ok {
		return ext
	}
	return FormatCSV
}

// Write dispatches to the writer for format.
func Write(w io.Writer, format string, rows []FinancialRow) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, rows)
	case FormatXLSX:
		return WriteXLSX(w, rows)
	case FormatJSON:
		return WriteJSON(w, rows)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
