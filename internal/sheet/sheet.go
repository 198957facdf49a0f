// Package sheet reads and writes the spreadsheet workbooks used for bulk
// import and export. Import reads the first worksheet of an .xlsx or legacy
// .xls file into a string matrix; export writes a matrix as a single-sheet
// .xlsx workbook.
package sheet

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/portpilot/portal/internal/domain"
)

// ContentType is the MIME type of exported workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// maxXLSRows caps how many rows are read from a legacy workbook.
const maxXLSRows = 100000

var (
	// ErrNoWorksheet is returned when the workbook has no sheets.
	ErrNoWorksheet = fmt.Errorf("%w: No worksheet found.", domain.ErrValidation)

	// ErrEmptyWorksheet is returned when the first sheet has no rows.
	ErrEmptyWorksheet = fmt.Errorf("%w: Worksheet has no data.", domain.ErrValidation)
)

// Read returns the rows of the first worksheet in r. filename selects the
// format by extension: .xls is read as a legacy BIFF workbook, anything else
// as .xlsx. Unreadable files wrap domain.ErrValidation.
func Read(r io.Reader, filename string) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("sheet.Read: %w", err)
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xls":
		return readXLS(data)
	default:
		return readXLSX(data)
	}
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("sheet.Read: %w: Could not read workbook (%v)", domain.ErrValidation, err)
	}
	defer func() { _ = f.Close() }()

	name := f.GetSheetName(0)
	if name == "" {
		return nil, fmt.Errorf("sheet.Read: %w", ErrNoWorksheet)
	}
	rows, err := f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("sheet.Read: %w: Could not read worksheet (%v)", domain.ErrValidation, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet.Read: %w", ErrEmptyWorksheet)
	}
	return rows, nil
}

func readXLS(data []byte) ([][]string, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("sheet.Read: %w: Could not read workbook (%v)", domain.ErrValidation, err)
	}
	if wb.NumSheets() == 0 {
		return nil, fmt.Errorf("sheet.Read: %w", ErrNoWorksheet)
	}
	ws := wb.GetSheet(0)
	if ws == nil {
		return nil, fmt.Errorf("sheet.Read: %w", ErrNoWorksheet)
	}

	var rows [][]string
	for i := 0; i <= int(ws.MaxRow) && i < maxXLSRows; i++ {
		row := ws.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for j := range cells {
			cells[j] = row.Col(j)
		}
		rows = append(rows, cells)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet.Read: %w", ErrEmptyWorksheet)
	}
	return rows, nil
}

// Write renders matrix as an .xlsx workbook with one sheet called name. The
// first line is styled as a bold header. widths, when given, sets each
// column's width in screen pixels.
func Write(name string, matrix [][]string, widths []int) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
		return nil, fmt.Errorf("sheet.Write: rename sheet: %w", err)
	}

	for i, line := range matrix {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, fmt.Errorf("sheet.Write: %w", err)
		}
		values := make([]interface{}, len(line))
		for j, v := range line {
			values[j] = v
		}
		if err := f.SetSheetRow(name, cell, &values); err != nil {
			return nil, fmt.Errorf("sheet.Write: row %d: %w", i+1, err)
		}
	}

	if len(matrix) > 0 {
		bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return nil, fmt.Errorf("sheet.Write: header style: %w", err)
		}
		if err := f.SetRowStyle(name, 1, 1, bold); err != nil {
			return nil, fmt.Errorf("sheet.Write: header style: %w", err)
		}
	}

	for i, px := range widths {
		if px <= 0 {
			continue
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, fmt.Errorf("sheet.Write: %w", err)
		}
		if err := f.SetColWidth(name, col, col, pixelsToChars(px)); err != nil {
			return nil, fmt.Errorf("sheet.Write: column %s width: %w", col, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("sheet.Write: %w", err)
	}
	return buf.Bytes(), nil
}

// pixelsToChars converts a screen width to Excel's character-based unit.
func pixelsToChars(px int) float64 {
	return float64(px) / 7
}
