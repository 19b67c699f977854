// Package spreadsheet converts marketplace reports to and from XLSX files.
package spreadsheet

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/niaga-platform/service-seller-analytics/internal/analytics"
)

// ContentType is the MIME type of an XLSX workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var (
	// ErrNoSheets is returned for a workbook without worksheets.
	ErrNoSheets = errors.New("workbook has no sheets")
	// ErrNoHeader is returned when the first sheet has no header row.
	ErrNoHeader = errors.New("first sheet has no header row")
)

// ReadReport reads the first sheet of an XLSX workbook. The first row gives
// the field names; every following non-empty row becomes one record. Cell
// values are kept as strings and left to the normalizer to parse.
func ReadReport(r io.Reader) (analytics.RawReport, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheets
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, ErrNoHeader
	}

	header := make([]string, len(rows[0]))
	hasHeader := false
	for i, name := range rows[0] {
		header[i] = strings.TrimSpace(name)
		if header[i] != "" {
			hasHeader = true
		}
	}
	if !hasHeader {
		return nil, ErrNoHeader
	}

	report := make(analytics.RawReport, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := analytics.Record{}
		for i, cell := range row {
			if i >= len(header) || header[i] == "" {
				continue
			}
			if v := strings.TrimSpace(cell); v != "" {
				rec[header[i]] = v
			}
		}
		if len(rec) > 0 {
			report = append(report, rec)
		}
	}
	return report, nil
}

// Table is one worksheet of an exported workbook.
type Table struct {
	Sheet   string
	Headers []string
	Rows    [][]any
}

// Write renders the tables as sheets of a single workbook, in order.
func Write(w io.Writer, tables ...Table) error {
	if len(tables) == 0 {
		return ErrNoSheets
	}

	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	for i, t := range tables {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), t.Sheet); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(t.Sheet); err != nil {
			return err
		}
		if err := writeTable(f, t, bold); err != nil {
			return fmt.Errorf("sheet %s: %w", t.Sheet, err)
		}
	}

	f.SetActiveSheet(0)
	return f.Write(w)
}

func writeTable(f *excelize.File, t Table, headerStyle int) error {
	if len(t.Headers) > 0 {
		headers := make([]any, len(t.Headers))
		for i, h := range t.Headers {
			headers[i] = h
		}
		if err := f.SetSheetRow(t.Sheet, "A1", &headers); err != nil {
			return err
		}
		last, err := excelize.CoordinatesToCellName(len(t.Headers), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(t.Sheet, "A1", last, headerStyle); err != nil {
			return err
		}
	}

	for i, row := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := row
		if err := f.SetSheetRow(t.Sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
