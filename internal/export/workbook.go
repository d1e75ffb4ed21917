// Package export renders ledger statements as an XLSX workbook.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"registro/internal/core"
	"registro/internal/sheets"
)

const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SummarySheet lists the closing balance of every exported sequence.
const SummarySheet = "Summary"

var columnWidths = []float64{12, 8, 10, 22, 30, 20, 12, 12}

// Workbook builds one sheet per statement, named through sheetName, followed
// by a summary sheet.
func Workbook(statements []core.Statement, sheetName func(core.Sequence) string) (*excelize.File, error) {
	if sheetName == nil {
		sheetName = DefaultSheetName
	}

	f := excelize.NewFile()
	first := f.GetSheetName(0)

	for i, st := range statements {
		name := safeSheetName(sheetName(st.Sequence))
		if i == 0 {
			if err := f.SetSheetName(first, name); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
		if err := writeRows(f, name, sheets.Rows(st)); err != nil {
			return nil, err
		}
	}

	summary := [][]interface{}{{"Sequence", "Events", "Balance"}}
	for _, st := range statements {
		summary = append(summary, []interface{}{safeSheetName(sheetName(st.Sequence)), len(st.Events), st.Closing().Float()})
	}
	if len(statements) == 0 {
		if err := f.SetSheetName(first, SummarySheet); err != nil {
			return nil, fmt.Errorf("rename sheet: %w", err)
		}
	} else if _, err := f.NewSheet(SummarySheet); err != nil {
		return nil, fmt.Errorf("create summary sheet: %w", err)
	}
	if err := writeRows(f, SummarySheet, summary); err != nil {
		return nil, err
	}

	f.SetActiveSheet(0)
	return f, nil
}

// Write streams the workbook for statements to w.
func Write(w io.Writer, statements []core.Statement, sheetName func(core.Sequence) string) error {
	f, err := Workbook(statements, sheetName)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func DefaultSheetName(seq core.Sequence) string {
	switch seq {
	case core.BankA:
		return "Bank A"
	case core.BankB:
		return "Bank B"
	}
	return "Transactions"
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("set %s!%s: %w", sheet, cell, err)
			}
		}
	}
	for i, width := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return fmt.Errorf("set width %s!%s: %w", sheet, col, err)
		}
	}
	return nil
}

// safeSheetName strips characters Excel forbids and truncates to 31 runes.
func safeSheetName(s string) string {
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '-'
		}
		return r
	}, strings.TrimSpace(s))
	if s == "" {
		s = "Sheet"
	}
	if r := []rune(s); len(r) > 31 {
		s = string(r[:31])
	}
	return s
}
