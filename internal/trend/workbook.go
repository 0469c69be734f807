package trend

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/xuri/excelize/v2"

	"github.com/inotool/inosize/internal/size"
)

// WorkbookSink appends trend rows to a sheet of a local .xlsx workbook, for
// runs without Sheets credentials. The file and sheet are created on first
// use.
type WorkbookSink struct {
	Path      string
	SheetName string
}

// NewWorkbookSink creates a sink writing to the named sheet of the workbook
// at path.
func NewWorkbookSink(path, sheetName string) *WorkbookSink {
	return &WorkbookSink{Path: path, SheetName: sheetName}
}

// Record applies the same layout as the Sheets sink to the local workbook.
func (w *WorkbookSink) Record(row Row) error {
	f, created, err := w.open()
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := f.GetRows(w.SheetName)
	if err != nil {
		return fmt.Errorf("reading sheet %q: %w", w.SheetName, err)
	}

	var headings []string
	if len(rows) > 0 {
		headings = rows[0]
	}
	if len(headings) == 0 {
		headings = []string{timestampHeading, sketchNameHeading, commitHashHeading}
		for i, heading := range headings {
			if err := w.setCell(f, i, 0, heading); err != nil {
				return err
			}
		}
	}

	flashCol, haveColumns := boardColumns(headings, row.FQBN)
	if !haveColumns {
		if err := w.setCell(f, flashCol, 0, row.FQBN+flashHeadingSuffix); err != nil {
			return err
		}
		if err := w.setCell(f, flashCol+1, 0, row.FQBN+ramHeadingSuffix); err != nil {
			return err
		}
	}

	hashes := make([]string, 0, len(rows))
	for _, r := range rows {
		if len(r) > commitHashColumn {
			hashes = append(hashes, r[commitHashColumn])
		} else {
			hashes = append(hashes, "")
		}
	}
	rowIdx, haveRow := commitRow(hashes, row.CommitHash)
	if !haveRow && rowIdx == 0 {
		// Row 1 is always the heading row, even on a fresh workbook.
		rowIdx = 1
	}
	if !haveRow {
		if err := w.setCell(f, timestampColumn, rowIdx, row.Timestamp.Format(timestampLayout)); err != nil {
			return err
		}
		if err := w.setCell(f, sketchNameColumn, rowIdx, row.Sketch); err != nil {
			return err
		}
		if err := w.setCell(f, commitHashColumn, rowIdx, row.CommitHash); err != nil {
			return err
		}
		cell, err := excelize.CoordinatesToCellName(commitHashColumn+1, rowIdx+1)
		if err != nil {
			return err
		}
		if err := f.SetCellHyperLink(w.SheetName, cell, row.CommitURL, "External"); err != nil {
			return fmt.Errorf("linking commit %s: %w", row.CommitHash, err)
		}
	}

	if err := w.setMetric(f, flashCol, rowIdx, row.Flash); err != nil {
		return err
	}
	if err := w.setMetric(f, flashCol+1, rowIdx, row.RAM); err != nil {
		return err
	}

	if created {
		return f.SaveAs(w.Path)
	}
	return f.Save()
}

// open returns the workbook, creating it (and the sheet) when the file
// doesn't exist yet.
func (w *WorkbookSink) open() (f *excelize.File, created bool, err error) {
	f, err = excelize.OpenFile(w.Path)
	if errors.Is(err, fs.ErrNotExist) {
		f = excelize.NewFile()
		created = true
	} else if err != nil {
		return nil, false, fmt.Errorf("opening workbook %s: %w", w.Path, err)
	}

	if idx, _ := f.GetSheetIndex(w.SheetName); idx < 0 {
		if _, err := f.NewSheet(w.SheetName); err != nil {
			return nil, false, fmt.Errorf("creating sheet %q: %w", w.SheetName, err)
		}
	}
	return f, created, nil
}

// setCell writes a string cell by zero-based coordinates.
func (w *WorkbookSink) setCell(f *excelize.File, col, row int, value string) error {
	cell, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return err
	}
	return f.SetCellValue(w.SheetName, cell, value)
}

// setMetric writes a size metric cell: a number when known, the N/A
// indicator otherwise.
func (w *WorkbookSink) setMetric(f *excelize.File, col, row int, m size.Metric) error {
	cell, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return err
	}
	if m.Known() {
		return f.SetCellValue(w.SheetName, cell, m.Value())
	}
	return f.SetCellValue(w.SheetName, cell, m.String())
}
