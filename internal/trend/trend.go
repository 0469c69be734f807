// Package trend records memory usage over time, one spreadsheet row per
// commit. Rows are append-only: the trend is raw measurements, deltas are
// the report package's concern.
//
// The sheet layout is three shared columns (commit timestamp, sketch name,
// commit hash) followed by a flash/RAM column pair per board. A run finds
// or creates its board's column pair and its commit's row, then fills in
// the two cells at the intersection.
package trend

import (
	"time"

	"github.com/inotool/inosize/internal/size"
)

// Column headings for the shared data columns.
const (
	timestampHeading  = "Commit Timestamp"
	sketchNameHeading = "Sketch Name"
	commitHashHeading = "Commit Hash"
)

// Suffixes appended to the FQBN to form the per-board column headings.
const (
	flashHeadingSuffix = " flash"
	ramHeadingSuffix   = " RAM"
)

// Positions of the shared data columns (zero-based).
const (
	timestampColumn  = 0
	sketchNameColumn = 1
	commitHashColumn = 2
)

// timestampLayout formats the commit timestamp cell.
const timestampLayout = "2006-01-02 15:04:05"

// Row is one board's measurement of one sketch at one commit.
type Row struct {
	Timestamp  time.Time
	Sketch     string
	CommitHash string
	CommitURL  string
	FQBN       string
	Flash      size.Metric
	RAM        size.Metric
}

// Sink records trend rows in some spreadsheet-shaped destination.
type Sink interface {
	Record(row Row) error
}

// boardColumns locates the flash column for row's board in the heading row,
// returning its zero-based index and whether the headings already exist.
// When absent, the returned index is the first column past the current
// headings.
func boardColumns(headings []string, fqbn string) (flashIndex int, populated bool) {
	for i, heading := range headings {
		if heading == fqbn+flashHeadingSuffix {
			return i, true
		}
	}
	return len(headings), false
}

// commitRow locates the row holding hash in the commit hash column,
// returning its zero-based index and whether it exists. When absent, the
// returned index is the first row past the current data.
func commitRow(hashes []string, hash string) (rowIndex int, populated bool) {
	for i, cell := range hashes {
		if cell == hash {
			return i, true
		}
	}
	return len(hashes), false
}

// columnName converts a zero-based column index to its A1 letter form.
func columnName(index int) string {
	name := ""
	for index >= 0 {
		name = string(rune('A'+index%26)) + name
		index = index/26 - 1
	}
	return name
}

// hyperlinkFormula renders the commit hash cell: the hash text linking to
// the commit's web page.
func hyperlinkFormula(url, hash string) string {
	return `=HYPERLINK("` + url + `",T("` + hash + `"))`
}
