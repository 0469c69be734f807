package trend

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/inotool/inosize/internal/size"
)

func TestWorkbookRecordCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trends.xlsx")
	sink := NewWorkbookSink(path, "Data")

	require.NoError(t, sink.Record(testRow()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Data")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{
		timestampHeading, sketchNameHeading, commitHashHeading,
		"arduino:avr:uno flash", "arduino:avr:uno RAM",
	}, rows[0])
	assert.Equal(t, "2024-03-01 12:00:00", rows[1][0])
	assert.Equal(t, "examples/Blink", rows[1][1])
	assert.Equal(t, "abc123", rows[1][2])
	assert.Equal(t, "1000", rows[1][3])
	assert.Equal(t, "120", rows[1][4])

	link, target, err := f.GetCellHyperLink("Data", "C2")
	require.NoError(t, err)
	assert.True(t, link)
	assert.Equal(t, "https://github.com/octocat/fixture/commit/abc123", target)
}

func TestWorkbookRecordAppendsCommits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trends.xlsx")
	sink := NewWorkbookSink(path, "Data")

	require.NoError(t, sink.Record(testRow()))

	second := testRow()
	second.CommitHash = "def456"
	second.Flash = size.Bytes(1100)
	require.NoError(t, sink.Record(second))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Data")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "abc123", rows[1][2])
	assert.Equal(t, "def456", rows[2][2])
	assert.Equal(t, "1100", rows[2][3])
}

func TestWorkbookRecordSecondBoardSharesRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trends.xlsx")
	sink := NewWorkbookSink(path, "Data")

	require.NoError(t, sink.Record(testRow()))

	other := testRow()
	other.FQBN = "esp8266:esp8266:huzzah"
	other.Flash = size.Bytes(250000)
	other.RAM = size.NotApplicable
	require.NoError(t, sink.Record(other))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Data")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Both boards report in the same commit row, in their own columns.
	assert.Equal(t, "esp8266:esp8266:huzzah flash", rows[0][5])
	assert.Equal(t, "250000", rows[1][5])
	assert.Equal(t, size.NotApplicableIndicator, rows[1][6])
}
