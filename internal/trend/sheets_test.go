package trend

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSheets is an in-memory stand-in for the Sheets values API, recording
// updates keyed by range reference.
type fakeSheets struct {
	t *testing.T
	// ranges maps a range reference to the values returned for GET.
	ranges map[string][][]string
	// updates records every PUT in order: range reference and values.
	updates []string
}

func (f *fakeSheets) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(f.t, "Bearer test-token", req.Header.Get("Authorization"))

		// Path: /v4/spreadsheets/{id}/values/{range}
		parts := strings.Split(req.URL.Path, "/values/")
		require.Len(f.t, parts, 2)
		rangeRef := parts[1]

		switch req.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(valueRange{Values: f.ranges[rangeRef]})
		case http.MethodPut:
			var vr valueRange
			require.NoError(f.t, json.NewDecoder(req.Body).Decode(&vr))
			f.updates = append(f.updates, rangeRef+"="+strings.Join(vr.Values[0], "|"))
			w.Write([]byte(`{}`))
		default:
			http.Error(w, "unexpected method", http.StatusMethodNotAllowed)
		}
	})
}

func newFakeSink(t *testing.T, fake *fakeSheets) (*SheetsSink, func()) {
	fake.t = t
	server := httptest.NewServer(fake.handler())
	sink := NewSheetsSink("test-token", "sheet-id", "Data").WithBaseURL(server.URL)
	return sink, server.Close
}

func TestSheetsRecordFreshSheet(t *testing.T) {
	fake := &fakeSheets{ranges: map[string][][]string{}}
	sink, done := newFakeSink(t, fake)
	defer done()

	require.NoError(t, sink.Record(testRow()))

	assert.Equal(t, []string{
		// Shared headings for the empty sheet.
		"Data!A1:C1=Commit Timestamp|Sketch Name|Commit Hash",
		// Column pair for the board.
		"Data!D1:E1=arduino:avr:uno flash|arduino:avr:uno RAM",
		// Row for the commit.
		`Data!A2:C2=2024-03-01 12:00:00|examples/Blink|=HYPERLINK("https://github.com/octocat/fixture/commit/abc123",T("abc123"))`,
		// The measurements themselves.
		"Data!D2:E2=1000|120",
	}, fake.updates)
}

func TestSheetsRecordExistingBoardAndCommit(t *testing.T) {
	fake := &fakeSheets{ranges: map[string][][]string{
		"Data!1:1": {{timestampHeading, sketchNameHeading, commitHashHeading, "arduino:avr:uno flash", "arduino:avr:uno RAM"}},
		"Data!C:C": {{commitHashHeading}, {"abc123"}},
	}}
	sink, done := newFakeSink(t, fake)
	defer done()

	require.NoError(t, sink.Record(testRow()))

	// Headings and row already exist: only the size cells are written.
	assert.Equal(t, []string{"Data!D2:E2=1000|120"}, fake.updates)
}

func TestSheetsRecordNewBoardOnPopulatedSheet(t *testing.T) {
	fake := &fakeSheets{ranges: map[string][][]string{
		"Data!1:1": {{timestampHeading, sketchNameHeading, commitHashHeading, "arduino:avr:uno flash", "arduino:avr:uno RAM"}},
		"Data!C:C": {{commitHashHeading}},
	}}
	sink, done := newFakeSink(t, fake)
	defer done()

	row := testRow()
	row.FQBN = "esp8266:esp8266:huzzah"
	require.NoError(t, sink.Record(row))

	assert.Contains(t, fake.updates, "Data!F1:G1=esp8266:esp8266:huzzah flash|esp8266:esp8266:huzzah RAM")
	assert.Contains(t, fake.updates, "Data!F2:G2=1000|120")
}

func TestSheetsRecordAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, `{"error": "PERMISSION_DENIED"}`, http.StatusForbidden)
	}))
	defer server.Close()

	sink := NewSheetsSink("test-token", "sheet-id", "Data").WithBaseURL(server.URL)
	err := sink.Record(testRow())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}
