package trend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultSheetsEndpoint is the Google Sheets REST API origin.
const DefaultSheetsEndpoint = "https://sheets.googleapis.com"

// sheetsTimeout bounds each API request.
const sheetsTimeout = 30 * time.Second

// SheetsSink appends trend rows to a Google Sheets spreadsheet. The token
// is an OAuth2 access token with the spreadsheets scope; obtaining one is
// the caller's concern.
type SheetsSink struct {
	Token         string
	SpreadsheetID string
	SheetName     string
	BaseURL       string
	HTTPClient    *http.Client
}

// NewSheetsSink creates a sink for one sheet of one spreadsheet.
func NewSheetsSink(token, spreadsheetID, sheetName string) *SheetsSink {
	return &SheetsSink{
		Token:         token,
		SpreadsheetID: spreadsheetID,
		SheetName:     sheetName,
		BaseURL:       DefaultSheetsEndpoint,
		HTTPClient: &http.Client{
			Timeout: sheetsTimeout,
		},
	}
}

// WithBaseURL returns a new sink with a custom base URL (for testing).
func (s *SheetsSink) WithBaseURL(baseURL string) *SheetsSink {
	return &SheetsSink{
		Token:         s.Token,
		SpreadsheetID: s.SpreadsheetID,
		SheetName:     s.SheetName,
		BaseURL:       baseURL,
		HTTPClient:    s.HTTPClient,
	}
}

// valueRange is the Sheets API's cell range payload.
type valueRange struct {
	Values [][]string `json:"values"`
}

// Record finds or creates the board's column pair and the commit's row,
// then writes the flash and RAM cells. A fresh sheet gets the shared
// headings first.
func (s *SheetsSink) Record(row Row) error {
	headings, err := s.getRow1(headingRange(s.SheetName))
	if err != nil {
		return err
	}
	if len(headings) == 0 {
		if err := s.update(cellRange(s.SheetName, timestampColumn, 0, commitHashColumn, 0), "RAW",
			[][]string{{timestampHeading, sketchNameHeading, commitHashHeading}}); err != nil {
			return fmt.Errorf("initializing sheet headings: %w", err)
		}
		headings = []string{timestampHeading, sketchNameHeading, commitHashHeading}
	}

	flashCol, haveColumns := boardColumns(headings, row.FQBN)
	if !haveColumns {
		if err := s.update(cellRange(s.SheetName, flashCol, 0, flashCol+1, 0), "RAW",
			[][]string{{row.FQBN + flashHeadingSuffix, row.FQBN + ramHeadingSuffix}}); err != nil {
			return fmt.Errorf("adding columns for %s: %w", row.FQBN, err)
		}
	}

	hashes, err := s.getColumn(columnRange(s.SheetName, commitHashColumn))
	if err != nil {
		return err
	}
	rowIdx, haveRow := commitRow(hashes, row.CommitHash)
	if !haveRow && rowIdx == 0 {
		// Row 1 is always the heading row, even when the column fetch
		// doesn't reflect a heading write from this run yet.
		rowIdx = 1
	}
	if !haveRow {
		shared := [][]string{{
			row.Timestamp.Format(timestampLayout),
			row.Sketch,
			hyperlinkFormula(row.CommitURL, row.CommitHash),
		}}
		if err := s.update(cellRange(s.SheetName, timestampColumn, rowIdx, commitHashColumn, rowIdx), "USER_ENTERED", shared); err != nil {
			return fmt.Errorf("creating row for commit %s: %w", row.CommitHash, err)
		}
	}

	sizes := [][]string{{row.Flash.String(), row.RAM.String()}}
	if err := s.update(cellRange(s.SheetName, flashCol, rowIdx, flashCol+1, rowIdx), "RAW", sizes); err != nil {
		return fmt.Errorf("writing memory usage for %s: %w", row.FQBN, err)
	}
	return nil
}

// headingRange addresses the whole heading row.
func headingRange(sheet string) string {
	return sheet + "!1:1"
}

// columnRange addresses one whole column.
func columnRange(sheet string, col int) string {
	letter := columnName(col)
	return sheet + "!" + letter + ":" + letter
}

// cellRange addresses a rectangular cell range by zero-based coordinates.
func cellRange(sheet string, startCol, startRow, endCol, endRow int) string {
	return fmt.Sprintf("%s!%s%d:%s%d",
		sheet, columnName(startCol), startRow+1, columnName(endCol), endRow+1)
}

// getRow1 fetches a row-shaped range, returning the first row's cells.
func (s *SheetsSink) getRow1(rangeRef string) ([]string, error) {
	var vr valueRange
	if err := s.get(rangeRef, &vr); err != nil {
		return nil, err
	}
	if len(vr.Values) == 0 {
		return nil, nil
	}
	return vr.Values[0], nil
}

// getColumn fetches a column-shaped range, returning the first cell of
// each row.
func (s *SheetsSink) getColumn(rangeRef string) ([]string, error) {
	var vr valueRange
	if err := s.get(rangeRef, &vr); err != nil {
		return nil, err
	}
	cells := make([]string, 0, len(vr.Values))
	for _, row := range vr.Values {
		if len(row) == 0 {
			cells = append(cells, "")
			continue
		}
		cells = append(cells, row[0])
	}
	return cells, nil
}

func (s *SheetsSink) valuesURL(rangeRef string) string {
	return s.BaseURL + "/v4/spreadsheets/" + url.PathEscape(s.SpreadsheetID) +
		"/values/" + url.PathEscape(rangeRef)
}

// get fetches a cell range. There is no retry: a failed call fails the
// trend step.
func (s *SheetsSink) get(rangeRef string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, s.valuesURL(rangeRef), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return s.do(req, out)
}

// update writes a cell range with the given value input option.
func (s *SheetsSink) update(rangeRef, valueInputOption string, values [][]string) error {
	body, err := json.Marshal(valueRange{Values: values})
	if err != nil {
		return err
	}
	u := s.valuesURL(rangeRef) + "?valueInputOption=" + url.QueryEscape(valueInputOption)
	req, err := http.NewRequest(http.MethodPut, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, nil)
}

func (s *SheetsSink) do(req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+s.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	const maxResponseSize = 10 * 1024 * 1024
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("Sheets API error: %s (status %d)", string(body), resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
