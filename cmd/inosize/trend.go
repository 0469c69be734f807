package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/inotool/inosize/internal/actions"
	"github.com/inotool/inosize/internal/github"
	"github.com/inotool/inosize/internal/report"
	"github.com/inotool/inosize/internal/trend"
	"github.com/inotool/inosize/internal/workspace"
)

var (
	trendReportPath   string
	trendSpreadsheet  string
	trendSheetName    string
	trendAccessToken  string
	trendWorkbookPath string
	trendGithubToken  string
)

var trendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Append a sketches report's memory usage to a trend spreadsheet",
	Long: `Read the sketches report written by the compile command and append its
memory usage figures to a spreadsheet, one row per commit.

Trends are only meaningful on the repository's default branch, where
history is linear; on any other branch the command is a no-op. The
destination is either a Google Sheets spreadsheet (--spreadsheet-id with
--google-access-token) or a local workbook file (--workbook).`,
	Args: cobra.NoArgs,
	RunE: runTrend,
}

func init() {
	trendCmd.Flags().StringVar(&trendReportPath, "sketches-report-path", "sketches-reports",
		"Directory containing the sketches report")
	trendCmd.Flags().StringVar(&trendSpreadsheet, "spreadsheet-id", "",
		"ID of the Google Sheets spreadsheet to update")
	trendCmd.Flags().StringVar(&trendSheetName, "sheet-name", "Data",
		"Sheet of the spreadsheet or workbook to update")
	trendCmd.Flags().StringVar(&trendAccessToken, "google-access-token", "",
		"OAuth2 access token with the spreadsheets scope")
	trendCmd.Flags().StringVar(&trendWorkbookPath, "workbook", "",
		"Path of a local .xlsx workbook to update instead of Google Sheets")
	trendCmd.Flags().StringVar(&trendGithubToken, "github-token", "",
		"Token for repository metadata lookups (needed for private repositories)")
	rootCmd.AddCommand(trendCmd)
}

func runTrend(cmd *cobra.Command, args []string) error {
	ws, err := workspace.FromEnv()
	if err != nil {
		return err
	}

	owner, repoName, found := strings.Cut(ws.Repository, "/")
	if !found {
		return fmt.Errorf("invalid repository slug %q", ws.Repository)
	}
	client := github.NewClient(trendGithubToken, owner, repoName)

	defaultBranch, err := client.DefaultBranch(cmd.Context())
	if err != nil {
		return err
	}
	if ws.RefName != defaultBranch {
		actions.Noticef("Size trend reporting is only done on the default branch (%s); skipping on %s",
			defaultBranch, ws.RefName)
		return nil
	}

	sink, err := trendSink()
	if err != nil {
		return err
	}

	reportDir := trendReportPath
	if !filepath.IsAbs(reportDir) {
		reportDir = filepath.Join(ws.Root, reportDir)
	}
	rep, err := loadReport(reportDir)
	if err != nil {
		return err
	}

	row, err := trendRow(rep)
	if err != nil {
		return err
	}
	if err := sink.Record(row); err != nil {
		return fmt.Errorf("recording size trend: %w", err)
	}
	actions.Noticef("Size trend recorded for commit %s", rep.CommitHash)
	return nil
}

// trendSink selects the destination from the flags.
func trendSink() (trend.Sink, error) {
	switch {
	case trendWorkbookPath != "":
		return trend.NewWorkbookSink(trendWorkbookPath, trendSheetName), nil
	case trendSpreadsheet != "":
		if trendAccessToken == "" {
			return nil, errors.New("--google-access-token is required with --spreadsheet-id")
		}
		return trend.NewSheetsSink(trendAccessToken, trendSpreadsheet, trendSheetName), nil
	default:
		return nil, errors.New("specify either --spreadsheet-id or --workbook")
	}
}

// loadReport reads the first report file in dir.
func loadReport(dir string) (*report.Report, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no sketches report found in %s", dir)
	}
	sort.Strings(matches)

	data, err := os.ReadFile(matches[0])
	if err != nil {
		return nil, fmt.Errorf("reading sketches report: %w", err)
	}
	var rep report.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("parsing sketches report %s: %w", matches[0], err)
	}
	return &rep, nil
}

// trendRow builds the spreadsheet row from the report. The sheet holds one
// row per commit, so the row carries the first sketch with usable figures.
func trendRow(rep *report.Report) (trend.Row, error) {
	for _, entry := range rep.Sketches {
		if !entry.CompileSuccess {
			continue
		}
		return trend.Row{
			Timestamp:  time.Now(),
			Sketch:     entry.Sketch,
			CommitHash: rep.CommitHash,
			CommitURL:  rep.CommitURL,
			FQBN:       rep.FQBN,
			Flash:      entry.Flash,
			RAM:        entry.RAM,
		}, nil
	}
	return trend.Row{}, fmt.Errorf("report for %s has no successfully compiled sketch to record", rep.FQBN)
}
