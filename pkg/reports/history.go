package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/civiclab/ballotsim/pkg/runner"
)

// HistoryStore is the slice of the run-history store reports need.
type HistoryStore interface {
	ListRuns(ctx context.Context, limit int) ([]runner.Summary, error)
}

// HistoryReport renders the recent run history from the local store.
type HistoryReport struct {
	store HistoryStore
	limit int
}

// NewHistoryReport creates a generator over the run history.
func NewHistoryReport(store HistoryStore, limit int) *HistoryReport {
	return &HistoryReport{store: store, limit: limit}
}

// Generate renders the history in the requested format.
func (r *HistoryReport) Generate(ctx context.Context, format ReportFormat) (io.Reader, error) {
	runs, err := r.store.ListRuns(ctx, r.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load run history: %w", err)
	}

	switch format {
	case ReportFormatJSON:
		out, err := json.MarshalIndent(runs, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal history: %w", err)
		}
		return bytes.NewReader(out), nil
	case ReportFormatCSV:
		return renderHistoryCSV(runs)
	case ReportFormatText, "":
		return renderHistoryText(runs), nil
	default:
		return nil, fmt.Errorf("unknown report format: %s", format)
	}
}

func renderHistoryCSV(runs []runner.Summary) (io.Reader, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)

	if err := writer.Write([]string{"run_id", "started_at", "duration_ms", "requested", "completed", "failed"}); err != nil {
		return nil, err
	}
	for _, run := range runs {
		row := []string{
			run.RunID,
			run.StartedAt.Format(time.RFC3339),
			fmt.Sprintf("%d", run.Duration.Milliseconds()),
			fmt.Sprintf("%d", run.Requested),
			fmt.Sprintf("%d", run.Completed),
			fmt.Sprintf("%d", run.Failed),
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush writer: %w", err)
	}
	return buf, nil
}

func renderHistoryText(runs []runner.Summary) io.Reader {
	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "--- Run History (%d runs) ---\n", len(runs))
	for _, run := range runs {
		fmt.Fprintf(buf, "%s  %s  requested=%d completed=%d failed=%d duration=%s\n",
			run.StartedAt.Format("2006-01-02 15:04"), run.RunID,
			run.Requested, run.Completed, run.Failed, run.Duration.Round(time.Second))
	}
	return buf
}
