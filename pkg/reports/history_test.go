package reports

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/civiclab/ballotsim/pkg/runner"
)

type fakeHistory struct {
	runs []runner.Summary
	err  error
}

func (f fakeHistory) ListRuns(_ context.Context, limit int) ([]runner.Summary, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

func historyFixture() []runner.Summary {
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	return []runner.Summary{
		{RunID: "a1b2c3d4", StartedAt: base.Add(time.Hour), Duration: 2 * time.Minute, Requested: 50, Completed: 48, Failed: 2},
		{RunID: "e5f6a7b8", StartedAt: base, Duration: time.Minute, Requested: 20, Completed: 20},
	}
}

func TestHistoryReport_Text(t *testing.T) {
	r := NewHistoryReport(fakeHistory{runs: historyFixture()}, 20)
	reader, err := r.Generate(context.Background(), ReportFormatText)
	require.NoError(t, err)

	out, err := io.ReadAll(reader)
	require.NoError(t, err)
	text := string(out)
	require.Contains(t, text, "Run History (2 runs)")
	require.Contains(t, text, "a1b2c3d4")
	require.Contains(t, text, "requested=50 completed=48 failed=2")
}

func TestHistoryReport_CSV(t *testing.T) {
	r := NewHistoryReport(fakeHistory{runs: historyFixture()}, 20)
	reader, err := r.Generate(context.Background(), ReportFormatCSV)
	require.NoError(t, err)

	rows, err := csv.NewReader(reader).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []string{"run_id", "started_at", "duration_ms", "requested", "completed", "failed"}, rows[0])
	require.Equal(t, "a1b2c3d4", rows[1][0])
	require.Equal(t, "120000", rows[1][2])
}

func TestHistoryReport_HonorsLimit(t *testing.T) {
	r := NewHistoryReport(fakeHistory{runs: historyFixture()}, 1)
	reader, err := r.Generate(context.Background(), ReportFormatText)
	require.NoError(t, err)

	out, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Contains(t, string(out), "Run History (1 runs)")
}

func TestHistoryReport_StoreError(t *testing.T) {
	r := NewHistoryReport(fakeHistory{err: errors.New("db locked")}, 20)
	_, err := r.Generate(context.Background(), ReportFormatText)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to load run history")
}
