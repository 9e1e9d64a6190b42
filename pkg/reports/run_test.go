package reports

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/civiclab/ballotsim/pkg/runlog"
	"github.com/civiclab/ballotsim/pkg/runner"
)

// sealParticipant writes one sealed record the way a worker would.
func sealParticipant(t *testing.T, dir, personaID, participantID, condition, decision string, fail error) {
	t.Helper()
	l := runlog.NewLogger(dir, "run-x", personaID, "A")
	if participantID != "" {
		l.SetIdentity(participantID, condition)
	}
	l.Step(runlog.PhaseInitialize, time.Now(), "initialize persona="+personaID, "participant="+participantID, nil)
	if fail != nil {
		l.Step(runlog.PhaseBaseline, time.Now(), "baseline", "", fail)
		require.NoError(t, l.Fail(fail))
		return
	}
	l.Step(runlog.PhaseBaseline, time.Now(), "baseline tech=4 privacy=4 ballot=4", "", nil)
	l.Step(runlog.PhaseChat, time.Now(), "Wie funktioniert das E-Voting?", "reply", nil)
	l.Step(runlog.PhaseDonation, time.Now(), "donation decision="+decision, "", nil)
	l.Step(runlog.PhasePostMeasures, time.Now(), "post-measures condition="+condition, "", nil)
	require.NoError(t, l.Complete())
}

func writeRunDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	sealParticipant(t, dir, "civic-anchor", "p-1", "A", "donate", nil)
	sealParticipant(t, dir, "civic-student", "p-2", "A", "decline", nil)
	sealParticipant(t, dir, "guarded-engineer", "p-3", "C", "donate", nil)
	sealParticipant(t, dir, "casual-scroller", "", "", "", errors.New("baseline: status 503"))
	return dir
}

func TestRunReport_Build(t *testing.T) {
	dir := writeRunDir(t)

	reader, err := NewRunReport(dir).Generate(context.Background(), ReportFormatJSON)
	require.NoError(t, err)

	var data RunReportData
	require.NoError(t, json.NewDecoder(reader).Decode(&data))

	require.Equal(t, "run-x", data.RunID)
	require.Equal(t, 4, data.Participants)
	require.Equal(t, 3, data.Completed)
	require.Equal(t, 1, data.Failed)
	require.Contains(t, data.Failures, "casual-scroller")

	require.Len(t, data.ByCondition, 2)
	condA := data.ByCondition[0]
	require.Equal(t, "A", condA.Condition)
	require.Equal(t, 2, condA.Participants)
	require.Equal(t, 1, condA.Donations)
	require.InDelta(t, 0.5, condA.DonationRate, 1e-9)
	condC := data.ByCondition[1]
	require.Equal(t, "C", condC.Condition)
	require.Equal(t, 1, condC.Donations)

	// Phase aggregation counts the steps that actually ran.
	byPhase := make(map[string]runlog.PhaseTiming)
	for _, ph := range data.Phases {
		byPhase[ph.Phase] = ph
	}
	require.Equal(t, 4, byPhase[runlog.PhaseInitialize].Count)
	require.Equal(t, 1, byPhase[runlog.PhaseBaseline].Errors)
	require.Equal(t, 3, byPhase[runlog.PhaseDonation].Count)
}

func TestRunReport_TextFormat(t *testing.T) {
	dir := writeRunDir(t)

	reader, err := NewRunReport(dir).Generate(context.Background(), ReportFormatText)
	require.NoError(t, err)
	out, err := io.ReadAll(reader)
	require.NoError(t, err)

	text := string(out)
	require.Contains(t, text, "Run Report: run-x")
	require.Contains(t, text, "Completed: 3 | Failed: 1")
	require.Contains(t, text, "A: 1/2 (50.0%)")
	require.Contains(t, text, "[FAIL] casual-scroller")
}

func TestRunReport_CSVFormat(t *testing.T) {
	dir := writeRunDir(t)

	reader, err := NewRunReport(dir).Generate(context.Background(), ReportFormatCSV)
	require.NoError(t, err)

	rows, err := csv.NewReader(reader).ReadAll()
	require.NoError(t, err)
	require.Equal(t, []string{"condition", "participants", "donations", "donation_rate"}, rows[0])
	require.Len(t, rows, 3)
	require.Equal(t, []string{"A", "2", "1", "0.5000"}, rows[1])
	require.Equal(t, []string{"C", "1", "1", "1.0000"}, rows[2])
}

func TestRunReport_EmptyDirErrors(t *testing.T) {
	_, err := NewRunReport(t.TempDir()).Generate(context.Background(), ReportFormatText)
	require.Error(t, err)
}

func TestRunReport_UnknownFormat(t *testing.T) {
	dir := writeRunDir(t)
	_, err := NewRunReport(dir).Generate(context.Background(), ReportFormat("xml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown report format")
}

func TestNewGenerator(t *testing.T) {
	if _, err := NewGenerator(ReportTypeRun, t.TempDir(), nil); err != nil {
		t.Fatalf("run generator: %v", err)
	}
	if _, err := NewGenerator(ReportTypeHistory, "", stubHistory{}); err != nil {
		t.Fatalf("history generator: %v", err)
	}
	if _, err := NewGenerator(ReportType("bogus"), "", nil); err == nil {
		t.Fatal("unknown report type accepted")
	}
}

type stubHistory struct{}

func (stubHistory) ListRuns(context.Context, int) ([]runner.Summary, error) {
	return nil, nil
}
