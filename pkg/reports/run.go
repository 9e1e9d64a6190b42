package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/civiclab/ballotsim/pkg/runlog"
)

// RunReport summarizes one run from its sealed per-participant files:
// outcome counts, per-phase latency, and donation rate by condition.
// The by-condition breakdown mirrors the study's descriptive
// statistics, so a harness run can be eyeballed against the real
// sample before analysis.
type RunReport struct {
	dir string
}

// NewRunReport creates a generator reading the given run directory.
func NewRunReport(dir string) *RunReport {
	return &RunReport{dir: dir}
}

// ConditionStats is the per-condition outcome slice of a run report.
type ConditionStats struct {
	Condition    string  `json:"condition"`
	Participants int     `json:"participants"`
	Donations    int     `json:"donations"`
	DonationRate float64 `json:"donationRate"`
}

// RunReportData is the assembled report payload.
type RunReportData struct {
	RunID        string               `json:"runId"`
	Participants int                  `json:"participants"`
	Completed    int                  `json:"completed"`
	Failed       int                  `json:"failed"`
	WallclockMS  int64                `json:"wallclockMs"`
	Phases       []runlog.PhaseTiming `json:"phases"`
	ByCondition  []ConditionStats     `json:"byCondition"`
	Failures     map[string]string    `json:"failures,omitempty"`
}

// Generate renders the report in the requested format.
func (r *RunReport) Generate(ctx context.Context, format ReportFormat) (io.Reader, error) {
	data, err := r.build()
	if err != nil {
		return nil, err
	}

	switch format {
	case ReportFormatJSON:
		out, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal report: %w", err)
		}
		return bytes.NewReader(out), nil
	case ReportFormatCSV:
		return r.renderCSV(data)
	case ReportFormatText, "":
		return r.renderText(data), nil
	default:
		return nil, fmt.Errorf("unknown report format: %s", format)
	}
}

func (r *RunReport) build() (*RunReportData, error) {
	records, err := runlog.ReadRun(r.dir)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no run records in %s", r.dir)
	}

	data := &RunReportData{
		RunID:        records[0].RunID,
		Participants: len(records),
		WallclockMS:  runlog.Wallclock(records).Milliseconds(),
		Phases:       runlog.Replay(records),
		Failures:     make(map[string]string),
	}

	byCond := make(map[string]*ConditionStats)
	for _, rec := range records {
		switch rec.Status {
		case runlog.StatusCompleted:
			data.Completed++
		case runlog.StatusFailed:
			data.Failed++
			if rec.Error != nil {
				data.Failures[rec.PersonaID] = *rec.Error
			}
		}
		if rec.Condition == nil {
			continue
		}
		cs, ok := byCond[*rec.Condition]
		if !ok {
			cs = &ConditionStats{Condition: *rec.Condition}
			byCond[*rec.Condition] = cs
		}
		cs.Participants++
		if recordDonated(rec) {
			cs.Donations++
		}
	}

	for _, cs := range byCond {
		if cs.Participants > 0 {
			cs.DonationRate = float64(cs.Donations) / float64(cs.Participants)
		}
		data.ByCondition = append(data.ByCondition, *cs)
	}
	sort.Slice(data.ByCondition, func(i, j int) bool {
		return data.ByCondition[i].Condition < data.ByCondition[j].Condition
	})
	return data, nil
}

// recordDonated inspects the donation step's request summary.
func recordDonated(rec runlog.RunRecord) bool {
	for _, step := range rec.Steps {
		if step.Phase == runlog.PhaseDonation && step.Error == nil {
			return strings.Contains(step.Request, "decision=donate")
		}
	}
	return false
}

func (r *RunReport) renderCSV(data *RunReportData) (io.Reader, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)

	if err := writer.Write([]string{"condition", "participants", "donations", "donation_rate"}); err != nil {
		return nil, err
	}
	for _, cs := range data.ByCondition {
		row := []string{
			cs.Condition,
			fmt.Sprintf("%d", cs.Participants),
			fmt.Sprintf("%d", cs.Donations),
			fmt.Sprintf("%.4f", cs.DonationRate),
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

func (r *RunReport) renderText(data *RunReportData) io.Reader {
	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "--- Run Report: %s ---\n", data.RunID)
	fmt.Fprintf(buf, "Participants: %d | Completed: %d | Failed: %d | Wallclock: %dms\n",
		data.Participants, data.Completed, data.Failed, data.WallclockMS)

	fmt.Fprintf(buf, "\nPhases:\n")
	for _, ph := range data.Phases {
		avg := int64(0)
		if ph.Count > 0 {
			avg = ph.TotalMS / int64(ph.Count)
		}
		fmt.Fprintf(buf, "  %-14s count=%-4d avg=%dms max=%dms errors=%d\n",
			ph.Phase, ph.Count, avg, ph.MaxMS, ph.Errors)
	}

	fmt.Fprintf(buf, "\nDonation rate by condition:\n")
	for _, cs := range data.ByCondition {
		fmt.Fprintf(buf, "  %s: %d/%d (%.1f%%)\n",
			cs.Condition, cs.Donations, cs.Participants, cs.DonationRate*100)
	}

	if len(data.Failures) > 0 {
		fmt.Fprintf(buf, "\nFailures:\n")
		for _, persona := range sortedStringKeys(data.Failures) {
			fmt.Fprintf(buf, "  [FAIL] %s: %s\n", persona, data.Failures[persona])
		}
	}
	return buf
}

func sortedStringKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
