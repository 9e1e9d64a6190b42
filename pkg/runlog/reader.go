package runlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ReadRun loads every run record under dir, sorted by start time. This
// is the read side the report and replay tooling consumes.
func ReadRun(dir string) ([]RunRecord, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read run directory: %w", err)
	}

	var records []RunRecord
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}
		var rec RunRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", entry.Name(), err)
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.Before(records[j].StartedAt)
	})
	return records, nil
}

// PhaseTiming aggregates one phase's latency across a run.
type PhaseTiming struct {
	Phase   string
	Count   int
	TotalMS int64
	MaxMS   int64
	Errors  int
}

// Replay walks a run's records in step order and aggregates per-phase
// timings, re-deriving the run's timeline from the sealed files alone.
func Replay(records []RunRecord) []PhaseTiming {
	order := []string{PhaseInitialize, PhaseBaseline, PhaseChat, PhaseDonation, PhasePostMeasures}
	byPhase := make(map[string]*PhaseTiming)
	for _, name := range order {
		byPhase[name] = &PhaseTiming{Phase: name}
	}

	for _, rec := range records {
		for _, step := range rec.Steps {
			t, ok := byPhase[step.Phase]
			if !ok {
				t = &PhaseTiming{Phase: step.Phase}
				byPhase[step.Phase] = t
				order = append(order, step.Phase)
			}
			t.Count++
			t.TotalMS += step.DurationMS
			if step.DurationMS > t.MaxMS {
				t.MaxMS = step.DurationMS
			}
			if step.Error != nil {
				t.Errors++
			}
		}
	}

	out := make([]PhaseTiming, 0, len(order))
	for _, name := range order {
		out = append(out, *byPhase[name])
	}
	return out
}

// Wallclock returns the span from the earliest start to the latest end
// across the records.
func Wallclock(records []RunRecord) time.Duration {
	var start, end time.Time
	for _, rec := range records {
		if start.IsZero() || rec.StartedAt.Before(start) {
			start = rec.StartedAt
		}
		if rec.EndedAt != nil && rec.EndedAt.After(end) {
			end = *rec.EndedAt
		}
	}
	if start.IsZero() || end.IsZero() {
		return 0
	}
	return end.Sub(start)
}
