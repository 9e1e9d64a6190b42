package runlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Logger accumulates one participant's RunRecord and writes it to disk
// exactly once. Each worker owns the logger for the participant it is
// currently processing, so no synchronization is needed here.
type Logger struct {
	dir    string
	record RunRecord
	sealed bool
}

// NewLogger starts a running record for one participant.
func NewLogger(dir, runID, personaID, cluster string) *Logger {
	return &Logger{
		dir: dir,
		record: RunRecord{
			RunID:     runID,
			PersonaID: personaID,
			Cluster:   cluster,
			StartedAt: time.Now().UTC(),
			Status:    StatusRunning,
			Steps:     []StepRecord{},
		},
	}
}

// SetIdentity records the remote participant id and condition assigned
// by the initialize call.
func (l *Logger) SetIdentity(participantID, condition string) {
	l.record.ParticipantID = &participantID
	l.record.Condition = &condition
}

// Step appends one logical remote operation. response and err may be
// empty; both are recorded as null in that case.
func (l *Logger) Step(phase string, started time.Time, request, response string, err error) {
	step := StepRecord{
		Phase:      phase,
		Timestamp:  started.UTC(),
		DurationMS: time.Since(started).Milliseconds(),
		Request:    request,
	}
	if response != "" {
		step.Response = &response
	}
	if err != nil {
		msg := err.Error()
		step.Error = &msg
	}
	l.record.Steps = append(l.record.Steps, step)
}

// Complete seals the record with completed status and writes the file.
func (l *Logger) Complete() error {
	return l.seal(StatusCompleted, nil)
}

// Fail seals the record with failed status and the terminal error.
func (l *Logger) Fail(cause error) error {
	return l.seal(StatusFailed, cause)
}

// Record returns a copy of the record accumulated so far.
func (l *Logger) Record() RunRecord {
	rec := l.record
	rec.Steps = append([]StepRecord(nil), l.record.Steps...)
	return rec
}

func (l *Logger) seal(status Status, cause error) error {
	if l.sealed {
		return fmt.Errorf("run record for %s already sealed", l.record.PersonaID)
	}
	l.sealed = true

	now := time.Now().UTC()
	l.record.EndedAt = &now
	l.record.Status = status
	if cause != nil {
		msg := cause.Error()
		l.record.Error = &msg
	}

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	participant := "unknown"
	if l.record.ParticipantID != nil {
		participant = *l.record.ParticipantID
	}
	path := filepath.Join(l.dir, fmt.Sprintf("%s-%s.json", l.record.PersonaID, participant))

	data, err := json.MarshalIndent(l.record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write run record: %w", err)
	}
	return nil
}
