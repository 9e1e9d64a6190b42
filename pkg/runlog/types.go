package runlog

import "time"

// Status is a run record's lifecycle state.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Phase names, in workflow order. Chat contributes one step per
// message round-trip.
const (
	PhaseInitialize   = "initialize"
	PhaseBaseline     = "baseline"
	PhaseChat         = "chat"
	PhaseDonation     = "donation"
	PhasePostMeasures = "post-measures"
)

// StepRecord is one logical remote operation within a workflow.
type StepRecord struct {
	Phase      string    `json:"phase"`
	Timestamp  time.Time `json:"timestamp"`
	DurationMS int64     `json:"durationMs"`
	Request    string    `json:"request"`
	Response   *string   `json:"response"`
	Error      *string   `json:"error"`
}

// RunRecord is the full, replayable trace of one participant. It is
// built incrementally in memory and serialized exactly once when the
// workflow completes or fails, so a reader never observes a
// partially-written file.
type RunRecord struct {
	RunID         string       `json:"runId"`
	ParticipantID *string      `json:"participantId"`
	PersonaID     string       `json:"personaId"`
	Cluster       string       `json:"cluster"`
	Condition     *string      `json:"condition"`
	StartedAt     time.Time    `json:"startedAt"`
	EndedAt       *time.Time   `json:"endedAt"`
	Status        Status       `json:"status"`
	Error         *string      `json:"error"`
	Steps         []StepRecord `json:"steps"`
}
