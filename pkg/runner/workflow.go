package runner

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/civiclab/ballotsim/pkg/backend"
	"github.com/civiclab/ballotsim/pkg/behavior"
	"github.com/civiclab/ballotsim/pkg/llm"
	"github.com/civiclab/ballotsim/pkg/persona"
	"github.com/civiclab/ballotsim/pkg/runlog"
	"github.com/civiclab/ballotsim/pkg/throttle"
)

// Workflow drives one participant through the five-phase study:
// init -> baseline -> chat -> donation -> post-survey. Each phase
// issues exactly one logical remote operation through the shared
// resilient client, except chat, which loops over the persona's
// question count. A terminal error at any phase aborts the remaining
// phases and propagates to the worker boundary.
type Workflow struct {
	cfg       throttle.Config
	resilient *throttle.Client
	api       *backend.Client
	questions llm.QuestionGenerator
	rng       *rand.Rand
	logger    *zap.Logger
	runID     string

	// chat pacing bounds; overridden only by tests.
	pacingMin time.Duration
	pacingMax time.Duration
}

// NewWorkflow builds a workflow runner. rng must be owned by a single
// worker; it is not safe for concurrent use.
func NewWorkflow(cfg throttle.Config, resilient *throttle.Client, api *backend.Client, questions llm.QuestionGenerator, rng *rand.Rand, logger *zap.Logger, runID string) *Workflow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workflow{
		cfg:       cfg,
		resilient: resilient,
		api:       api,
		questions: questions,
		rng:       rng,
		logger:    logger,
		runID:     runID,
		pacingMin: 1 * time.Second,
		pacingMax: 3 * time.Second,
	}
}

// Run executes all phases for one participant, recording every step
// on rec. On success the participant carries its remote identity and
// condition; on failure the error of the aborting phase is returned.
func (w *Workflow) Run(ctx context.Context, p *persona.Participant, rec *runlog.Logger) error {
	if err := w.initialize(ctx, p, rec); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	if err := w.stepDelay(ctx); err != nil {
		return err
	}

	if err := w.baseline(ctx, p, rec); err != nil {
		return fmt.Errorf("baseline: %w", err)
	}
	if err := w.stepDelay(ctx); err != nil {
		return err
	}

	if err := w.chat(ctx, p, rec); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	if err := w.stepDelay(ctx); err != nil {
		return err
	}

	if err := w.donation(ctx, p, rec); err != nil {
		return fmt.Errorf("donation: %w", err)
	}
	if err := w.stepDelay(ctx); err != nil {
		return err
	}

	if err := w.postMeasures(ctx, p, rec); err != nil {
		return fmt.Errorf("post-measures: %w", err)
	}
	return nil
}

func (w *Workflow) initialize(ctx context.Context, p *persona.Participant, rec *runlog.Logger) error {
	req := backend.InitializeRequest{
		Language:        p.Persona.Demographics.Language,
		IsAIParticipant: true,
		AIPersonaID:     p.Persona.ID,
		AIRunID:         w.runID,
	}

	started := time.Now()
	var resp *backend.InitializeResponse
	err := w.resilient.Do(ctx, "initialize", func(ctx context.Context) error {
		var callErr error
		resp, callErr = w.api.Initialize(ctx, req)
		return callErr
	})
	if err != nil {
		rec.Step(runlog.PhaseInitialize, started, fmt.Sprintf("initialize persona=%s lang=%s", p.Persona.ID, req.Language), "", err)
		return err
	}

	p.RemoteID = resp.ParticipantID
	p.Condition = resp.Condition
	rec.SetIdentity(resp.ParticipantID, resp.Condition)
	rec.Step(runlog.PhaseInitialize, started,
		fmt.Sprintf("initialize persona=%s lang=%s", p.Persona.ID, req.Language),
		fmt.Sprintf("participant=%s condition=%s", resp.ParticipantID, resp.Condition), nil)

	w.logger.Debug("participant initialized",
		zap.String("persona", p.Persona.ID),
		zap.String("participant", p.RemoteID),
		zap.String("condition", p.Condition))
	return nil
}

func (w *Workflow) baseline(ctx context.Context, p *persona.Participant, rec *runlog.Logger) error {
	answers := behavior.Baseline(w.rng, p.Persona.Drivers)
	req := backend.BaselineRequest{
		ParticipantID:     p.RemoteID,
		TechComfort:       answers.TechComfort,
		PrivacyConcern:    answers.PrivacyConcern,
		BallotFamiliarity: answers.BallotFamiliarity,
	}

	started := time.Now()
	err := w.resilient.Do(ctx, "baseline", func(ctx context.Context) error {
		return w.api.Baseline(ctx, req)
	})
	rec.Step(runlog.PhaseBaseline, started,
		fmt.Sprintf("baseline tech=%d privacy=%d ballot=%d", req.TechComfort, req.PrivacyConcern, req.BallotFamiliarity),
		"", err)
	return err
}

// chat runs the persona's question count of round-trips. Each round
// asks the question generator for the next user message, sends it, and
// pauses briefly so the timing does not look bot-like.
func (w *Workflow) chat(ctx context.Context, p *persona.Participant, rec *runlog.Logger) error {
	var history []backend.ChatMessage
	var asked []string

	for turn := 0; turn < p.Persona.Interaction.QuestionCount; turn++ {
		var question string
		err := w.resilient.Do(ctx, "generate-question", func(ctx context.Context) error {
			var genErr error
			question, genErr = w.questions.NextQuestion(ctx, p.Persona, turn, asked)
			return genErr
		})
		if err != nil {
			rec.Step(runlog.PhaseChat, time.Now(), fmt.Sprintf("chat turn %d", turn+1), "", err)
			return err
		}
		asked = append(asked, question)

		req := backend.ChatRequest{
			ParticipantID:       p.RemoteID,
			Message:             question,
			ConversationHistory: history,
			Language:            p.Persona.Demographics.Language,
		}

		started := time.Now()
		var reply string
		err = w.resilient.Do(ctx, "chat", func(ctx context.Context) error {
			var callErr error
			reply, callErr = w.api.SendChat(ctx, req)
			return callErr
		})
		rec.Step(runlog.PhaseChat, started, question, truncate(reply, 200), err)
		if err != nil {
			return err
		}

		history = append(history,
			backend.ChatMessage{Role: "user", Content: question},
			backend.ChatMessage{Role: "assistant", Content: reply},
		)

		if err := w.randomSleep(ctx, w.pacingMin, w.pacingMax); err != nil {
			return err
		}
	}
	return nil
}

func (w *Workflow) donation(ctx context.Context, p *persona.Participant, rec *runlog.Logger) error {
	donated := behavior.DonationDecision(w.rng, p.Persona.Cluster, p.Condition, p.Persona.Drivers)
	decision := "decline"
	if donated {
		decision = "donate"
	}

	req := backend.DonationRequest{
		ParticipantID: p.RemoteID,
		Decision:      decision,
	}
	if cfg := behavior.ChooseDashboard(p.Condition, donated, p.Persona.Drivers); cfg != nil {
		req.Config = cfg
	}

	started := time.Now()
	err := w.resilient.Do(ctx, "donation", func(ctx context.Context) error {
		return w.api.Donation(ctx, req)
	})
	rec.Step(runlog.PhaseDonation, started, fmt.Sprintf("donation decision=%s", decision), "", err)
	return err
}

func (w *Workflow) postMeasures(ctx context.Context, p *persona.Participant, rec *runlog.Logger) error {
	measures := behavior.PostMeasures(w.rng, p.Condition, p.Persona.Drivers)
	req := backend.PostMeasuresRequest{
		ParticipantID: p.RemoteID,
		Measures:      measures,
	}

	started := time.Now()
	err := w.resilient.Do(ctx, "post-measures", func(ctx context.Context) error {
		return w.api.PostMeasures(ctx, req)
	})
	rec.Step(runlog.PhasePostMeasures, started, fmt.Sprintf("post-measures condition=%s", p.Condition), "", err)
	return err
}

// stepDelay inserts the randomized pause between phases.
func (w *Workflow) stepDelay(ctx context.Context) error {
	return w.randomSleep(ctx, w.cfg.MinStepDelay, w.cfg.MaxStepDelay)
}

func (w *Workflow) randomSleep(ctx context.Context, min, max time.Duration) error {
	d := min
	if max > min {
		d += time.Duration(w.rng.Int63n(int64(max - min)))
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
