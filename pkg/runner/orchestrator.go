package runner

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/civiclab/ballotsim/pkg/backend"
	"github.com/civiclab/ballotsim/pkg/llm"
	"github.com/civiclab/ballotsim/pkg/persona"
	"github.com/civiclab/ballotsim/pkg/runlog"
	"github.com/civiclab/ballotsim/pkg/throttle"
)

// Summary is the run-level result computed once at the end of Run.
type Summary struct {
	RunID       string         `json:"runId"`
	Requested   int            `json:"requested"`
	Completed   int            `json:"completed"`
	Failed      int            `json:"failed"`
	StartedAt   time.Time      `json:"startedAt"`
	Duration    time.Duration  `json:"duration"`
	ByCondition map[string]int `json:"byCondition"`
	ByCluster   map[string]int `json:"byCluster"`
}

// SummaryStore persists run summaries for later `--stats` queries.
type SummaryStore interface {
	SaveSummary(ctx context.Context, s Summary) error
}

// Options wires the orchestrator's collaborators. Limiter and Breaker
// are injected so tests can substitute deterministic fakes; when nil
// they are built from the config.
type Options struct {
	RunID     string
	OutDir    string
	Catalog   *persona.Catalog
	API       *backend.Client
	Questions llm.QuestionGenerator
	Limiter   *throttle.RateLimiter
	Breaker   *throttle.CircuitBreaker
	History   SummaryStore
	Logger    *zap.Logger
	Progress  io.Writer
	Seed      int64

	// Chat pacing bounds; zero values fall back to the 1-3s default.
	ChatPacingMin time.Duration
	ChatPacingMax time.Duration
}

// Orchestrator owns the worker pool and the shared work queue. All
// workers share one rate limiter and one circuit breaker; those two are
// the only cross-worker synchronization points besides the aggregate
// counters.
type Orchestrator struct {
	cfg       throttle.Config
	opts      Options
	limiter   *throttle.RateLimiter
	breaker   *throttle.CircuitBreaker
	resilient *throttle.Client
	generator *persona.Generator
	logger    *zap.Logger
	progress  io.Writer
	seed      int64

	completed atomic.Int64
	failed    atomic.Int64
	active    atomic.Int64

	tallyMu     sync.Mutex
	byCondition map[string]int
	byCluster   map[string]int
}

// New validates the configuration and assembles an orchestrator. A
// malformed configuration is the one error class allowed to abort the
// whole run, so it is rejected here rather than recovered later.
func New(cfg throttle.Config, opts Options) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid throttle config: %w", err)
	}
	if opts.Catalog == nil {
		return nil, fmt.Errorf("persona catalog is required")
	}
	if opts.API == nil {
		return nil, fmt.Errorf("backend client is required")
	}
	if opts.Questions == nil {
		return nil, fmt.Errorf("question generator is required")
	}
	if opts.RunID == "" {
		return nil, fmt.Errorf("run id is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Progress == nil {
		opts.Progress = os.Stdout
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}

	limiter := opts.Limiter
	if limiter == nil {
		limiter = throttle.NewRateLimiter(cfg.RatePerSecond)
	}
	breaker := opts.Breaker
	if breaker == nil {
		breaker = throttle.NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown)
	}

	o := &Orchestrator{
		cfg:         cfg,
		opts:        opts,
		limiter:     limiter,
		breaker:     breaker,
		generator:   persona.NewGenerator(opts.Catalog, rand.New(rand.NewSource(opts.Seed))),
		logger:      opts.Logger,
		progress:    opts.Progress,
		seed:        opts.Seed,
		byCondition: make(map[string]int),
		byCluster:   make(map[string]int),
	}
	o.resilient = throttle.NewClient(limiter, breaker, throttle.NewBackoff(cfg.BackoffBase, cfg.BackoffMax), opts.Logger)

	if breaker.OnStateChange == nil {
		breaker.OnStateChange = func(s throttle.BreakerState) {
			if s == throttle.BreakerOpen {
				fmt.Fprintf(o.progress, "[BREAKER] circuit opened after %d consecutive failures; pausing all workers for up to %s\n",
					cfg.BreakerThreshold, cfg.BreakerCooldown)
			} else {
				fmt.Fprintf(o.progress, "[BREAKER] cooldown elapsed; circuit closed, resuming calls\n")
			}
		}
	}
	return o, nil
}

// Run builds the population and drives it to completion through the
// worker pool. It returns once every worker has terminated; individual
// participant failures never propagate past the worker boundary.
func (o *Orchestrator) Run(ctx context.Context, n int) (*Summary, error) {
	population := o.generator.Generate(n)
	q := &workQueue{items: population}
	runDir := filepath.Join(o.opts.OutDir, o.opts.RunID)
	started := time.Now()

	o.logger.Info("run starting",
		zap.String("run_id", o.opts.RunID),
		zap.Int("participants", n),
		zap.Int("concurrency", o.cfg.Concurrency),
		zap.Float64("rate_per_second", o.cfg.RatePerSecond))

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < o.cfg.Concurrency; i++ {
		workerID := i
		g.Go(func() error {
			o.worker(ctx, workerID, q, runDir, n, started)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &Summary{
		RunID:       o.opts.RunID,
		Requested:   n,
		Completed:   int(o.completed.Load()),
		Failed:      int(o.failed.Load()),
		StartedAt:   started.UTC(),
		Duration:    time.Since(started),
		ByCondition: o.copyTally(o.byCondition),
		ByCluster:   o.copyTally(o.byCluster),
	}

	if o.opts.History != nil {
		if err := o.opts.History.SaveSummary(context.Background(), *summary); err != nil {
			o.logger.Warn("failed to persist run summary", zap.Error(err))
		}
	}
	return summary, nil
}

// worker loops: pop one unit, run its workflow, update the shared
// tallies. It terminates when the queue is empty.
func (o *Orchestrator) worker(ctx context.Context, workerID int, q *workQueue, runDir string, total int, started time.Time) {
	rng := rand.New(rand.NewSource(o.seed + int64(workerID)*1000 + 1))
	wf := NewWorkflow(o.cfg, o.resilient, o.opts.API, o.opts.Questions, rng, o.logger, o.opts.RunID)
	if o.opts.ChatPacingMin > 0 {
		wf.pacingMin = o.opts.ChatPacingMin
	}
	if o.opts.ChatPacingMax > 0 {
		wf.pacingMax = o.opts.ChatPacingMax
	}

	for {
		if ctx.Err() != nil {
			return
		}
		p, ok := q.pop()
		if !ok {
			return
		}

		o.active.Add(1)
		rec := runlog.NewLogger(runDir, o.opts.RunID, p.Persona.ID, string(p.Persona.Cluster))
		err := wf.Run(ctx, p, rec)
		o.active.Add(-1)

		if err != nil {
			o.failed.Add(1)
			if sealErr := rec.Fail(err); sealErr != nil {
				o.logger.Warn("failed to seal run record", zap.Error(sealErr))
			}
			fmt.Fprintf(o.progress, "[FAIL] %s: %v\n", p.Persona.ID, err)
		} else {
			o.completed.Add(1)
			if sealErr := rec.Complete(); sealErr != nil {
				o.logger.Warn("failed to seal run record", zap.Error(sealErr))
			}
			o.tally(p)
		}

		done := int(o.completed.Load() + o.failed.Load())
		if done%10 == 0 && done > 0 {
			elapsed := time.Since(started)
			rate := float64(done) / elapsed.Seconds()
			remaining := time.Duration(float64(total-done) / rate * float64(time.Second))
			fmt.Fprintf(o.progress, "[%d/%d] completed=%d failed=%d elapsed=%s eta=%s\n",
				done, total, o.completed.Load(), o.failed.Load(),
				elapsed.Round(time.Second), remaining.Round(time.Second))
		}
	}
}

func (o *Orchestrator) tally(p *persona.Participant) {
	o.tallyMu.Lock()
	defer o.tallyMu.Unlock()
	if p.Condition != "" {
		o.byCondition[p.Condition]++
	}
	o.byCluster[string(p.Persona.Cluster)]++
}

func (o *Orchestrator) copyTally(m map[string]int) map[string]int {
	o.tallyMu.Lock()
	defer o.tallyMu.Unlock()
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// workQueue is the shared FIFO the pool drains. Pop is a non-blocking
// check; an empty queue terminates the calling worker.
type workQueue struct {
	mu    sync.Mutex
	items []*persona.Participant
}

func (q *workQueue) pop() (*persona.Participant, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	p := q.items[0]
	q.items = q.items[1:]
	return p, true
}
