// Command ballotsim drives simulated participants through the Swiss
// ballot chatbot study backend under a global rate budget.
package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/civiclab/ballotsim/pkg/backend"
	"github.com/civiclab/ballotsim/pkg/llm"
	"github.com/civiclab/ballotsim/pkg/persona"
	"github.com/civiclab/ballotsim/pkg/reports"
	"github.com/civiclab/ballotsim/pkg/runner"
	"github.com/civiclab/ballotsim/pkg/store"
	"github.com/civiclab/ballotsim/pkg/throttle"
)

type cliFlags struct {
	participants int
	concurrency  int
	rateLimit    float64
	dryRun       bool
	report       string
	stats        bool
	verbose      bool

	api    string
	outDir string
	dbPath string
	seed   int64
	format string
	model  string
}

func main() {
	flags := &cliFlags{}

	root := &cobra.Command{
		Use:           "ballotsim",
		Short:         "Load-throttled simulated-participant runner for the ballot chatbot study",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, flags)
		},
	}

	root.Flags().IntVar(&flags.participants, "participants", 0, "number of simulated participants (required)")
	root.Flags().IntVar(&flags.concurrency, "concurrency", 10, "worker pool size")
	root.Flags().Float64Var(&flags.rateLimit, "rate-limit", 20, "global request ceiling (req/s)")
	root.Flags().BoolVar(&flags.dryRun, "dry-run", false, "build the population and report its distribution without any remote call")
	root.Flags().StringVar(&flags.report, "report", "", "print the report for a past run id and exit")
	root.Flags().BoolVar(&flags.stats, "stats", false, "print aggregate run-history statistics and exit")
	root.Flags().BoolVar(&flags.verbose, "verbose", false, "enable debug logging")
	root.Flags().StringVar(&flags.api, "api", "http://127.0.0.1:3001", "base URL of the study backend")
	root.Flags().StringVar(&flags.outDir, "out-dir", "runs", "directory for per-participant run records")
	root.Flags().StringVar(&flags.dbPath, "db", "ballotsim.db", "path to the run-history database")
	root.Flags().Int64Var(&flags.seed, "seed", 0, "random seed (0 = time-based)")
	root.Flags().StringVar(&flags.format, "format", "text", "report format: text, json or csv")
	root.Flags().StringVar(&flags.model, "model", "", "Gemini model for question generation (default gemini-2.0-flash)")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, flags *cliFlags) error {
	logger, err := newLogger(flags.verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	switch {
	case flags.report != "":
		return printReport(cmd, flags)
	case flags.stats:
		return printStats(cmd, flags)
	}

	if flags.participants <= 0 {
		cmd.Usage()
		return fmt.Errorf("--participants is required")
	}

	cfg := throttle.DefaultConfig()
	cfg.Concurrency = flags.concurrency
	cfg.RatePerSecond = flags.rateLimit
	if err := cfg.Validate(); err != nil {
		return err
	}

	catalog, err := persona.LoadCatalog()
	if err != nil {
		return err
	}

	runID := uuid.NewString()[:8]
	opts := runner.Options{
		RunID:     runID,
		OutDir:    flags.outDir,
		Catalog:   catalog,
		API:       backend.NewClient(flags.api),
		Questions: newQuestionGenerator(cmd.Context(), flags, logger),
		Logger:    logger,
		Seed:      flags.seed,
	}

	if flags.dryRun {
		orch, err := runner.New(cfg, opts)
		if err != nil {
			return err
		}
		orch.DryRun(flags.participants).Print(os.Stdout)
		return nil
	}

	st, err := store.NewStore(flags.dbPath)
	if err != nil {
		return err
	}
	defer st.Close()
	opts.History = st

	orch, err := runner.New(cfg, opts)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s: %d participants, concurrency %d, rate limit %.0f req/s\n",
		runID, flags.participants, cfg.Concurrency, cfg.RatePerSecond)

	summary, err := orch.Run(context.Background(), flags.participants)
	if err != nil {
		return err
	}

	printSummary(summary)
	fmt.Printf("Run records written to %s\n", filepath.Join(flags.outDir, runID))
	return nil
}

func printSummary(s *runner.Summary) {
	fmt.Printf("\n--- Run Summary: %s ---\n", s.RunID)
	fmt.Printf("Requested: %d | Completed: %d | Failed: %d | Duration: %s\n",
		s.Requested, s.Completed, s.Failed, s.Duration.Round(time.Second))
	fmt.Printf("By condition: %v\n", s.ByCondition)
	fmt.Printf("By cluster:   %v\n", s.ByCluster)
}

func printReport(cmd *cobra.Command, flags *cliFlags) error {
	gen := reports.NewRunReport(filepath.Join(flags.outDir, flags.report))
	reader, err := gen.Generate(cmd.Context(), reports.ReportFormat(flags.format))
	if err != nil {
		return err
	}
	_, err = io.Copy(os.Stdout, reader)
	return err
}

func printStats(cmd *cobra.Command, flags *cliFlags) error {
	st, err := store.NewStore(flags.dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	totals, err := st.Stats(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Runs: %d | Participants: %d | Completed: %d | Failed: %d\n",
		totals.Runs, totals.Requested, totals.Completed, totals.Failed)

	gen := reports.NewHistoryReport(st, 20)
	reader, err := gen.Generate(cmd.Context(), reports.ReportFormat(flags.format))
	if err != nil {
		return err
	}
	_, err = io.Copy(os.Stdout, reader)
	return err
}

// newQuestionGenerator prefers Gemini when a key is configured and
// falls back to the deterministic template generator otherwise.
func newQuestionGenerator(ctx context.Context, flags *cliFlags, logger *zap.Logger) llm.QuestionGenerator {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey != "" {
		gen, err := llm.NewGeminiGenerator(ctx, apiKey, flags.model)
		if err == nil {
			return gen
		}
		logger.Warn("falling back to template questions", zap.Error(err))
	}
	seed := flags.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return llm.NewTemplateGenerator(rand.New(rand.NewSource(seed)))
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		cfg.Development = true
	}
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}
