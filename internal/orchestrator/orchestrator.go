// Package orchestrator drives one simulation request through its phases:
// compile the plan into kernel input, run the Monte Carlo phase, then
// deterministically replay the exemplar path for trace output.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"retirement-sim-lab/internal/accounts"
	"retirement-sim-lab/internal/domain"
	"retirement-sim-lab/internal/kernel"
	"retirement-sim-lab/internal/observability"
	"retirement-sim-lab/internal/stats"
	"retirement-sim-lab/internal/timeline"
	"retirement-sim-lab/internal/trace"
)

// Outputs that may be blocked on a given run.
const (
	OutputMC               = "mc"
	OutputAnnualSnapshots  = "annualSnapshots"
	OutputFirstMonthEvents = "firstMonthEvents"
	OutputTrace            = "trace"
)

// Options configures the Orchestrator.
type Options struct {
	Engine kernel.Engine
	Logger *log.Logger
}

// Orchestrator runs simulations against an injected kernel engine. Safe for
// concurrent use; each Run is independent.
type Orchestrator struct {
	engine kernel.Engine
	logger *log.Logger
}

// New creates an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[orchestrator] ", log.LstdFlags)
	}
	return &Orchestrator{engine: opts.Engine, logger: logger}, nil
}

// Result is the outcome of one simulation run.
type Result struct {
	// Stats is the normalized Monte Carlo statistics record. Nil when the
	// MC phase was skipped via an explicit path seed.
	Stats *domain.MCStatistics

	// RawPayload is the untouched kernel MC payload.
	RawPayload json.RawMessage

	ExemplarPath *domain.ExemplarPathRef
	BaseSeed     int64
	PathsRun     int
	ReplayMode   bool

	// Replay-derived views, populated according to verbosity.
	AnnualSnapshots  []domain.AnnualSnapshot
	FirstMonthEvents []domain.FirstMonthDigest
	Trace            *domain.TraceData

	// TraceNote explains a degraded result: the replay phase failed or was
	// not possible, but the MC statistics are still valid.
	TraceNote string

	// BlockedOutputs lists output sections unavailable on this run.
	BlockedOutputs []string
}

// Run executes one simulation for a fully normalized plan.
func (o *Orchestrator) Run(ctx context.Context, p *domain.PlanParams) (*Result, error) {
	holdings, err := accounts.Build(p)
	if err != nil {
		return nil, fmt.Errorf("build accounts: %w", err)
	}
	events, err := timeline.Build(p)
	if err != nil {
		return nil, fmt.Errorf("build timeline: %w", err)
	}
	observability.RecordEventsCompiled(len(events))

	if p.PathSeed != nil {
		return o.runExplicitReplay(ctx, p, holdings, events)
	}
	return o.runTwoPhase(ctx, p, holdings, events)
}

// runExplicitReplay handles the caller-pinned seed mode: the MC phase is
// skipped entirely and the single path is replayed directly.
func (o *Orchestrator) runExplicitReplay(ctx context.Context, p *domain.PlanParams,
	holdings *domain.AccountHoldings, events []domain.FinancialEvent) (*Result, error) {

	in := buildInput(p, holdings, events)
	in.Seed = *p.PathSeed
	in.SimulationMode = kernel.ModeStochastic

	o.logger.Printf("replaying explicit path seed %d over %d months", in.Seed, in.MonthsToRun)

	start := time.Now()
	replay, err := o.engine.RunReplay(ctx, in)
	observability.RecordKernelCall("replay", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("replay path seed %d: %w", in.Seed, err)
	}

	res := &Result{
		BaseSeed:       *p.PathSeed,
		PathsRun:       1,
		ReplayMode:     true,
		BlockedOutputs: []string{OutputMC},
	}
	attachReplayViews(res, replay, p.Verbosity)
	return res, nil
}

// runTwoPhase runs the Monte Carlo phase and, unless verbosity is summary,
// replays the exemplar path. Replay problems degrade to MC-only output
// rather than failing the run.
func (o *Orchestrator) runTwoPhase(ctx context.Context, p *domain.PlanParams,
	holdings *domain.AccountHoldings, events []domain.FinancialEvent) (*Result, error) {

	in := buildInput(p, holdings, events)
	in.Seed = p.Seed

	o.logger.Printf("running %d monte carlo paths, seed %d, horizon %d months",
		p.MCPaths, p.Seed, p.HorizonMonths)

	start := time.Now()
	payload, err := o.engine.RunMonteCarlo(ctx, in, p.MCPaths)
	observability.RecordKernelCall("monte_carlo", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("monte carlo phase: %w", err)
	}
	observability.RecordPathsSimulated(payload.PathsRun)

	mcStats, err := stats.Extract(payload.Raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kernel.ErrParse, err)
	}
	if err := stats.Validate(mcStats); err != nil {
		return nil, fmt.Errorf("%w: %v", kernel.ErrParse, err)
	}

	res := &Result{
		Stats:        mcStats,
		RawPayload:   payload.Raw,
		ExemplarPath: payload.ExemplarPath,
		BaseSeed:     p.Seed,
		PathsRun:     payload.PathsRun,
	}

	if p.Verbosity == domain.VerbositySummary {
		return res, nil
	}

	if payload.ExemplarPath == nil {
		observability.RecordReplaySoftFailure("no_exemplar")
		res.TraceNote = "no exemplar path seed was returned by the monte carlo phase; " +
			"retry with an explicit pathSeed to obtain trace output"
		res.BlockedOutputs = replayOutputs(p.Verbosity)
		return res, nil
	}

	// The replay pins the exemplar seed but must request the same
	// stochastic mode the MC phase ran in. A deterministic mode would walk
	// a different path from the same seed.
	mode := payload.SimulationMode
	if mode == "" {
		mode = kernel.ModeStochastic
	}
	replayIn := buildInput(p, holdings, events)
	replayIn.Seed = payload.ExemplarPath.PathSeed
	replayIn.SimulationMode = mode

	start = time.Now()
	replay, err := o.engine.RunReplay(ctx, replayIn)
	observability.RecordKernelCall("replay", time.Since(start).Seconds(), err)
	if err != nil {
		observability.RecordReplaySoftFailure("replay_error")
		o.logger.Printf("replay of exemplar seed %d failed: %v", replayIn.Seed, err)
		res.TraceNote = fmt.Sprintf("replay of the exemplar path failed (%v); "+
			"statistics are unaffected, retry with pathSeed=%d for trace output",
			err, payload.ExemplarPath.PathSeed)
		res.BlockedOutputs = replayOutputs(p.Verbosity)
		return res, nil
	}

	attachReplayViews(res, replay, p.Verbosity)
	return res, nil
}

// buildInput compiles the kernel input record. Seed and SimulationMode are
// set by the caller per phase.
func buildInput(p *domain.PlanParams, holdings *domain.AccountHoldings,
	events []domain.FinancialEvent) *kernel.SimulationInput {

	return &kernel.SimulationInput{
		InitialAccounts:    holdings,
		Events:             events,
		MonthsToRun:        p.HorizonMonths,
		InitialAge:         p.CurrentAge,
		StartYear:          p.StartYear,
		WithdrawalStrategy: p.WithdrawalStrategy,
		StrategySettings:   p.StrategySettings,
		CashStrategy:       p.CashReserve,
		TaxConfig:          p.TaxConfig,
		Config: map[string]any{
			"inflationRate": p.InflationRate,
			"stockRatio":    p.StockRatio,
		},
	}
}

// attachReplayViews derives the verbosity-gated views from a successful
// replay.
func attachReplayViews(res *Result, replay *kernel.ReplayResult, v domain.Verbosity) {
	if v == domain.VerbositySummary {
		return
	}
	res.AnnualSnapshots = trace.AnnualSnapshots(replay)
	res.FirstMonthEvents = trace.FirstMonthDigests(replay)
	if v == domain.VerbosityTrace {
		res.Trace = trace.FullTrace(replay)
	}
}

// replayOutputs lists the outputs a failed replay blocks at verbosity v.
func replayOutputs(v domain.Verbosity) []string {
	out := []string{OutputAnnualSnapshots, OutputFirstMonthEvents}
	if v == domain.VerbosityTrace {
		out = append(out, OutputTrace)
	}
	return out
}
