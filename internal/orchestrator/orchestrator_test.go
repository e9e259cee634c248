package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"retirement-sim-lab/internal/domain"
	"retirement-sim-lab/internal/kernel"
)

// fakeEngine records calls and returns scripted results.
type fakeEngine struct {
	mcPayload *kernel.MCPayload
	mcErr     error
	replayRes *kernel.ReplayResult
	replayErr error

	mcCalls     int
	replayCalls int
	lastMCIn    *kernel.SimulationInput
	lastMCPaths int
	lastReplay  *kernel.SimulationInput
}

func (f *fakeEngine) RunMonteCarlo(_ context.Context, in *kernel.SimulationInput, paths int) (*kernel.MCPayload, error) {
	f.mcCalls++
	f.lastMCIn = in
	f.lastMCPaths = paths
	if f.mcErr != nil {
		return nil, f.mcErr
	}
	return f.mcPayload, nil
}

func (f *fakeEngine) RunReplay(_ context.Context, in *kernel.SimulationInput) (*kernel.ReplayResult, error) {
	f.replayCalls++
	f.lastReplay = in
	if f.replayErr != nil {
		return nil, f.replayErr
	}
	return f.replayRes, nil
}

func (f *fakeEngine) Ready(context.Context) error { return nil }

func goodPayload(exemplar *domain.ExemplarPathRef, mode string) *kernel.MCPayload {
	return &kernel.MCPayload{
		Raw:            json.RawMessage(`{"mc":{"p50FinalValue":900000,"successRate":0.9}}`),
		ExemplarPath:   exemplar,
		SimulationMode: mode,
		PathsRun:       100,
	}
}

func goodReplay(seed int64) *kernel.ReplayResult {
	return &kernel.ReplayResult{
		MonthlySnapshots: []domain.MonthSnapshot{
			{MonthIndex: 0, Year: 2026, Month: 1, Age: 55, NetWorth: 1000000, InvestmentGrowth: 5000},
		},
		EventTrace:     []domain.TraceEvent{{MonthIndex: 0, EventID: "income-regime-1"}},
		FinalNetWorth:  1000000,
		SimulationMode: kernel.ModeStochastic,
		Seed:           seed,
	}
}

func testPlan() *domain.PlanParams {
	return &domain.PlanParams{
		Seed:               42,
		StartYear:          2026,
		MCPaths:            100,
		HorizonMonths:      360,
		Verbosity:          domain.VerbosityAnnual,
		CurrentAge:         55,
		InvestableAssets:   1200000,
		ExpectedIncome:     120000,
		AnnualSpending:     80000,
		StockRatio:         0.7,
		Buckets:            domain.DefaultBuckets,
		WithdrawalStrategy: domain.WithdrawalTaxEfficient,
	}
}

func newTestOrchestrator(t *testing.T, eng kernel.Engine) *Orchestrator {
	t.Helper()
	o, err := New(Options{Engine: eng})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

func TestRun_TwoPhase(t *testing.T) {
	eng := &fakeEngine{
		mcPayload: goodPayload(&domain.ExemplarPathRef{PathSeed: 9001, PathIndex: 42}, kernel.ModeStochastic),
		replayRes: goodReplay(9001),
	}
	o := newTestOrchestrator(t, eng)

	res, err := o.Run(context.Background(), testPlan())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if eng.mcCalls != 1 || eng.replayCalls != 1 {
		t.Errorf("calls mc=%d replay=%d, want 1/1", eng.mcCalls, eng.replayCalls)
	}
	if eng.lastMCPaths != 100 || eng.lastMCIn.Seed != 42 {
		t.Errorf("mc called with paths=%d seed=%d", eng.lastMCPaths, eng.lastMCIn.Seed)
	}
	if res.ReplayMode {
		t.Error("replayMode must be false for a two-phase run")
	}
	if res.BaseSeed != 42 || res.PathsRun != 100 {
		t.Errorf("baseSeed=%d pathsRun=%d, want 42/100", res.BaseSeed, res.PathsRun)
	}
	if res.Stats == nil || res.Stats.SuccessRate == nil || *res.Stats.SuccessRate != 0.9 {
		t.Errorf("stats not extracted: %+v", res.Stats)
	}
	if len(res.AnnualSnapshots) == 0 || len(res.FirstMonthEvents) == 0 {
		t.Error("annual verbosity must yield annual snapshots and first-month digests")
	}
	if res.Trace != nil {
		t.Error("full trace must require trace verbosity")
	}
	if res.TraceNote != "" {
		t.Errorf("unexpected traceNote %q", res.TraceNote)
	}
}

func TestRun_ReplayPinsSeedAndKeepsMode(t *testing.T) {
	// The MC phase reports its mode; the replay must carry the exemplar
	// seed and that exact mode, never a different one.
	eng := &fakeEngine{
		mcPayload: goodPayload(&domain.ExemplarPathRef{PathSeed: 777}, "stochastic"),
		replayRes: goodReplay(777),
	}
	o := newTestOrchestrator(t, eng)

	if _, err := o.Run(context.Background(), testPlan()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if eng.lastReplay.Seed != 777 {
		t.Errorf("replay seed %d, want exemplar seed 777", eng.lastReplay.Seed)
	}
	if eng.lastReplay.SimulationMode != "stochastic" {
		t.Errorf("replay mode %q, want the mode the mc phase reported", eng.lastReplay.SimulationMode)
	}
}

func TestRun_ExplicitPathSeedSkipsMC(t *testing.T) {
	eng := &fakeEngine{replayRes: goodReplay(777)}
	o := newTestOrchestrator(t, eng)

	p := testPlan()
	seed := int64(777)
	p.PathSeed = &seed

	res, err := o.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if eng.mcCalls != 0 {
		t.Errorf("explicit pathSeed must skip the mc phase, got %d calls", eng.mcCalls)
	}
	if eng.lastReplay.Seed != 777 || eng.lastReplay.SimulationMode != kernel.ModeStochastic {
		t.Errorf("replay input seed=%d mode=%q", eng.lastReplay.Seed, eng.lastReplay.SimulationMode)
	}
	if !res.ReplayMode || res.PathsRun != 1 || res.BaseSeed != 777 {
		t.Errorf("replayMode=%v pathsRun=%d baseSeed=%d, want true/1/777",
			res.ReplayMode, res.PathsRun, res.BaseSeed)
	}
	if res.Stats != nil {
		t.Error("no mc statistics exist in explicit replay mode")
	}
	if len(res.BlockedOutputs) != 1 || res.BlockedOutputs[0] != OutputMC {
		t.Errorf("blockedOutputs %v, want [mc]", res.BlockedOutputs)
	}
}

func TestRun_SummaryVerbositySkipsReplay(t *testing.T) {
	eng := &fakeEngine{
		mcPayload: goodPayload(&domain.ExemplarPathRef{PathSeed: 9001}, kernel.ModeStochastic),
	}
	o := newTestOrchestrator(t, eng)

	p := testPlan()
	p.Verbosity = domain.VerbositySummary

	res, err := o.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eng.replayCalls != 0 {
		t.Errorf("summary verbosity must never enter replay, got %d calls", eng.replayCalls)
	}
	if res.Stats == nil || res.TraceNote != "" {
		t.Errorf("summary run must still carry stats cleanly: stats=%v note=%q", res.Stats, res.TraceNote)
	}
}

func TestRun_NoExemplarSoftFailure(t *testing.T) {
	eng := &fakeEngine{mcPayload: goodPayload(nil, kernel.ModeStochastic)}
	o := newTestOrchestrator(t, eng)

	res, err := o.Run(context.Background(), testPlan())
	if err != nil {
		t.Fatalf("missing exemplar must not fail the run: %v", err)
	}

	if eng.replayCalls != 0 {
		t.Error("replay must not run without an exemplar seed")
	}
	if res.Stats == nil {
		t.Error("mc statistics must survive the soft failure")
	}
	if !strings.Contains(res.TraceNote, "pathSeed") {
		t.Errorf("traceNote must suggest an explicit pathSeed retry, got %q", res.TraceNote)
	}
	if len(res.BlockedOutputs) == 0 {
		t.Error("blocked outputs must list the unavailable replay views")
	}
}

func TestRun_ReplayFailureSoftFailure(t *testing.T) {
	eng := &fakeEngine{
		mcPayload: goodPayload(&domain.ExemplarPathRef{PathSeed: 9001}, kernel.ModeStochastic),
		replayErr: &kernel.ComputationError{Message: "replay entry point disabled"},
	}
	o := newTestOrchestrator(t, eng)

	res, err := o.Run(context.Background(), testPlan())
	if err != nil {
		t.Fatalf("replay failure must not fail the run: %v", err)
	}
	if res.Stats == nil || res.Stats.SuccessRate == nil {
		t.Error("mc statistics must survive a replay failure")
	}
	if !strings.Contains(res.TraceNote, "9001") {
		t.Errorf("traceNote must carry the exemplar seed workaround, got %q", res.TraceNote)
	}
	if len(res.AnnualSnapshots) != 0 || res.Trace != nil {
		t.Error("no replay views may be emitted after a failed replay")
	}
}

func TestRun_MCUnavailableIsHardFailure(t *testing.T) {
	eng := &fakeEngine{mcErr: kernel.ErrUnavailable}
	o := newTestOrchestrator(t, eng)

	_, err := o.Run(context.Background(), testPlan())
	if !errors.Is(err, kernel.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestRun_UnparsableStatsIsHardFailure(t *testing.T) {
	eng := &fakeEngine{
		mcPayload: &kernel.MCPayload{
			Raw:            json.RawMessage(`{"nothing":"here"}`),
			SimulationMode: kernel.ModeStochastic,
			PathsRun:       100,
		},
	}
	o := newTestOrchestrator(t, eng)

	_, err := o.Run(context.Background(), testPlan())
	if !errors.Is(err, kernel.ErrParse) {
		t.Errorf("expected ErrParse, got %v", err)
	}
}

func TestRun_TraceVerbosityYieldsFullTrace(t *testing.T) {
	eng := &fakeEngine{
		mcPayload: goodPayload(&domain.ExemplarPathRef{PathSeed: 9001}, kernel.ModeStochastic),
		replayRes: goodReplay(9001),
	}
	o := newTestOrchestrator(t, eng)

	p := testPlan()
	p.Verbosity = domain.VerbosityTrace

	res, err := o.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Trace == nil {
		t.Fatal("trace verbosity must yield the full month ledger")
	}
	if res.Trace.Seed != 9001 {
		t.Errorf("trace seed %d, want 9001", res.Trace.Seed)
	}
}

func TestNew_RequiresEngine(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("expected error without an engine")
	}
}
