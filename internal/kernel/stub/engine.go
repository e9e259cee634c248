// Package stub provides an in-process, deterministic kernel implementation
// for tests and for running the service without a kernel sidecar. The
// numbers are simplistic by design; only the protocol shape and the
// seed-determinism matter.
package stub

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"

	"retirement-sim-lab/internal/domain"
	"retirement-sim-lab/internal/kernel"
)

// pathSeedStride separates per-path seeds derived from the base seed.
const pathSeedStride = 7919

// Engine is a deterministic stand-in for the external compute kernel.
type Engine struct{}

// NewEngine creates a stub engine.
func NewEngine() *Engine {
	return &Engine{}
}

var _ kernel.Engine = (*Engine)(nil)

// Ready always succeeds: the stub has nothing to load.
func (e *Engine) Ready(_ context.Context) error {
	return nil
}

// RunMonteCarlo simulates paths cheap paths, derives percentile statistics
// and selects the median-terminal-wealth path as the exemplar.
func (e *Engine) RunMonteCarlo(_ context.Context, in *kernel.SimulationInput, paths int) (*kernel.MCPayload, error) {
	if paths <= 0 {
		// Zero paths still yields a payload, but no exemplar is selectable.
		raw, _ := json.Marshal(map[string]any{"mc": map[string]any{"successRate": 0.0}})
		return &kernel.MCPayload{
			Raw:            raw,
			SimulationMode: kernel.ModeStochastic,
			PathsRun:       0,
		}, nil
	}

	type pathResult struct {
		seed     int64
		index    int
		terminal float64
		minCash  float64
		runway   float64
		breached bool
	}

	results := make([]pathResult, paths)
	for i := 0; i < paths; i++ {
		seed := PathSeed(in.Seed, i)
		terminal, minCash, runway, breached := runPath(in, seed)
		results[i] = pathResult{seed: seed, index: i, terminal: terminal,
			minCash: minCash, runway: runway, breached: breached}
	}

	byTerminal := make([]pathResult, paths)
	copy(byTerminal, results)
	sort.Slice(byTerminal, func(i, j int) bool {
		return byTerminal[i].terminal < byTerminal[j].terminal
	})

	terminals := make([]float64, paths)
	minCashes := make([]float64, paths)
	runways := make([]float64, paths)
	successes := 0
	for i, r := range byTerminal {
		terminals[i] = r.terminal
	}
	for i, r := range results {
		minCashes[i] = r.minCash
		runways[i] = r.runway
		if !r.breached {
			successes++
		}
	}
	sort.Float64s(minCashes)
	sort.Float64s(runways)

	median := byTerminal[paths/2]

	mc := map[string]any{
		"p10FinalValue":    percentile(terminals, 0.10),
		"p25FinalValue":    percentile(terminals, 0.25),
		"p50FinalValue":    percentile(terminals, 0.50),
		"p75FinalValue":    percentile(terminals, 0.75),
		"p90FinalValue":    percentile(terminals, 0.90),
		"p10MinimumCash":   percentile(minCashes, 0.10),
		"p50MinimumCash":   percentile(minCashes, 0.50),
		"p90MinimumCash":   percentile(minCashes, 0.90),
		"p10RunwayMonths":  percentile(runways, 0.10),
		"p50RunwayMonths":  percentile(runways, 0.50),
		"p90RunwayMonths":  percentile(runways, 0.90),
		"successRate":      float64(successes) / float64(paths),
	}

	raw, err := json.Marshal(map[string]any{"mc": mc})
	if err != nil {
		return nil, fmt.Errorf("marshal stub payload: %w", err)
	}

	return &kernel.MCPayload{
		Raw: raw,
		ExemplarPath: &domain.ExemplarPathRef{
			PathSeed:           median.seed,
			PathIndex:          median.index,
			SelectionCriterion: "median_terminal_wealth",
			TerminalWealth:     median.terminal,
		},
		SimulationMode: kernel.ModeStochastic,
		PathsRun:       paths,
	}, nil
}

// RunReplay deterministically replays one path from in.Seed, producing the
// full month ledger and event trace.
func (e *Engine) RunReplay(_ context.Context, in *kernel.SimulationInput) (*kernel.ReplayResult, error) {
	rng := rand.New(rand.NewSource(in.Seed))

	cash := 0.0
	investments := 0.0
	if in.InitialAccounts != nil {
		cash = in.InitialAccounts.Cash
		investments = in.InitialAccounts.TotalValue() - cash
	}

	mode := in.SimulationMode
	if mode == "" {
		mode = kernel.ModeStochastic
	}

	months := make([]domain.MonthSnapshot, 0, in.MonthsToRun)
	returns := make([]float64, 0, in.MonthsToRun)
	var trace []domain.TraceEvent

	for m := 0; m < in.MonthsToRun; m++ {
		r := monthlyReturn(rng)
		growth := investments * r
		investments += growth

		income, spending := 0.0, 0.0
		for i := range in.Events {
			ev := &in.Events[i]
			if !eventActive(ev, m, in.MonthsToRun) {
				continue
			}
			if ev.Amount >= 0 && isInflow(ev.Type) {
				income += ev.Amount
			} else if isInflow(ev.Type) {
				spending += -ev.Amount
			} else {
				spending += ev.Amount
			}
			if m == ev.MonthOffset {
				trace = append(trace, domain.TraceEvent{
					MonthIndex:  m,
					EventID:     ev.ID,
					Type:        string(ev.Type),
					Amount:      ev.Amount,
					Description: string(ev.Type) + " starts",
				})
			}
		}

		cash += income - spending
		if cash < 0 && investments > 0 {
			// Liquidate to cover the shortfall where possible.
			draw := -cash
			if draw > investments {
				draw = investments
			}
			investments -= draw
			cash += draw
		}

		months = append(months, domain.MonthSnapshot{
			MonthIndex:       m,
			Year:             in.StartYear + m/12,
			Month:            m%12 + 1,
			Age:              in.InitialAge + m/12,
			NetWorth:         cash + investments,
			Cash:             cash,
			Investments:      investments,
			Income:           income,
			Spending:         spending,
			InvestmentGrowth: growth,
			MarketReturn:     r,
		})
		returns = append(returns, r)
	}

	final := 0.0
	if len(months) > 0 {
		final = months[len(months)-1].NetWorth
	}

	return &kernel.ReplayResult{
		MonthlySnapshots:      months,
		EventTrace:            trace,
		RealizedPathVariables: returns,
		FinalNetWorth:         final,
		SimulationMode:        mode,
		Seed:                  in.Seed,
	}, nil
}

// PathSeed derives the deterministic seed of path index i from the base
// seed. Exposed so tests can predict exemplar seeds.
func PathSeed(base int64, i int) int64 {
	return base + int64(i+1)*pathSeedStride
}

// runPath runs one cheap path and reports its terminal stats.
func runPath(in *kernel.SimulationInput, seed int64) (terminal, minCash, runway float64, breached bool) {
	rng := rand.New(rand.NewSource(seed))

	cash := 0.0
	investments := 0.0
	if in.InitialAccounts != nil {
		cash = in.InitialAccounts.Cash
		investments = in.InitialAccounts.TotalValue() - cash
	}
	minCash = cash
	runway = float64(in.MonthsToRun)

	for m := 0; m < in.MonthsToRun; m++ {
		investments *= 1 + monthlyReturn(rng)

		for i := range in.Events {
			ev := &in.Events[i]
			if !eventActive(ev, m, in.MonthsToRun) {
				continue
			}
			if isInflow(ev.Type) {
				cash += ev.Amount
			} else {
				cash -= ev.Amount
			}
		}

		if cash < 0 && investments > 0 {
			draw := -cash
			if draw > investments {
				draw = investments
			}
			investments -= draw
			cash += draw
		}
		if cash < minCash {
			minCash = cash
		}
		if cash < 0 && !breached {
			breached = true
			runway = float64(m)
		}
	}

	return cash + investments, minCash, runway, breached
}

func monthlyReturn(rng *rand.Rand) float64 {
	return rng.NormFloat64()*0.04 + 0.005
}

func eventActive(ev *domain.FinancialEvent, month, horizon int) bool {
	start, end := ev.ActiveWindow(horizon)
	if ev.Frequency == domain.FrequencyOnce {
		return month == start
	}
	return month >= start && month <= end
}

// isInflow reports whether the event type adds to cash. One-time events
// encode direction in the amount sign and count as inflows here.
func isInflow(t domain.EventType) bool {
	switch t {
	case domain.EventTypeIncome, domain.EventTypeSocialSecurity, domain.EventTypeOneTime:
		return true
	default:
		return false
	}
}

// percentile uses linear interpolation over a pre-sorted slice.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
