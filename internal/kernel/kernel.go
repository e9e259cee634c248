// Package kernel defines the client boundary to the external stochastic
// compute kernel. The kernel is an opaque collaborator: it owns the Monte
// Carlo mathematics (volatility modeling, correlated returns, tax
// arithmetic); this service only compiles its input and normalizes its
// output.
package kernel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"retirement-sim-lab/internal/domain"
)

// Simulation mode constants. Replay must request the SAME stochastic mode
// the MC phase used, only pinning the seed; a deterministic/zero-variance
// mode would not reproduce the exemplar path.
const (
	ModeStochastic = "stochastic"
)

// Kernel error taxonomy.
var (
	// ErrUnavailable means the kernel could not be reached or is not
	// loaded. Maps to HTTP 503.
	ErrUnavailable = errors.New("kernel unavailable")

	// ErrParse means the kernel replied with output this service could not
	// decode. Distinct from computation errors for observability.
	ErrParse = errors.New("kernel output malformed")
)

// ComputationError is an error the kernel itself reported while computing.
type ComputationError struct {
	Message string
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("kernel computation error: %s", e.Message)
}

// SimulationInput is the compiled record handed to the kernel for both the
// MC and the replay entry points. For replay, Seed carries the exemplar
// path seed and SimulationMode the mode to force.
type SimulationInput struct {
	InitialAccounts    *domain.AccountHoldings  `json:"initialAccounts"`
	Events             []domain.FinancialEvent  `json:"events"`
	Config             map[string]any           `json:"config,omitempty"`
	MonthsToRun        int                      `json:"monthsToRun"`
	InitialAge         int                      `json:"initialAge"`
	StartYear          int                      `json:"startYear"`
	WithdrawalStrategy string                   `json:"withdrawalStrategy"`
	StrategySettings   map[string]any           `json:"strategySettings,omitempty"`
	CashStrategy       *domain.CashReserveParams `json:"cashStrategy,omitempty"`
	TaxConfig          map[string]any           `json:"taxConfig,omitempty"`
	Seed               int64                    `json:"seed"`
	SimulationMode     string                   `json:"simulationMode,omitempty"`
}

// MCPayload is the kernel's Monte Carlo phase output. Raw carries the
// statistics object untouched; the stats extractor normalizes its shape.
type MCPayload struct {
	Raw            json.RawMessage
	ExemplarPath   *domain.ExemplarPathRef
	SimulationMode string
	PathsRun       int
}

// ReplayResult is the kernel's deterministic single-path output.
type ReplayResult struct {
	MonthlySnapshots      []domain.MonthSnapshot `json:"monthlySnapshots"`
	EventTrace            []domain.TraceEvent    `json:"eventTrace"`
	RealizedPathVariables []float64              `json:"realizedPathVariables"`
	FinalNetWorth         float64                `json:"finalNetWorth"`
	SimulationMode        string                 `json:"simulationMode"`
	Seed                  int64                  `json:"seed"`
}

// Engine is the kernel client interface. Constructed once and injected
// into the orchestrator; calls are stateless with respect to simulation
// inputs, so concurrent requests may issue concurrent calls.
type Engine interface {
	// RunMonteCarlo runs paths randomized paths through the kernel.
	RunMonteCarlo(ctx context.Context, in *SimulationInput, paths int) (*MCPayload, error)

	// RunReplay deterministically replays one path; in.Seed must carry an
	// explicit path seed.
	RunReplay(ctx context.Context, in *SimulationInput) (*ReplayResult, error)

	// Ready reports whether the kernel is loaded and able to compute.
	Ready(ctx context.Context) error
}
