// Package params resolves a user-facing simulate request into one canonical
// parameter record with every optional field defaulted. Direct request
// fields always take precedence over values extracted from confirmed
// field-path changes.
package params

import (
	"fmt"
	"math"

	"retirement-sim-lab/internal/domain"
)

// Defaults applied when the caller leaves a field unset.
const (
	DefaultHorizonMonths = 360
	DefaultMCPaths       = 100
	DefaultStockRatio    = 0.70
)

// DefaultVerbosity is applied when the request names none.
const DefaultVerbosity = domain.VerbosityAnnual

// state tracks the record under construction plus set-ness of the two
// hard-required fields, which can arrive via either channel.
type state struct {
	p            domain.PlanParams
	seedSet      bool
	startYearSet bool
}

// Normalize resolves req into a canonical PlanParams. Resolution order:
// defaults, then confirmed changes, then direct fields (highest priority).
// A missing seed or startYear is a hard validation failure.
func Normalize(req *domain.SimulateRequest) (*domain.PlanParams, error) {
	if req == nil {
		return nil, &MissingInputError{Field: "packetBuildRequest"}
	}

	st := &state{
		p: domain.PlanParams{
			MCPaths:            DefaultMCPaths,
			HorizonMonths:      DefaultHorizonMonths,
			Verbosity:          DefaultVerbosity,
			StockRatio:         DefaultStockRatio,
			Buckets:            domain.DefaultBuckets,
			WithdrawalStrategy: domain.WithdrawalTaxEfficient,
		},
	}

	for _, ch := range req.ConfirmedChanges {
		if err := applyFieldPath(st, ch.FieldPath, ch.NewValue); err != nil {
			return nil, fmt.Errorf("confirmed change %q: %w", ch.FieldPath, err)
		}
	}

	applyDirect(st, req)

	if !st.seedSet {
		return nil, &MissingInputError{Field: "seed"}
	}
	if !st.startYearSet {
		return nil, &MissingInputError{Field: "startYear"}
	}

	if err := validate(&st.p); err != nil {
		return nil, err
	}

	return &st.p, nil
}

// applyDirect copies every present direct field onto the record,
// overriding anything a confirmed change set.
func applyDirect(st *state, req *domain.SimulateRequest) {
	p := &st.p

	if req.Seed != nil {
		p.Seed = *req.Seed
		st.seedSet = true
	}
	if req.StartYear != nil {
		p.StartYear = *req.StartYear
		st.startYearSet = true
	}
	if req.PathSeed != nil {
		v := *req.PathSeed
		p.PathSeed = &v
	}
	if req.MCPaths != nil {
		p.MCPaths = *req.MCPaths
	}
	if req.HorizonMonths != nil {
		p.HorizonMonths = *req.HorizonMonths
	}
	if req.Verbosity != "" {
		p.Verbosity = req.Verbosity
	}
	if req.CurrentAge != nil {
		p.CurrentAge = *req.CurrentAge
	}
	if req.InvestableAssets != nil {
		p.InvestableAssets = *req.InvestableAssets
	}
	if req.AnnualSpending != nil {
		p.AnnualSpending = *req.AnnualSpending
	}
	if req.ExpectedIncome != nil {
		p.ExpectedIncome = *req.ExpectedIncome
	}
	if req.InflationRate != nil {
		p.InflationRate = *req.InflationRate
	}
	if req.StockRatio != nil {
		p.StockRatio = *req.StockRatio
	}
	if req.CustomAllocation != nil {
		p.CustomAllocation = req.CustomAllocation
	}
	if req.Buckets != nil {
		p.Buckets = *req.Buckets
	}
	if req.Concentration != nil {
		c := *req.Concentration
		p.Concentration = &c
	}
	if req.WithdrawalStrategy != "" {
		p.WithdrawalStrategy = req.WithdrawalStrategy
	}
	if req.StrategySettings != nil {
		p.StrategySettings = req.StrategySettings
	}
	if req.CashReserve != nil {
		c := *req.CashReserve
		p.CashReserve = &c
	}
	if req.IncomeChange != nil {
		c := *req.IncomeChange
		p.IncomeChange = &c
	}
	if req.SpendingChange != nil {
		c := *req.SpendingChange
		p.SpendingChange = &c
	}
	if req.OneTimeEvents != nil {
		p.OneTimeEvents = req.OneTimeEvents
	}
	if req.Healthcare != nil {
		h := *req.Healthcare
		p.Healthcare = &h
	}
	if req.Contribution != nil {
		c := *req.Contribution
		p.Contribution = &c
	}
	if req.SocialSecurity != nil {
		s := *req.SocialSecurity
		p.SocialSecurity = &s
	}
	if req.RothConversions != nil {
		p.RothConversions = req.RothConversions
	}
	if req.Debts != nil {
		p.Debts = req.Debts
	}
	if req.DebtStrategy != "" {
		p.DebtStrategy = req.DebtStrategy
	}
	if req.DebtExtraPayment != nil {
		p.DebtExtraPayment = *req.DebtExtraPayment
	}
	if req.TaxConfig != nil {
		p.TaxConfig = req.TaxConfig
	}
}

// validate rejects malformed canonical records before any kernel work.
func validate(p *domain.PlanParams) error {
	nonNegative := map[string]float64{
		"investableAssets": p.InvestableAssets,
		"annualSpending":   p.AnnualSpending,
		"expectedIncome":   p.ExpectedIncome,
		"stockRatio":       p.StockRatio,
		"debtExtraPayment": p.DebtExtraPayment,
	}
	for name, v := range nonNegative {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: %s=%v", ErrInvalidNumeric, name, v)
		}
	}

	if p.HorizonMonths <= 0 {
		return fmt.Errorf("%w: horizonMonths=%d", ErrInvalidNumeric, p.HorizonMonths)
	}
	if p.MCPaths < 0 {
		return fmt.Errorf("%w: mcPaths=%d", ErrInvalidNumeric, p.MCPaths)
	}
	if p.StockRatio > 1 {
		return fmt.Errorf("%w: stockRatio=%v must be in [0,1]", ErrInvalidNumeric, p.StockRatio)
	}

	switch p.Verbosity {
	case domain.VerbositySummary, domain.VerbosityAnnual, domain.VerbosityTrace:
	default:
		return fmt.Errorf("%w: verbosity=%q", ErrInvalidNumeric, p.Verbosity)
	}

	if p.CashReserve != nil &&
		p.CashReserve.TargetMonths != nil && p.CashReserve.TargetAmount != nil {
		return ErrCashReserveConflict
	}

	for name, ch := range map[string]*domain.RegimeChange{
		"incomeChange":   p.IncomeChange,
		"spendingChange": p.SpendingChange,
	} {
		if ch == nil {
			continue
		}
		if ch.MonthOffset < 0 {
			return fmt.Errorf("%w: %s.monthOffset=%d", ErrInvalidNumeric, name, ch.MonthOffset)
		}
		if ch.DurationMonths != nil && *ch.DurationMonths <= 0 {
			return fmt.Errorf("%w: %s.durationMonths=%d", ErrInvalidNumeric, name, *ch.DurationMonths)
		}
	}

	for _, d := range p.Debts {
		if math.IsNaN(d.Balance) || d.Balance < 0 {
			return fmt.Errorf("%w: debt %q balance=%v", ErrInvalidNumeric, d.Name, d.Balance)
		}
		if math.IsNaN(d.MinimumPayment) || d.MinimumPayment < 0 {
			return fmt.Errorf("%w: debt %q minimumPayment=%v", ErrInvalidNumeric, d.Name, d.MinimumPayment)
		}
	}

	return nil
}
