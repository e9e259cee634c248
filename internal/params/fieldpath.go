package params

import (
	"fmt"
	"strconv"

	"retirement-sim-lab/internal/domain"
)

// fieldSetters maps every accepted dotted field path to its setter. The
// table is the single source of truth for which paths a confirmed change
// may touch; anything else is ErrUnknownFieldPath.
var fieldSetters = map[string]func(*state, any) error{
	"seed": func(st *state, v any) error {
		n, err := asInt64(v)
		if err != nil {
			return err
		}
		st.p.Seed = n
		st.seedSet = true
		return nil
	},
	"startYear": func(st *state, v any) error {
		n, err := asInt(v)
		if err != nil {
			return err
		}
		st.p.StartYear = n
		st.startYearSet = true
		return nil
	},
	"pathSeed": func(st *state, v any) error {
		n, err := asInt64(v)
		if err != nil {
			return err
		}
		st.p.PathSeed = &n
		return nil
	},
	"mcPaths":          intSetter(func(p *domain.PlanParams, n int) { p.MCPaths = n }),
	"horizonMonths":    intSetter(func(p *domain.PlanParams, n int) { p.HorizonMonths = n }),
	"currentAge":       intSetter(func(p *domain.PlanParams, n int) { p.CurrentAge = n }),
	"investableAssets": floatSetter(func(p *domain.PlanParams, f float64) { p.InvestableAssets = f }),
	"annualSpending":   floatSetter(func(p *domain.PlanParams, f float64) { p.AnnualSpending = f }),
	"expectedIncome":   floatSetter(func(p *domain.PlanParams, f float64) { p.ExpectedIncome = f }),
	"inflationRate":    floatSetter(func(p *domain.PlanParams, f float64) { p.InflationRate = f }),
	"stockRatio":       floatSetter(func(p *domain.PlanParams, f float64) { p.StockRatio = f }),
	"debtExtraPayment": floatSetter(func(p *domain.PlanParams, f float64) { p.DebtExtraPayment = f }),
	"verbosity": func(st *state, v any) error {
		s, err := asString(v)
		if err != nil {
			return err
		}
		st.p.Verbosity = domain.Verbosity(s)
		return nil
	},
	"withdrawalStrategy": stringSetter(func(p *domain.PlanParams, s string) { p.WithdrawalStrategy = s }),
	"debtStrategy":       stringSetter(func(p *domain.PlanParams, s string) { p.DebtStrategy = s }),

	"buckets.cash":        floatSetter(func(p *domain.PlanParams, f float64) { p.Buckets.Cash = f }),
	"buckets.taxable":     floatSetter(func(p *domain.PlanParams, f float64) { p.Buckets.Taxable = f }),
	"buckets.taxDeferred": floatSetter(func(p *domain.PlanParams, f float64) { p.Buckets.TaxDeferred = f }),
	"buckets.roth":        floatSetter(func(p *domain.PlanParams, f float64) { p.Buckets.Roth = f }),
	"buckets.hsa":         floatSetter(func(p *domain.PlanParams, f float64) { p.Buckets.HSA = f }),

	"concentration.pct": func(st *state, v any) error {
		f, err := asFloat(v)
		if err != nil {
			return err
		}
		ensureConcentration(&st.p).Pct = f
		return nil
	},
	"concentration.overrideValue": func(st *state, v any) error {
		f, err := asFloat(v)
		if err != nil {
			return err
		}
		ensureConcentration(&st.p).OverrideValue = &f
		return nil
	},

	"cashReserve.targetMonths": func(st *state, v any) error {
		n, err := asInt(v)
		if err != nil {
			return err
		}
		ensureCashReserve(&st.p).TargetMonths = &n
		return nil
	},
	"cashReserve.targetAmount": func(st *state, v any) error {
		f, err := asFloat(v)
		if err != nil {
			return err
		}
		ensureCashReserve(&st.p).TargetAmount = &f
		return nil
	},

	"incomeChange.monthOffset": func(st *state, v any) error {
		n, err := asInt(v)
		if err != nil {
			return err
		}
		ensureIncomeChange(&st.p).MonthOffset = n
		return nil
	},
	"incomeChange.durationMonths": func(st *state, v any) error {
		n, err := asInt(v)
		if err != nil {
			return err
		}
		ensureIncomeChange(&st.p).DurationMonths = &n
		return nil
	},
	"incomeChange.newAnnualAmount": func(st *state, v any) error {
		f, err := asFloat(v)
		if err != nil {
			return err
		}
		ensureIncomeChange(&st.p).NewAnnualAmount = f
		return nil
	},

	"spendingChange.monthOffset": func(st *state, v any) error {
		n, err := asInt(v)
		if err != nil {
			return err
		}
		ensureSpendingChange(&st.p).MonthOffset = n
		return nil
	},
	"spendingChange.durationMonths": func(st *state, v any) error {
		n, err := asInt(v)
		if err != nil {
			return err
		}
		ensureSpendingChange(&st.p).DurationMonths = &n
		return nil
	},
	"spendingChange.newAnnualAmount": func(st *state, v any) error {
		f, err := asFloat(v)
		if err != nil {
			return err
		}
		ensureSpendingChange(&st.p).NewAnnualAmount = f
		return nil
	},

	"socialSecurity.claimingAge": func(st *state, v any) error {
		n, err := asInt(v)
		if err != nil {
			return err
		}
		ensureSocialSecurity(&st.p).ClaimingAge = n
		return nil
	},
	"socialSecurity.monthlyBenefit": func(st *state, v any) error {
		f, err := asFloat(v)
		if err != nil {
			return err
		}
		ensureSocialSecurity(&st.p).MonthlyBenefit = f
		return nil
	},
}

// applyFieldPath applies one confirmed change to the record.
func applyFieldPath(st *state, path string, value any) error {
	setter, ok := fieldSetters[path]
	if !ok {
		return ErrUnknownFieldPath
	}
	return setter(st, value)
}

func intSetter(set func(*domain.PlanParams, int)) func(*state, any) error {
	return func(st *state, v any) error {
		n, err := asInt(v)
		if err != nil {
			return err
		}
		set(&st.p, n)
		return nil
	}
}

func floatSetter(set func(*domain.PlanParams, float64)) func(*state, any) error {
	return func(st *state, v any) error {
		f, err := asFloat(v)
		if err != nil {
			return err
		}
		set(&st.p, f)
		return nil
	}
}

func stringSetter(set func(*domain.PlanParams, string)) func(*state, any) error {
	return func(st *state, v any) error {
		s, err := asString(v)
		if err != nil {
			return err
		}
		set(&st.p, s)
		return nil
	}
}

func ensureConcentration(p *domain.PlanParams) *domain.ConcentrationParams {
	if p.Concentration == nil {
		p.Concentration = &domain.ConcentrationParams{}
	}
	return p.Concentration
}

func ensureCashReserve(p *domain.PlanParams) *domain.CashReserveParams {
	if p.CashReserve == nil {
		p.CashReserve = &domain.CashReserveParams{}
	}
	return p.CashReserve
}

func ensureIncomeChange(p *domain.PlanParams) *domain.RegimeChange {
	if p.IncomeChange == nil {
		p.IncomeChange = &domain.RegimeChange{}
	}
	return p.IncomeChange
}

func ensureSpendingChange(p *domain.PlanParams) *domain.RegimeChange {
	if p.SpendingChange == nil {
		p.SpendingChange = &domain.RegimeChange{}
	}
	return p.SpendingChange
}

func ensureSocialSecurity(p *domain.PlanParams) *domain.SocialSecurityParams {
	if p.SocialSecurity == nil {
		p.SocialSecurity = &domain.SocialSecurityParams{}
	}
	return p.SocialSecurity
}

// JSON decoding delivers numbers as float64 and everything else as string
// or bool. Chat-driven callers also send numerics as strings, so both are
// accepted.
func asFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, fmt.Errorf("parse %q as number: %w", t, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("cannot coerce %T to number", v)
	}
}

func asInt(v any) (int, error) {
	f, err := asFloat(v)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func asInt64(v any) (int64, error) {
	f, err := asFloat(v)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

func asString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("cannot coerce %T to string", v)
	}
	return s, nil
}
