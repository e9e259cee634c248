package timeline

import (
	"fmt"

	"retirement-sim-lab/internal/domain"
)

// buildIncomeEvents expands the income regimes.
func buildIncomeEvents(p *domain.PlanParams, horizon int) []domain.FinancialEvent {
	return buildRegimeEvents(regimeSpec{
		idPrefix:       "income-regime",
		eventType:      domain.EventTypeIncome,
		taxProfile:     domain.TaxProfileOrdinaryIncome,
		driverKey:      domain.DriverIncome,
		applyInflation: false,
	}, p.ExpectedIncome, p.IncomeChange, horizon)
}

// buildSpendingEvents expands the spending regimes. Spending tracks
// inflation.
func buildSpendingEvents(p *domain.PlanParams, horizon int) []domain.FinancialEvent {
	return buildRegimeEvents(regimeSpec{
		idPrefix:       "spending-regime",
		eventType:      domain.EventTypeSpending,
		taxProfile:     domain.TaxProfileNone,
		driverKey:      domain.DriverSpending,
		applyInflation: true,
	}, p.AnnualSpending, p.SpendingChange, horizon)
}

type regimeSpec struct {
	idPrefix       string
	eventType      domain.EventType
	taxProfile     domain.TaxProfile
	driverKey      domain.DriverKey
	applyInflation bool
}

// buildRegimeEvents emits up to three contiguous events that partition
// [0, horizon) with no gap and no overlap:
//
//	regime 1: [0, c-1]        baseline, omitted when c == 0
//	regime 2: [c, gapEnd-1]   changed amount, gapEnd = min(c+duration, horizon)
//	regime 3: [gapEnd, h-1]   baseline resumes; only with a finite duration,
//	                          gapEnd < horizon, and a positive baseline
//
// With no change declared (or a change at/after the horizon) a single
// full-horizon baseline event is emitted.
func buildRegimeEvents(spec regimeSpec, baselineAnnual float64, change *domain.RegimeChange, horizon int) []domain.FinancialEvent {
	baselineMonthly := baselineAnnual / 12

	if change == nil || change.MonthOffset >= horizon {
		if baselineAnnual <= 0 {
			return nil
		}
		return []domain.FinancialEvent{
			regimeEvent(spec, 1, 0, horizon-1, baselineMonthly),
		}
	}

	c := change.MonthOffset
	if c < 0 {
		c = 0
	}

	gapEnd := horizon
	if change.DurationMonths != nil {
		gapEnd = c + *change.DurationMonths
		if gapEnd > horizon {
			gapEnd = horizon
		}
	}

	var events []domain.FinancialEvent
	if c > 0 {
		events = append(events, regimeEvent(spec, 1, 0, c-1, baselineMonthly))
	}
	events = append(events, regimeEvent(spec, 2, c, gapEnd-1, change.NewAnnualAmount/12))
	if change.DurationMonths != nil && gapEnd < horizon && baselineAnnual > 0 {
		events = append(events, regimeEvent(spec, 3, gapEnd, horizon-1, baselineMonthly))
	}
	return events
}

func regimeEvent(spec regimeSpec, n, start, end int, monthly float64) domain.FinancialEvent {
	return domain.FinancialEvent{
		ID:          fmt.Sprintf("%s-%d", spec.idPrefix, n),
		Type:        spec.eventType,
		MonthOffset: start,
		Amount:      monthly,
		Frequency:   domain.FrequencyMonthly,
		TaxProfile:  spec.taxProfile,
		DriverKey:   spec.driverKey,
		Metadata: domain.EventMetadata{
			EndDateOffset:  intPtr(end),
			ApplyInflation: spec.applyInflation,
		},
	}
}
