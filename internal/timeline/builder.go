// Package timeline expands regime-style plan parameters into a flat list
// of discrete, horizon-clamped financial events. Active windows of regime
// events never gap or overlap within [0, horizonMonths).
package timeline

import (
	"fmt"

	"retirement-sim-lab/internal/domain"
)

// Build compiles the full event timeline for a plan. Events are created
// once per compile and treated as immutable afterwards.
func Build(p *domain.PlanParams) ([]domain.FinancialEvent, error) {
	horizon := p.HorizonMonths

	var events []domain.FinancialEvent
	events = append(events, buildIncomeEvents(p, horizon)...)
	events = append(events, buildSpendingEvents(p, horizon)...)
	events = append(events, buildOneTimeEvents(p, horizon)...)
	events = append(events, buildHealthcareEvents(p, horizon)...)
	events = append(events, buildContributionEvents(p, horizon)...)
	events = append(events, buildSocialSecurityEvents(p, horizon)...)
	events = append(events, buildRothConversionEvents(p, horizon)...)
	events = append(events, buildDebtEvents(p, horizon)...)

	if err := validateEvents(events, horizon); err != nil {
		return nil, err
	}
	return events, nil
}

// validateEvents asserts the compile-wide invariants:
//
//	0 <= monthOffset < horizon
//	monthOffset <= endDateOffset < horizon (when endDateOffset is set)
func validateEvents(events []domain.FinancialEvent, horizon int) error {
	for i := range events {
		e := &events[i]
		if e.MonthOffset < 0 || e.MonthOffset >= horizon {
			return fmt.Errorf("event %s: monthOffset %d outside [0, %d)",
				e.ID, e.MonthOffset, horizon)
		}
		if end := e.Metadata.EndDateOffset; end != nil {
			if *end < e.MonthOffset || *end >= horizon {
				return fmt.Errorf("event %s: endDateOffset %d outside [%d, %d)",
					e.ID, *end, e.MonthOffset, horizon)
			}
		}
	}
	return nil
}

func intPtr(v int) *int { return &v }
