package timeline

import (
	"fmt"
	"math"
	"sort"

	"retirement-sim-lab/internal/domain"
)

// sortDebts orders debts by payoff strategy: avalanche by interest rate
// descending, snowball by balance ascending. The input is not mutated.
func sortDebts(debts []domain.DebtParams, strategy string) []domain.DebtParams {
	sorted := make([]domain.DebtParams, len(debts))
	copy(sorted, debts)

	switch strategy {
	case domain.DebtStrategySnowball:
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Balance < sorted[j].Balance
		})
	default: // avalanche
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].InterestRate > sorted[j].InterestRate
		})
	}
	return sorted
}

// buildDebtEvents emits one monthly minimum-payment event per debt, ending
// at min(remainingMonths ?? ceil(balance/minimumPayment), horizon), plus a
// single extra-payment event against the first debt in strategy order.
func buildDebtEvents(p *domain.PlanParams, horizon int) []domain.FinancialEvent {
	if len(p.Debts) == 0 {
		return nil
	}

	sorted := sortDebts(p.Debts, p.DebtStrategy)

	var events []domain.FinancialEvent
	for i, d := range sorted {
		months := debtMonths(d, horizon)
		if months <= 0 || d.MinimumPayment <= 0 {
			continue
		}
		events = append(events, domain.FinancialEvent{
			ID:          fmt.Sprintf("debt-payment-%d", i+1),
			Type:        domain.EventTypeDebtPayment,
			MonthOffset: 0,
			Amount:      d.MinimumPayment,
			Frequency:   domain.FrequencyMonthly,
			TaxProfile:  domain.TaxProfileNone,
			DriverKey:   domain.DriverNone,
			Metadata: domain.EventMetadata{
				EndDateOffset: intPtr(months - 1),
				Category:      d.Name,
			},
		})
	}

	// The extra payment targets only the first-priority debt, for every
	// payoff intent.
	if p.DebtExtraPayment > 0 && len(sorted) > 0 {
		first := sorted[0]
		months := debtMonths(first, horizon)
		if months > 0 {
			events = append(events, domain.FinancialEvent{
				ID:          "debt-extra-payment",
				Type:        domain.EventTypeDebtPayment,
				MonthOffset: 0,
				Amount:      p.DebtExtraPayment,
				Frequency:   domain.FrequencyMonthly,
				TaxProfile:  domain.TaxProfileNone,
				DriverKey:   domain.DriverNone,
				Metadata: domain.EventMetadata{
					EndDateOffset: intPtr(months - 1),
					Category:      first.Name,
				},
			})
		}
	}

	return events
}

// debtMonths returns the payment window length for a debt, clamped to the
// horizon: explicit remainingMonths when supplied, else
// ceil(balance / minimumPayment).
func debtMonths(d domain.DebtParams, horizon int) int {
	months := horizon
	if d.RemainingMonths != nil {
		months = *d.RemainingMonths
	} else if d.MinimumPayment > 0 {
		months = int(math.Ceil(d.Balance / d.MinimumPayment))
	}
	if months > horizon {
		months = horizon
	}
	return months
}
