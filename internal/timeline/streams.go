package timeline

import (
	"fmt"

	"retirement-sim-lab/internal/domain"
)

// buildOneTimeEvents expands one-time parameters, each optionally recurring
// count times at intervalMonths spacing (default 12). Occurrences at or
// past the horizon are dropped. The amount sign encodes direction:
// positive is income, negative is expense.
func buildOneTimeEvents(p *domain.PlanParams, horizon int) []domain.FinancialEvent {
	var events []domain.FinancialEvent
	for i, ot := range p.OneTimeEvents {
		count := ot.Count
		if count < 1 {
			count = 1
		}
		interval := ot.IntervalMonths
		if interval < 1 {
			interval = 12
		}

		for j := 0; j < count; j++ {
			offset := ot.MonthOffset + j*interval
			if offset < 0 || offset >= horizon {
				continue
			}
			events = append(events, domain.FinancialEvent{
				ID:          fmt.Sprintf("one-time-%d-%d", i+1, j+1),
				Type:        domain.EventTypeOneTime,
				MonthOffset: offset,
				Amount:      ot.Amount,
				Frequency:   domain.FrequencyOnce,
				TaxProfile:  domain.TaxProfileNone,
				DriverKey:   domain.DriverOneTime,
				Metadata:    domain.EventMetadata{Category: ot.Category},
			})
		}
	}
	return events
}

// medicareAge is the age the healthcare cost regime switches over.
const medicareAge = 65

// buildHealthcareEvents emits the pre-Medicare event over [0, boundary)
// and the open-ended post-Medicare event starting exactly at the boundary,
// where boundary = min(max(0, (65-age)*12), horizon).
func buildHealthcareEvents(p *domain.PlanParams, horizon int) []domain.FinancialEvent {
	hc := p.Healthcare
	if hc == nil {
		return nil
	}

	boundary := (medicareAge - p.CurrentAge) * 12
	if boundary < 0 {
		boundary = 0
	}
	if boundary > horizon {
		boundary = horizon
	}

	var events []domain.FinancialEvent
	if boundary > 0 && hc.PreMedicareMonthly > 0 {
		events = append(events, domain.FinancialEvent{
			ID:          "healthcare-pre-medicare",
			Type:        domain.EventTypeHealthcare,
			MonthOffset: 0,
			Amount:      hc.PreMedicareMonthly,
			Frequency:   domain.FrequencyMonthly,
			TaxProfile:  domain.TaxProfileNone,
			DriverKey:   domain.DriverHealthcare,
			Metadata: domain.EventMetadata{
				EndDateOffset:  intPtr(boundary - 1),
				ApplyInflation: true,
			},
		})
	}
	if boundary < horizon && hc.PostMedicareMonthly > 0 {
		events = append(events, domain.FinancialEvent{
			ID:          "healthcare-post-medicare",
			Type:        domain.EventTypeHealthcare,
			MonthOffset: boundary,
			Amount:      hc.PostMedicareMonthly,
			Frequency:   domain.FrequencyMonthly,
			TaxProfile:  domain.TaxProfileNone,
			DriverKey:   domain.DriverHealthcare,
			Metadata:    domain.EventMetadata{ApplyInflation: true},
		})
	}
	return events
}

// buildContributionEvents emits the employee contribution (only when a
// salary percentage and target account are both present) and the employer
// match (only when a match config AND an employee contribution exist).
func buildContributionEvents(p *domain.PlanParams, horizon int) []domain.FinancialEvent {
	c := p.Contribution
	if c == nil || c.SalaryPercentage <= 0 || c.TargetAccount == "" {
		return nil
	}

	var end *int
	if c.StopAtRetirementMonth != nil {
		stop := *c.StopAtRetirementMonth
		if stop > horizon {
			stop = horizon
		}
		if stop <= 0 {
			return nil
		}
		end = intPtr(stop - 1)
	}

	monthlySalary := c.AnnualSalary / 12
	employee := domain.FinancialEvent{
		ID:                "contribution-employee",
		Type:              domain.EventTypeContribution,
		MonthOffset:       0,
		Amount:            monthlySalary * c.SalaryPercentage / 100,
		Frequency:         domain.FrequencyMonthly,
		TaxProfile:        contributionTaxProfile(c.TargetAccount),
		DriverKey:         domain.DriverContribution,
		TargetAccountType: c.TargetAccount,
		Metadata:          domain.EventMetadata{EndDateOffset: end},
	}
	events := []domain.FinancialEvent{employee}

	if c.Match != nil {
		matchedPct := c.SalaryPercentage
		if c.Match.MatchUpToPercentage < matchedPct {
			matchedPct = c.Match.MatchUpToPercentage
		}
		amount := monthlySalary * matchedPct / 100 * c.Match.MatchRate
		if amount > 0 {
			events = append(events, domain.FinancialEvent{
				ID:                "contribution-employer-match",
				Type:              domain.EventTypeEmployerMatch,
				MonthOffset:       0,
				Amount:            amount,
				Frequency:         domain.FrequencyMonthly,
				TaxProfile:        domain.TaxProfilePreTax,
				DriverKey:         domain.DriverContribution,
				TargetAccountType: c.TargetAccount,
				Metadata:          domain.EventMetadata{EndDateOffset: end},
			})
		}
	}
	return events
}

func contributionTaxProfile(account domain.AccountType) domain.TaxProfile {
	switch account {
	case domain.AccountTaxDeferred, domain.AccountHSA:
		return domain.TaxProfilePreTax
	case domain.AccountRoth:
		return domain.TaxProfileTaxFree
	default:
		return domain.TaxProfileNone
	}
}

// buildSocialSecurityEvents emits the benefit stream starting at
// max(0, (claimingAge-currentAge)*12), suppressed entirely when the offset
// is at or past the horizon or the benefit is not positive.
func buildSocialSecurityEvents(p *domain.PlanParams, horizon int) []domain.FinancialEvent {
	ss := p.SocialSecurity
	if ss == nil || ss.MonthlyBenefit <= 0 {
		return nil
	}

	offset := (ss.ClaimingAge - p.CurrentAge) * 12
	if offset < 0 {
		offset = 0
	}
	if offset >= horizon {
		return nil
	}

	return []domain.FinancialEvent{{
		ID:          "social-security",
		Type:        domain.EventTypeSocialSecurity,
		MonthOffset: offset,
		Amount:      ss.MonthlyBenefit,
		Frequency:   domain.FrequencyMonthly,
		TaxProfile:  domain.TaxProfileOrdinaryIncome,
		DriverKey:   domain.DriverSocialSecurity,
	}}
}

// buildRothConversionEvents emits one event per year-offset entry inside
// the horizon with a positive amount. Conversions carry no driver key.
func buildRothConversionEvents(p *domain.PlanParams, horizon int) []domain.FinancialEvent {
	var events []domain.FinancialEvent
	for _, rc := range p.RothConversions {
		offset := rc.YearOffset * 12
		if offset < 0 || offset >= horizon || rc.Amount <= 0 {
			continue
		}
		events = append(events, domain.FinancialEvent{
			ID:                fmt.Sprintf("roth-conversion-year-%d", rc.YearOffset),
			Type:              domain.EventTypeRothConversion,
			MonthOffset:       offset,
			Amount:            rc.Amount,
			Frequency:         domain.FrequencyOnce,
			TaxProfile:        domain.TaxProfileOrdinaryIncome,
			DriverKey:         domain.DriverNone,
			TargetAccountType: domain.AccountRoth,
		})
	}
	return events
}
