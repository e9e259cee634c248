// Package trace derives presentation views from one deterministically
// replayed path: annual rollups, per-age first-month digests, and the full
// month ledger.
package trace

import (
	"retirement-sim-lab/internal/domain"
	"retirement-sim-lab/internal/kernel"
)

// AnnualSnapshots rolls the month ledger up into calendar-year rows.
func AnnualSnapshots(res *kernel.ReplayResult) []domain.AnnualSnapshot {
	months := res.MonthlySnapshots
	if len(months) == 0 {
		return nil
	}

	var out []domain.AnnualSnapshot
	for start := 0; start < len(months); {
		end := start
		for end < len(months) && months[end].Year == months[start].Year {
			end++
		}

		first, last := months[start], months[end-1]
		snap := domain.AnnualSnapshot{
			YearIndex:     len(out),
			Year:          first.Year,
			Age:           first.Age,
			StartNetWorth: startNetWorth(first),
			EndNetWorth:   last.NetWorth,
		}
		for i := start; i < end; i++ {
			snap.InvestmentGrowth += months[i].InvestmentGrowth
			snap.TotalIncome += months[i].Income
			snap.TotalSpending += months[i].Spending
		}
		if snap.StartNetWorth > 0 {
			snap.ReturnPct = snap.InvestmentGrowth / snap.StartNetWorth
		}

		out = append(out, snap)
		start = end
	}
	return out
}

// FirstMonthDigests builds one digest per displayed age. January of the
// age's year is preferred; when January carries no events, the first month
// of that year that does is used instead. Years with no events at all
// produce no digest.
func FirstMonthDigests(res *kernel.ReplayResult) []domain.FirstMonthDigest {
	months := res.MonthlySnapshots
	if len(months) == 0 {
		return nil
	}

	eventsByMonth := make(map[int][]domain.TraceEvent)
	for _, ev := range res.EventTrace {
		eventsByMonth[ev.MonthIndex] = append(eventsByMonth[ev.MonthIndex], ev)
	}

	var out []domain.FirstMonthDigest
	for start := 0; start < len(months); {
		end := start
		for end < len(months) && months[end].Year == months[start].Year {
			end++
		}

		pick := -1
		for i := start; i < end; i++ {
			if months[i].Month == 1 && len(eventsByMonth[months[i].MonthIndex]) > 0 {
				pick = i
				break
			}
		}
		if pick < 0 {
			for i := start; i < end; i++ {
				if len(eventsByMonth[months[i].MonthIndex]) > 0 {
					pick = i
					break
				}
			}
		}
		if pick >= 0 {
			m := months[pick]
			out = append(out, domain.FirstMonthDigest{
				Age:        m.Age,
				Year:       m.Year,
				Month:      m.Month,
				MonthIndex: m.MonthIndex,
				Events:     eventsByMonth[m.MonthIndex],
			})
		}

		start = end
	}
	return out
}

// FullTrace packages the complete month ledger. Only emitted at the highest
// verbosity level.
func FullTrace(res *kernel.ReplayResult) *domain.TraceData {
	return &domain.TraceData{
		Months:         res.MonthlySnapshots,
		Events:         res.EventTrace,
		MarketReturns:  res.RealizedPathVariables,
		MonthCount:     len(res.MonthlySnapshots),
		EventCount:     len(res.EventTrace),
		SimulationMode: res.SimulationMode,
		Seed:           res.Seed,
		FinalNetWorth:  res.FinalNetWorth,
	}
}

// startNetWorth recovers the net worth at the start of a month by backing
// out that month's flows and growth.
func startNetWorth(m domain.MonthSnapshot) float64 {
	return m.NetWorth - m.InvestmentGrowth - m.Income + m.Spending
}
