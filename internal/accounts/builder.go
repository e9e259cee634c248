// Package accounts converts total investable assets, bucket percentages
// and an allocation strategy into concrete per-account holdings. Pure
// transform; malformed numeric inputs are rejected upstream by the
// parameter normalizer.
package accounts

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"retirement-sim-lab/internal/domain"
)

// ErrBucketSum is returned when bucket percentages do not sum to 100.
var ErrBucketSum = errors.New("bucket percentages must sum to 100")

const bucketSumEpsilon = 1e-6

// Build produces the opening AccountHoldings for a plan.
//
// The concentrated carve-out is computed from the ORIGINAL concentration
// percentage even when an override value is supplied: the override only
// changes the value of the concentrated line item (clamped to
// [0, baseConcentratedAmount]), never the amount distributed across
// buckets. A caller therefore cannot inflate the concentrated position
// beyond what the original percentage implied.
func Build(p *domain.PlanParams) (*domain.AccountHoldings, error) {
	if sum := p.Buckets.Sum(); math.Abs(sum-100) > bucketSumEpsilon {
		return nil, fmt.Errorf("%w: got %v", ErrBucketSum, sum)
	}

	total := p.InvestableAssets

	var base, concentrated float64
	if p.Concentration != nil {
		pct := clamp(p.Concentration.Pct, 0, 100)
		base = total * pct / 100
		concentrated = base
		if p.Concentration.OverrideValue != nil {
			concentrated = clamp(*p.Concentration.OverrideValue, 0, base)
		}
	}

	remaining := total - base

	h := &domain.AccountHoldings{
		Cash:        remaining * p.Buckets.Cash / 100,
		Taxable:     buildBucket("taxable", remaining*p.Buckets.Taxable/100, p),
		TaxDeferred: buildBucket("tax-deferred", remaining*p.Buckets.TaxDeferred/100, p),
		Roth:        buildBucket("roth", remaining*p.Buckets.Roth/100, p),
		HSA:         buildBucket("hsa", remaining*p.Buckets.HSA/100, p),
	}

	if concentrated > 0 {
		ticker := "concentrated"
		if p.Concentration.Ticker != "" {
			ticker = p.Concentration.Ticker
		}
		h.Taxable.Holdings = append(h.Taxable.Holdings,
			newHolding("taxable-concentrated-"+ticker, domain.AssetClassStocks, concentrated))
		h.Taxable.TotalValue += concentrated
	}

	return h, nil
}

// buildBucket splits one bucket's value into per-asset-class holdings,
// either by the flat stock/bond ratio or the custom allocation map.
func buildBucket(name string, value float64, p *domain.PlanParams) domain.Bucket {
	b := domain.Bucket{TotalValue: value}
	if value <= 0 {
		return b
	}

	if len(p.CustomAllocation) > 0 {
		// Deterministic holding order regardless of map iteration.
		classes := make([]string, 0, len(p.CustomAllocation))
		for class := range p.CustomAllocation {
			classes = append(classes, class)
		}
		sort.Strings(classes)

		for _, class := range classes {
			pct := p.CustomAllocation[class]
			if pct <= 0 {
				continue
			}
			b.Holdings = append(b.Holdings,
				newHolding(name+"-"+class, class, value*pct/100))
		}
		return b
	}

	stocks := value * p.StockRatio
	bonds := value - stocks
	if stocks > 0 {
		b.Holdings = append(b.Holdings,
			newHolding(name+"-stocks", domain.AssetClassStocks, stocks))
	}
	if bonds > 0 {
		b.Holdings = append(b.Holdings,
			newHolding(name+"-bonds", domain.AssetClassBonds, bonds))
	}
	return b
}

// newHolding creates a holding normalized to the fixed per-unit price so
// quantity * price always equals the market value exactly.
func newHolding(id, assetClass string, value float64) domain.Holding {
	qty := value / domain.UnitPrice
	return domain.Holding{
		ID:                        id,
		AssetClass:                assetClass,
		Quantity:                  qty,
		CostBasisPerUnit:          domain.UnitPrice,
		CostBasisTotal:            value,
		CurrentMarketPricePerUnit: domain.UnitPrice,
		CurrentMarketValueTotal:   value,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
