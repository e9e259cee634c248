// Package stats normalizes raw kernel Monte Carlo payloads into the
// canonical statistics record. Kernel builds have shipped the same numbers
// under several envelope shapes and field names; the mapping here absorbs
// all of them.
package stats

import (
	"encoding/json"
	"errors"
	"fmt"

	"retirement-sim-lab/internal/domain"
)

// ErrNoStatistics means the payload carried none of the known envelope
// shapes or no recognizable fields.
var ErrNoStatistics = errors.New("no statistics in kernel payload")

// Envelope keys the statistics object may sit under, probed in order.
// A payload with none of these is treated as the flat shape.
var envelopeKeys = []string{"mc", "monteCarloResults", "portfolioStats"}

// fieldAliases maps each canonical statistic to the kernel field names that
// may carry it. The canonical name itself is always accepted.
var fieldAliases = map[string][]string{
	"finalNetWorthP10":     {"p10FinalValue"},
	"finalNetWorthP25":     {"p25FinalValue"},
	"finalNetWorthP50":     {"p50FinalValue", "medianFinalValue"},
	"finalNetWorthP75":     {"p75FinalValue"},
	"finalNetWorthP90":     {"p90FinalValue"},
	"minCashP10":           {"p10MinimumCash"},
	"minCashP50":           {"p50MinimumCash"},
	"minCashP90":           {"p90MinimumCash"},
	"runwayMonthsP10":      {"p10RunwayMonths"},
	"runwayMonthsP50":      {"p50RunwayMonths"},
	"runwayMonthsP90":      {"p90RunwayMonths"},
	"successRate":          {"probabilityOfSuccess"},
	"everBreachProbability": nil,
}

// Extract normalizes a raw kernel payload into MCStatistics.
func Extract(raw json.RawMessage) (*domain.MCStatistics, error) {
	if len(raw) == 0 {
		return nil, ErrNoStatistics
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, fmt.Errorf("decode kernel payload: %w", err)
	}

	obj := top
	for _, key := range envelopeKeys {
		nested, ok := top[key]
		if !ok {
			continue
		}
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(nested, &inner); err != nil {
			return nil, fmt.Errorf("decode %s envelope: %w", key, err)
		}
		obj = inner
		break
	}

	fields := make(map[string]float64)
	for canonical, aliases := range fieldAliases {
		if v, ok := lookupNumber(obj, canonical); ok {
			fields[canonical] = v
			continue
		}
		for _, alias := range aliases {
			if v, ok := lookupNumber(obj, alias); ok {
				fields[canonical] = v
				break
			}
		}
	}
	if len(fields) == 0 {
		return nil, ErrNoStatistics
	}

	s := &domain.MCStatistics{SchemaVersion: domain.StatisticsSchemaVersion}
	s.FinalNetWorthP10 = take(fields, "finalNetWorthP10")
	s.FinalNetWorthP25 = take(fields, "finalNetWorthP25")
	s.FinalNetWorthP50 = take(fields, "finalNetWorthP50")
	s.FinalNetWorthP75 = take(fields, "finalNetWorthP75")
	s.FinalNetWorthP90 = take(fields, "finalNetWorthP90")
	s.MinCashP10 = take(fields, "minCashP10")
	s.MinCashP50 = take(fields, "minCashP50")
	s.MinCashP90 = take(fields, "minCashP90")
	s.RunwayMonthsP10 = take(fields, "runwayMonthsP10")
	s.RunwayMonthsP50 = take(fields, "runwayMonthsP50")
	s.RunwayMonthsP90 = take(fields, "runwayMonthsP90")
	s.SuccessRate = take(fields, "successRate")
	s.EverBreachProbability = take(fields, "everBreachProbability")

	// everBreachProbability + successRate == 1 holds for every record, so a
	// present success rate always determines the breach probability, even
	// when the kernel sent a disagreeing value. Pointer semantics keep
	// successRate == 0 meaningful (breach == 1). A kernel-supplied breach
	// value survives only when no success rate arrived with it.
	if s.SuccessRate != nil {
		v := 1 - *s.SuccessRate
		s.EverBreachProbability = &v
	}

	return s, nil
}

// Validate checks the minimum field set downstream consumers require.
func Validate(s *domain.MCStatistics) error {
	if s == nil {
		return ErrNoStatistics
	}
	var missing []string
	if s.EverBreachProbability == nil {
		missing = append(missing, "everBreachProbability")
	}
	if s.FinalNetWorthP50 == nil {
		missing = append(missing, "finalNetWorthP50")
	}
	if s.SuccessRate == nil {
		missing = append(missing, "successRate")
	}
	if len(missing) > 0 {
		return fmt.Errorf("statistics missing required fields %v", missing)
	}
	return nil
}

func lookupNumber(obj map[string]json.RawMessage, key string) (float64, bool) {
	raw, ok := obj[key]
	if !ok {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v, true
}

func take(fields map[string]float64, key string) *float64 {
	v, ok := fields[key]
	if !ok {
		return nil
	}
	return &v
}
