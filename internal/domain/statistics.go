package domain

// ExemplarPathRef identifies the one Monte Carlo path selected as
// representative and eligible for deterministic replay. Produced by the
// kernel during the MC phase.
type ExemplarPathRef struct {
	PathSeed           int64   `json:"pathSeed"`
	PathIndex          int     `json:"pathIndex"`
	SelectionCriterion string  `json:"selectionCriterion"`
	TerminalWealth     float64 `json:"terminalWealth"`
}

// MCStatistics is the canonical, versioned statistics schema every kernel
// payload shape is normalized onto. Fields are pointers so "absent" and
// "zero" stay distinguishable; a legitimate successRate of 0 must survive
// extraction.
type MCStatistics struct {
	SchemaVersion int `json:"schemaVersion"`

	// Terminal wealth percentiles.
	FinalNetWorthP10 *float64 `json:"finalNetWorthP10,omitempty"`
	FinalNetWorthP25 *float64 `json:"finalNetWorthP25,omitempty"`
	FinalNetWorthP50 *float64 `json:"finalNetWorthP50,omitempty"`
	FinalNetWorthP75 *float64 `json:"finalNetWorthP75,omitempty"`
	FinalNetWorthP90 *float64 `json:"finalNetWorthP90,omitempty"`

	// Minimum cash percentiles.
	MinCashP10 *float64 `json:"minCashP10,omitempty"`
	MinCashP50 *float64 `json:"minCashP50,omitempty"`
	MinCashP90 *float64 `json:"minCashP90,omitempty"`

	// Runway (months until constraint breach) percentiles.
	RunwayMonthsP10 *float64 `json:"runwayMonthsP10,omitempty"`
	RunwayMonthsP50 *float64 `json:"runwayMonthsP50,omitempty"`
	RunwayMonthsP90 *float64 `json:"runwayMonthsP90,omitempty"`

	// SuccessRate is the fraction of paths that never breached the
	// constraint. EverBreachProbability is derived as 1 - SuccessRate.
	SuccessRate           *float64 `json:"successRate,omitempty"`
	EverBreachProbability *float64 `json:"everBreachProbability,omitempty"`
}

// StatisticsSchemaVersion is the current MCStatistics schema version.
const StatisticsSchemaVersion = 1
