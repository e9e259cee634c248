package domain

// RunRecord summarizes one completed simulation run for the run-history
// store. Append-only: one row per run, keyed by the deterministic RunID.
type RunRecord struct {
	RunID         string `json:"runId"`
	BaseSeed      int64  `json:"baseSeed"`
	StartYear     int    `json:"startYear"`
	HorizonMonths int    `json:"horizonMonths"`
	PathsRun      int    `json:"pathsRun"`
	ReplayMode    bool   `json:"replayMode"`

	SuccessRate           float64 `json:"successRate"`
	EverBreachProbability float64 `json:"everBreachProbability"`
	FinalNetWorthP50      float64 `json:"finalNetWorthP50"`

	ElapsedMs   int64 `json:"elapsedMs"`
	CreatedAtMs int64 `json:"createdAtMs"`
}

// RunStatPoint is one (metric, percentile) value of a run, stored in the
// analytics database for cross-run distribution queries.
type RunStatPoint struct {
	RunID       string  `json:"runId"`
	Metric      string  `json:"metric"`     // e.g. "final_net_worth"
	Percentile  string  `json:"percentile"` // e.g. "p50"
	Value       float64 `json:"value"`
	CreatedAtMs int64   `json:"createdAtMs"`
}
