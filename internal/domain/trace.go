package domain

// MonthSnapshot is one month of a deterministically replayed path.
type MonthSnapshot struct {
	MonthIndex       int     `json:"monthIndex"`
	Year             int     `json:"year"`
	Month            int     `json:"month"` // calendar month, 1-12
	Age              int     `json:"age"`
	NetWorth         float64 `json:"netWorth"`
	Cash             float64 `json:"cash"`
	Investments      float64 `json:"investments"`
	Income           float64 `json:"income"`
	Spending         float64 `json:"spending"`
	InvestmentGrowth float64 `json:"investmentGrowth"`
	MarketReturn     float64 `json:"marketReturn"`
}

// TraceEvent is one applied event from the replay's event log.
type TraceEvent struct {
	MonthIndex  int     `json:"monthIndex"`
	EventID     string  `json:"eventId"`
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description,omitempty"`
}

// TraceData is the full month-level ledger of one replayed path. Derived
// strictly from the deterministic replay phase, never from MC paths.
type TraceData struct {
	Months         []MonthSnapshot `json:"months"`
	Events         []TraceEvent    `json:"events"`
	MarketReturns  []float64       `json:"marketReturns"`
	MonthCount     int             `json:"monthCount"`
	EventCount     int             `json:"eventCount"`
	SimulationMode string          `json:"simulationMode"`
	Seed           int64           `json:"seed"`
	FinalNetWorth  float64         `json:"finalNetWorth"`
}

// AnnualSnapshot is one simulated year of the replayed path.
type AnnualSnapshot struct {
	YearIndex        int     `json:"yearIndex"`
	Year             int     `json:"year"`
	Age              int     `json:"age"`
	StartNetWorth    float64 `json:"startNetWorth"`
	EndNetWorth      float64 `json:"endNetWorth"`
	InvestmentGrowth float64 `json:"investmentGrowth"`
	ReturnPct        float64 `json:"returnPct"`
	TotalIncome      float64 `json:"totalIncome"`
	TotalSpending    float64 `json:"totalSpending"`
}

// FirstMonthDigest is the compact "show the math" view for one displayed
// age: the events of January of that age's year, or of the first month with
// any events when January has none.
type FirstMonthDigest struct {
	Age        int          `json:"age"`
	Year       int          `json:"year"`
	Month      int          `json:"month"`
	MonthIndex int          `json:"monthIndex"`
	Events     []TraceEvent `json:"events"`
}
