package domain

// FieldChange is one confirmed change: a dotted field path plus its new
// value. Values arrive as untyped JSON; the normalizer coerces them.
type FieldChange struct {
	FieldPath string `json:"fieldPath"`
	NewValue  any    `json:"newValue"`
}

// SimulateRequest is the user-facing request record. Direct fields are
// pointers so the normalizer can tell "absent" from "zero"; direct fields
// always take precedence over values extracted from ConfirmedChanges.
type SimulateRequest struct {
	Seed      *int64 `json:"seed,omitempty"`
	StartYear *int   `json:"startYear,omitempty"`
	PathSeed  *int64 `json:"pathSeed,omitempty"`

	MCPaths       *int      `json:"mcPaths,omitempty"`
	HorizonMonths *int      `json:"horizonMonths,omitempty"`
	Verbosity     Verbosity `json:"verbosity,omitempty"`

	CurrentAge       *int     `json:"currentAge,omitempty"`
	InvestableAssets *float64 `json:"investableAssets,omitempty"`
	AnnualSpending   *float64 `json:"annualSpending,omitempty"`
	ExpectedIncome   *float64 `json:"expectedIncome,omitempty"`
	InflationRate    *float64 `json:"inflationRate,omitempty"`

	StockRatio       *float64             `json:"stockRatio,omitempty"`
	CustomAllocation map[string]float64   `json:"customAllocation,omitempty"`
	Buckets          *BucketPercentages   `json:"buckets,omitempty"`
	Concentration    *ConcentrationParams `json:"concentration,omitempty"`

	WithdrawalStrategy string             `json:"withdrawalStrategy,omitempty"`
	StrategySettings   map[string]any     `json:"strategySettings,omitempty"`
	CashReserve        *CashReserveParams `json:"cashReserve,omitempty"`

	IncomeChange     *RegimeChange         `json:"incomeChange,omitempty"`
	SpendingChange   *RegimeChange         `json:"spendingChange,omitempty"`
	OneTimeEvents    []OneTimeEventParams  `json:"oneTimeEvents,omitempty"`
	Healthcare       *HealthcareParams     `json:"healthcare,omitempty"`
	Contribution     *ContributionParams   `json:"contribution,omitempty"`
	SocialSecurity   *SocialSecurityParams `json:"socialSecurity,omitempty"`
	RothConversions  []RothConversionEntry `json:"rothConversions,omitempty"`
	Debts            []DebtParams          `json:"debts,omitempty"`
	DebtStrategy     string                `json:"debtStrategy,omitempty"`
	DebtExtraPayment *float64              `json:"debtExtraPayment,omitempty"`

	TaxConfig map[string]any `json:"taxConfig,omitempty"`

	ConfirmedChanges []FieldChange `json:"confirmedChanges,omitempty"`
}
