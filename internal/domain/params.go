package domain

// Verbosity selects how much of the replay output is returned to the caller.
type Verbosity string

// Verbosity constants.
const (
	VerbositySummary Verbosity = "summary"
	VerbosityAnnual  Verbosity = "annual"
	VerbosityTrace   Verbosity = "trace"
)

// Withdrawal strategy constants.
const (
	WithdrawalTaxEfficient = "tax_efficient"
	WithdrawalProRata      = "pro_rata"
	WithdrawalCashFirst    = "cash_first"
)

// Debt payoff strategy constants.
const (
	DebtStrategyAvalanche = "avalanche"
	DebtStrategySnowball  = "snowball"
)

// BucketPercentages is the percentage split of investable assets across
// account buckets. Must sum to 100 before the concentration carve-out
// is applied.
type BucketPercentages struct {
	Cash        float64 `json:"cash"`
	Taxable     float64 `json:"taxable"`
	TaxDeferred float64 `json:"taxDeferred"`
	Roth        float64 `json:"roth"`
	HSA         float64 `json:"hsa"`
}

// Sum returns the total of all bucket percentages.
func (b BucketPercentages) Sum() float64 {
	return b.Cash + b.Taxable + b.TaxDeferred + b.Roth + b.HSA
}

// DefaultBuckets is the bucket split applied when the caller supplies none.
var DefaultBuckets = BucketPercentages{Cash: 10, Taxable: 30, TaxDeferred: 60}

// ConcentrationParams describes a concentrated single-stock position carved
// out of total investable assets.
type ConcentrationParams struct {
	// Pct of total investable assets held in the concentrated position.
	Pct float64 `json:"pct"`

	// OverrideValue, when set, replaces the carve-out value. Used only for
	// instant-loss comparison scenarios; the builder clamps it to
	// [0, baseConcentratedAmount] so a caller cannot inflate the position.
	OverrideValue *float64 `json:"overrideValue,omitempty"`

	// Ticker labels the concentrated holding.
	Ticker string `json:"ticker,omitempty"`
}

// CashReserveParams configures the cash floor replenishment target.
// Exactly one of TargetMonths or TargetAmount may be set; supplying both
// is a validation conflict.
type CashReserveParams struct {
	TargetMonths *int     `json:"targetMonths,omitempty"`
	TargetAmount *float64 `json:"targetAmount,omitempty"`
}

// RegimeChange declares a step change in an income or spending rule.
type RegimeChange struct {
	// MonthOffset is the month the change takes effect.
	MonthOffset int `json:"monthOffset"`

	// DurationMonths, when set, limits the changed regime; afterwards the
	// baseline amount resumes.
	DurationMonths *int `json:"durationMonths,omitempty"`

	// NewAnnualAmount is the annual amount during the changed regime.
	NewAnnualAmount float64 `json:"newAnnualAmount"`
}

// OneTimeEventParams describes a single or recurring discrete cash flow.
// Amount sign encodes direction: positive is income, negative is expense.
type OneTimeEventParams struct {
	MonthOffset    int     `json:"monthOffset"`
	Amount         float64 `json:"amount"`
	Count          int     `json:"count,omitempty"`
	IntervalMonths int     `json:"intervalMonths,omitempty"`
	Category       string  `json:"category,omitempty"`
}

// HealthcareParams describes pre- and post-Medicare monthly healthcare cost.
type HealthcareParams struct {
	PreMedicareMonthly  float64 `json:"preMedicareMonthly"`
	PostMedicareMonthly float64 `json:"postMedicareMonthly"`
}

// EmployerMatch configures employer matching of employee contributions.
type EmployerMatch struct {
	// MatchRate is the fraction of matched contributions paid by the
	// employer (e.g. 0.5 for 50 cents per dollar).
	MatchRate float64 `json:"matchRate"`

	// MatchUpToPercentage caps the matched salary percentage.
	MatchUpToPercentage float64 `json:"matchUpToPercentage"`
}

// ContributionParams configures recurring retirement contributions out of
// salary.
type ContributionParams struct {
	AnnualSalary          float64        `json:"annualSalary"`
	SalaryPercentage      float64        `json:"salaryPercentage"`
	TargetAccount         AccountType    `json:"targetAccount,omitempty"`
	Match                 *EmployerMatch `json:"match,omitempty"`
	StopAtRetirementMonth *int           `json:"stopAtRetirementMonth,omitempty"`
}

// SocialSecurityParams configures the Social Security benefit stream.
type SocialSecurityParams struct {
	ClaimingAge    int     `json:"claimingAge"`
	MonthlyBenefit float64 `json:"monthlyBenefit"`
}

// RothConversionEntry is one planned Roth conversion.
type RothConversionEntry struct {
	YearOffset int     `json:"yearOffset"`
	Amount     float64 `json:"amount"`
}

// DebtParams describes one outstanding debt.
type DebtParams struct {
	Name            string  `json:"name"`
	Balance         float64 `json:"balance"`
	InterestRate    float64 `json:"interestRate"`
	MinimumPayment  float64 `json:"minimumPayment"`
	RemainingMonths *int    `json:"remainingMonths,omitempty"`
}

// PlanParams is the canonical, fully defaulted parameter record produced by
// the normalizer. Every downstream component consumes this, never the raw
// request.
type PlanParams struct {
	// Simulation identity and control.
	Seed          int64     `json:"seed"`
	StartYear     int       `json:"startYear"`
	PathSeed      *int64    `json:"pathSeed,omitempty"`
	MCPaths       int       `json:"mcPaths"`
	HorizonMonths int       `json:"horizonMonths"`
	Verbosity     Verbosity `json:"verbosity"`

	// Household facts.
	CurrentAge       int     `json:"currentAge"`
	InvestableAssets float64 `json:"investableAssets"`
	AnnualSpending   float64 `json:"annualSpending"`
	ExpectedIncome   float64 `json:"expectedIncome"`
	InflationRate    float64 `json:"inflationRate"`

	// Allocation.
	StockRatio       float64              `json:"stockRatio"`
	CustomAllocation map[string]float64   `json:"customAllocation,omitempty"`
	Buckets          BucketPercentages    `json:"buckets"`
	Concentration    *ConcentrationParams `json:"concentration,omitempty"`

	// Strategy. StrategySettings is passed through to the kernel untouched.
	WithdrawalStrategy string             `json:"withdrawalStrategy"`
	StrategySettings   map[string]any     `json:"strategySettings,omitempty"`
	CashReserve        *CashReserveParams `json:"cashReserve,omitempty"`

	// Life events and streams.
	IncomeChange     *RegimeChange         `json:"incomeChange,omitempty"`
	SpendingChange   *RegimeChange         `json:"spendingChange,omitempty"`
	OneTimeEvents    []OneTimeEventParams  `json:"oneTimeEvents,omitempty"`
	Healthcare       *HealthcareParams     `json:"healthcare,omitempty"`
	Contribution     *ContributionParams   `json:"contribution,omitempty"`
	SocialSecurity   *SocialSecurityParams `json:"socialSecurity,omitempty"`
	RothConversions  []RothConversionEntry `json:"rothConversions,omitempty"`
	Debts            []DebtParams          `json:"debts,omitempty"`
	DebtStrategy     string                `json:"debtStrategy,omitempty"`
	DebtExtraPayment float64               `json:"debtExtraPayment,omitempty"`

	// TaxConfig is passed through to the kernel untouched.
	TaxConfig map[string]any `json:"taxConfig,omitempty"`
}
