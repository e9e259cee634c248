// Package domain contains the core data model for the retirement
// simulation service: plan parameters, compiled financial events,
// account holdings, Monte Carlo statistics and replay traces.
package domain

// EventType classifies a compiled financial event.
type EventType string

// Event type constants.
const (
	EventTypeIncome         EventType = "income"
	EventTypeSpending       EventType = "spending"
	EventTypeOneTime        EventType = "one_time"
	EventTypeHealthcare     EventType = "healthcare"
	EventTypeContribution   EventType = "contribution"
	EventTypeEmployerMatch  EventType = "employer_match"
	EventTypeSocialSecurity EventType = "social_security"
	EventTypeRothConversion EventType = "roth_conversion"
	EventTypeDebtPayment    EventType = "debt_payment"
)

// Frequency describes how often an event recurs within its window.
type Frequency string

// Frequency constants.
const (
	FrequencyMonthly Frequency = "monthly"
	FrequencyOnce    Frequency = "once"
)

// TaxProfile describes how the kernel should treat an event for tax purposes.
type TaxProfile string

// Tax profile constants.
const (
	TaxProfileOrdinaryIncome TaxProfile = "ordinary_income"
	TaxProfileTaxFree        TaxProfile = "tax_free"
	TaxProfilePreTax         TaxProfile = "pre_tax"
	TaxProfileNone           TaxProfile = "none"
)

// DriverKey tags an event for sensitivity attribution by the compute kernel.
// Roth conversions and debt payments deliberately carry no driver key:
// they are user-directed, not attributed to a sensitivity driver.
type DriverKey string

// Driver key constants.
const (
	DriverIncome         DriverKey = "income"
	DriverSpending       DriverKey = "spending"
	DriverHealthcare     DriverKey = "healthcare"
	DriverSocialSecurity DriverKey = "social_security"
	DriverOneTime        DriverKey = "one_time"
	DriverContribution   DriverKey = "contribution"
	DriverNone           DriverKey = ""
)

// AccountType identifies one of the account buckets.
type AccountType string

// Account type constants.
const (
	AccountCash        AccountType = "cash"
	AccountTaxable     AccountType = "taxable"
	AccountTaxDeferred AccountType = "tax_deferred"
	AccountRoth        AccountType = "roth"
	AccountHSA         AccountType = "hsa"
)

// EventMetadata carries the optional per-event fields. Which fields are
// meaningful depends on the event type; the timeline builder is the only
// producer and validates per type.
type EventMetadata struct {
	// EndDateOffset is the inclusive last active month. Nil means the event
	// is open-ended within the horizon (or a single occurrence for "once").
	EndDateOffset *int `json:"endDateOffset,omitempty"`

	// ApplyInflation indicates the kernel should grow the amount with the
	// configured inflation rate.
	ApplyInflation bool `json:"applyInflation,omitempty"`

	// AnnualGrowthRate overrides inflation with an explicit growth rate.
	AnnualGrowthRate *float64 `json:"annualGrowthRate,omitempty"`

	// Category is a free-form label (e.g. one-time event category).
	Category string `json:"category,omitempty"`
}

// FinancialEvent is one discrete, horizon-clamped entry of the compiled
// timeline. Invariants, enforced by the timeline builder:
//
//	0 <= MonthOffset < horizonMonths
//	MonthOffset <= *Metadata.EndDateOffset < horizonMonths (when set)
//
// Events are created once per compile and are immutable thereafter; the
// kernel consumes them read-only.
type FinancialEvent struct {
	ID                string        `json:"id"`
	Type              EventType     `json:"type"`
	MonthOffset       int           `json:"monthOffset"`
	Amount            float64       `json:"amount"`
	Frequency         Frequency     `json:"frequency"`
	TaxProfile        TaxProfile    `json:"taxProfile,omitempty"`
	DriverKey         DriverKey     `json:"driverKey,omitempty"`
	TargetAccountType AccountType   `json:"targetAccountType,omitempty"`
	Metadata          EventMetadata `json:"metadata"`
}

// ActiveWindow returns the inclusive [start, end] month range of the event.
// For events without an explicit end, end is horizonMonths-1.
func (e *FinancialEvent) ActiveWindow(horizonMonths int) (start, end int) {
	start = e.MonthOffset
	end = horizonMonths - 1
	if e.Metadata.EndDateOffset != nil {
		end = *e.Metadata.EndDateOffset
	}
	if e.Frequency == FrequencyOnce && e.Metadata.EndDateOffset == nil {
		end = start
	}
	return start, end
}
