package domain

// UnitPrice is the fixed per-unit price every holding is normalized to.
// Normalizing to one price avoids pathological low-share-count edge cases
// in the compute kernel.
const UnitPrice = 100.0

// Asset class constants.
const (
	AssetClassStocks = "stocks"
	AssetClassBonds  = "bonds"
)

// Holding is a single position inside an account bucket. Invariant:
// Quantity * CurrentMarketPricePerUnit == CurrentMarketValueTotal.
type Holding struct {
	ID                        string  `json:"id"`
	AssetClass                string  `json:"assetClass"`
	Quantity                  float64 `json:"quantity"`
	CostBasisPerUnit          float64 `json:"costBasisPerUnit"`
	CostBasisTotal            float64 `json:"costBasisTotal"`
	CurrentMarketPricePerUnit float64 `json:"currentMarketPricePerUnit"`
	CurrentMarketValueTotal   float64 `json:"currentMarketValueTotal"`
}

// Bucket is one account's total value plus its per-asset-class holdings.
type Bucket struct {
	TotalValue float64   `json:"totalValue"`
	Holdings   []Holding `json:"holdings"`
}

// AccountHoldings is the concrete opening position handed to the kernel:
// a cash scalar plus the investable buckets.
type AccountHoldings struct {
	Cash        float64 `json:"cash"`
	Taxable     Bucket  `json:"taxable"`
	TaxDeferred Bucket  `json:"taxDeferred"`
	Roth        Bucket  `json:"roth"`
	HSA         Bucket  `json:"hsa"`
}

// TotalValue returns cash plus all bucket totals.
func (a *AccountHoldings) TotalValue() float64 {
	return a.Cash + a.Taxable.TotalValue + a.TaxDeferred.TotalValue +
		a.Roth.TotalValue + a.HSA.TotalValue
}
