package wallet

// FundingApplePay is the funding source key for Apple Pay.
const FundingApplePay = "applepay"

// FundingEligibility maps funding sources to the eligibility reported for a buyer.
type FundingEligibility map[string]FundingStatus

// FundingStatus defines model for one FundingEligibility entry.
type FundingStatus struct {
	Eligible bool `json:"eligible"`
}

// IsEligible reports whether the wallet funding source may be offered.
func (f FundingEligibility) IsEligible() bool {
	return f[FundingApplePay].Eligible
}
