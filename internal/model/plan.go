package model

// Plan is a tier label derived from the credit balance.
type Plan string

const (
	PlanFree    Plan = "Free"
	PlanPro     Plan = "Pro"
	PlanPremium Plan = "Premium"
)

// Balance thresholds for plan labels (strictly greater than).
const (
	premiumThreshold = 500
	proThreshold     = 100
)

// PlanForBalance maps a balance to its label. The label is informational only.
func PlanForBalance(balance int64) Plan {
	switch {
	case balance > premiumThreshold:
		return PlanPremium
	case balance > proThreshold:
		return PlanPro
	default:
		return PlanFree
	}
}

// PlanOffer is one entry of the public price list.
type PlanOffer struct {
	Name       Plan
	PriceCents int64
	Credits    int64
	Features   []string
}

// Catalog returns the public price list.
func Catalog() []PlanOffer {
	return []PlanOffer{
		{Name: PlanFree, PriceCents: 0, Credits: 50, Features: []string{"50 credits", "Basic humanization", "Standard support"}},
		{Name: PlanPro, PriceCents: 1900, Credits: 150, Features: []string{"150 credits", "Advanced humanization", "Priority support"}},
		{Name: PlanPremium, PriceCents: 4900, Credits: 999, Features: []string{"999 credits", "All humanization modes", "Dedicated support"}},
	}
}
