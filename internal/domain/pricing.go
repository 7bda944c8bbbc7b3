package domain

// ModifierKind distinguishes how a price modifier adjusts the running price.
type ModifierKind string

const (
	// ModifierKindPercentage adds price × pct/100 to the running price.
	ModifierKindPercentage ModifierKind = "percentage"
	// ModifierKindFixed adds a fixed amount per unit of the modifier.
	ModifierKindFixed ModifierKind = "fixed"
	// ModifierKindRangePercentage adds price × chosenPct/100 with chosenPct clamped into [Min, Max].
	ModifierKindRangePercentage ModifierKind = "range_percentage"
)

// ModifierScope restricts a modifier to a family of categories.
type ModifierScope string

const (
	// ScopeGeneral modifiers apply to every category.
	ScopeGeneral ModifierScope = "general"
	// ScopeTextile modifiers apply to textile categories only.
	ScopeTextile ModifierScope = "textile"
	// ScopeLeather modifiers apply to leather categories only.
	ScopeLeather ModifierScope = "leather"
)

// PriceModifier describes one named price adjustment from the catalog.
type PriceModifier struct {
	ID          string
	Name        string
	Description string
	Kind        ModifierKind
	Scope       ModifierScope
	// Percent is the adjustment for percentage modifiers (may be negative).
	Percent float64
	// MinPercent and MaxPercent bound range modifiers.
	MinPercent float64
	MaxPercent float64
	// UnitAmount is the per-unit charge for fixed modifiers.
	UnitAmount float64
	// Categories is the allow-list; empty means the modifier applies to all
	// categories within its scope.
	Categories []CategoryCode
}

// AppliesTo reports whether the modifier may be used for the category.
func (m PriceModifier) AppliesTo(category CategoryCode) bool {
	if len(m.Categories) == 0 {
		return true
	}
	for _, c := range m.Categories {
		if c == category {
			return true
		}
	}
	return false
}

// ExpediteTier enumerates turnaround surcharge levels.
type ExpediteTier string

const (
	// ExpediteStandard is the default turnaround with no surcharge.
	ExpediteStandard ExpediteTier = "STANDARD"
	// Expedite48h halves the turnaround for a +50% surcharge.
	Expedite48h ExpediteTier = "URGENT_48H"
	// Expedite24h is next-day turnaround for a +100% surcharge.
	Expedite24h ExpediteTier = "URGENT_24H"
)

// DiscountType enumerates the discount ladder offered at order level.
type DiscountType string

const (
	// DiscountNone applies no discount.
	DiscountNone DiscountType = "NONE"
	// DiscountEvercard is the loyalty card discount (10%).
	DiscountEvercard DiscountType = "EVERCARD"
	// DiscountSocialMedia is the social media promo discount (5%).
	DiscountSocialMedia DiscountType = "SOCIAL_MEDIA"
	// DiscountMilitary is the military service discount (10%).
	DiscountMilitary DiscountType = "MILITARY"
	// DiscountCustom carries an operator-entered percentage in [1, 50].
	DiscountCustom DiscountType = "CUSTOM"
)

// DiscountSelection pairs a discount type with the custom percentage used
// when the type is DiscountCustom.
type DiscountSelection struct {
	Type          DiscountType
	CustomPercent float64
	Description   string
}

// Adjustment records a single step of a price calculation for audit display.
type Adjustment struct {
	ModifierID  string
	Name        string
	Change      string
	PriceBefore float64
	PriceAfter  float64
	Delta       float64
}

// CalculationBreakdown is the itemised trace of one price calculation. It is
// produced fresh on every calculation and never mutated in place.
type CalculationBreakdown struct {
	BaseUnitPrice float64
	Quantity      int
	Subtotal      float64
	Adjustments   []Adjustment
	Expedite      *Adjustment
	Discount      *Adjustment
	// Warnings lists non-fatal issues such as skipped unknown modifier codes.
	Warnings []string
	// FinalPrice is the chargeable total, rounded half-up to 2 decimals.
	FinalPrice float64
	// FinalUnitPrice is FinalPrice divided by Quantity, rounded the same way.
	FinalUnitPrice float64
}
