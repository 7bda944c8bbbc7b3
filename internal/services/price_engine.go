package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	domain "github.com/pureclean/api/internal/domain"
)

// minPrice is the floor applied after every step that could drive the running
// price non-positive.
const minPrice = 1.0

// PriceCalculationCommand carries the inputs of one price calculation.
type PriceCalculationCommand struct {
	BasePrice float64
	Quantity  int
	Category  domain.CategoryCode
	// ModifierIDs preserves the operator's selection order.
	ModifierIDs []string
	// RangeValues maps a range modifier id to the chosen percentage.
	RangeValues map[string]float64
	// FixedQuantities maps a fixed modifier id to its unit count.
	FixedQuantities map[string]int
	Expedite        domain.ExpediteTier
	Discount        domain.DiscountSelection
}

// PriceEngineDeps wires the dependencies required by the price engine.
type PriceEngineDeps struct {
	Catalog *ModifierCatalog
	Policy  PricingPolicy
	Logger  func(ctx context.Context, event string, fields map[string]any)
}

// PriceEngine computes the chargeable price of an item. The application order
// is fixed: quantity subtotal, general modifiers, category-scoped modifiers,
// expedite surcharge, then discount. Rounding happens once, at the end.
type PriceEngine struct {
	catalog *ModifierCatalog
	policy  PricingPolicy
	logger  func(ctx context.Context, event string, fields map[string]any)
}

// NewPriceEngine constructs a PriceEngine validating required dependencies.
func NewPriceEngine(deps PriceEngineDeps) (*PriceEngine, error) {
	if deps.Catalog == nil {
		return nil, errors.New("price engine: modifier catalog is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &PriceEngine{catalog: deps.Catalog, policy: deps.Policy, logger: logger}, nil
}

// Calculate produces a fresh breakdown for the command. On error no partial
// breakdown is returned; callers keep whatever breakdown they held before.
func (e *PriceEngine) Calculate(ctx context.Context, cmd PriceCalculationCommand) (domain.CalculationBreakdown, error) {
	if cmd.BasePrice <= 0 {
		return domain.CalculationBreakdown{}, ErrCalcInvalidBasePrice
	}
	if cmd.Quantity <= 0 {
		return domain.CalculationBreakdown{}, fmt.Errorf("%w: quantity must be positive", ErrWizardInvalidInput)
	}
	if !e.policy.IsCategoryExpeditable(cmd.Category, cmd.Expedite) {
		return domain.CalculationBreakdown{}, ErrCalcNotExpeditable
	}
	if cmd.Discount.Type == domain.DiscountCustom {
		if _, ok := e.policy.EffectiveDiscountPercent(cmd.Discount); !ok {
			return domain.CalculationBreakdown{}, ErrCalcDiscountOutOfRange
		}
	}

	breakdown := domain.CalculationBreakdown{
		BaseUnitPrice: cmd.BasePrice,
		Quantity:      cmd.Quantity,
		Subtotal:      cmd.BasePrice * float64(cmd.Quantity),
	}

	price := breakdown.Subtotal

	general, scoped := e.partitionSelection(ctx, cmd, &breakdown)
	for _, m := range general {
		price = e.applyModifier(&breakdown, m, cmd, price)
	}
	for _, m := range scoped {
		price = e.applyModifier(&breakdown, m, cmd, price)
	}

	if pct := e.policy.SurchargeForTier(cmd.Expedite); pct > 0 {
		before := price
		price = floorPrice(price + price*pct/100)
		breakdown.Expedite = &domain.Adjustment{
			ModifierID:  string(cmd.Expedite),
			Name:        "Expedite surcharge",
			Change:      fmt.Sprintf("+%g%%", pct),
			PriceBefore: before,
			PriceAfter:  price,
			Delta:       price - before,
		}
	}

	if cmd.Discount.Type != domain.DiscountNone && cmd.Discount.Type != "" {
		if !e.policy.IsCategoryDiscountEligible(cmd.Category) {
			breakdown.Warnings = append(breakdown.Warnings,
				fmt.Sprintf("discount %s not applied: category %s is not discount-eligible", cmd.Discount.Type, cmd.Category))
		} else {
			pct, _ := e.policy.EffectiveDiscountPercent(cmd.Discount)
			if pct > 0 {
				before := price
				price = floorPrice(price - price*pct/100)
				breakdown.Discount = &domain.Adjustment{
					ModifierID:  string(cmd.Discount.Type),
					Name:        "Discount",
					Change:      fmt.Sprintf("-%g%%", pct),
					PriceBefore: before,
					PriceAfter:  price,
					Delta:       price - before,
				}
			}
		}
	}

	breakdown.FinalPrice = roundHalfUp(price)
	breakdown.FinalUnitPrice = roundHalfUp(price / float64(cmd.Quantity))
	return breakdown, nil
}

// partitionSelection resolves the selected modifier ids against the catalog,
// keeping the selection order within each scope group. Unknown or
// inapplicable ids are skipped with a warning rather than aborting.
func (e *PriceEngine) partitionSelection(ctx context.Context, cmd PriceCalculationCommand, breakdown *domain.CalculationBreakdown) (general, scoped []domain.PriceModifier) {
	for _, id := range cmd.ModifierIDs {
		m, ok := e.catalog.Lookup(id)
		if !ok {
			e.logger(ctx, "pricing.unknown_modifier", map[string]any{"modifierId": id})
			breakdown.Warnings = append(breakdown.Warnings, fmt.Sprintf("unknown modifier %q skipped", id))
			continue
		}
		if !m.AppliesTo(cmd.Category) {
			e.logger(ctx, "pricing.modifier_not_applicable", map[string]any{"modifierId": id, "category": cmd.Category})
			breakdown.Warnings = append(breakdown.Warnings, fmt.Sprintf("modifier %q not applicable to category %s", id, cmd.Category))
			continue
		}
		if m.Scope == domain.ScopeGeneral {
			general = append(general, m)
		} else {
			scoped = append(scoped, m)
		}
	}
	return general, scoped
}

func (e *PriceEngine) applyModifier(breakdown *domain.CalculationBreakdown, m domain.PriceModifier, cmd PriceCalculationCommand, price float64) float64 {
	before := price
	change := ""

	switch m.Kind {
	case domain.ModifierKindPercentage:
		price += price * m.Percent / 100
		change = fmt.Sprintf("%+g%%", m.Percent)
	case domain.ModifierKindRangePercentage:
		pct := (m.MinPercent + m.MaxPercent) / 2
		if chosen, ok := cmd.RangeValues[m.ID]; ok {
			pct = math.Min(math.Max(chosen, m.MinPercent), m.MaxPercent)
		}
		price += price * pct / 100
		change = fmt.Sprintf("+%g%%", pct)
	case domain.ModifierKindFixed:
		if units, ok := cmd.FixedQuantities[m.ID]; ok && units > 0 {
			price += m.UnitAmount * float64(units)
			change = fmt.Sprintf("+%g x %d", m.UnitAmount, units)
		} else {
			// Without an explicit unit count a fixed modifier replaces the
			// running price outright.
			price = m.UnitAmount
			change = fmt.Sprintf("=%g", m.UnitAmount)
		}
	}

	price = floorPrice(price)
	breakdown.Adjustments = append(breakdown.Adjustments, domain.Adjustment{
		ModifierID:  m.ID,
		Name:        m.Name,
		Change:      change,
		PriceBefore: before,
		PriceAfter:  price,
		Delta:       price - before,
	})
	return price
}

func floorPrice(price float64) float64 {
	if price < minPrice {
		return minPrice
	}
	return price
}

// roundHalfUp rounds to 2 decimal places, half away from zero, matching the
// receipt rounding used across the price list.
func roundHalfUp(value float64) float64 {
	return math.Floor(value*100+0.5) / 100
}
