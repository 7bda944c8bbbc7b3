package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/pureclean/api/internal/domain"
)

func newTestEngine(t *testing.T) *PriceEngine {
	t.Helper()
	engine, err := NewPriceEngine(PriceEngineDeps{
		Catalog: NewModifierCatalog(),
		Policy:  NewPricingPolicy(),
	})
	if err != nil {
		t.Fatalf("NewPriceEngine: %v", err)
	}
	return engine
}

func TestPriceEngineChainOrder(t *testing.T) {
	engine := newTestEngine(t)

	// 100 x 2 = 200, +20% manual cleaning = 240, 24h expedite +100% = 480,
	// 10% evercard discount = 432.00.
	got, err := engine.Calculate(context.Background(), PriceCalculationCommand{
		BasePrice:   100,
		Quantity:    2,
		Category:    domain.CategoryClothing,
		ModifierIDs: []string{"manual_cleaning"},
		Expedite:    domain.Expedite24h,
		Discount:    domain.DiscountSelection{Type: domain.DiscountEvercard},
	})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if got.Subtotal != 200 {
		t.Fatalf("subtotal = %v, want 200", got.Subtotal)
	}
	if len(got.Adjustments) != 1 || got.Adjustments[0].PriceAfter != 240 {
		t.Fatalf("adjustments = %+v, want manual_cleaning to 240", got.Adjustments)
	}
	if got.Expedite == nil || got.Expedite.PriceAfter != 480 {
		t.Fatalf("expedite = %+v, want price 480", got.Expedite)
	}
	if got.Discount == nil || got.Discount.Delta != -48 {
		t.Fatalf("discount = %+v, want delta -48", got.Discount)
	}
	if got.FinalPrice != 432.00 {
		t.Fatalf("final price = %v, want 432.00", got.FinalPrice)
	}
	if got.FinalUnitPrice != 216.00 {
		t.Fatalf("final unit price = %v, want 216.00", got.FinalUnitPrice)
	}
}

func TestPriceEngineGeneralBeforeCategoryScoped(t *testing.T) {
	engine := newTestEngine(t)

	// Selection lists the textile modifier first, but general modifiers are
	// still applied ahead of category-scoped ones:
	// 100 -> kids -30% = 70 -> silk +50% = 105.
	got, err := engine.Calculate(context.Background(), PriceCalculationCommand{
		BasePrice:   100,
		Quantity:    1,
		Category:    domain.CategoryClothing,
		ModifierIDs: []string{"silk_products", "kids_items"},
	})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if len(got.Adjustments) != 2 {
		t.Fatalf("adjustments = %+v, want 2", got.Adjustments)
	}
	if got.Adjustments[0].ModifierID != "kids_items" || got.Adjustments[0].PriceAfter != 70 {
		t.Fatalf("first adjustment = %+v, want kids_items to 70", got.Adjustments[0])
	}
	if got.Adjustments[1].ModifierID != "silk_products" || got.Adjustments[1].PriceAfter != 105 {
		t.Fatalf("second adjustment = %+v, want silk_products to 105", got.Adjustments[1])
	}
	if got.FinalPrice != 105.00 {
		t.Fatalf("final price = %v, want 105.00", got.FinalPrice)
	}
}

func TestPriceEngineDiscountSkippedForExcludedCategory(t *testing.T) {
	engine := newTestEngine(t)

	got, err := engine.Calculate(context.Background(), PriceCalculationCommand{
		BasePrice: 50,
		Quantity:  1,
		Category:  domain.CategoryIroning,
		Discount:  domain.DiscountSelection{Type: domain.DiscountMilitary},
	})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if got.Discount != nil {
		t.Fatalf("discount = %+v, want nil for ironing", got.Discount)
	}
	if len(got.Warnings) == 0 {
		t.Fatalf("expected a warning about the skipped discount")
	}
	if got.FinalPrice != 50.00 {
		t.Fatalf("final price = %v, want 50.00", got.FinalPrice)
	}
}

func TestPriceEngineRangeModifier(t *testing.T) {
	engine := newTestEngine(t)

	cases := []struct {
		name   string
		ranges map[string]float64
		want   float64
	}{
		{name: "chosen value", ranges: map[string]float64{"very_dirty_items": 40}, want: 140.00},
		{name: "clamped above max", ranges: map[string]float64{"very_dirty_items": 500}, want: 200.00},
		{name: "clamped below min", ranges: map[string]float64{"very_dirty_items": 5}, want: 120.00},
		{name: "default midpoint", ranges: nil, want: 160.00},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := engine.Calculate(context.Background(), PriceCalculationCommand{
				BasePrice:   100,
				Quantity:    1,
				Category:    domain.CategoryClothing,
				ModifierIDs: []string{"very_dirty_items"},
				RangeValues: tc.ranges,
			})
			if err != nil {
				t.Fatalf("Calculate: %v", err)
			}
			if got.FinalPrice != tc.want {
				t.Fatalf("final price = %v, want %v", got.FinalPrice, tc.want)
			}
		})
	}
}

func TestPriceEngineFixedModifierWithQuantity(t *testing.T) {
	engine := newTestEngine(t)

	got, err := engine.Calculate(context.Background(), PriceCalculationCommand{
		BasePrice:       200,
		Quantity:        1,
		Category:        domain.CategoryClothing,
		ModifierIDs:     []string{"sewing_buttons"},
		FixedQuantities: map[string]int{"sewing_buttons": 4},
	})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if got.FinalPrice != 240.00 {
		t.Fatalf("final price = %v, want 240.00 (200 + 10 x 4)", got.FinalPrice)
	}
}

func TestPriceEngineUnknownModifierSkipped(t *testing.T) {
	engine := newTestEngine(t)

	got, err := engine.Calculate(context.Background(), PriceCalculationCommand{
		BasePrice:   100,
		Quantity:    1,
		Category:    domain.CategoryClothing,
		ModifierIDs: []string{"no_such_modifier", "manual_cleaning"},
	})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if len(got.Adjustments) != 1 || got.Adjustments[0].ModifierID != "manual_cleaning" {
		t.Fatalf("adjustments = %+v, want only manual_cleaning", got.Adjustments)
	}
	if len(got.Warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one", got.Warnings)
	}
	if got.FinalPrice != 120.00 {
		t.Fatalf("final price = %v, want 120.00", got.FinalPrice)
	}
}

func TestPriceEngineInapplicableModifierSkipped(t *testing.T) {
	engine := newTestEngine(t)

	// A leather-scoped modifier selected for a clothing item must not apply.
	got, err := engine.Calculate(context.Background(), PriceCalculationCommand{
		BasePrice:   100,
		Quantity:    1,
		Category:    domain.CategoryClothing,
		ModifierIDs: []string{"leather_ironing"},
	})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if len(got.Adjustments) != 0 {
		t.Fatalf("adjustments = %+v, want none", got.Adjustments)
	}
	if got.FinalPrice != 100.00 {
		t.Fatalf("final price = %v, want 100.00", got.FinalPrice)
	}
}

func TestPriceEngineFloorAtMinimum(t *testing.T) {
	engine := newTestEngine(t)

	// 2 -> kids -30% = 1.4 -> natural sheepskin path not applicable here;
	// a large custom discount cannot push the price below 1.
	got, err := engine.Calculate(context.Background(), PriceCalculationCommand{
		BasePrice:   2,
		Quantity:    1,
		Category:    domain.CategoryClothing,
		ModifierIDs: []string{"kids_items"},
		Discount:    domain.DiscountSelection{Type: domain.DiscountCustom, CustomPercent: 50},
	})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if got.FinalPrice < 1 {
		t.Fatalf("final price = %v, want >= 1", got.FinalPrice)
	}
}

func TestPriceEngineExpediteRejectedForLeather(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.Calculate(context.Background(), PriceCalculationCommand{
		BasePrice: 300,
		Quantity:  1,
		Category:  domain.CategoryLeatherCleaning,
		Expedite:  domain.Expedite48h,
	})
	if !errors.Is(err, ErrCalcNotExpeditable) {
		t.Fatalf("err = %v, want ErrCalcNotExpeditable", err)
	}
}

func TestPriceEngineCustomDiscountBounds(t *testing.T) {
	engine := newTestEngine(t)

	for _, pct := range []float64{0, -5, 51, 100} {
		_, err := engine.Calculate(context.Background(), PriceCalculationCommand{
			BasePrice: 100,
			Quantity:  1,
			Category:  domain.CategoryClothing,
			Discount:  domain.DiscountSelection{Type: domain.DiscountCustom, CustomPercent: pct},
		})
		if !errors.Is(err, ErrCalcDiscountOutOfRange) {
			t.Fatalf("pct %v: err = %v, want ErrCalcDiscountOutOfRange", pct, err)
		}
	}

	got, err := engine.Calculate(context.Background(), PriceCalculationCommand{
		BasePrice: 100,
		Quantity:  1,
		Category:  domain.CategoryClothing,
		Discount:  domain.DiscountSelection{Type: domain.DiscountCustom, CustomPercent: 25},
	})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if got.FinalPrice != 75.00 {
		t.Fatalf("final price = %v, want 75.00", got.FinalPrice)
	}
}

func TestPriceEngineInvalidInputs(t *testing.T) {
	engine := newTestEngine(t)

	if _, err := engine.Calculate(context.Background(), PriceCalculationCommand{BasePrice: 0, Quantity: 1}); !errors.Is(err, ErrCalcInvalidBasePrice) {
		t.Fatalf("zero base price: err = %v, want ErrCalcInvalidBasePrice", err)
	}
	if _, err := engine.Calculate(context.Background(), PriceCalculationCommand{BasePrice: 10, Quantity: 0}); !errors.Is(err, ErrWizardInvalidInput) {
		t.Fatalf("zero quantity: err = %v, want ErrWizardInvalidInput", err)
	}
}

func TestPriceEngineDeterministic(t *testing.T) {
	engine := newTestEngine(t)

	cmd := PriceCalculationCommand{
		BasePrice:   149.5,
		Quantity:    3,
		Category:    domain.CategoryClothing,
		ModifierIDs: []string{"manual_cleaning", "black_light_colors", "silk_products"},
		Expedite:    domain.Expedite48h,
		Discount:    domain.DiscountSelection{Type: domain.DiscountSocialMedia},
	}
	first, err := engine.Calculate(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := engine.Calculate(context.Background(), cmd)
		if err != nil {
			t.Fatalf("Calculate repeat %d: %v", i, err)
		}
		if again.FinalPrice != first.FinalPrice {
			t.Fatalf("repeat %d: final price %v != %v", i, again.FinalPrice, first.FinalPrice)
		}
	}
}
