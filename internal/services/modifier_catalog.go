package services

import (
	"sort"

	domain "github.com/pureclean/api/internal/domain"
)

var textileCategories = []domain.CategoryCode{
	domain.CategoryClothing,
	domain.CategoryLaundry,
	domain.CategoryIroning,
	domain.CategoryTextileDyeing,
}

var leatherCategories = []domain.CategoryCode{
	domain.CategoryLeatherCleaning,
	domain.CategoryLeatherRepair,
	domain.CategorySheepskinCoat,
}

// ModifierCatalog is the immutable registry of price modifiers. It is built
// once at startup and safe for concurrent reads.
type ModifierCatalog struct {
	byID  map[string]domain.PriceModifier
	order []string
}

// NewModifierCatalog builds the registry from the standard price-list rules.
func NewModifierCatalog() *ModifierCatalog {
	return newCatalog(standardModifiers())
}

// NewModifierCatalogFrom builds a registry from a custom modifier set. Later
// duplicates of an id override earlier ones.
func NewModifierCatalogFrom(modifiers []domain.PriceModifier) *ModifierCatalog {
	return newCatalog(modifiers)
}

func newCatalog(modifiers []domain.PriceModifier) *ModifierCatalog {
	catalog := &ModifierCatalog{byID: make(map[string]domain.PriceModifier, len(modifiers))}
	for _, m := range modifiers {
		if _, ok := catalog.byID[m.ID]; !ok {
			catalog.order = append(catalog.order, m.ID)
		}
		catalog.byID[m.ID] = m
	}
	return catalog
}

// Lookup returns the modifier for the id.
func (c *ModifierCatalog) Lookup(id string) (domain.PriceModifier, bool) {
	m, ok := c.byID[id]
	return m, ok
}

// All returns every modifier in registration order.
func (c *ModifierCatalog) All() []domain.PriceModifier {
	out := make([]domain.PriceModifier, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// ForCategory returns the modifiers applicable to the category, generals
// first, then scoped ones, each group in registration order.
func (c *ModifierCatalog) ForCategory(category domain.CategoryCode) []domain.PriceModifier {
	out := make([]domain.PriceModifier, 0, len(c.order))
	for _, m := range c.All() {
		if m.AppliesTo(category) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return scopeRank(out[i].Scope) < scopeRank(out[j].Scope)
	})
	return out
}

func scopeRank(scope domain.ModifierScope) int {
	if scope == domain.ScopeGeneral {
		return 0
	}
	return 1
}

func standardModifiers() []domain.PriceModifier {
	return []domain.PriceModifier{
		// General modifiers, available for every category.
		{
			ID:      "kids_items",
			Name:    "Kids items (up to size 30)",
			Kind:    domain.ModifierKindPercentage,
			Scope:   domain.ScopeGeneral,
			Percent: -30,
		},
		{
			ID:      "manual_cleaning",
			Name:    "Manual cleaning",
			Kind:    domain.ModifierKindPercentage,
			Scope:   domain.ScopeGeneral,
			Percent: 20,
		},
		{
			ID:         "very_dirty_items",
			Name:       "Heavily soiled items",
			Kind:       domain.ModifierKindRangePercentage,
			Scope:      domain.ScopeGeneral,
			MinPercent: 20,
			MaxPercent: 100,
		},
		{
			ID:         "urgent_cleaning",
			Name:       "Urgent cleaning",
			Kind:       domain.ModifierKindRangePercentage,
			Scope:      domain.ScopeGeneral,
			MinPercent: 50,
			MaxPercent: 100,
		},

		// Textile modifiers.
		{
			ID:         "fur_collars",
			Name:       "Items with fur collars and cuffs",
			Kind:       domain.ModifierKindPercentage,
			Scope:      domain.ScopeTextile,
			Percent:    30,
			Categories: textileCategories,
		},
		{
			ID:         "water_repellent",
			Name:       "Water-repellent coating",
			Kind:       domain.ModifierKindPercentage,
			Scope:      domain.ScopeTextile,
			Percent:    30,
			Categories: textileCategories,
		},
		{
			ID:         "silk_products",
			Name:       "Natural silk, satin and chiffon items",
			Kind:       domain.ModifierKindPercentage,
			Scope:      domain.ScopeTextile,
			Percent:    50,
			Categories: textileCategories,
		},
		{
			ID:         "combined_products",
			Name:       "Combined leather and textile items",
			Kind:       domain.ModifierKindPercentage,
			Scope:      domain.ScopeTextile,
			Percent:    100,
			Categories: textileCategories,
		},
		{
			ID:         "large_toys",
			Name:       "Manual cleaning of large soft toys",
			Kind:       domain.ModifierKindPercentage,
			Scope:      domain.ScopeTextile,
			Percent:    100,
			Categories: textileCategories,
		},
		{
			ID:         "sewing_buttons",
			Name:       "Sewing buttons",
			Kind:       domain.ModifierKindFixed,
			Scope:      domain.ScopeTextile,
			UnitAmount: 10,
			Categories: textileCategories,
		},
		{
			ID:         "black_light_colors",
			Name:       "Black and light-colored items",
			Kind:       domain.ModifierKindPercentage,
			Scope:      domain.ScopeTextile,
			Percent:    20,
			Categories: textileCategories,
		},
		{
			ID:         "wedding_dress",
			Name:       "Wedding dress with train",
			Kind:       domain.ModifierKindPercentage,
			Scope:      domain.ScopeTextile,
			Percent:    30,
			Categories: textileCategories,
		},

		// Leather modifiers.
		{
			ID:         "leather_ironing",
			Name:       "Ironing of leather items",
			Kind:       domain.ModifierKindPercentage,
			Scope:      domain.ScopeLeather,
			Percent:    70,
			Categories: leatherCategories,
		},
		{
			ID:         "leather_water_repellent",
			Name:       "Water-repellent coating for leather",
			Kind:       domain.ModifierKindPercentage,
			Scope:      domain.ScopeLeather,
			Percent:    30,
			Categories: leatherCategories,
		},
		{
			ID:         "leather_coloring_after_our_cleaning",
			Name:       "Coloring after in-house cleaning",
			Kind:       domain.ModifierKindPercentage,
			Scope:      domain.ScopeLeather,
			Percent:    50,
			Categories: leatherCategories,
		},
		{
			ID:         "leather_coloring_after_other_cleaning",
			Name:       "Coloring after third-party cleaning",
			Kind:       domain.ModifierKindPercentage,
			Scope:      domain.ScopeLeather,
			Percent:    100,
			Categories: leatherCategories,
		},
		{
			ID:         "leather_with_inserts",
			Name:       "Leather items with inserts",
			Kind:       domain.ModifierKindPercentage,
			Scope:      domain.ScopeLeather,
			Percent:    30,
			Categories: leatherCategories,
		},
		{
			ID:         "pearl_coating",
			Name:       "Pearl coating",
			Kind:       domain.ModifierKindPercentage,
			Scope:      domain.ScopeLeather,
			Percent:    30,
			Categories: leatherCategories,
		},
		{
			ID:         "natural_sheepskin",
			Name:       "Natural sheepskin on faux fur",
			Kind:       domain.ModifierKindPercentage,
			Scope:      domain.ScopeLeather,
			Percent:    -20,
			Categories: leatherCategories,
		},
		{
			ID:         "leather_sewing_buttons",
			Name:       "Sewing buttons (leather)",
			Kind:       domain.ModifierKindFixed,
			Scope:      domain.ScopeLeather,
			UnitAmount: 10,
			Categories: leatherCategories,
		},
		{
			ID:         "manual_leather_cleaning",
			Name:       "Manual cleaning of leather items",
			Kind:       domain.ModifierKindPercentage,
			Scope:      domain.ScopeLeather,
			Percent:    30,
			Categories: leatherCategories,
		},
	}
}
