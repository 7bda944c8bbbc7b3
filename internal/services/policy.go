package services

import (
	"time"

	domain "github.com/pureclean/api/internal/domain"
)

// Discount percentage bounds for the custom discount type.
const (
	minCustomDiscountPercent = 1
	maxCustomDiscountPercent = 50
)

var nonDiscountableCategories = map[domain.CategoryCode]struct{}{
	domain.CategoryIroning:       {},
	domain.CategoryLaundry:       {},
	domain.CategoryTextileDyeing: {},
}

var extendedProcessingCategories = map[domain.CategoryCode]struct{}{
	domain.CategoryLeatherCleaning: {},
	domain.CategoryLeatherRepair:   {},
	domain.CategorySheepskinCoat:   {},
}

var defaultDiscountPercents = map[domain.DiscountType]float64{
	domain.DiscountNone:        0,
	domain.DiscountEvercard:    10,
	domain.DiscountSocialMedia: 5,
	domain.DiscountMilitary:    10,
}

// PricingPolicy answers discount-eligibility and expedite questions. It holds
// no mutable state and is safe to share across sessions.
type PricingPolicy struct{}

// NewPricingPolicy constructs the standard policy.
func NewPricingPolicy() PricingPolicy { return PricingPolicy{} }

// IsCategoryDiscountEligible reports whether discounts apply to the category.
// Ironing, laundry and textile dyeing are excluded by business rule.
func (PricingPolicy) IsCategoryDiscountEligible(category domain.CategoryCode) bool {
	_, excluded := nonDiscountableCategories[category]
	return !excluded
}

// IsCategoryExpeditable reports whether a non-standard tier may be requested
// for the category. Leather goods need extended processing and cannot be
// expedited.
func (PricingPolicy) IsCategoryExpeditable(category domain.CategoryCode, tier domain.ExpediteTier) bool {
	if tier == domain.ExpediteStandard || tier == "" {
		return true
	}
	_, extended := extendedProcessingCategories[category]
	return !extended
}

// SurchargeForTier returns the expedite surcharge percentage.
func (PricingPolicy) SurchargeForTier(tier domain.ExpediteTier) float64 {
	switch tier {
	case domain.Expedite48h:
		return 50
	case domain.Expedite24h:
		return 100
	default:
		return 0
	}
}

// DefaultDiscountPercent returns the percentage attached to a named discount
// type. Custom discounts carry their own operator-entered percentage.
func (PricingPolicy) DefaultDiscountPercent(t domain.DiscountType) float64 {
	return defaultDiscountPercents[t]
}

// EffectiveDiscountPercent resolves the percentage for a selection. The
// second return value is false when a custom percentage is out of bounds.
func (p PricingPolicy) EffectiveDiscountPercent(sel domain.DiscountSelection) (float64, bool) {
	if sel.Type == domain.DiscountCustom {
		if sel.CustomPercent < minCustomDiscountPercent || sel.CustomPercent > maxCustomDiscountPercent {
			return 0, false
		}
		return sel.CustomPercent, true
	}
	return p.DefaultDiscountPercent(sel.Type), true
}

// ProcessingDays returns the turnaround in business days for an item mix.
func (PricingPolicy) ProcessingDays(hasLeatherItems bool) int {
	if hasLeatherItems {
		return domain.LeatherProcessingDays
	}
	return domain.StandardProcessingDays
}

// IsExtendedProcessingCategory reports whether the category needs the
// 14-day leather turnaround.
func (PricingPolicy) IsExtendedProcessingCategory(category domain.CategoryCode) bool {
	_, extended := extendedProcessingCategories[category]
	return extended
}

// StandardCompletionDate walks forward the given number of business days,
// skipping Saturdays and Sundays.
func (PricingPolicy) StandardCompletionDate(from time.Time, businessDays int) time.Time {
	date := from
	added := 0
	for added < businessDays {
		date = date.AddDate(0, 0, 1)
		switch date.Weekday() {
		case time.Saturday, time.Sunday:
			continue
		default:
			added++
		}
	}
	return date
}

// TierForDate infers the expedite tier implied by a chosen completion date.
func (p PricingPolicy) TierForDate(now, selected, standard time.Time) domain.ExpediteTier {
	if selected.IsZero() || standard.IsZero() {
		return domain.ExpediteStandard
	}
	if !selected.Before(standard) {
		return domain.ExpediteStandard
	}
	days := int(selected.Sub(now).Hours() / 24)
	switch {
	case days <= 1:
		return domain.Expedite24h
	default:
		return domain.Expedite48h
	}
}

// DateForTier returns the completion date implied by a tier selection.
func (PricingPolicy) DateForTier(now time.Time, tier domain.ExpediteTier, standard time.Time) time.Time {
	switch tier {
	case domain.Expedite24h:
		return now.AddDate(0, 0, 1)
	case domain.Expedite48h:
		return now.AddDate(0, 0, 2)
	default:
		return standard
	}
}
