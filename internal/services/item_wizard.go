package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/pureclean/api/internal/domain"
)

// colorOther marks the free-text color choice that needs a CustomColor note.
const colorOther = "OTHER"

// itemWizard drives the five-step item sub-wizard. It mutates the draft on a
// session clone; the caller commits the clone only when no error is returned.
type itemWizard struct {
	catalog CatalogService
	engine  *PriceEngine
}

func newItemWizard(catalog CatalogService, engine *PriceEngine) (*itemWizard, error) {
	if catalog == nil {
		return nil, errors.New("item wizard: catalog service is required")
	}
	if engine == nil {
		return nil, errors.New("item wizard: price engine is required")
	}
	return &itemWizard{catalog: catalog, engine: engine}, nil
}

// submit validates and applies one sub-wizard step, advancing the session on
// success.
func (w *itemWizard) submit(ctx context.Context, session *domain.WizardSession, step domain.WizardStep, payload StepPayload) error {
	if session.Draft == nil {
		return &StateError{From: session.Step, Event: "submit " + string(step)}
	}
	switch step {
	case domain.StepItemBasicInfo:
		return w.submitBasicInfo(ctx, session, payload.BasicInfo)
	case domain.StepItemCharacteristics:
		return w.submitCharacteristics(session, payload.Characteristics)
	case domain.StepItemStainsDefects:
		return w.submitStainsDefects(session, payload.StainsDefects)
	case domain.StepItemPricing:
		return w.submitPricing(ctx, session, payload.Pricing)
	case domain.StepItemPhotos:
		return w.submitPhotos(ctx, session, payload.Photos)
	case domain.StepItemConfirm:
		return w.confirm(session)
	default:
		return &StateError{From: session.Step, Event: "submit " + string(step)}
	}
}

// back moves one sub-wizard step backwards. Backing out of the first step
// discards the draft and returns to item management.
func (w *itemWizard) back(session *domain.WizardSession) {
	switch session.Step {
	case domain.StepItemBasicInfo:
		session.Draft = nil
		session.EditingItemID = ""
		session.EditMode = false
		session.Step = domain.StepItems
	case domain.StepItemCharacteristics:
		session.Step = domain.StepItemBasicInfo
	case domain.StepItemStainsDefects:
		session.Step = domain.StepItemCharacteristics
	case domain.StepItemPricing:
		session.Step = domain.StepItemStainsDefects
	case domain.StepItemPhotos:
		session.Step = domain.StepItemPricing
	case domain.StepItemConfirm:
		session.Step = domain.StepItemPhotos
	}
}

func (w *itemWizard) submitBasicInfo(ctx context.Context, session *domain.WizardSession, in *domain.ItemBasicInfo) error {
	if in == nil {
		return fmt.Errorf("%w: basic info payload is required", ErrWizardInvalidInput)
	}
	if in.Category == "" {
		return &ValidationError{Step: domain.StepItemBasicInfo, Field: "category", Message: "category is required"}
	}
	if strings.TrimSpace(in.ItemName) == "" {
		return &ValidationError{Step: domain.StepItemBasicInfo, Field: "itemName", Message: "item name is required"}
	}
	if in.Quantity < 1 {
		return &ValidationError{Step: domain.StepItemBasicInfo, Field: "quantity", Message: "quantity must be at least 1"}
	}

	entry, err := w.catalog.ResolveItem(ctx, in.Category, in.ItemName)
	if err != nil {
		if errors.Is(err, ErrCatalogItemNotFound) {
			return &ValidationError{Step: domain.StepItemBasicInfo, Field: "itemName", Message: "item is not on the price list for this category"}
		}
		return err
	}

	draft := session.Draft
	categoryChanged := draft.BasicInfo.Category != "" && draft.BasicInfo.Category != in.Category
	draft.BasicInfo = *in
	draft.BasicInfo.ItemName = entry.Name
	draft.BasicInfo.UnitOfMeasure = entry.UnitOfMeasure
	draft.Pricing.BasePrice = entry.BasePrice
	if categoryChanged {
		// The modifier selection and stale breakdown no longer apply.
		draft.Pricing.ModifierIDs = nil
		draft.Pricing.RangeValues = nil
		draft.Pricing.FixedQuantities = nil
		draft.Pricing.Breakdown = nil
	}

	session.Step = domain.StepItemCharacteristics
	return nil
}

func (w *itemWizard) submitCharacteristics(session *domain.WizardSession, in *domain.ItemCharacteristics) error {
	if in == nil {
		return fmt.Errorf("%w: characteristics payload is required", ErrWizardInvalidInput)
	}
	if strings.TrimSpace(in.Material) == "" {
		return &ValidationError{Step: domain.StepItemCharacteristics, Field: "material", Message: "material is required"}
	}
	if strings.TrimSpace(in.Color) == "" {
		return &ValidationError{Step: domain.StepItemCharacteristics, Field: "color", Message: "color is required"}
	}
	if in.Color == colorOther && strings.TrimSpace(in.CustomColor) == "" {
		return &ValidationError{Step: domain.StepItemCharacteristics, Field: "customColor", Message: "custom color description is required"}
	}
	if strings.TrimSpace(in.WearDegree) == "" {
		return &ValidationError{Step: domain.StepItemCharacteristics, Field: "wearDegree", Message: "wear degree is required"}
	}

	session.Draft.Characteristics = *in
	session.Step = domain.StepItemStainsDefects
	return nil
}

func (w *itemWizard) submitStainsDefects(session *domain.WizardSession, in *domain.ItemStainsDefects) error {
	if in == nil {
		return fmt.Errorf("%w: stains and defects payload is required", ErrWizardInvalidInput)
	}
	if in.HasStain(domain.StainCodeOther) && strings.TrimSpace(in.OtherStainNote) == "" {
		return &ValidationError{Step: domain.StepItemStainsDefects, Field: "otherStainNote", Message: "a note is required for the OTHER stain type"}
	}
	if in.HasDefect(domain.DefectCodeNoGuarantee) {
		reason := strings.TrimSpace(in.NoGuaranteeReason)
		if reason == "" {
			return &ValidationError{Step: domain.StepItemStainsDefects, Field: "noGuaranteeReason", Message: "a reason is required when refusing a guarantee"}
		}
		if len([]rune(reason)) > domain.MaxNoGuaranteeReasonLength {
			return &ValidationError{Step: domain.StepItemStainsDefects, Field: "noGuaranteeReason",
				Message: fmt.Sprintf("reason must not exceed %d characters", domain.MaxNoGuaranteeReasonLength)}
		}
	}

	session.Draft.StainsDefects = *in
	session.Step = domain.StepItemPricing
	return nil
}

// submitPricing runs the price engine over the selection. Item-level prices
// are computed without expedite or discount: those are order-level choices
// applied when the totals are derived.
func (w *itemWizard) submitPricing(ctx context.Context, session *domain.WizardSession, in *PricingStepInput) error {
	if in == nil {
		return fmt.Errorf("%w: pricing payload is required", ErrWizardInvalidInput)
	}
	draft := session.Draft
	breakdown, err := w.engine.Calculate(ctx, PriceCalculationCommand{
		BasePrice:       draft.Pricing.BasePrice,
		Quantity:        draft.BasicInfo.Quantity,
		Category:        draft.BasicInfo.Category,
		ModifierIDs:     in.ModifierIDs,
		RangeValues:     in.RangeValues,
		FixedQuantities: in.FixedQuantities,
		Expedite:        domain.ExpediteStandard,
		Discount:        domain.DiscountSelection{Type: domain.DiscountNone},
	})
	if err != nil {
		// The previous breakdown, if any, stays in place.
		return err
	}

	draft.Pricing.ModifierIDs = append([]string(nil), in.ModifierIDs...)
	draft.Pricing.RangeValues = in.RangeValues
	draft.Pricing.FixedQuantities = in.FixedQuantities
	draft.Pricing.Breakdown = &breakdown
	session.Step = domain.StepItemPhotos
	return nil
}

func (w *itemWizard) submitPhotos(ctx context.Context, session *domain.WizardSession, in *PhotosStepInput) error {
	if in == nil {
		in = &PhotosStepInput{}
	}
	draft := session.Draft
	if draft.Photos.UploadInFlight {
		return &ValidationError{Step: domain.StepItemPhotos, Field: "photos", Message: "wait for the running upload to finish"}
	}
	if draft.Photos.UploadError != "" && !in.ClearError {
		return &ValidationError{Step: domain.StepItemPhotos, Field: "photos", Message: "resolve the failed upload before continuing"}
	}

	refs := append([]domain.PhotoRef(nil), draft.Photos.Refs...)
	if in.RemovePhotoID != "" {
		kept := refs[:0]
		for _, ref := range refs {
			if ref.ID != in.RemovePhotoID {
				kept = append(kept, ref)
			}
		}
		refs = kept
	}
	refs = append(refs, in.AddRefs...)
	if len(refs) > domain.MaxPhotosPerItem {
		return &ValidationError{Step: domain.StepItemPhotos, Field: "photos",
			Message: fmt.Sprintf("at most %d photos per item", domain.MaxPhotosPerItem)}
	}
	if len(refs) == 0 {
		if !in.Skip {
			return &ValidationError{Step: domain.StepItemPhotos, Field: "photos", Message: "add at least one photo or skip explicitly"}
		}
		entry, err := w.catalog.ResolveItem(ctx, draft.BasicInfo.Category, draft.BasicInfo.ItemName)
		if err != nil {
			return err
		}
		if !entry.PhotosOptional {
			return &ValidationError{Step: domain.StepItemPhotos, Field: "photos", Message: "photos are required for this item"}
		}
	}

	draft.Photos.Refs = refs
	draft.Photos.UploadError = ""
	session.Step = domain.StepItemConfirm
	return nil
}

// confirm snapshots the draft into the committed item list. It is the only
// transition that produces an OrderItem.
func (w *itemWizard) confirm(session *domain.WizardSession) error {
	draft := session.Draft
	if draft.Pricing.Breakdown == nil {
		return &ValidationError{Step: domain.StepItemConfirm, Field: "pricing", Message: "price the item before confirming"}
	}

	item := domain.OrderItem{
		ID:                draft.ID,
		Category:          draft.BasicInfo.Category,
		Name:              draft.BasicInfo.ItemName,
		Quantity:          draft.BasicInfo.Quantity,
		UnitOfMeasure:     draft.BasicInfo.UnitOfMeasure,
		Material:          draft.Characteristics.Material,
		Color:             draft.Characteristics.Color,
		WearDegree:        draft.Characteristics.WearDegree,
		Stains:            append([]string(nil), draft.StainsDefects.Stains...),
		Defects:           append([]string(nil), draft.StainsDefects.Defects...),
		NoGuaranteeReason: draft.StainsDefects.NoGuaranteeReason,
		ModifierIDs:       append([]string(nil), draft.Pricing.ModifierIDs...),
		RangeValues:       copyFloatMap(draft.Pricing.RangeValues),
		FixedQuantities:   copyIntMap(draft.Pricing.FixedQuantities),
		BasePrice:         draft.Pricing.BasePrice,
		FinalPrice:        draft.Pricing.Breakdown.FinalPrice,
		Breakdown:         *draft.Pricing.Breakdown,
		PhotoRefs:         append([]domain.PhotoRef(nil), draft.Photos.Refs...),
		ConfirmedAt:       time.Now().UTC(),
	}

	if session.EditMode && session.EditingItemID != "" {
		replaced := false
		for i := range session.Items {
			if session.Items[i].ID == session.EditingItemID {
				item.ID = session.EditingItemID
				session.Items[i] = item
				replaced = true
				break
			}
		}
		if !replaced {
			session.Items = append(session.Items, item)
		}
	} else {
		session.Items = append(session.Items, item)
	}

	session.Draft = nil
	session.EditingItemID = ""
	session.EditMode = false
	session.Step = domain.StepItems
	return nil
}

func copyFloatMap(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyIntMap(in map[string]int) map[string]int {
	if in == nil {
		return nil
	}
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
