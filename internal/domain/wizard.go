package domain

import "time"

// WizardStage is a top-level phase of the order wizard.
type WizardStage string

const (
	// StageClient collects client identity and order basics.
	StageClient WizardStage = "client"
	// StageItems hosts item sub-wizard runs until at least one item is committed.
	StageItems WizardStage = "items"
	// StageParameters collects order-level execution, discount, payment and notes.
	StageParameters WizardStage = "parameters"
	// StageCompleted is terminal; the order has been committed.
	StageCompleted WizardStage = "completed"
)

// WizardStep identifies one step of the wizard; used as the step key on the
// submit API.
type WizardStep string

const (
	// StepClientInfo is the single Stage 1 step.
	StepClientInfo WizardStep = "client_info"
	// StepItems is the Stage 2 item management step.
	StepItems WizardStep = "items"
	// StepItemBasicInfo through StepItemConfirm are the item sub-wizard steps.
	StepItemBasicInfo       WizardStep = "item_basic_info"
	StepItemCharacteristics WizardStep = "item_characteristics"
	StepItemStainsDefects   WizardStep = "item_stains_defects"
	StepItemPricing         WizardStep = "item_pricing"
	StepItemPhotos          WizardStep = "item_photos"
	StepItemConfirm         WizardStep = "item_confirm"
	// StepExecutionParams through StepAdditionalInfo are the Stage 3 sub-steps.
	StepExecutionParams WizardStep = "execution_params"
	StepDiscount        WizardStep = "discount"
	StepPayment         WizardStep = "payment"
	StepAdditionalInfo  WizardStep = "additional_info"
	// StepConfirmOrder commits the order and completes the wizard.
	StepConfirmOrder WizardStep = "confirm_order"
	// StepCompleted is the terminal pseudo-step.
	StepCompleted WizardStep = "completed"
)

// Stage reports which top-level stage a step belongs to.
func (s WizardStep) Stage() WizardStage {
	switch s {
	case StepClientInfo:
		return StageClient
	case StepItems, StepItemBasicInfo, StepItemCharacteristics, StepItemStainsDefects,
		StepItemPricing, StepItemPhotos, StepItemConfirm:
		return StageItems
	case StepExecutionParams, StepDiscount, StepPayment, StepAdditionalInfo, StepConfirmOrder:
		return StageParameters
	default:
		return StageCompleted
	}
}

// WizardSession carries the full state of one wizard run. Each step owns a
// typed field; there is no string-keyed variable bag. A session is exclusively
// owned by the workflow that created it.
type WizardSession struct {
	ID            string
	OrderID       string
	EditingItemID string

	Stage WizardStage
	Step  WizardStep

	EditMode             bool
	CurrentStepCompleted bool
	CanProceed           bool

	HasErrors    bool
	ErrorMessage string

	Client *ClientInfo
	// Draft is the active item sub-wizard draft, nil outside a sub-wizard run.
	Draft *ItemDraft
	// Items holds the committed order items.
	Items      []OrderItem
	Parameters *OrderParametersState

	CreatedAt    time.Time
	LastActivity time.Time
}

// ItemTotal sums the final prices of all committed items.
func (s *WizardSession) ItemTotal() float64 {
	var total float64
	for _, item := range s.Items {
		total += item.FinalPrice
	}
	return total
}

// HasCategory reports whether any committed item belongs to one of the
// given categories.
func (s *WizardSession) HasCategory(categories ...CategoryCode) bool {
	for _, item := range s.Items {
		for _, c := range categories {
			if item.Category == c {
				return true
			}
		}
	}
	return false
}

// Clone returns a deep copy of the session so that guard/action evaluation can
// work on a snapshot and commit all-or-nothing.
func (s *WizardSession) Clone() *WizardSession {
	if s == nil {
		return nil
	}
	out := *s
	if s.Client != nil {
		client := *s.Client
		out.Client = &client
	}
	if s.Draft != nil {
		out.Draft = cloneDraft(s.Draft)
	}
	if s.Parameters != nil {
		params := *s.Parameters
		params.ValidationMessages = append([]string(nil), s.Parameters.ValidationMessages...)
		out.Parameters = &params
	}
	out.Items = append([]OrderItem(nil), s.Items...)
	return &out
}

func cloneDraft(d *ItemDraft) *ItemDraft {
	out := *d
	out.StainsDefects.Stains = append([]string(nil), d.StainsDefects.Stains...)
	out.StainsDefects.Defects = append([]string(nil), d.StainsDefects.Defects...)
	out.Pricing.ModifierIDs = append([]string(nil), d.Pricing.ModifierIDs...)
	if d.Pricing.RangeValues != nil {
		out.Pricing.RangeValues = make(map[string]float64, len(d.Pricing.RangeValues))
		for k, v := range d.Pricing.RangeValues {
			out.Pricing.RangeValues[k] = v
		}
	}
	if d.Pricing.FixedQuantities != nil {
		out.Pricing.FixedQuantities = make(map[string]int, len(d.Pricing.FixedQuantities))
		for k, v := range d.Pricing.FixedQuantities {
			out.Pricing.FixedQuantities[k] = v
		}
	}
	if d.Pricing.Breakdown != nil {
		breakdown := *d.Pricing.Breakdown
		breakdown.Adjustments = append([]Adjustment(nil), d.Pricing.Breakdown.Adjustments...)
		breakdown.Warnings = append([]string(nil), d.Pricing.Breakdown.Warnings...)
		out.Pricing.Breakdown = &breakdown
	}
	out.Photos.Refs = append([]PhotoRef(nil), d.Photos.Refs...)
	return &out
}
