package domain

import "time"

// Well-known reference codes with special validation rules.
const (
	// StainCodeOther requires a free-text description of the stain.
	StainCodeOther = "OTHER"
	// DefectCodeNoGuarantee requires a written reason for refusing a guarantee.
	DefectCodeNoGuarantee = "NO_GUARANTEE"
)

// MaxNoGuaranteeReasonLength bounds the free-text no-guarantee reason.
const MaxNoGuaranteeReasonLength = 200

// MaxPhotosPerItem caps the photo documentation of one item.
const MaxPhotosPerItem = 5

// FillerType enumerates the filling of padded items.
type FillerType string

const (
	// FillerDown marks natural down filling.
	FillerDown FillerType = "DOWN"
	// FillerSynthetic marks synthetic padding.
	FillerSynthetic FillerType = "SYNTHETIC"
	// FillerOther marks any other filling, described in notes.
	FillerOther FillerType = "OTHER"
	// FillerNone marks items without filling.
	FillerNone FillerType = "NONE"
)

// ItemBasicInfo is the first sub-wizard step: what the item is.
type ItemBasicInfo struct {
	Category      CategoryCode
	ItemName      string
	Quantity      int
	UnitOfMeasure string
}

// ItemCharacteristics is the second sub-wizard step: what the item is made of.
type ItemCharacteristics struct {
	Material         string
	Color            string
	CustomColor      string
	Filler           FillerType
	FillerCompressed bool
	WearDegree       string
}

// ItemStainsDefects is the third sub-wizard step: condition of the item.
type ItemStainsDefects struct {
	Stains            []string
	OtherStainNote    string
	Defects           []string
	DefectNotes       string
	NoGuaranteeReason string
}

// HasStain reports whether the given stain code was selected.
func (s ItemStainsDefects) HasStain(code string) bool {
	for _, c := range s.Stains {
		if c == code {
			return true
		}
	}
	return false
}

// HasDefect reports whether the given defect code was selected.
func (s ItemStainsDefects) HasDefect(code string) bool {
	for _, c := range s.Defects {
		if c == code {
			return true
		}
	}
	return false
}

// ItemPricing is the fourth sub-wizard step: modifier selection and the
// resulting breakdown.
type ItemPricing struct {
	BasePrice float64
	// ModifierIDs preserves selection order; the engine applies them in order.
	ModifierIDs []string
	// RangeValues holds the chosen percentage for selected range modifiers.
	RangeValues map[string]float64
	// FixedQuantities holds per-unit counts for fixed modifiers (e.g. buttons).
	FixedQuantities map[string]int
	Breakdown       *CalculationBreakdown
}

// PhotoRef points at an uploaded item photo.
type PhotoRef struct {
	ID         string
	ObjectName string
	UploadedAt time.Time
}

// ItemPhotos is the fifth sub-wizard step: photo documentation.
type ItemPhotos struct {
	Refs           []PhotoRef
	UploadInFlight bool
	UploadError    string
}

// ItemDraft is the in-progress representation of one order item across the
// sub-wizard steps. A draft becomes a committed OrderItem only through the
// explicit confirm transition.
type ItemDraft struct {
	ID              string
	BasicInfo       ItemBasicInfo
	Characteristics ItemCharacteristics
	StainsDefects   ItemStainsDefects
	Pricing         ItemPricing
	Photos          ItemPhotos
	CreatedAt       time.Time
}

// OrderItem is the immutable snapshot of a confirmed draft. Further edits
// must re-open a new draft.
type OrderItem struct {
	ID                string
	Category          CategoryCode
	Name              string
	Quantity          int
	UnitOfMeasure     string
	Material          string
	Color             string
	WearDegree        string
	Stains            []string
	Defects           []string
	NoGuaranteeReason string
	ModifierIDs       []string
	RangeValues       map[string]float64
	FixedQuantities   map[string]int
	BasePrice         float64
	FinalPrice        float64
	Breakdown         CalculationBreakdown
	PhotoRefs         []PhotoRef
	ConfirmedAt       time.Time
}
