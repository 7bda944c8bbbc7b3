package domain

// CategoryCode identifies a service category from the price list.
type CategoryCode string

const (
	// CategoryClothing covers general textile garment cleaning.
	CategoryClothing CategoryCode = "CLOTHING"
	// CategoryLaundry covers washing of linens and garments.
	CategoryLaundry CategoryCode = "LAUNDRY"
	// CategoryIroning covers ironing-only services.
	CategoryIroning CategoryCode = "IRONING"
	// CategoryTextileDyeing covers re-dyeing of textile items.
	CategoryTextileDyeing CategoryCode = "TEXTILE_DYEING"
	// CategoryLeatherCleaning covers cleaning of leather garments.
	CategoryLeatherCleaning CategoryCode = "LEATHER_CLEANING"
	// CategoryLeatherRepair covers repair work on leather goods.
	CategoryLeatherRepair CategoryCode = "LEATHER_REPAIR"
	// CategorySheepskinCoat covers sheepskin coat processing.
	CategorySheepskinCoat CategoryCode = "SHEEPSKIN_COAT"
	// CategoryFurCleaning covers natural fur processing.
	CategoryFurCleaning CategoryCode = "FUR_CLEANING"
)

// CatalogItem is one price-list entry resolved for a category and item name.
type CatalogItem struct {
	Category       CategoryCode
	Name           string
	BasePrice      float64
	UnitOfMeasure  string
	PhotosOptional bool
}

// ReferenceEntry is a code+label pair from an ordered reference list.
type ReferenceEntry struct {
	Code  string
	Label string
}

// ReferenceLists bundles the per-category reference data the item wizard consumes.
type ReferenceLists struct {
	Materials []ReferenceEntry
	Colors    []ReferenceEntry
	Stains    []ReferenceEntry
	Defects   []ReferenceEntry
}
