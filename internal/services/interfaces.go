package services

import (
	"context"
	"time"

	domain "github.com/pureclean/api/internal/domain"
)

// CatalogService resolves price-list entries for the item sub-wizard.
type CatalogService interface {
	// Categories lists the service categories in price-list order.
	Categories(ctx context.Context) ([]domain.CategoryCode, error)
	// ItemsForCategory lists the catalog entries of one category.
	ItemsForCategory(ctx context.Context, category domain.CategoryCode) ([]domain.CatalogItem, error)
	// ResolveItem returns the entry for a category and item name.
	ResolveItem(ctx context.Context, category domain.CategoryCode, name string) (domain.CatalogItem, error)
}

// ReferenceDataService serves the ordered reference lists and the modifier
// subset applicable to a category.
type ReferenceDataService interface {
	Lists(ctx context.Context, category domain.CategoryCode) (domain.ReferenceLists, error)
	Modifiers(ctx context.Context, category domain.CategoryCode) ([]domain.PriceModifier, error)
}

// PriceListRepository reads the price list and reference data the catalog
// services are built on.
type PriceListRepository interface {
	Categories(ctx context.Context) ([]domain.CategoryCode, error)
	ItemsForCategory(ctx context.Context, category domain.CategoryCode) ([]domain.CatalogItem, error)
	FindItem(ctx context.Context, category domain.CategoryCode, name string) (domain.CatalogItem, bool, error)
	ReferenceLists(ctx context.Context, category domain.CategoryCode) (domain.ReferenceLists, error)
}

// OrderRepository persists committed orders.
type OrderRepository interface {
	Save(ctx context.Context, order *domain.Order) error
	Get(ctx context.Context, id string) (*domain.Order, error)
}

// SessionStore persists wizard sessions between requests.
type SessionStore interface {
	Create(ctx context.Context, session *domain.WizardSession) error
	Get(ctx context.Context, id string) (*domain.WizardSession, error)
	Save(ctx context.Context, session *domain.WizardSession) error
	Delete(ctx context.Context, id string) error
}

// OrderSink receives the committed order at the end of a wizard run.
type OrderSink interface {
	Commit(ctx context.Context, order *domain.Order) error
}

// PhotoStore uploads item photos and issues client-facing URLs for them.
type PhotoStore interface {
	Upload(ctx context.Context, sessionID, itemID, fileName string, data []byte) (domain.PhotoRef, error)
	SignedURL(ctx context.Context, ref domain.PhotoRef, ttl time.Duration) (string, error)
}

// ItemsAction names the operator action on the Stage 2 item management step.
type ItemsAction string

const (
	// ItemsActionAddItem opens a fresh item sub-wizard draft.
	ItemsActionAddItem ItemsAction = "add_item"
	// ItemsActionEditItem re-opens a committed item as a draft.
	ItemsActionEditItem ItemsAction = "edit_item"
	// ItemsActionDeleteItem removes a committed item.
	ItemsActionDeleteItem ItemsAction = "delete_item"
	// ItemsActionProceed advances to the order parameters stage.
	ItemsActionProceed ItemsAction = "proceed"
)

// ItemsStepInput is the payload of the Stage 2 item management step.
type ItemsStepInput struct {
	Action ItemsAction
	ItemID string
}

// PricingStepInput is the payload of the item pricing step.
type PricingStepInput struct {
	ModifierIDs     []string
	RangeValues     map[string]float64
	FixedQuantities map[string]int
}

// PhotosStepInput is the payload of the item photos step. AddRefs come from
// the photo upload endpoint; Skip is only honored where the catalog entry
// marks photos optional.
type PhotosStepInput struct {
	AddRefs       []domain.PhotoRef
	RemovePhotoID string
	Skip          bool
	// ClearError acknowledges a recorded upload failure; the step will not
	// advance while one is outstanding.
	ClearError bool
}

// StepPayload carries the typed payload of one submit. Exactly the field
// matching the submitted step is consulted; the rest are ignored.
type StepPayload struct {
	Client          *domain.ClientInfo
	Items           *ItemsStepInput
	BasicInfo       *domain.ItemBasicInfo
	Characteristics *domain.ItemCharacteristics
	StainsDefects   *domain.ItemStainsDefects
	Pricing         *PricingStepInput
	Photos          *PhotosStepInput
	Execution       *domain.ExecutionParams
	Discount        *domain.DiscountSelection
	Payment         *domain.PaymentParams
	Additional      *domain.AdditionalInfo
}

// SubmitStepCommand asks the wizard to validate and apply one step submit.
type SubmitStepCommand struct {
	SessionID string
	Step      domain.WizardStep
	Payload   StepPayload
}

// ItemSummary is the read-model row for one committed item.
type ItemSummary struct {
	ID         string
	Category   domain.CategoryCode
	Name       string
	Quantity   int
	FinalPrice float64
	PhotoCount int
}

// WizardSnapshot is the read model returned after every wizard operation.
type WizardSnapshot struct {
	SessionID string
	OrderID   string
	Stage     domain.WizardStage
	Step      domain.WizardStep
	EditMode  bool

	CanGoBack bool
	// CanProceed and StepCompleted record the outcome of the most recent
	// transition attempt.
	CanProceed    bool
	StepCompleted bool

	HasErrors    bool
	ErrorMessage string

	Client     *domain.ClientInfo
	Draft      *domain.ItemDraft
	Items      []ItemSummary
	Parameters *domain.OrderParametersState

	ItemTotal  float64
	FinalTotal float64

	LastActivity time.Time
}

// WizardService drives wizard sessions end to end.
type WizardService interface {
	StartSession(ctx context.Context) (*WizardSnapshot, error)
	SubmitStep(ctx context.Context, cmd SubmitStepCommand) (*WizardSnapshot, error)
	GoBack(ctx context.Context, sessionID string) (*WizardSnapshot, error)
	Snapshot(ctx context.Context, sessionID string) (*WizardSnapshot, error)
	ResetSession(ctx context.Context, sessionID string) (*WizardSnapshot, error)
	CancelSession(ctx context.Context, sessionID string) error
}
