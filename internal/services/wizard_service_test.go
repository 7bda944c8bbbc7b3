package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	domain "github.com/pureclean/api/internal/domain"
)

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.WizardSession
	failSave error
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*domain.WizardSession)}
}

func (s *fakeSessionStore) Create(_ context.Context, session *domain.WizardSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *fakeSessionStore) Get(_ context.Context, id string) (*domain.WizardSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (s *fakeSessionStore) Save(_ context.Context, session *domain.WizardSession) error {
	if s.failSave != nil {
		return s.failSave
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *fakeSessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

type fakeCatalog struct {
	items map[string]domain.CatalogItem
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{items: map[string]domain.CatalogItem{
		"CLOTHING/Coat":                 {Category: domain.CategoryClothing, Name: "Coat", BasePrice: 100, UnitOfMeasure: "pc"},
		"CLOTHING/Jacket":               {Category: domain.CategoryClothing, Name: "Jacket", BasePrice: 80, UnitOfMeasure: "pc"},
		"IRONING/Shirt":                 {Category: domain.CategoryIroning, Name: "Shirt", BasePrice: 20, UnitOfMeasure: "pc", PhotosOptional: true},
		"LEATHER_CLEANING/Leather coat": {Category: domain.CategoryLeatherCleaning, Name: "Leather coat", BasePrice: 300, UnitOfMeasure: "pc"},
	}}
}

func (c *fakeCatalog) Categories(context.Context) ([]domain.CategoryCode, error) {
	return []domain.CategoryCode{domain.CategoryClothing, domain.CategoryIroning, domain.CategoryLeatherCleaning}, nil
}

func (c *fakeCatalog) ItemsForCategory(_ context.Context, category domain.CategoryCode) ([]domain.CatalogItem, error) {
	var out []domain.CatalogItem
	for _, item := range c.items {
		if item.Category == category {
			out = append(out, item)
		}
	}
	return out, nil
}

func (c *fakeCatalog) ResolveItem(_ context.Context, category domain.CategoryCode, name string) (domain.CatalogItem, error) {
	item, ok := c.items[string(category)+"/"+name]
	if !ok {
		return domain.CatalogItem{}, fmt.Errorf("%w: %s/%s", ErrCatalogItemNotFound, category, name)
	}
	return item, nil
}

type fakeSink struct {
	mu     sync.Mutex
	orders []*domain.Order
	fail   error
}

func (s *fakeSink) Commit(_ context.Context, order *domain.Order) error {
	if s.fail != nil {
		return s.fail
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, order)
	return nil
}

type wizardFixture struct {
	svc   WizardService
	store *fakeSessionStore
	sink  *fakeSink
}

func newWizardFixture(t *testing.T) *wizardFixture {
	t.Helper()
	store := newFakeSessionStore()
	sink := &fakeSink{}
	engine := newTestEngine(t)
	svc, err := NewWizardService(WizardServiceDeps{
		Sessions: store,
		Catalog:  newFakeCatalog(),
		Engine:   engine,
		Policy:   NewPricingPolicy(),
		Sink:     sink,
		Now:      func() time.Time { return time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC) }, // a Monday
	})
	if err != nil {
		t.Fatalf("NewWizardService: %v", err)
	}
	return &wizardFixture{svc: svc, store: store, sink: sink}
}

func (f *wizardFixture) submit(t *testing.T, sessionID string, step domain.WizardStep, payload StepPayload) *WizardSnapshot {
	t.Helper()
	snap, err := f.svc.SubmitStep(context.Background(), SubmitStepCommand{SessionID: sessionID, Step: step, Payload: payload})
	if err != nil {
		t.Fatalf("SubmitStep %s: %v", step, err)
	}
	return snap
}

// walkItem drives one Coat (CLOTHING, qty 1, base 100) through the sub-wizard.
func (f *wizardFixture) walkItem(t *testing.T, sessionID string, modifierIDs []string) {
	t.Helper()
	f.submit(t, sessionID, domain.StepItems, StepPayload{Items: &ItemsStepInput{Action: ItemsActionAddItem}})
	f.submit(t, sessionID, domain.StepItemBasicInfo, StepPayload{BasicInfo: &domain.ItemBasicInfo{
		Category: domain.CategoryClothing, ItemName: "Coat", Quantity: 1,
	}})
	f.submit(t, sessionID, domain.StepItemCharacteristics, StepPayload{Characteristics: &domain.ItemCharacteristics{
		Material: "wool", Color: "black", WearDegree: "30%",
	}})
	f.submit(t, sessionID, domain.StepItemStainsDefects, StepPayload{StainsDefects: &domain.ItemStainsDefects{}})
	f.submit(t, sessionID, domain.StepItemPricing, StepPayload{Pricing: &PricingStepInput{ModifierIDs: modifierIDs}})
	f.submit(t, sessionID, domain.StepItemPhotos, StepPayload{Photos: &PhotosStepInput{
		AddRefs: []domain.PhotoRef{{ID: "p1", ObjectName: "sessions/x/p1.jpg"}},
	}})
	f.submit(t, sessionID, domain.StepItemConfirm, StepPayload{})
}

func startSession(t *testing.T, f *wizardFixture) string {
	t.Helper()
	snap, err := f.svc.StartSession(context.Background())
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if snap.Step != domain.StepClientInfo {
		t.Fatalf("start step = %s, want client_info", snap.Step)
	}
	f.submit(t, snap.SessionID, domain.StepClientInfo, StepPayload{Client: &domain.ClientInfo{
		ClientID: "c-1", ClientName: "Test Client", ClientPhone: "+380501112233",
	}})
	return snap.SessionID
}

func TestWizardHappyPath(t *testing.T) {
	f := newWizardFixture(t)
	id := startSession(t, f)

	f.walkItem(t, id, []string{"manual_cleaning"})

	snap := f.submit(t, id, domain.StepItems, StepPayload{Items: &ItemsStepInput{Action: ItemsActionProceed}})
	if snap.Step != domain.StepExecutionParams {
		t.Fatalf("step after proceed = %s, want execution_params", snap.Step)
	}
	if snap.ItemTotal != 120.00 {
		t.Fatalf("item total = %v, want 120.00", snap.ItemTotal)
	}

	f.submit(t, id, domain.StepExecutionParams, StepPayload{Execution: &domain.ExecutionParams{Tier: domain.Expedite24h}})
	snap = f.submit(t, id, domain.StepDiscount, StepPayload{Discount: &domain.DiscountSelection{Type: domain.DiscountEvercard}})
	// 100 +20% = 120, +100% expedite = 240, -10% discount = 216.
	if snap.FinalTotal != 216.00 {
		t.Fatalf("final total = %v, want 216.00", snap.FinalTotal)
	}

	f.submit(t, id, domain.StepPayment, StepPayload{Payment: &domain.PaymentParams{Method: domain.PaymentCash, PaidAmount: 200}})
	f.submit(t, id, domain.StepAdditionalInfo, StepPayload{Additional: &domain.AdditionalInfo{OrderNotes: "handle with care"}})
	snap = f.submit(t, id, domain.StepConfirmOrder, StepPayload{})

	if snap.Stage != domain.StageCompleted || snap.Step != domain.StepCompleted {
		t.Fatalf("final state = %s/%s, want completed", snap.Stage, snap.Step)
	}
	if len(f.sink.orders) != 1 {
		t.Fatalf("committed orders = %d, want 1", len(f.sink.orders))
	}
	order := f.sink.orders[0]
	if order.Parameters.FinalTotal != 216.00 {
		t.Fatalf("order total = %v, want 216.00", order.Parameters.FinalTotal)
	}
	if order.Parameters.Debt != 16.00 {
		t.Fatalf("order debt = %v, want 16.00", order.Parameters.Debt)
	}
	if len(order.Items) != 1 || order.Items[0].Name != "Coat" {
		t.Fatalf("order items = %+v, want one Coat", order.Items)
	}
}

func TestWizardSubmitWrongStepRejected(t *testing.T) {
	f := newWizardFixture(t)
	id := startSession(t, f)

	_, err := f.svc.SubmitStep(context.Background(), SubmitStepCommand{
		SessionID: id,
		Step:      domain.StepPayment,
		Payload:   StepPayload{Payment: &domain.PaymentParams{Method: domain.PaymentCash, PaidAmount: 10}},
	})
	var stateErr *StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("err = %v, want StateError", err)
	}
}

func TestWizardGuardFailureLeavesSessionUntouched(t *testing.T) {
	f := newWizardFixture(t)
	id := startSession(t, f)
	f.submit(t, id, domain.StepItems, StepPayload{Items: &ItemsStepInput{Action: ItemsActionAddItem}})

	before, err := f.svc.Snapshot(context.Background(), id)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	_, err = f.svc.SubmitStep(context.Background(), SubmitStepCommand{
		SessionID: id,
		Step:      domain.StepItemBasicInfo,
		Payload:   StepPayload{BasicInfo: &domain.ItemBasicInfo{Category: domain.CategoryClothing, ItemName: "Coat", Quantity: 0}},
	})
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}

	after, err := f.svc.Snapshot(context.Background(), id)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if after.Step != before.Step {
		t.Fatalf("step changed on failed guard: %s -> %s", before.Step, after.Step)
	}
	if after.LastActivity != before.LastActivity {
		t.Fatalf("last activity changed on failed guard")
	}
}

func TestWizardProceedRequiresItems(t *testing.T) {
	f := newWizardFixture(t)
	id := startSession(t, f)

	_, err := f.svc.SubmitStep(context.Background(), SubmitStepCommand{
		SessionID: id,
		Step:      domain.StepItems,
		Payload:   StepPayload{Items: &ItemsStepInput{Action: ItemsActionProceed}},
	})
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestWizardBackwardIsAlwaysFree(t *testing.T) {
	f := newWizardFixture(t)
	id := startSession(t, f)
	f.submit(t, id, domain.StepItems, StepPayload{Items: &ItemsStepInput{Action: ItemsActionAddItem}})
	f.submit(t, id, domain.StepItemBasicInfo, StepPayload{BasicInfo: &domain.ItemBasicInfo{
		Category: domain.CategoryClothing, ItemName: "Coat", Quantity: 1,
	}})

	snap, err := f.svc.GoBack(context.Background(), id)
	if err != nil {
		t.Fatalf("GoBack: %v", err)
	}
	if snap.Step != domain.StepItemBasicInfo {
		t.Fatalf("step = %s, want item_basic_info", snap.Step)
	}

	// Backing out of the first sub-step discards the draft.
	snap, err = f.svc.GoBack(context.Background(), id)
	if err != nil {
		t.Fatalf("GoBack: %v", err)
	}
	if snap.Step != domain.StepItems || snap.Draft != nil {
		t.Fatalf("step = %s draft = %v, want items with no draft", snap.Step, snap.Draft)
	}
}

func TestWizardOverpaymentRejected(t *testing.T) {
	f := newWizardFixture(t)
	id := startSession(t, f)
	f.walkItem(t, id, nil)
	f.submit(t, id, domain.StepItems, StepPayload{Items: &ItemsStepInput{Action: ItemsActionProceed}})
	f.submit(t, id, domain.StepExecutionParams, StepPayload{Execution: &domain.ExecutionParams{Tier: domain.ExpediteStandard}})
	f.submit(t, id, domain.StepDiscount, StepPayload{Discount: &domain.DiscountSelection{Type: domain.DiscountNone}})

	_, err := f.svc.SubmitStep(context.Background(), SubmitStepCommand{
		SessionID: id,
		Step:      domain.StepPayment,
		Payload:   StepPayload{Payment: &domain.PaymentParams{Method: domain.PaymentCash, PaidAmount: 1000}},
	})
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("err = %v, want ValidationError for overpayment", err)
	}
}

func TestWizardLeatherOrderCannotExpedite(t *testing.T) {
	f := newWizardFixture(t)
	id := startSession(t, f)

	f.submit(t, id, domain.StepItems, StepPayload{Items: &ItemsStepInput{Action: ItemsActionAddItem}})
	f.submit(t, id, domain.StepItemBasicInfo, StepPayload{BasicInfo: &domain.ItemBasicInfo{
		Category: domain.CategoryLeatherCleaning, ItemName: "Leather coat", Quantity: 1,
	}})
	f.submit(t, id, domain.StepItemCharacteristics, StepPayload{Characteristics: &domain.ItemCharacteristics{
		Material: "leather", Color: "brown", WearDegree: "50%",
	}})
	f.submit(t, id, domain.StepItemStainsDefects, StepPayload{StainsDefects: &domain.ItemStainsDefects{}})
	f.submit(t, id, domain.StepItemPricing, StepPayload{Pricing: &PricingStepInput{}})
	f.submit(t, id, domain.StepItemPhotos, StepPayload{Photos: &PhotosStepInput{
		AddRefs: []domain.PhotoRef{{ID: "p1", ObjectName: "sessions/x/p1.jpg"}},
	}})
	f.submit(t, id, domain.StepItemConfirm, StepPayload{})
	f.submit(t, id, domain.StepItems, StepPayload{Items: &ItemsStepInput{Action: ItemsActionProceed}})

	_, err := f.svc.SubmitStep(context.Background(), SubmitStepCommand{
		SessionID: id,
		Step:      domain.StepExecutionParams,
		Payload:   StepPayload{Execution: &domain.ExecutionParams{Tier: domain.Expedite48h}},
	})
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("err = %v, want ValidationError for leather expedite", err)
	}
}

func TestWizardDiscountSkipsIroningItems(t *testing.T) {
	f := newWizardFixture(t)
	id := startSession(t, f)

	f.submit(t, id, domain.StepItems, StepPayload{Items: &ItemsStepInput{Action: ItemsActionAddItem}})
	f.submit(t, id, domain.StepItemBasicInfo, StepPayload{BasicInfo: &domain.ItemBasicInfo{
		Category: domain.CategoryIroning, ItemName: "Shirt", Quantity: 1,
	}})
	f.submit(t, id, domain.StepItemCharacteristics, StepPayload{Characteristics: &domain.ItemCharacteristics{
		Material: "cotton", Color: "white", WearDegree: "10%",
	}})
	f.submit(t, id, domain.StepItemStainsDefects, StepPayload{StainsDefects: &domain.ItemStainsDefects{}})
	f.submit(t, id, domain.StepItemPricing, StepPayload{Pricing: &PricingStepInput{}})
	f.submit(t, id, domain.StepItemPhotos, StepPayload{Photos: &PhotosStepInput{
		AddRefs: []domain.PhotoRef{{ID: "p1", ObjectName: "sessions/x/p1.jpg"}},
	}})
	f.submit(t, id, domain.StepItemConfirm, StepPayload{})
	f.submit(t, id, domain.StepItems, StepPayload{Items: &ItemsStepInput{Action: ItemsActionProceed}})
	f.submit(t, id, domain.StepExecutionParams, StepPayload{Execution: &domain.ExecutionParams{Tier: domain.ExpediteStandard}})

	snap := f.submit(t, id, domain.StepDiscount, StepPayload{Discount: &domain.DiscountSelection{Type: domain.DiscountMilitary}})
	if snap.FinalTotal != 20.00 {
		t.Fatalf("final total = %v, want 20.00 (ironing is not discount-eligible)", snap.FinalTotal)
	}
	if !snap.Parameters.HasNonDiscountableItems {
		t.Fatalf("expected HasNonDiscountableItems")
	}
	if len(snap.Parameters.ValidationMessages) == 0 {
		t.Fatalf("expected a message about the skipped discount")
	}
}

func TestWizardEditAndDeleteItem(t *testing.T) {
	f := newWizardFixture(t)
	id := startSession(t, f)
	f.walkItem(t, id, nil)
	f.walkItem(t, id, []string{"manual_cleaning"})

	snap, err := f.svc.Snapshot(context.Background(), id)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(snap.Items))
	}
	firstID := snap.Items[0].ID

	// Edit the first item, bumping its quantity to 2.
	f.submit(t, id, domain.StepItems, StepPayload{Items: &ItemsStepInput{Action: ItemsActionEditItem, ItemID: firstID}})
	f.submit(t, id, domain.StepItemBasicInfo, StepPayload{BasicInfo: &domain.ItemBasicInfo{
		Category: domain.CategoryClothing, ItemName: "Coat", Quantity: 2,
	}})
	f.submit(t, id, domain.StepItemCharacteristics, StepPayload{Characteristics: &domain.ItemCharacteristics{
		Material: "wool", Color: "black", WearDegree: "30%",
	}})
	f.submit(t, id, domain.StepItemStainsDefects, StepPayload{StainsDefects: &domain.ItemStainsDefects{}})
	f.submit(t, id, domain.StepItemPricing, StepPayload{Pricing: &PricingStepInput{}})
	f.submit(t, id, domain.StepItemPhotos, StepPayload{Photos: &PhotosStepInput{
		AddRefs: []domain.PhotoRef{{ID: "p2", ObjectName: "sessions/x/p2.jpg"}},
	}})
	snap = f.submit(t, id, domain.StepItemConfirm, StepPayload{})

	if len(snap.Items) != 2 {
		t.Fatalf("items after edit = %d, want 2", len(snap.Items))
	}
	if snap.Items[0].ID != firstID || snap.Items[0].Quantity != 2 {
		t.Fatalf("edited item = %+v, want id %s with quantity 2", snap.Items[0], firstID)
	}

	snap = f.submit(t, id, domain.StepItems, StepPayload{Items: &ItemsStepInput{Action: ItemsActionDeleteItem, ItemID: firstID}})
	if len(snap.Items) != 1 {
		t.Fatalf("items after delete = %d, want 1", len(snap.Items))
	}
}

func TestWizardCancelRemovesSession(t *testing.T) {
	f := newWizardFixture(t)
	id := startSession(t, f)

	if err := f.svc.CancelSession(context.Background(), id); err != nil {
		t.Fatalf("CancelSession: %v", err)
	}
	if _, err := f.svc.Snapshot(context.Background(), id); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
	if err := f.svc.CancelSession(context.Background(), id); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("second cancel err = %v, want ErrSessionNotFound", err)
	}
}

func TestWizardConfirmNotCommittedOnSinkFailure(t *testing.T) {
	f := newWizardFixture(t)
	id := startSession(t, f)
	f.walkItem(t, id, nil)
	f.submit(t, id, domain.StepItems, StepPayload{Items: &ItemsStepInput{Action: ItemsActionProceed}})
	f.submit(t, id, domain.StepExecutionParams, StepPayload{Execution: &domain.ExecutionParams{Tier: domain.ExpediteStandard}})
	f.submit(t, id, domain.StepDiscount, StepPayload{Discount: &domain.DiscountSelection{Type: domain.DiscountNone}})
	f.submit(t, id, domain.StepPayment, StepPayload{Payment: &domain.PaymentParams{Method: domain.PaymentCash, PaidAmount: 100}})
	f.submit(t, id, domain.StepAdditionalInfo, StepPayload{})

	f.sink.fail = errors.New("datastore unavailable")
	_, err := f.svc.SubmitStep(context.Background(), SubmitStepCommand{SessionID: id, Step: domain.StepConfirmOrder})
	if !IsRetryable(err) {
		t.Fatalf("err = %v, want retryable infrastructure error", err)
	}

	snap, err := f.svc.Snapshot(context.Background(), id)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Step != domain.StepConfirmOrder {
		t.Fatalf("step = %s, want confirm_order to remain current", snap.Step)
	}
}

func TestWizardResetReturnsSessionToStart(t *testing.T) {
	f := newWizardFixture(t)
	id := startSession(t, f)
	f.walkItem(t, id, nil)

	snap, err := f.svc.ResetSession(context.Background(), id)
	if err != nil {
		t.Fatalf("ResetSession: %v", err)
	}
	if snap.SessionID != id {
		t.Fatalf("session id changed on reset: %s", snap.SessionID)
	}
	if snap.Step != domain.StepClientInfo || snap.Stage != domain.StageClient {
		t.Fatalf("reset landed on %s/%s, want client/client_info", snap.Stage, snap.Step)
	}
	if len(snap.Items) != 0 || snap.Client != nil || snap.Draft != nil {
		t.Fatalf("reset kept step data: %+v", snap)
	}
	if snap.ItemTotal != 0 || snap.FinalTotal != 0 {
		t.Fatalf("reset kept totals: %v / %v", snap.ItemTotal, snap.FinalTotal)
	}

	// The session is immediately reusable.
	f.submit(t, id, domain.StepClientInfo, StepPayload{Client: &domain.ClientInfo{ClientName: "Again"}})
}

func TestWizardPhotoSkipRequiresOptionalCatalogEntry(t *testing.T) {
	f := newWizardFixture(t)
	id := startSession(t, f)

	// Ironing entries mark photos optional; skipping is allowed.
	f.submit(t, id, domain.StepItems, StepPayload{Items: &ItemsStepInput{Action: ItemsActionAddItem}})
	f.submit(t, id, domain.StepItemBasicInfo, StepPayload{BasicInfo: &domain.ItemBasicInfo{
		Category: domain.CategoryIroning, ItemName: "Shirt", Quantity: 1,
	}})
	f.submit(t, id, domain.StepItemCharacteristics, StepPayload{Characteristics: &domain.ItemCharacteristics{
		Material: "cotton", Color: "white", WearDegree: "10%",
	}})
	f.submit(t, id, domain.StepItemStainsDefects, StepPayload{StainsDefects: &domain.ItemStainsDefects{}})
	f.submit(t, id, domain.StepItemPricing, StepPayload{Pricing: &PricingStepInput{}})
	f.submit(t, id, domain.StepItemPhotos, StepPayload{Photos: &PhotosStepInput{Skip: true}})
	f.submit(t, id, domain.StepItemConfirm, StepPayload{})

	// Clothing entries require at least one photo; skipping is rejected.
	f.submit(t, id, domain.StepItems, StepPayload{Items: &ItemsStepInput{Action: ItemsActionAddItem}})
	f.submit(t, id, domain.StepItemBasicInfo, StepPayload{BasicInfo: &domain.ItemBasicInfo{
		Category: domain.CategoryClothing, ItemName: "Coat", Quantity: 1,
	}})
	f.submit(t, id, domain.StepItemCharacteristics, StepPayload{Characteristics: &domain.ItemCharacteristics{
		Material: "wool", Color: "black", WearDegree: "30%",
	}})
	f.submit(t, id, domain.StepItemStainsDefects, StepPayload{StainsDefects: &domain.ItemStainsDefects{}})
	f.submit(t, id, domain.StepItemPricing, StepPayload{Pricing: &PricingStepInput{}})

	_, err := f.svc.SubmitStep(context.Background(), SubmitStepCommand{
		SessionID: id,
		Step:      domain.StepItemPhotos,
		Payload:   StepPayload{Photos: &PhotosStepInput{Skip: true}},
	})
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if valErr.Field != "photos" {
		t.Fatalf("field = %q, want photos", valErr.Field)
	}
}

func TestWizardDraftCancelLeavesCommittedItemsUntouched(t *testing.T) {
	f := newWizardFixture(t)
	id := startSession(t, f)
	f.walkItem(t, id, nil)

	before, err := f.svc.Snapshot(context.Background(), id)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(before.Items) != 1 {
		t.Fatalf("items before = %d, want 1", len(before.Items))
	}

	// Start a second draft and fill two sub-steps before backing all
	// the way out.
	f.submit(t, id, domain.StepItems, StepPayload{Items: &ItemsStepInput{Action: ItemsActionAddItem}})
	f.submit(t, id, domain.StepItemBasicInfo, StepPayload{BasicInfo: &domain.ItemBasicInfo{
		Category: domain.CategoryClothing, ItemName: "Jacket", Quantity: 3,
	}})
	f.submit(t, id, domain.StepItemCharacteristics, StepPayload{Characteristics: &domain.ItemCharacteristics{
		Material: "leatherette", Color: "brown", WearDegree: "50%",
	}})
	for i := 0; i < 3; i++ {
		if _, err := f.svc.GoBack(context.Background(), id); err != nil {
			t.Fatalf("GoBack %d: %v", i, err)
		}
	}

	after, err := f.svc.Snapshot(context.Background(), id)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if after.Step != domain.StepItems || after.Draft != nil {
		t.Fatalf("step = %s draft = %v, want items with no draft", after.Step, after.Draft)
	}
	if len(after.Items) != 1 {
		t.Fatalf("items after = %d, want 1", len(after.Items))
	}
	if after.ItemTotal != before.ItemTotal {
		t.Fatalf("item total changed: %v -> %v", before.ItemTotal, after.ItemTotal)
	}
}

func TestWizardFailedSubmitRecordsSessionError(t *testing.T) {
	f := newWizardFixture(t)
	snap, err := f.svc.StartSession(context.Background())
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	id := snap.SessionID

	_, err = f.svc.SubmitStep(context.Background(), SubmitStepCommand{
		SessionID: id,
		Step:      domain.StepClientInfo,
		Payload:   StepPayload{Client: &domain.ClientInfo{}},
	})
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("err = %v, want validation error", err)
	}

	snap, err = f.svc.Snapshot(context.Background(), id)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Step != domain.StepClientInfo {
		t.Fatalf("step = %s, want client_info", snap.Step)
	}
	if !snap.HasErrors || snap.ErrorMessage == "" {
		t.Fatalf("hasErrors = %v message = %q, want recorded error", snap.HasErrors, snap.ErrorMessage)
	}
	if snap.StepCompleted || snap.CanProceed {
		t.Fatalf("stepCompleted = %v canProceed = %v, want both false", snap.StepCompleted, snap.CanProceed)
	}

	// A valid submit on the same session clears the recorded error.
	snap = f.submit(t, id, domain.StepClientInfo, StepPayload{Client: &domain.ClientInfo{
		ClientID: "c-1", ClientName: "Test Client", ClientPhone: "+380501112233",
	}})
	if snap.HasErrors || snap.ErrorMessage != "" {
		t.Fatalf("hasErrors = %v message = %q, want cleared", snap.HasErrors, snap.ErrorMessage)
	}
	if !snap.StepCompleted {
		t.Fatal("stepCompleted should be set after an accepted submit")
	}
}

func TestWizardPhotosBlockedByOutstandingUploadError(t *testing.T) {
	f := newWizardFixture(t)
	id := startSession(t, f)
	f.submit(t, id, domain.StepItems, StepPayload{Items: &ItemsStepInput{Action: ItemsActionAddItem}})
	f.submit(t, id, domain.StepItemBasicInfo, StepPayload{BasicInfo: &domain.ItemBasicInfo{
		Category: domain.CategoryClothing, ItemName: "Coat", Quantity: 1,
	}})
	f.submit(t, id, domain.StepItemCharacteristics, StepPayload{Characteristics: &domain.ItemCharacteristics{
		Material: "wool", Color: "black", WearDegree: "30%",
	}})
	f.submit(t, id, domain.StepItemStainsDefects, StepPayload{StainsDefects: &domain.ItemStainsDefects{}})
	f.submit(t, id, domain.StepItemPricing, StepPayload{Pricing: &PricingStepInput{}})

	f.store.mu.Lock()
	f.store.sessions[id].Draft.Photos.UploadError = "object write timed out"
	f.store.mu.Unlock()

	photos := StepPayload{Photos: &PhotosStepInput{
		AddRefs: []domain.PhotoRef{{ID: "p1", ObjectName: "sessions/x/p1.jpg"}},
	}}
	_, err := f.svc.SubmitStep(context.Background(), SubmitStepCommand{
		SessionID: id, Step: domain.StepItemPhotos, Payload: photos,
	})
	var valErr *ValidationError
	if !errors.As(err, &valErr) || valErr.Field != "photos" {
		t.Fatalf("err = %v, want photos validation error", err)
	}

	// Acknowledging the failure lets the step advance and clears the error.
	photos.Photos.ClearError = true
	snap := f.submit(t, id, domain.StepItemPhotos, photos)
	if snap.Step != domain.StepItemConfirm {
		t.Fatalf("step = %s, want item_confirm", snap.Step)
	}
	if snap.Draft.Photos.UploadError != "" {
		t.Fatalf("upload error = %q, want cleared", snap.Draft.Photos.UploadError)
	}
}
