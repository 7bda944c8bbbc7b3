package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/pureclean/api/internal/domain"
)

// WizardServiceDeps wires the collaborators of the wizard orchestrator.
type WizardServiceDeps struct {
	Sessions SessionStore
	Catalog  CatalogService
	Engine   *PriceEngine
	Policy   PricingPolicy
	Sink     OrderSink
	Logger   func(ctx context.Context, event string, fields map[string]any)
	Now      func() time.Time
	NewID    func() string
}

type wizardService struct {
	sessions SessionStore
	items    *itemWizard
	order    *orderWizard
	logger   func(ctx context.Context, event string, fields map[string]any)
	now      func() time.Time
	newID    func() string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewWizardService constructs the wizard orchestrator. Transitions on one
// session are serialized; distinct sessions proceed concurrently.
func NewWizardService(deps WizardServiceDeps) (WizardService, error) {
	if deps.Sessions == nil {
		return nil, errors.New("wizard service: session store is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("wizard service: catalog service is required")
	}
	if deps.Engine == nil {
		return nil, errors.New("wizard service: price engine is required")
	}
	if deps.Sink == nil {
		return nil, errors.New("wizard service: order sink is required")
	}
	items, err := newItemWizard(deps.Catalog, deps.Engine)
	if err != nil {
		return nil, err
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	order, err := newOrderWizard(deps.Engine, deps.Policy, deps.Sink, now)
	if err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	newID := deps.NewID
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	return &wizardService{
		sessions: deps.Sessions,
		items:    items,
		order:    order,
		logger:   logger,
		now:      now,
		newID:    newID,
		locks:    make(map[string]*sync.Mutex),
	}, nil
}

func (s *wizardService) StartSession(ctx context.Context) (*WizardSnapshot, error) {
	now := s.now().UTC()
	session := &domain.WizardSession{
		ID:           s.newID(),
		OrderID:      s.newID(),
		Stage:        domain.StageClient,
		Step:         domain.StepClientInfo,
		CreatedAt:    now,
		LastActivity: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, &InfrastructureError{Op: "sessions.create", Err: err}
	}
	s.logger(ctx, "wizard.session_started", map[string]any{"sessionId": session.ID})
	return snapshotOf(session), nil
}

func (s *wizardService) SubmitStep(ctx context.Context, cmd SubmitStepCommand) (*WizardSnapshot, error) {
	if cmd.SessionID == "" || cmd.Step == "" {
		return nil, fmt.Errorf("%w: session id and step are required", ErrWizardInvalidInput)
	}
	unlock := s.lock(cmd.SessionID)
	defer unlock()

	session, err := s.load(ctx, cmd.SessionID)
	if err != nil {
		return nil, err
	}
	if session.Step != cmd.Step {
		return nil, &StateError{From: session.Step, Event: "submit " + string(cmd.Step)}
	}

	// Guards and actions run on a clone so a failed submit leaves the stored
	// session untouched apart from its error fields.
	next := session.Clone()
	if err := s.apply(ctx, next, cmd); err != nil {
		s.recordFailure(ctx, session, err)
		return nil, err
	}

	next.LastActivity = s.now().UTC()
	next.CurrentStepCompleted = true
	next.CanProceed = next.Step != domain.StepCompleted
	next.HasErrors = false
	next.ErrorMessage = ""
	next.Stage = next.Step.Stage()
	if err := s.sessions.Save(ctx, next); err != nil {
		return nil, &InfrastructureError{Op: "sessions.save", Err: err}
	}
	s.logger(ctx, "wizard.step_submitted", map[string]any{
		"sessionId": next.ID,
		"step":      string(cmd.Step),
		"nextStep":  string(next.Step),
	})
	return snapshotOf(next), nil
}

// recordFailure stamps a rejected transition onto the stored session's error
// fields so a later snapshot can surface it. Nothing else on the session
// changes. Infrastructure failures propagate without touching the session.
func (s *wizardService) recordFailure(ctx context.Context, session *domain.WizardSession, cause error) {
	var infra *InfrastructureError
	if errors.As(cause, &infra) {
		return
	}
	failed := session.Clone()
	failed.CurrentStepCompleted = false
	failed.CanProceed = false
	failed.HasErrors = true
	failed.ErrorMessage = cause.Error()
	failed.LastActivity = s.now().UTC()
	if err := s.sessions.Save(ctx, failed); err != nil {
		s.logger(ctx, "wizard.error_record_failed", map[string]any{
			"sessionId": session.ID,
			"error":     err.Error(),
		})
	}
}

func (s *wizardService) apply(ctx context.Context, session *domain.WizardSession, cmd SubmitStepCommand) error {
	switch cmd.Step {
	case domain.StepClientInfo:
		return s.applyClientInfo(session, cmd.Payload.Client)
	case domain.StepItems:
		return s.applyItemsAction(ctx, session, cmd.Payload.Items)
	case domain.StepItemBasicInfo, domain.StepItemCharacteristics, domain.StepItemStainsDefects,
		domain.StepItemPricing, domain.StepItemPhotos, domain.StepItemConfirm:
		return s.items.submit(ctx, session, cmd.Step, cmd.Payload)
	case domain.StepExecutionParams, domain.StepDiscount, domain.StepPayment,
		domain.StepAdditionalInfo, domain.StepConfirmOrder:
		return s.order.submit(ctx, session, cmd.Step, cmd.Payload)
	default:
		return &StateError{From: session.Step, Event: "submit " + string(cmd.Step)}
	}
}

func (s *wizardService) applyClientInfo(session *domain.WizardSession, in *domain.ClientInfo) error {
	if in == nil {
		return fmt.Errorf("%w: client payload is required", ErrWizardInvalidInput)
	}
	if strings.TrimSpace(in.ClientID) == "" && strings.TrimSpace(in.ClientName) == "" {
		return &ValidationError{Step: domain.StepClientInfo, Field: "client", Message: "select an existing client or enter a name"}
	}
	client := *in
	session.Client = &client
	session.Step = domain.StepItems
	return nil
}

func (s *wizardService) applyItemsAction(ctx context.Context, session *domain.WizardSession, in *ItemsStepInput) error {
	if in == nil {
		return fmt.Errorf("%w: items action payload is required", ErrWizardInvalidInput)
	}
	switch in.Action {
	case ItemsActionAddItem:
		session.Draft = &domain.ItemDraft{ID: s.newID(), CreatedAt: s.now().UTC()}
		session.EditMode = false
		session.EditingItemID = ""
		session.Step = domain.StepItemBasicInfo
		return nil
	case ItemsActionEditItem:
		item, ok := findItem(session.Items, in.ItemID)
		if !ok {
			return &ValidationError{Step: domain.StepItems, Field: "itemId", Message: "unknown item"}
		}
		session.Draft = draftFromItem(item)
		session.EditMode = true
		session.EditingItemID = item.ID
		session.Step = domain.StepItemBasicInfo
		return nil
	case ItemsActionDeleteItem:
		kept := session.Items[:0]
		found := false
		for _, item := range session.Items {
			if item.ID == in.ItemID {
				found = true
				continue
			}
			kept = append(kept, item)
		}
		if !found {
			return &ValidationError{Step: domain.StepItems, Field: "itemId", Message: "unknown item"}
		}
		session.Items = kept
		return nil
	case ItemsActionProceed:
		if len(session.Items) == 0 {
			return &ValidationError{Step: domain.StepItems, Field: "items", Message: "add at least one item before proceeding"}
		}
		return s.order.enter(ctx, session)
	default:
		return fmt.Errorf("%w: unknown items action %q", ErrWizardInvalidInput, in.Action)
	}
}

func (s *wizardService) GoBack(ctx context.Context, sessionID string) (*WizardSnapshot, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrWizardInvalidInput)
	}
	unlock := s.lock(sessionID)
	defer unlock()

	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	next := session.Clone()
	switch {
	case next.Step == domain.StepClientInfo || next.Step == domain.StepCompleted:
		return nil, &StateError{From: next.Step, Event: "back"}
	case next.Step == domain.StepItems:
		next.Step = domain.StepClientInfo
	case next.Step.Stage() == domain.StageItems:
		s.items.back(next)
	default:
		s.order.back(next)
	}
	next.Stage = next.Step.Stage()
	next.CurrentStepCompleted = false
	next.CanProceed = false
	next.HasErrors = false
	next.ErrorMessage = ""
	next.LastActivity = s.now().UTC()
	if err := s.sessions.Save(ctx, next); err != nil {
		return nil, &InfrastructureError{Op: "sessions.save", Err: err}
	}
	return snapshotOf(next), nil
}

func (s *wizardService) Snapshot(ctx context.Context, sessionID string) (*WizardSnapshot, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrWizardInvalidInput)
	}
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return snapshotOf(session), nil
}

// ResetSession clears all step data and returns the session to its initial
// state so the terminal can reuse it for a fresh order. The session and order
// ids are preserved.
func (s *wizardService) ResetSession(ctx context.Context, sessionID string) (*WizardSnapshot, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrWizardInvalidInput)
	}
	unlock := s.lock(sessionID)
	defer unlock()

	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	fresh := &domain.WizardSession{
		ID:           session.ID,
		OrderID:      session.OrderID,
		Stage:        domain.StageClient,
		Step:         domain.StepClientInfo,
		CreatedAt:    session.CreatedAt,
		LastActivity: now,
	}
	if err := s.sessions.Save(ctx, fresh); err != nil {
		return nil, &InfrastructureError{Op: "sessions.save", Err: err}
	}
	s.logger(ctx, "wizard.session_reset", map[string]any{"sessionId": sessionID})
	return snapshotOf(fresh), nil
}

func (s *wizardService) CancelSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("%w: session id is required", ErrWizardInvalidInput)
	}
	unlock := s.lock(sessionID)
	defer unlock()

	if _, err := s.load(ctx, sessionID); err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return &InfrastructureError{Op: "sessions.delete", Err: err}
	}
	s.logger(ctx, "wizard.session_cancelled", map[string]any{"sessionId": sessionID})
	return nil
}

func (s *wizardService) load(ctx context.Context, id string) (*domain.WizardSession, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
		return nil, &InfrastructureError{Op: "sessions.get", Err: err}
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (s *wizardService) lock(id string) func() {
	s.mu.Lock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	s.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}

func findItem(items []domain.OrderItem, id string) (domain.OrderItem, bool) {
	for _, item := range items {
		if item.ID == id {
			return item, true
		}
	}
	return domain.OrderItem{}, false
}

// draftFromItem re-opens a committed item so the sub-wizard can walk its
// steps again with the previous answers prefilled.
func draftFromItem(item domain.OrderItem) *domain.ItemDraft {
	breakdown := item.Breakdown
	return &domain.ItemDraft{
		ID: item.ID,
		BasicInfo: domain.ItemBasicInfo{
			Category:      item.Category,
			ItemName:      item.Name,
			Quantity:      item.Quantity,
			UnitOfMeasure: item.UnitOfMeasure,
		},
		Characteristics: domain.ItemCharacteristics{
			Material:   item.Material,
			Color:      item.Color,
			WearDegree: item.WearDegree,
		},
		StainsDefects: domain.ItemStainsDefects{
			Stains:            append([]string(nil), item.Stains...),
			Defects:           append([]string(nil), item.Defects...),
			NoGuaranteeReason: item.NoGuaranteeReason,
		},
		Pricing: domain.ItemPricing{
			BasePrice:       item.BasePrice,
			ModifierIDs:     append([]string(nil), item.ModifierIDs...),
			RangeValues:     copyFloatMap(item.RangeValues),
			FixedQuantities: copyIntMap(item.FixedQuantities),
			Breakdown:       &breakdown,
		},
		Photos:    domain.ItemPhotos{Refs: append([]domain.PhotoRef(nil), item.PhotoRefs...)},
		CreatedAt: item.ConfirmedAt,
	}
}

func snapshotOf(session *domain.WizardSession) *WizardSnapshot {
	snap := &WizardSnapshot{
		SessionID:     session.ID,
		OrderID:       session.OrderID,
		Stage:         session.Stage,
		Step:          session.Step,
		EditMode:      session.EditMode,
		CanGoBack:     session.Step != domain.StepClientInfo && session.Step != domain.StepCompleted,
		CanProceed:    session.CanProceed && session.Step != domain.StepCompleted,
		StepCompleted: session.CurrentStepCompleted,
		HasErrors:     session.HasErrors,
		ErrorMessage:  session.ErrorMessage,
		Client:        session.Client,
		Draft:         session.Draft,
		ItemTotal:     session.ItemTotal(),
		LastActivity:  session.LastActivity,
	}
	for _, item := range session.Items {
		snap.Items = append(snap.Items, ItemSummary{
			ID:         item.ID,
			Category:   item.Category,
			Name:       item.Name,
			Quantity:   item.Quantity,
			FinalPrice: item.FinalPrice,
			PhotoCount: len(item.PhotoRefs),
		})
	}
	if session.Parameters != nil {
		params := *session.Parameters
		snap.Parameters = &params
		snap.FinalTotal = params.FinalTotal
	} else {
		snap.FinalTotal = snap.ItemTotal
	}
	return snap
}
