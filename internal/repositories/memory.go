package repositories

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/pureclean/api/internal/domain"
	"github.com/pureclean/api/internal/services"
)

// MemorySessionStore keeps wizard sessions in process memory. It backs
// single-instance deployments and tests; clustered deployments use the
// Firestore store instead.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.WizardSession
}

// NewMemorySessionStore constructs an empty store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*domain.WizardSession)}
}

func (s *MemorySessionStore) Create(_ context.Context, session *domain.WizardSession) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("%w: session id is required", services.ErrWizardInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; exists {
		return fmt.Errorf("memory sessions: duplicate session id %s", session.ID)
	}
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, id string) (*domain.WizardSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, services.ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (s *MemorySessionStore) Save(_ context.Context, session *domain.WizardSession) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("%w: session id is required", services.ErrWizardInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// MemoryOrderRepository keeps committed orders in process memory.
type MemoryOrderRepository struct {
	mu         sync.RWMutex
	orders     map[string]*domain.Order
	lastNumber int64
}

// NewMemoryOrderRepository constructs an empty repository.
func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{orders: make(map[string]*domain.Order)}
}

func (r *MemoryOrderRepository) Save(_ context.Context, order *domain.Order) error {
	if order == nil || order.ID == "" {
		return fmt.Errorf("memory orders: order id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.orders[order.ID]; ok {
		// A retried commit keeps the receipt number it was first given.
		order.Number = existing.Number
		return nil
	}
	if order.Number == 0 {
		r.lastNumber++
		order.Number = r.lastNumber
	}
	copied := *order
	copied.Items = append([]domain.OrderItem(nil), order.Items...)
	r.orders[order.ID] = &copied
	return nil
}

func (r *MemoryOrderRepository) Get(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, services.ErrOrderNotFound
	}
	copied := *order
	copied.Items = append([]domain.OrderItem(nil), order.Items...)
	return &copied, nil
}

// MemoryPriceList serves a fixed price list and reference data from memory.
// The seed mirrors the standard price list shipped with the service.
type MemoryPriceList struct {
	categories []domain.CategoryCode
	items      map[domain.CategoryCode][]domain.CatalogItem
	references map[domain.CategoryCode]domain.ReferenceLists
}

// NewMemoryPriceList builds a price list from the given entries, keeping
// category order of first appearance.
func NewMemoryPriceList(items []domain.CatalogItem, references map[domain.CategoryCode]domain.ReferenceLists) *MemoryPriceList {
	list := &MemoryPriceList{
		items:      make(map[domain.CategoryCode][]domain.CatalogItem),
		references: references,
	}
	if list.references == nil {
		list.references = make(map[domain.CategoryCode]domain.ReferenceLists)
	}
	for _, item := range items {
		if _, seen := list.items[item.Category]; !seen {
			list.categories = append(list.categories, item.Category)
		}
		list.items[item.Category] = append(list.items[item.Category], item)
	}
	return list
}

// NewStandardPriceList seeds the built-in price list used when no external
// price list source is configured.
func NewStandardPriceList() *MemoryPriceList {
	return NewMemoryPriceList(standardCatalogItems(), standardReferenceLists())
}

func (l *MemoryPriceList) Categories(context.Context) ([]domain.CategoryCode, error) {
	return append([]domain.CategoryCode(nil), l.categories...), nil
}

func (l *MemoryPriceList) ItemsForCategory(_ context.Context, category domain.CategoryCode) ([]domain.CatalogItem, error) {
	return append([]domain.CatalogItem(nil), l.items[category]...), nil
}

func (l *MemoryPriceList) FindItem(_ context.Context, category domain.CategoryCode, name string) (domain.CatalogItem, bool, error) {
	for _, item := range l.items[category] {
		if item.Name == name {
			return item, true, nil
		}
	}
	return domain.CatalogItem{}, false, nil
}

func (l *MemoryPriceList) ReferenceLists(_ context.Context, category domain.CategoryCode) (domain.ReferenceLists, error) {
	if lists, ok := l.references[category]; ok {
		return lists, nil
	}
	return l.references[""], nil
}

func standardCatalogItems() []domain.CatalogItem {
	return []domain.CatalogItem{
		{Category: domain.CategoryClothing, Name: "Coat", BasePrice: 450, UnitOfMeasure: "pc"},
		{Category: domain.CategoryClothing, Name: "Jacket", BasePrice: 350, UnitOfMeasure: "pc"},
		{Category: domain.CategoryClothing, Name: "Suit (two-piece)", BasePrice: 400, UnitOfMeasure: "pc"},
		{Category: domain.CategoryClothing, Name: "Dress", BasePrice: 300, UnitOfMeasure: "pc"},
		{Category: domain.CategoryClothing, Name: "Trousers", BasePrice: 200, UnitOfMeasure: "pc"},
		{Category: domain.CategoryLaundry, Name: "Bed linen set", BasePrice: 180, UnitOfMeasure: "kg"},
		{Category: domain.CategoryLaundry, Name: "Shirt", BasePrice: 80, UnitOfMeasure: "pc"},
		{Category: domain.CategoryIroning, Name: "Shirt", BasePrice: 60, UnitOfMeasure: "pc", PhotosOptional: true},
		{Category: domain.CategoryIroning, Name: "Trousers", BasePrice: 70, UnitOfMeasure: "pc", PhotosOptional: true},
		{Category: domain.CategoryTextileDyeing, Name: "Jeans dyeing", BasePrice: 250, UnitOfMeasure: "pc"},
		{Category: domain.CategoryLeatherCleaning, Name: "Leather jacket", BasePrice: 900, UnitOfMeasure: "pc"},
		{Category: domain.CategoryLeatherCleaning, Name: "Leather coat", BasePrice: 1200, UnitOfMeasure: "pc"},
		{Category: domain.CategoryLeatherRepair, Name: "Zipper replacement", BasePrice: 350, UnitOfMeasure: "pc"},
		{Category: domain.CategorySheepskinCoat, Name: "Sheepskin coat", BasePrice: 1400, UnitOfMeasure: "pc"},
		{Category: domain.CategoryFurCleaning, Name: "Fur coat", BasePrice: 1600, UnitOfMeasure: "pc"},
	}
}

func standardReferenceLists() map[domain.CategoryCode]domain.ReferenceLists {
	textile := domain.ReferenceLists{
		Materials: []domain.ReferenceEntry{
			{Code: "COTTON", Label: "Cotton"},
			{Code: "WOOL", Label: "Wool"},
			{Code: "SILK", Label: "Silk"},
			{Code: "SYNTHETIC", Label: "Synthetic"},
			{Code: "MIXED", Label: "Mixed fibres"},
		},
		Colors: []domain.ReferenceEntry{
			{Code: "BLACK", Label: "Black"},
			{Code: "WHITE", Label: "White"},
			{Code: "GREY", Label: "Grey"},
			{Code: "BLUE", Label: "Blue"},
			{Code: "OTHER", Label: "Other"},
		},
		Stains: []domain.ReferenceEntry{
			{Code: "GREASE", Label: "Grease"},
			{Code: "WINE", Label: "Wine"},
			{Code: "INK", Label: "Ink"},
			{Code: "BLOOD", Label: "Blood"},
			{Code: domain.StainCodeOther, Label: "Other"},
		},
		Defects: []domain.ReferenceEntry{
			{Code: "WORN", Label: "Heavy wear"},
			{Code: "TORN", Label: "Tears"},
			{Code: "MISSING_BUTTONS", Label: "Missing buttons"},
			{Code: "COLOR_FADING", Label: "Color fading"},
			{Code: domain.DefectCodeNoGuarantee, Label: "Processed without guarantee"},
		},
	}
	leather := textile
	leather.Materials = []domain.ReferenceEntry{
		{Code: "SMOOTH_LEATHER", Label: "Smooth leather"},
		{Code: "SUEDE", Label: "Suede"},
		{Code: "NUBUCK", Label: "Nubuck"},
		{Code: "SHEEPSKIN", Label: "Sheepskin"},
	}
	return map[domain.CategoryCode]domain.ReferenceLists{
		"":                             textile,
		domain.CategoryClothing:        textile,
		domain.CategoryLaundry:         textile,
		domain.CategoryIroning:         textile,
		domain.CategoryTextileDyeing:   textile,
		domain.CategoryLeatherCleaning: leather,
		domain.CategoryLeatherRepair:   leather,
		domain.CategorySheepskinCoat:   leather,
		domain.CategoryFurCleaning:     leather,
	}
}
