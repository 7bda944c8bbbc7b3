package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/pureclean/api/internal/domain"
)

// CatalogServiceDeps wires the price-list repository into the catalog service.
type CatalogServiceDeps struct {
	PriceList PriceListRepository
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type catalogService struct {
	priceList PriceListRepository
	logger    func(ctx context.Context, event string, fields map[string]any)
}

// NewCatalogService constructs a CatalogService backed by the price list.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.PriceList == nil {
		return nil, errors.New("catalog service: price list repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &catalogService{priceList: deps.PriceList, logger: logger}, nil
}

func (s *catalogService) Categories(ctx context.Context) ([]domain.CategoryCode, error) {
	categories, err := s.priceList.Categories(ctx)
	if err != nil {
		return nil, &InfrastructureError{Op: "catalog.categories", Err: err}
	}
	return categories, nil
}

func (s *catalogService) ItemsForCategory(ctx context.Context, category domain.CategoryCode) ([]domain.CatalogItem, error) {
	if category == "" {
		return nil, fmt.Errorf("%w: category is required", ErrWizardInvalidInput)
	}
	items, err := s.priceList.ItemsForCategory(ctx, category)
	if err != nil {
		return nil, &InfrastructureError{Op: "catalog.items_for_category", Err: err}
	}
	return items, nil
}

func (s *catalogService) ResolveItem(ctx context.Context, category domain.CategoryCode, name string) (domain.CatalogItem, error) {
	name = strings.TrimSpace(name)
	if category == "" || name == "" {
		return domain.CatalogItem{}, fmt.Errorf("%w: category and item name are required", ErrWizardInvalidInput)
	}
	item, ok, err := s.priceList.FindItem(ctx, category, name)
	if err != nil {
		return domain.CatalogItem{}, &InfrastructureError{Op: "catalog.resolve_item", Err: err}
	}
	if !ok {
		s.logger(ctx, "catalog.item_missing", map[string]any{"category": category, "name": name})
		return domain.CatalogItem{}, fmt.Errorf("%w: %s/%s", ErrCatalogItemNotFound, category, name)
	}
	return item, nil
}

// ReferenceDataServiceDeps wires the reference service dependencies.
type ReferenceDataServiceDeps struct {
	PriceList PriceListRepository
	Catalog   *ModifierCatalog
}

type referenceDataService struct {
	priceList PriceListRepository
	catalog   *ModifierCatalog
}

// NewReferenceDataService constructs a ReferenceDataService.
func NewReferenceDataService(deps ReferenceDataServiceDeps) (ReferenceDataService, error) {
	if deps.PriceList == nil {
		return nil, errors.New("reference service: price list repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("reference service: modifier catalog is required")
	}
	return &referenceDataService{priceList: deps.PriceList, catalog: deps.Catalog}, nil
}

func (s *referenceDataService) Lists(ctx context.Context, category domain.CategoryCode) (domain.ReferenceLists, error) {
	if category == "" {
		return domain.ReferenceLists{}, fmt.Errorf("%w: category is required", ErrWizardInvalidInput)
	}
	lists, err := s.priceList.ReferenceLists(ctx, category)
	if err != nil {
		return domain.ReferenceLists{}, &InfrastructureError{Op: "reference.lists", Err: err}
	}
	return lists, nil
}

func (s *referenceDataService) Modifiers(ctx context.Context, category domain.CategoryCode) ([]domain.PriceModifier, error) {
	if category == "" {
		return nil, fmt.Errorf("%w: category is required", ErrWizardInvalidInput)
	}
	return s.catalog.ForCategory(category), nil
}
