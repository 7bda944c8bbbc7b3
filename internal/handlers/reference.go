package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pureclean/api/internal/domain"
	"github.com/pureclean/api/internal/platform/httpx"
	"github.com/pureclean/api/internal/services"
)

// ReferenceHandlers serves the catalog and reference data the terminal UI
// needs to render wizard steps.
type ReferenceHandlers struct {
	catalog   services.CatalogService
	reference services.ReferenceDataService
}

// NewReferenceHandlers constructs the reference endpoint handlers.
func NewReferenceHandlers(catalog services.CatalogService, reference services.ReferenceDataService) *ReferenceHandlers {
	return &ReferenceHandlers{catalog: catalog, reference: reference}
}

// Routes wires the reference endpoints onto the provided router.
func (h *ReferenceHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/categories", h.listCategories)
	r.Get("/categories/{category}/items", h.listItems)
	r.Get("/categories/{category}/lists", h.lists)
	r.Get("/categories/{category}/modifiers", h.listModifiers)
}

func (h *ReferenceHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("reference_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}
	categories, err := h.catalog.Categories(ctx)
	if err != nil {
		writeReferenceError(ctx, w, err)
		return
	}
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		out = append(out, string(c))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"categories": out})
}

type catalogItemPayload struct {
	Category       string  `json:"category"`
	Name           string  `json:"name"`
	BasePrice      float64 `json:"basePrice"`
	UnitOfMeasure  string  `json:"unitOfMeasure"`
	PhotosOptional bool    `json:"photosOptional"`
}

func (h *ReferenceHandlers) listItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("reference_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}
	category := categoryParam(r)
	items, err := h.catalog.ItemsForCategory(ctx, category)
	if err != nil {
		writeReferenceError(ctx, w, err)
		return
	}
	out := make([]catalogItemPayload, 0, len(items))
	for _, item := range items {
		out = append(out, catalogItemPayload{
			Category:       string(item.Category),
			Name:           item.Name,
			BasePrice:      item.BasePrice,
			UnitOfMeasure:  item.UnitOfMeasure,
			PhotosOptional: item.PhotosOptional,
		})
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": out})
}

type referenceEntryPayload struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

func (h *ReferenceHandlers) lists(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reference == nil {
		httpx.WriteError(ctx, w, httpx.NewError("reference_unavailable", "reference service is unavailable", http.StatusServiceUnavailable))
		return
	}
	lists, err := h.reference.Lists(ctx, categoryParam(r))
	if err != nil {
		writeReferenceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"materials": buildEntries(lists.Materials),
		"colors":    buildEntries(lists.Colors),
		"stains":    buildEntries(lists.Stains),
		"defects":   buildEntries(lists.Defects),
	})
}

type modifierPayload struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Kind        string   `json:"kind"`
	Scope       string   `json:"scope"`
	Percent     float64  `json:"percent,omitempty"`
	MinPercent  float64  `json:"minPercent,omitempty"`
	MaxPercent  float64  `json:"maxPercent,omitempty"`
	UnitAmount  float64  `json:"unitAmount,omitempty"`
	Categories  []string `json:"categories,omitempty"`
}

func (h *ReferenceHandlers) listModifiers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reference == nil {
		httpx.WriteError(ctx, w, httpx.NewError("reference_unavailable", "reference service is unavailable", http.StatusServiceUnavailable))
		return
	}
	modifiers, err := h.reference.Modifiers(ctx, categoryParam(r))
	if err != nil {
		writeReferenceError(ctx, w, err)
		return
	}
	out := make([]modifierPayload, 0, len(modifiers))
	for _, m := range modifiers {
		payload := modifierPayload{
			ID:          m.ID,
			Name:        m.Name,
			Description: m.Description,
			Kind:        string(m.Kind),
			Scope:       string(m.Scope),
			Percent:     m.Percent,
			MinPercent:  m.MinPercent,
			MaxPercent:  m.MaxPercent,
			UnitAmount:  m.UnitAmount,
		}
		for _, c := range m.Categories {
			payload.Categories = append(payload.Categories, string(c))
		}
		out = append(out, payload)
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"modifiers": out})
}

func buildEntries(entries []domain.ReferenceEntry) []referenceEntryPayload {
	out := make([]referenceEntryPayload, 0, len(entries))
	for _, e := range entries {
		out = append(out, referenceEntryPayload{Code: e.Code, Label: e.Label})
	}
	return out
}

func categoryParam(r *http.Request) domain.CategoryCode {
	return domain.CategoryCode(strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "category"))))
}

func writeReferenceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCatalogItemNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", err.Error(), http.StatusNotFound))
	case services.IsRetryable(err):
		httpx.WriteError(ctx, w, httpx.NewError("reference_unavailable", "reference data is temporarily unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_server_error", "internal server error", http.StatusInternalServerError))
	}
}
