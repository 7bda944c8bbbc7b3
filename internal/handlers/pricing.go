package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pureclean/api/internal/domain"
	"github.com/pureclean/api/internal/platform/httpx"
	"github.com/pureclean/api/internal/services"
)

// PricingHandlers exposes the price calculation engine directly, without a
// wizard session, for receipt previews and terminal-side recalculation.
type PricingHandlers struct {
	engine *services.PriceEngine
}

// NewPricingHandlers constructs the pricing endpoint handlers.
func NewPricingHandlers(engine *services.PriceEngine) *PricingHandlers {
	return &PricingHandlers{engine: engine}
}

// Routes wires the pricing endpoints onto the provided router.
func (h *PricingHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/pricing:calculate", h.calculate)
}

type calculateRequest struct {
	BasePrice       float64            `json:"basePrice"`
	Quantity        int                `json:"quantity"`
	Category        string             `json:"category"`
	ModifierIDs     []string           `json:"modifierIds"`
	RangeValues     map[string]float64 `json:"rangeValues"`
	FixedQuantities map[string]int     `json:"fixedQuantities"`
	Expedite        string             `json:"expedite"`
	Discount        *discountPayload   `json:"discount"`
}

func (h *PricingHandlers) calculate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.engine == nil {
		httpx.WriteError(ctx, w, httpx.NewError("pricing_unavailable", "pricing engine is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxWizardBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req calculateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	cmd := services.PriceCalculationCommand{
		BasePrice:       req.BasePrice,
		Quantity:        req.Quantity,
		Category:        domain.CategoryCode(strings.ToUpper(strings.TrimSpace(req.Category))),
		ModifierIDs:     trimAll(req.ModifierIDs),
		RangeValues:     req.RangeValues,
		FixedQuantities: req.FixedQuantities,
		Expedite:        domain.ExpediteTier(strings.ToUpper(strings.TrimSpace(req.Expedite))),
	}
	if cmd.Expedite == "" {
		cmd.Expedite = domain.ExpediteStandard
	}
	if req.Discount != nil {
		cmd.Discount = domain.DiscountSelection{
			Type:          domain.DiscountType(strings.ToUpper(strings.TrimSpace(req.Discount.Type))),
			CustomPercent: req.Discount.CustomPercent,
			Description:   sanitizeText(req.Discount.Description),
		}
	}
	if cmd.Discount.Type == "" {
		cmd.Discount.Type = domain.DiscountNone
	}

	breakdown, err := h.engine.Calculate(ctx, cmd)
	if err != nil {
		writeWizardError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildBreakdownPayload(breakdown))
}
