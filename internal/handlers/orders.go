package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pureclean/api/internal/domain"
	"github.com/pureclean/api/internal/platform/httpx"
	"github.com/pureclean/api/internal/services"
)

// OrderHandlers serves read access to committed orders.
type OrderHandlers struct {
	orders services.OrderRepository
}

// NewOrderHandlers constructs the order endpoint handlers.
func NewOrderHandlers(orders services.OrderRepository) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// Routes wires the order endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{orderID}", h.getOrder)
}

type orderPayload struct {
	ID         string             `json:"id"`
	Number     int64              `json:"number"`
	Client     clientInfoPayload  `json:"client"`
	Items      []orderItemPayload `json:"items"`
	Parameters parametersPayload  `json:"parameters"`
	ItemTotal  float64            `json:"itemTotal"`
	FinalTotal float64            `json:"finalTotal"`
	CreatedAt  string             `json:"createdAt"`
}

type orderItemPayload struct {
	ID                string            `json:"id"`
	Category          string            `json:"category"`
	Name              string            `json:"name"`
	Quantity          int               `json:"quantity"`
	UnitOfMeasure     string            `json:"unitOfMeasure,omitempty"`
	Material          string            `json:"material,omitempty"`
	Color             string            `json:"color,omitempty"`
	WearDegree        string            `json:"wearDegree,omitempty"`
	Stains            []string          `json:"stains,omitempty"`
	Defects           []string          `json:"defects,omitempty"`
	NoGuaranteeReason string            `json:"noGuaranteeReason,omitempty"`
	BasePrice         float64           `json:"basePrice"`
	FinalPrice        float64           `json:"finalPrice"`
	Breakdown         *breakdownPayload `json:"breakdown,omitempty"`
	Photos            []photoRefPayload `json:"photos,omitempty"`
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order storage is unavailable", http.StatusServiceUnavailable))
		return
	}

	order, err := h.orders.Get(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrOrderNotFound):
			httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
		case services.IsRetryable(err):
			httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order storage is temporarily unavailable", http.StatusServiceUnavailable))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("internal_server_error", "internal server error", http.StatusInternalServerError))
		}
		return
	}

	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func buildOrderPayload(order *domain.Order) orderPayload {
	out := orderPayload{
		ID:     order.ID,
		Number: order.Number,
		Client: clientInfoPayload{
			ClientID:     order.Client.ClientID,
			ClientName:   order.Client.ClientName,
			ClientPhone:  order.Client.ClientPhone,
			Branch:       order.Client.Branch,
			ReceiptLabel: order.Client.ReceiptLabel,
		},
		Items:      make([]orderItemPayload, 0, len(order.Items)),
		Parameters: *buildParametersPayload(&order.Parameters),
		ItemTotal:  order.Parameters.ItemTotal,
		FinalTotal: order.Parameters.FinalTotal,
		CreatedAt:  formatTime(order.CreatedAt),
	}
	for _, item := range order.Items {
		payload := orderItemPayload{
			ID:                item.ID,
			Category:          string(item.Category),
			Name:              item.Name,
			Quantity:          item.Quantity,
			UnitOfMeasure:     item.UnitOfMeasure,
			Material:          item.Material,
			Color:             item.Color,
			WearDegree:        item.WearDegree,
			Stains:            item.Stains,
			Defects:           item.Defects,
			NoGuaranteeReason: item.NoGuaranteeReason,
			BasePrice:         item.BasePrice,
			FinalPrice:        item.FinalPrice,
			Breakdown:         buildBreakdownPayload(item.Breakdown),
		}
		for _, ref := range item.PhotoRefs {
			payload.Photos = append(payload.Photos, photoRefPayload{
				ID:         ref.ID,
				ObjectName: ref.ObjectName,
				UploadedAt: formatTime(ref.UploadedAt),
			})
		}
		out.Items = append(out.Items, payload)
	}
	return out
}
