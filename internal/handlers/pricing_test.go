package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pureclean/api/internal/services"
)

func newPricingRouter(t *testing.T) http.Handler {
	t.Helper()
	engine, err := services.NewPriceEngine(services.PriceEngineDeps{
		Catalog: services.NewModifierCatalog(),
		Policy:  services.PricingPolicy{},
	})
	require.NoError(t, err)
	return NewRouter(WithPricingRoutes(NewPricingHandlers(engine).Routes))
}

func TestCalculateEndpointAppliesChain(t *testing.T) {
	router := newPricingRouter(t)

	body := `{
		"basePrice": 100,
		"quantity": 2,
		"category": "CLOTHING",
		"modifierIds": ["manual_cleaning"],
		"expedite": "URGENT_24H",
		"discount": {"type": "EVERCARD"}
	}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/pricing:calculate", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got breakdownPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, 200.0, got.Subtotal)
	require.Len(t, got.Adjustments, 1)
	require.NotNil(t, got.Expedite)
	require.NotNil(t, got.Discount)
	require.Equal(t, 432.0, got.FinalPrice)
	require.Equal(t, 216.0, got.FinalUnitPrice)
}

func TestCalculateEndpointDefaultsTierAndDiscount(t *testing.T) {
	router := newPricingRouter(t)

	body := `{"basePrice": 50, "quantity": 1, "category": "CLOTHING"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/pricing:calculate", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got breakdownPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Nil(t, got.Expedite)
	require.Nil(t, got.Discount)
	require.Equal(t, 50.0, got.FinalPrice)
}

func TestCalculateEndpointRejectsExpediteForLeather(t *testing.T) {
	router := newPricingRouter(t)

	body := `{"basePrice": 300, "quantity": 1, "category": "LEATHER_CLEANING", "expedite": "URGENT_48H"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/pricing:calculate", strings.NewReader(body)))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), "not_expeditable")
}

func TestCalculateEndpointRejectsCustomDiscountOutOfRange(t *testing.T) {
	router := newPricingRouter(t)

	body := `{"basePrice": 100, "quantity": 1, "category": "CLOTHING", "discount": {"type": "CUSTOM", "customPercent": 75, "description": "manager override"}}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/pricing:calculate", strings.NewReader(body)))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), "discount_out_of_range")
}

func TestCalculateEndpointRejectsEmptyBody(t *testing.T) {
	router := newPricingRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/pricing:calculate", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}
