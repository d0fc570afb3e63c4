package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/framelane/api/internal/domain"
	"github.com/framelane/api/internal/services"
)

type fakePricingCalculator struct {
	result  services.PricingResult
	err     error
	queries []services.PriceQuery
}

func (f *fakePricingCalculator) Price(_ context.Context, query services.PriceQuery) (services.PricingResult, error) {
	f.queries = append(f.queries, query)
	return f.result, f.err
}

func (f *fakePricingCalculator) ValidatePrices(context.Context, []services.CartLineItem, services.PricingResult) []services.PriceWarning {
	return nil
}

func newQuoteRouter(pricing services.PricingCalculator) chi.Router {
	r := chi.NewRouter()
	r.Route("/quote", NewQuoteHandlers(pricing).Routes)
	return r
}

func TestQuoteHandlersSuccess(t *testing.T) {
	pricing := &fakePricingCalculator{
		result: services.PricingResult{
			Subtotal: 100,
			Shipping: 10,
			Tax:      20,
			Total:    130,
			Currency: "USD",
		},
	}

	payload := `{
		"items": [{"sku": "GLOBAL-CAN-16X20", "quantity": 2, "configuration": {"wrap": "mirror"}}],
		"destinationCountry": "GB",
		"shippingMethod": "Standard",
		"displayCurrency": "USD"
	}`
	req := httptest.NewRequest(http.MethodPost, "/quote", strings.NewReader(payload))
	rr := httptest.NewRecorder()
	newQuoteRouter(pricing).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body %s", rr.Code, rr.Body.String())
	}
	if len(pricing.queries) != 1 {
		t.Fatalf("expected 1 query, got %d", len(pricing.queries))
	}
	query := pricing.queries[0]
	if query.DestinationCountry != "GB" || query.ShippingMethod != "Standard" {
		t.Fatalf("unexpected query: %+v", query)
	}
	if len(query.Items) != 1 || query.Items[0].Quantity != 2 || query.Items[0].Configuration.Wrap != "mirror" {
		t.Fatalf("unexpected items: %+v", query.Items)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if body["total"] != 130.0 {
		t.Fatalf("expected total 130, got %v", body["total"])
	}
}

func TestQuoteHandlersDomainError(t *testing.T) {
	pricing := &fakePricingCalculator{
		err: domain.NewPricingError("no_quotes", "no quotes available for destination", http.StatusBadGateway),
	}

	payload := `{"items": [{"sku": "GLOBAL-CAN-16X20", "quantity": 1}], "destinationCountry": "XX"}`
	req := httptest.NewRequest(http.MethodPost, "/quote", strings.NewReader(payload))
	rr := httptest.NewRecorder()
	newQuoteRouter(pricing).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if body["error"] != "no_quotes" {
		t.Fatalf("expected no_quotes, got %v", body["error"])
	}
}

func TestQuoteHandlersRejectsEmptyBody(t *testing.T) {
	pricing := &fakePricingCalculator{}

	req := httptest.NewRequest(http.MethodPost, "/quote", nil)
	rr := httptest.NewRecorder()
	newQuoteRouter(pricing).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if len(pricing.queries) != 0 {
		t.Fatal("calculator should not be called")
	}
}
