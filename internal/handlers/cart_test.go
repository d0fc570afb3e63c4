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
	"github.com/framelane/api/internal/platform/requestctx"
	"github.com/framelane/api/internal/services"
)

type fakeCartService struct {
	view services.CartView
	err  error

	addCommands []services.AddItemCommand
	updates     []struct {
		UserID   string
		ItemID   string
		Quantity int
	}
	removed [][2]string
	cleared []string
	gets    []struct {
		UserID  string
		Country string
		Method  string
	}
}

func (f *fakeCartService) Add(_ context.Context, cmd services.AddItemCommand) (services.CartView, error) {
	f.addCommands = append(f.addCommands, cmd)
	return f.view, f.err
}

func (f *fakeCartService) UpdateQuantity(_ context.Context, userID, itemID string, quantity int) (services.CartView, error) {
	f.updates = append(f.updates, struct {
		UserID   string
		ItemID   string
		Quantity int
	}{userID, itemID, quantity})
	return f.view, f.err
}

func (f *fakeCartService) Remove(_ context.Context, userID, itemID string) (services.CartView, error) {
	f.removed = append(f.removed, [2]string{userID, itemID})
	return f.view, f.err
}

func (f *fakeCartService) Clear(_ context.Context, userID string) error {
	f.cleared = append(f.cleared, userID)
	return f.err
}

func (f *fakeCartService) Get(_ context.Context, userID, country, method string) (services.CartView, error) {
	f.gets = append(f.gets, struct {
		UserID  string
		Country string
		Method  string
	}{userID, country, method})
	return f.view, f.err
}

func newCartRouter(carts services.CartService) chi.Router {
	r := chi.NewRouter()
	r.Route("/cart", NewCartHandlers(carts).Routes)
	return r
}

func asUser(req *http.Request, userID string) *http.Request {
	return req.WithContext(requestctx.WithUserID(req.Context(), userID))
}

func TestCartHandlersGetCart(t *testing.T) {
	rate := 0.8
	carts := &fakeCartService{
		view: services.CartView{
			Items: []services.CartLineItem{{
				ID:        "item-1",
				ProductID: "prod-1",
				SKU:       "GLOBAL-CAN-16X20",
				Quantity:  2,
				Currency:  "USD",
			}},
			Pricing: &services.PricingResult{
				Subtotal:         80,
				Shipping:         8,
				Tax:              16,
				Total:            104,
				Currency:         "GBP",
				OriginalCurrency: "USD",
				OriginalTotal:    130,
				ExchangeRate:     &rate,
			},
		},
	}

	req := asUser(httptest.NewRequest(http.MethodGet, "/cart?country=GB&shippingMethod=Express", nil), "user-1")
	rr := httptest.NewRecorder()
	newCartRouter(carts).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body %s", rr.Code, rr.Body.String())
	}
	if len(carts.gets) != 1 {
		t.Fatalf("expected 1 get, got %d", len(carts.gets))
	}
	if got := carts.gets[0]; got.UserID != "user-1" || got.Country != "GB" || got.Method != "Express" {
		t.Fatalf("unexpected get args: %+v", got)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	pricing, ok := body["pricing"].(map[string]any)
	if !ok {
		t.Fatalf("expected pricing object, got %v", body["pricing"])
	}
	if pricing["total"] != 104.0 {
		t.Fatalf("expected total 104, got %v", pricing["total"])
	}
	if pricing["exchangeRate"] != 0.8 {
		t.Fatalf("expected exchangeRate 0.8, got %v", pricing["exchangeRate"])
	}
	items, ok := body["items"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("expected 1 item, got %v", body["items"])
	}
}

func TestCartHandlersAddItem(t *testing.T) {
	carts := &fakeCartService{view: services.CartView{PriceStale: true}}

	payload := `{
		"productId": "prod-1",
		"sku": "GLOBAL-FRA-16X20",
		"quantity": 2,
		"catalogPrice": 45,
		"currency": "USD",
		"configuration": {"size": "16x20", "frameColor": "black"},
		"destinationCountry": "GB"
	}`
	req := asUser(httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(payload)), "user-1")
	rr := httptest.NewRecorder()
	newCartRouter(carts).ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body %s", rr.Code, rr.Body.String())
	}
	if len(carts.addCommands) != 1 {
		t.Fatalf("expected 1 add, got %d", len(carts.addCommands))
	}
	cmd := carts.addCommands[0]
	if cmd.UserID != "user-1" || cmd.SKU != "GLOBAL-FRA-16X20" || cmd.Quantity != 2 {
		t.Fatalf("unexpected command: %+v", cmd)
	}
	if cmd.Configuration.Size != "16x20" || cmd.Configuration.FrameColor != "black" {
		t.Fatalf("configuration not decoded: %+v", cmd.Configuration)
	}
	if cmd.DestinationCountry != "GB" {
		t.Fatalf("expected destination GB, got %q", cmd.DestinationCountry)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if body["priceStale"] != true {
		t.Fatalf("expected priceStale true, got %v", body["priceStale"])
	}
}

func TestCartHandlersAddItemRejectsBadJSON(t *testing.T) {
	carts := &fakeCartService{}

	req := asUser(httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader("{not json")), "user-1")
	rr := httptest.NewRecorder()
	newCartRouter(carts).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if len(carts.addCommands) != 0 {
		t.Fatal("service should not be called")
	}
}

func TestCartHandlersUpdateQuantity(t *testing.T) {
	carts := &fakeCartService{}

	req := asUser(httptest.NewRequest(http.MethodPatch, "/cart/items/item-9", strings.NewReader(`{"quantity":5}`)), "user-1")
	rr := httptest.NewRecorder()
	newCartRouter(carts).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body %s", rr.Code, rr.Body.String())
	}
	if len(carts.updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(carts.updates))
	}
	if got := carts.updates[0]; got.ItemID != "item-9" || got.Quantity != 5 {
		t.Fatalf("unexpected update: %+v", got)
	}
}

func TestCartHandlersDomainErrorEnvelope(t *testing.T) {
	carts := &fakeCartService{
		err: domain.NewCartError("item_not_found", "cart item not found", http.StatusNotFound),
	}

	req := asUser(httptest.NewRequest(http.MethodPatch, "/cart/items/missing", strings.NewReader(`{"quantity":1}`)), "user-1")
	rr := httptest.NewRecorder()
	newCartRouter(carts).ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if body["error"] != "item_not_found" {
		t.Fatalf("expected item_not_found, got %v", body["error"])
	}
}

func TestCartHandlersRemoveAndClear(t *testing.T) {
	carts := &fakeCartService{}
	router := newCartRouter(carts)

	req := asUser(httptest.NewRequest(http.MethodDelete, "/cart/items/item-2", nil), "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(carts.removed) != 1 || carts.removed[0][1] != "item-2" {
		t.Fatalf("unexpected removes: %v", carts.removed)
	}

	req = asUser(httptest.NewRequest(http.MethodDelete, "/cart", nil), "user-1")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if len(carts.cleared) != 1 || carts.cleared[0] != "user-1" {
		t.Fatalf("unexpected clears: %v", carts.cleared)
	}
}
