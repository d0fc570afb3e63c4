package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/framelane/api/internal/domain"
	"github.com/framelane/api/internal/repositories/memory"
)

// stubPricing returns a canned result or error and records calls.
type stubPricing struct {
	calls    int
	result   PricingResult
	err      error
	warnings []PriceWarning
}

func (s *stubPricing) Price(_ context.Context, _ PriceQuery) (PricingResult, error) {
	s.calls++
	if s.err != nil {
		return PricingResult{}, s.err
	}
	return s.result, nil
}

func (s *stubPricing) ValidatePrices(_ context.Context, _ []CartLineItem, _ PricingResult) []PriceWarning {
	return s.warnings
}

func newTestCartService(t *testing.T, pricing PricingCalculator) CartService {
	t.Helper()
	if pricing == nil {
		pricing = &stubPricing{result: PricingResult{Currency: "USD"}}
	}
	service, err := NewCartService(CartServiceDeps{
		Carts:   memory.NewCartRepository(),
		Pricing: pricing,
	})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}
	return service
}

func TestCartAddCreatesLine(t *testing.T) {
	service := newTestCartService(t, nil)

	view, err := service.Add(context.Background(), AddItemCommand{
		UserID:        "user-1",
		ProductID:     "prod-1",
		SKU:           "GLOBAL-FRA-16X20",
		Quantity:      1,
		CatalogPrice:  45,
		Currency:      "usd",
		Configuration: domain.FrameConfiguration{Size: "16x20", FrameColor: "black"},
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(view.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(view.Items))
	}
	item := view.Items[0]
	if item.ID == "" {
		t.Fatalf("item id not generated")
	}
	if item.Quantity != 1 {
		t.Fatalf("quantity = %d, want 1", item.Quantity)
	}
	if item.OriginalPrice != 45 || item.Currency != "USD" {
		t.Fatalf("stored price = %v %s, want 45 USD", item.OriginalPrice, item.Currency)
	}
	if item.CreatedAt.IsZero() || item.UpdatedAt.IsZero() {
		t.Fatalf("timestamps not set: %+v", item)
	}
}

func TestCartAddMergesByProduct(t *testing.T) {
	service := newTestCartService(t, nil)
	ctx := context.Background()

	cmd := AddItemCommand{UserID: "user-1", ProductID: "prod-1", SKU: "GLOBAL-CAN-12X12", Quantity: 2, CatalogPrice: 30}
	if _, err := service.Add(ctx, cmd); err != nil {
		t.Fatalf("Add: %v", err)
	}
	view, err := service.Add(ctx, cmd)
	if err != nil {
		t.Fatalf("Add again: %v", err)
	}
	if len(view.Items) != 1 {
		t.Fatalf("items = %d, want 1 merged line", len(view.Items))
	}
	if view.Items[0].Quantity != 4 {
		t.Fatalf("quantity = %d, want 4", view.Items[0].Quantity)
	}
}

func TestCartQuantityClampedToTen(t *testing.T) {
	service := newTestCartService(t, nil)
	ctx := context.Background()

	view, err := service.Add(ctx, AddItemCommand{UserID: "user-1", ProductID: "prod-1", SKU: "GLOBAL-CAN-12X12", Quantity: 25})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if view.Items[0].Quantity != 10 {
		t.Fatalf("quantity = %d, want clamp to 10", view.Items[0].Quantity)
	}

	view, err = service.Add(ctx, AddItemCommand{UserID: "user-1", ProductID: "prod-1", SKU: "GLOBAL-CAN-12X12", Quantity: 3})
	if err != nil {
		t.Fatalf("Add merge: %v", err)
	}
	if view.Items[0].Quantity != 10 {
		t.Fatalf("merged quantity = %d, want clamp to 10", view.Items[0].Quantity)
	}
}

func TestCartUpdateBelowOneRemoves(t *testing.T) {
	service := newTestCartService(t, nil)
	ctx := context.Background()

	view, err := service.Add(ctx, AddItemCommand{UserID: "user-1", ProductID: "prod-1", SKU: "GLOBAL-CAN-12X12", Quantity: 2})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	itemID := view.Items[0].ID

	view, err = service.UpdateQuantity(ctx, "user-1", itemID, 0)
	if err != nil {
		t.Fatalf("UpdateQuantity: %v", err)
	}
	if len(view.Items) != 0 {
		t.Fatalf("items = %d, want removal below quantity 1", len(view.Items))
	}
}

func TestCartUpdateUnknownItem(t *testing.T) {
	service := newTestCartService(t, nil)

	_, err := service.UpdateQuantity(context.Background(), "user-1", "missing", 3)
	var domainErr *domain.Error
	if !errors.As(err, &domainErr) || domainErr.HTTPStatus != http.StatusNotFound {
		t.Fatalf("UpdateQuantity error = %v, want not found", err)
	}
}

func TestCartMutationSurvivesPricingFailure(t *testing.T) {
	pricing := &stubPricing{err: domain.NewPricingError("no_quotes", "no quotes", http.StatusBadGateway)}
	service := newTestCartService(t, pricing)

	view, err := service.Add(context.Background(), AddItemCommand{
		UserID:             "user-1",
		ProductID:          "prod-1",
		SKU:                "GLOBAL-FRA-16X20",
		Quantity:           1,
		CatalogPrice:       45,
		DestinationCountry: "GB",
	})
	if err != nil {
		t.Fatalf("Add must not fail on pricing error, got %v", err)
	}
	if len(view.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(view.Items))
	}
	if !view.PriceStale {
		t.Fatalf("expected stale price advisory")
	}
	if view.Pricing != nil {
		t.Fatalf("pricing = %+v, want nil on failure", view.Pricing)
	}
}

func TestCartGetPricesWithDestination(t *testing.T) {
	pricing := &stubPricing{
		result:   PricingResult{Subtotal: 45, Shipping: 5, Total: 50, Currency: "USD"},
		warnings: []PriceWarning{{SKU: "GLOBAL-FRA-16X20", Deviation: 0.2}},
	}
	service := newTestCartService(t, pricing)
	ctx := context.Background()

	if _, err := service.Add(ctx, AddItemCommand{UserID: "user-1", ProductID: "prod-1", SKU: "GLOBAL-FRA-16X20", Quantity: 1}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	view, err := service.Get(ctx, "user-1", "US", "Standard")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if view.Pricing == nil || view.Pricing.Total != 50 {
		t.Fatalf("pricing = %+v, want total 50", view.Pricing)
	}
	if view.PriceStale {
		t.Fatalf("unexpected stale advisory")
	}
	if len(view.Warnings) != 1 {
		t.Fatalf("warnings = %d, want 1", len(view.Warnings))
	}
}

func TestCartGetWithoutDestinationSkipsPricing(t *testing.T) {
	pricing := &stubPricing{result: PricingResult{Total: 50, Currency: "USD"}}
	service := newTestCartService(t, pricing)
	ctx := context.Background()

	if _, err := service.Add(ctx, AddItemCommand{UserID: "user-1", ProductID: "prod-1", SKU: "GLOBAL-FRA-16X20", Quantity: 1}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	view, err := service.Get(ctx, "user-1", "", "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if view.Pricing != nil || !view.PriceStale {
		t.Fatalf("expected no quote without destination, got %+v", view)
	}
}

func TestCartRemoveMissingItemIsIdempotent(t *testing.T) {
	service := newTestCartService(t, nil)
	if _, err := service.Remove(context.Background(), "user-1", "missing"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
}

func TestCartClear(t *testing.T) {
	service := newTestCartService(t, nil)
	ctx := context.Background()

	if _, err := service.Add(ctx, AddItemCommand{UserID: "user-1", ProductID: "prod-1", SKU: "GLOBAL-CAN-12X12", Quantity: 1}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := service.Clear(ctx, "user-1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	view, err := service.Get(ctx, "user-1", "", "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(view.Items) != 0 {
		t.Fatalf("items = %d, want empty cart", len(view.Items))
	}
}
