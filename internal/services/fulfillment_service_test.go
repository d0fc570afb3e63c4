package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/framelane/api/internal/catalog"
	"github.com/framelane/api/internal/domain"
	"github.com/framelane/api/internal/repositories/memory"
)

type fakeFulfillmentCatalog struct {
	orderRequests []catalog.OrderRequest
	createResult  catalog.OrderResult
	createErr     error
	getResult     catalog.OrderResult
}

func (f *fakeFulfillmentCatalog) CreateOrder(_ context.Context, req catalog.OrderRequest) (catalog.OrderResult, error) {
	f.orderRequests = append(f.orderRequests, req)
	if f.createErr != nil {
		return catalog.OrderResult{}, f.createErr
	}
	return f.createResult, nil
}

func (f *fakeFulfillmentCatalog) GetOrder(context.Context, string) (catalog.OrderResult, error) {
	return f.getResult, nil
}

func (f *fakeFulfillmentCatalog) GetProductDetails(_ context.Context, sku string) (catalog.ProductDetails, error) {
	return catalog.ProductDetails{SKU: sku}, nil
}

type fakeAssetResolver struct {
	urls map[string]string
}

func (f *fakeAssetResolver) AssetURL(_ context.Context, productID string) (string, error) {
	if url, ok := f.urls[productID]; ok {
		return url, nil
	}
	return "", errors.New("asset not found")
}

type recordingPublisher struct {
	events []OrderEvent
}

func (r *recordingPublisher) PublishOrderEvent(_ context.Context, event OrderEvent) error {
	r.events = append(r.events, event)
	return nil
}

type fulfillmentFixture struct {
	service   FulfillmentService
	carts     *memory.CartRepository
	orders    *memory.OrderRepository
	catalog   *fakeFulfillmentCatalog
	publisher *recordingPublisher
}

func newFulfillmentFixture(t *testing.T, cat *fakeFulfillmentCatalog, pricing PricingCalculator) *fulfillmentFixture {
	t.Helper()
	if cat == nil {
		cat = &fakeFulfillmentCatalog{createResult: catalog.OrderResult{ID: "prov-1", Stage: "InProgress"}}
	}
	if pricing == nil {
		pricing = &stubPricing{result: PricingResult{Subtotal: 45, Shipping: 5, Tax: 9, Total: 59, Currency: "USD"}}
	}
	fixture := &fulfillmentFixture{
		carts:     memory.NewCartRepository(),
		orders:    memory.NewOrderRepository(),
		catalog:   cat,
		publisher: &recordingPublisher{},
	}
	service, err := NewFulfillmentService(FulfillmentServiceDeps{
		Orders:     fixture.orders,
		Carts:      fixture.carts,
		Pricing:    pricing,
		Attributes: passthroughResolver{},
		Catalog:    cat,
		Assets:     &fakeAssetResolver{urls: map[string]string{"prod-1": "https://assets.example.com/prod-1.png"}},
		Publisher:  fixture.publisher,
	})
	if err != nil {
		t.Fatalf("NewFulfillmentService: %v", err)
	}
	fixture.service = service
	return fixture
}

func seedCart(t *testing.T, fixture *fulfillmentFixture, items ...domain.CartLineItem) {
	t.Helper()
	for _, item := range items {
		if _, err := fixture.carts.UpsertItem(context.Background(), item); err != nil {
			t.Fatalf("UpsertItem: %v", err)
		}
	}
}

func testAddress() domain.Address {
	return domain.Address{
		Name:        "A Customer",
		Line1:       "1 High Street",
		City:        "London",
		PostalCode:  "N1 9GU",
		CountryCode: "GB",
	}
}

func TestCreateOrderFromCart(t *testing.T) {
	fixture := newFulfillmentFixture(t, nil, nil)
	ctx := context.Background()
	seedCart(t, fixture, domain.CartLineItem{
		ID:            "line-1",
		UserID:        "user-1",
		ProductID:     "prod-1",
		SKU:           "GLOBAL-FRA-16X20-a1b2c3d4",
		Quantity:      2,
		DisplayPrice:  22.5,
		OriginalPrice: 22.5,
		Currency:      "USD",
		Configuration: domain.FrameConfiguration{Size: "16x20"},
	})

	order, err := fixture.service.CreateOrderFromCart(ctx, CreateOrderCommand{
		UserID:          "user-1",
		ShippingAddress: testAddress(),
		ShippingMethod:  "Standard",
	})
	if err != nil {
		t.Fatalf("CreateOrderFromCart: %v", err)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("status = %q, want pending", order.Status)
	}
	if order.Total != 59 || order.Currency != "USD" {
		t.Fatalf("total = %v %s, want 59 USD", order.Total, order.Currency)
	}
	if len(order.Items) != 1 || order.Items[0].Quantity != 2 {
		t.Fatalf("order items = %+v, want one frozen line", order.Items)
	}
	if order.OrderNumber == "" {
		t.Fatalf("order number not assigned")
	}

	// Provider request carries the base SKU and a capitalised print area.
	req := fixture.catalog.orderRequests[0]
	if req.Items[0].SKU != "GLOBAL-FRA-16X20" {
		t.Fatalf("provider SKU = %q, want base form", req.Items[0].SKU)
	}
	if req.Items[0].Assets[0].PrintArea != "Default" {
		t.Fatalf("print area = %q, want Default", req.Items[0].Assets[0].PrintArea)
	}
	if req.Items[0].Assets[0].URL == "" {
		t.Fatalf("asset url missing from provider request")
	}
	if req.MerchantReference != order.OrderNumber {
		t.Fatalf("merchant reference = %q, want %q", req.MerchantReference, order.OrderNumber)
	}

	if items, _ := fixture.carts.ListItems(ctx, "user-1"); len(items) != 0 {
		t.Fatalf("cart items after order = %d, want cleared", len(items))
	}
	dropships, err := fixture.orders.ListDropshipByOrder(ctx, order.ID)
	if err != nil || len(dropships) != 1 {
		t.Fatalf("dropships = %v (%v), want 1", dropships, err)
	}
	if dropships[0].ProviderOrderID != "prov-1" {
		t.Fatalf("provider order id = %q, want prov-1", dropships[0].ProviderOrderID)
	}
	history, err := fixture.orders.ListHistory(ctx, order.ID)
	if err != nil || len(history) != 1 {
		t.Fatalf("history = %v (%v), want initial row", history, err)
	}
	if history[0].Status != domain.OrderStatusPending || history[0].Source != "checkout" {
		t.Fatalf("initial history = %+v", history[0])
	}
	if len(fixture.publisher.events) != 1 || fixture.publisher.events[0].Type != "order.created" {
		t.Fatalf("events = %+v, want order.created", fixture.publisher.events)
	}
}

func TestCreateOrderEmptyCart(t *testing.T) {
	fixture := newFulfillmentFixture(t, nil, nil)
	_, err := fixture.service.CreateOrderFromCart(context.Background(), CreateOrderCommand{
		UserID:          "user-1",
		ShippingAddress: testAddress(),
	})
	if !domain.IsKind(err, domain.ErrorKindOrder) {
		t.Fatalf("error = %v, want order error", err)
	}
}

func TestCreateOrderIncompleteAddress(t *testing.T) {
	fixture := newFulfillmentFixture(t, nil, nil)
	_, err := fixture.service.CreateOrderFromCart(context.Background(), CreateOrderCommand{
		UserID:          "user-1",
		ShippingAddress: domain.Address{Line1: "1 High Street"},
	})
	if !domain.IsKind(err, domain.ErrorKindAddress) {
		t.Fatalf("error = %v, want address error", err)
	}
}

func TestCreateOrderPricingFailureIsTerminal(t *testing.T) {
	pricing := &stubPricing{err: domain.NewPricingError("no_quotes", "no quotes", http.StatusBadGateway)}
	fixture := newFulfillmentFixture(t, nil, pricing)
	seedCart(t, fixture, domain.CartLineItem{ID: "line-1", UserID: "user-1", ProductID: "prod-1", SKU: "GLOBAL-FRA-16X20", Quantity: 1})

	_, err := fixture.service.CreateOrderFromCart(context.Background(), CreateOrderCommand{
		UserID:          "user-1",
		ShippingAddress: testAddress(),
	})
	if !domain.IsKind(err, domain.ErrorKindPricing) {
		t.Fatalf("error = %v, want pricing error", err)
	}
}

func TestCreateOrderProviderRejection(t *testing.T) {
	cat := &fakeFulfillmentCatalog{createErr: errors.New("invalid attributes")}
	fixture := newFulfillmentFixture(t, cat, nil)
	ctx := context.Background()
	seedCart(t, fixture, domain.CartLineItem{ID: "line-1", UserID: "user-1", ProductID: "prod-1", SKU: "GLOBAL-FRA-16X20", Quantity: 1})

	_, err := fixture.service.CreateOrderFromCart(ctx, CreateOrderCommand{
		UserID:          "user-1",
		ShippingAddress: testAddress(),
	})
	if !domain.IsKind(err, domain.ErrorKindOrder) {
		t.Fatalf("error = %v, want order error", err)
	}

	orders, err := fixture.orders.ListByUser(ctx, "user-1")
	if err != nil || len(orders) != 1 {
		t.Fatalf("orders = %v (%v), want the failed order kept", orders, err)
	}
	if orders[0].Status != domain.OrderStatusFailed {
		t.Fatalf("status = %q, want failed", orders[0].Status)
	}
	history, _ := fixture.orders.ListHistory(ctx, orders[0].ID)
	if len(history) != 2 || history[1].Status != domain.OrderStatusFailed {
		t.Fatalf("history = %+v, want pending then failed", history)
	}
	if items, _ := fixture.carts.ListItems(ctx, "user-1"); len(items) != 1 {
		t.Fatalf("cart cleared despite rejected order")
	}
}

func TestCreateOrderMissingArtwork(t *testing.T) {
	fixture := newFulfillmentFixture(t, nil, nil)
	ctx := context.Background()
	seedCart(t, fixture, domain.CartLineItem{ID: "line-1", UserID: "user-1", ProductID: "prod-unknown", SKU: "GLOBAL-FRA-16X20", Quantity: 1})

	_, err := fixture.service.CreateOrderFromCart(ctx, CreateOrderCommand{
		UserID:          "user-1",
		ShippingAddress: testAddress(),
	})
	if !domain.IsKind(err, domain.ErrorKindOrder) {
		t.Fatalf("error = %v, want order error", err)
	}
	if orders, _ := fixture.orders.ListByUser(ctx, "user-1"); len(orders) != 0 {
		t.Fatalf("order stored despite missing artwork")
	}
}

func placeTestOrder(t *testing.T, fixture *fulfillmentFixture) domain.Order {
	t.Helper()
	seedCart(t, fixture, domain.CartLineItem{
		ID:        "line-1",
		UserID:    "user-1",
		ProductID: "prod-1",
		SKU:       "GLOBAL-FRA-16X20",
		Quantity:  1,
		Currency:  "USD",
	})
	order, err := fixture.service.CreateOrderFromCart(context.Background(), CreateOrderCommand{
		UserID:          "user-1",
		ShippingAddress: testAddress(),
	})
	if err != nil {
		t.Fatalf("CreateOrderFromCart: %v", err)
	}
	return order
}

func TestSyncOrderStatusMapsStages(t *testing.T) {
	cases := []struct {
		stage string
		want  domain.OrderStatus
	}{
		{"InProgress", domain.OrderStatusProcessing},
		{"Complete", domain.OrderStatusShipped},
		{"Cancelled", domain.OrderStatusCancelled},
		{"Error", domain.OrderStatusFailed},
		{"SomethingNew", domain.OrderStatusProcessing},
	}
	for _, tc := range cases {
		t.Run(tc.stage, func(t *testing.T) {
			fixture := newFulfillmentFixture(t, nil, nil)
			order := placeTestOrder(t, fixture)

			result, err := fixture.service.SyncOrderStatus(context.Background(), "prodigi", "prov-1", tc.stage)
			if err != nil {
				t.Fatalf("SyncOrderStatus: %v", err)
			}
			if !result.Changed {
				t.Fatalf("expected status change for stage %q", tc.stage)
			}
			if result.Order.Status != tc.want {
				t.Fatalf("status = %q, want %q", result.Order.Status, tc.want)
			}
			if result.HistoryRow == nil || result.HistoryRow.PreviousStatus != domain.OrderStatusPending {
				t.Fatalf("history row = %+v, want previous pending", result.HistoryRow)
			}
			if result.HistoryRow.Source != "provider" {
				t.Fatalf("history source = %q, want provider", result.HistoryRow.Source)
			}

			stored, err := fixture.orders.FindByID(context.Background(), order.ID)
			if err != nil || stored.Status != tc.want {
				t.Fatalf("stored status = %q (%v), want %q", stored.Status, err, tc.want)
			}
		})
	}
}

func TestSyncOrderStatusOnHoldMapsToPending(t *testing.T) {
	fixture := newFulfillmentFixture(t, nil, nil)
	placeTestOrder(t, fixture)

	// Already pending, so the mapped status is unchanged and no row is written.
	result, err := fixture.service.SyncOrderStatus(context.Background(), "prodigi", "prov-1", "OnHold")
	if err != nil {
		t.Fatalf("SyncOrderStatus: %v", err)
	}
	if result.Changed {
		t.Fatalf("unchanged status reported as change")
	}
	if result.HistoryRow != nil {
		t.Fatalf("history row written for same-status sync")
	}
}

func TestSyncOrderStatusIgnoresRegression(t *testing.T) {
	fixture := newFulfillmentFixture(t, nil, nil)
	order := placeTestOrder(t, fixture)
	ctx := context.Background()

	if _, err := fixture.service.SyncOrderStatus(ctx, "prodigi", "prov-1", "Complete"); err != nil {
		t.Fatalf("SyncOrderStatus: %v", err)
	}
	result, err := fixture.service.SyncOrderStatus(ctx, "prodigi", "prov-1", "InProgress")
	if err != nil {
		t.Fatalf("SyncOrderStatus: %v", err)
	}
	if result.Changed {
		t.Fatalf("regression applied")
	}
	stored, _ := fixture.orders.FindByID(ctx, order.ID)
	if stored.Status != domain.OrderStatusShipped {
		t.Fatalf("status = %q, want shipped preserved", stored.Status)
	}
	history, _ := fixture.orders.ListHistory(ctx, order.ID)
	if len(history) != 2 {
		t.Fatalf("history rows = %d, want 2 (pending, shipped)", len(history))
	}
}

func TestSyncOrderStatusUnknownProviderOrder(t *testing.T) {
	fixture := newFulfillmentFixture(t, nil, nil)
	_, err := fixture.service.SyncOrderStatus(context.Background(), "prodigi", "missing", "Complete")
	var domainErr *domain.Error
	if !errors.As(err, &domainErr) || domainErr.HTTPStatus != http.StatusNotFound {
		t.Fatalf("error = %v, want not found", err)
	}
}

func TestGetOrderEnforcesOwnership(t *testing.T) {
	fixture := newFulfillmentFixture(t, nil, nil)
	order := placeTestOrder(t, fixture)
	ctx := context.Background()

	if _, err := fixture.service.GetOrder(ctx, "user-1", order.ID); err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	_, err := fixture.service.GetOrder(ctx, "user-2", order.ID)
	var domainErr *domain.Error
	if !errors.As(err, &domainErr) || domainErr.HTTPStatus != http.StatusNotFound {
		t.Fatalf("error = %v, want not found for other user", err)
	}
}

func TestListOrderHistoryRequiresOwnership(t *testing.T) {
	fixture := newFulfillmentFixture(t, nil, nil)
	order := placeTestOrder(t, fixture)
	ctx := context.Background()

	history, err := fixture.service.ListOrderHistory(ctx, "user-1", order.ID)
	if err != nil || len(history) != 1 {
		t.Fatalf("history = %v (%v), want initial row", history, err)
	}
	if _, err := fixture.service.ListOrderHistory(ctx, "user-2", order.ID); err == nil {
		t.Fatalf("expected ownership failure")
	}
}
