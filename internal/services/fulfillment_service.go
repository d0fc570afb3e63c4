package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/framelane/api/internal/catalog"
	"github.com/framelane/api/internal/domain"
	"github.com/framelane/api/internal/repositories"
)

// FulfillmentCatalog is the slice of the catalog client order fulfilment
// needs: submission, status reads, and the attribute schema.
type FulfillmentCatalog interface {
	CreateOrder(ctx context.Context, req catalog.OrderRequest) (catalog.OrderResult, error)
	GetOrder(ctx context.Context, providerOrderID string) (catalog.OrderResult, error)
	GetProductDetails(ctx context.Context, sku string) (catalog.ProductDetails, error)
}

// AssetURLResolver locates the printable artwork for a product.
type AssetURLResolver interface {
	AssetURL(ctx context.Context, productID string) (string, error)
}

const (
	defaultFulfillmentProvider = "prodigi"

	historySourceCheckout = "checkout"
	historySourceProvider = "provider"

	orderEventCreated       = "order.created"
	orderEventStatusChanged = "order.status_changed"
)

// statusFromStage is the fixed provider stage to internal status table.
// Unknown stages map to processing so a new provider stage never blocks sync.
var statusFromStage = map[string]domain.OrderStatus{
	"inprogress": domain.OrderStatusProcessing,
	"complete":   domain.OrderStatusShipped,
	"cancelled":  domain.OrderStatusCancelled,
	"onhold":     domain.OrderStatusPending,
	"error":      domain.OrderStatusFailed,
}

type fulfillmentService struct {
	orders      repositories.OrderRepository
	carts       repositories.CartRepository
	pricing     PricingCalculator
	attributes  AttributeResolver
	catalog     FulfillmentCatalog
	assets      AssetURLResolver
	publisher   OrderEventPublisher
	provider    string
	clock       func() time.Time
	idGenerator func() string
	logger      func(context.Context, string, map[string]any)
}

type FulfillmentServiceDeps struct {
	Orders      repositories.OrderRepository
	Carts       repositories.CartRepository
	Pricing     PricingCalculator
	Attributes  AttributeResolver
	Catalog     FulfillmentCatalog
	Assets      AssetURLResolver
	Publisher   OrderEventPublisher
	Provider    string
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

func NewFulfillmentService(deps FulfillmentServiceDeps) (FulfillmentService, error) {
	if deps.Orders == nil {
		return nil, errors.New("fulfillment service: order repository is required")
	}
	if deps.Carts == nil {
		return nil, errors.New("fulfillment service: cart repository is required")
	}
	if deps.Pricing == nil {
		return nil, errors.New("fulfillment service: pricing calculator is required")
	}
	if deps.Attributes == nil {
		return nil, errors.New("fulfillment service: attribute resolver is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("fulfillment service: catalog is required")
	}
	if deps.Assets == nil {
		return nil, errors.New("fulfillment service: asset resolver is required")
	}
	provider := strings.TrimSpace(deps.Provider)
	if provider == "" {
		provider = defaultFulfillmentProvider
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGenerator := deps.IDGenerator
	if idGenerator == nil {
		idGenerator = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &fulfillmentService{
		orders:      deps.Orders,
		carts:       deps.Carts,
		pricing:     deps.Pricing,
		attributes:  deps.Attributes,
		catalog:     deps.Catalog,
		assets:      deps.Assets,
		publisher:   publisher,
		provider:    provider,
		clock:       func() time.Time { return clock().UTC() },
		idGenerator: idGenerator,
		logger:      logger,
	}, nil
}

type noopPublisher struct{}

func (noopPublisher) PublishOrderEvent(context.Context, OrderEvent) error { return nil }

func (s *fulfillmentService) CreateOrderFromCart(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Order{}, domain.NewOrderError("missing_user", "user id is required", http.StatusBadRequest)
	}
	if err := validateShippingAddress(cmd.ShippingAddress); err != nil {
		return Order{}, err
	}

	items, err := s.carts.ListItems(ctx, userID)
	if err != nil {
		return Order{}, domain.NewOrderError("cart_read_failed", "could not read cart", http.StatusInternalServerError).WithCause(err)
	}
	if len(items) == 0 {
		return Order{}, domain.NewOrderError("empty_cart", "cart is empty", http.StatusBadRequest)
	}

	// Checkout-time pricing failures are terminal, unlike cart mutations.
	pricing, err := s.pricing.Price(ctx, PriceQuery{
		Items:              items,
		DestinationCountry: cmd.ShippingAddress.CountryCode,
		ShippingMethod:     cmd.ShippingMethod,
		DisplayCurrency:    cmd.DisplayCurrency,
	})
	if err != nil {
		return Order{}, err
	}

	now := s.clock()
	order := domain.Order{
		ID:              s.idGenerator(),
		UserID:          userID,
		Status:          domain.OrderStatusPending,
		Currency:        pricing.Currency,
		Subtotal:        pricing.Subtotal,
		Shipping:        pricing.Shipping,
		Tax:             pricing.Tax,
		Total:           pricing.Total,
		ShippingMethod:  shippingMethodOrStandard(cmd.ShippingMethod),
		ShippingAddress: cmd.ShippingAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	order.OrderNumber = orderNumberFromID(order.ID)
	for _, item := range items {
		order.Items = append(order.Items, domain.OrderItem{
			ID:            s.idGenerator(),
			OrderID:       order.ID,
			ProductID:     item.ProductID,
			SKU:           item.SKU,
			Quantity:      item.Quantity,
			UnitPrice:     item.DisplayPrice,
			Currency:      item.Currency,
			Configuration: item.Configuration,
		})
	}

	request, err := s.buildOrderRequest(ctx, order)
	if err != nil {
		return Order{}, err
	}

	if _, err := s.orders.Insert(ctx, order); err != nil {
		return Order{}, domain.NewOrderError("order_write_failed", "could not store order", http.StatusInternalServerError).WithCause(err)
	}
	s.appendHistory(ctx, order.ID, domain.OrderStatusPending, "", historySourceCheckout, now)

	result, err := s.catalog.CreateOrder(ctx, request)
	if err != nil {
		s.markOrderFailed(ctx, order, now)
		return Order{}, domain.NewOrderError("provider_rejected", "fulfilment provider rejected the order", http.StatusBadGateway).WithCause(err)
	}

	if _, err := s.orders.InsertDropship(ctx, domain.DropshipOrder{
		ID:              s.idGenerator(),
		OrderID:         order.ID,
		Provider:        s.provider,
		ProviderOrderID: result.ID,
		Stage:           result.Stage,
		CreatedAt:       now,
		UpdatedAt:       now,
	}); err != nil {
		s.logger(ctx, "order.dropship.store_failed", map[string]any{
			"order_id":          order.ID,
			"provider_order_id": result.ID,
			"error":             err.Error(),
		})
	}

	if err := s.carts.Clear(ctx, userID); err != nil {
		s.logger(ctx, "order.cart_clear_failed", map[string]any{"order_id": order.ID, "error": err.Error()})
	}

	s.publish(ctx, OrderEvent{
		Type:    orderEventCreated,
		OrderID: order.ID,
		UserID:  userID,
		Status:  order.Status,
		Source:  historySourceCheckout,
	})
	return order, nil
}

// buildOrderRequest freezes cart lines into provider order lines, resolving
// attributes against the schema and attaching artwork URLs.
func (s *fulfillmentService) buildOrderRequest(ctx context.Context, order domain.Order) (catalog.OrderRequest, error) {
	request := catalog.OrderRequest{
		MerchantReference: order.OrderNumber,
		ShippingMethod:    order.ShippingMethod,
		Recipient:         catalog.NewOrderRecipient(order.ShippingAddress),
	}
	for _, item := range order.Items {
		baseSKU := domain.BaseSKU(item.SKU)

		var schema map[string][]string
		if details, err := s.catalog.GetProductDetails(ctx, baseSKU); err == nil {
			schema = details.Attributes
		} else {
			s.logger(ctx, "order.product_details.failed", map[string]any{"sku": baseSKU, "error": err.Error()})
		}
		attrs := s.attributes.Resolve(ctx, item.Configuration, ProductContext{
			SKU:             baseSKU,
			ValidAttributes: schema,
		})

		assetURL, err := s.assets.AssetURL(ctx, item.ProductID)
		if err != nil || strings.TrimSpace(assetURL) == "" {
			return catalog.OrderRequest{}, domain.NewOrderError("missing_artwork", "no printable asset for product", http.StatusConflict).
				WithDetails(map[string]any{"product_id": item.ProductID}).
				WithCause(err)
		}

		request.Items = append(request.Items, catalog.OrderRequestItem{
			SKU:        baseSKU,
			Copies:     item.Quantity,
			Attributes: attrs,
			Assets:     []catalog.OrderAsset{{PrintArea: catalog.OrderPrintArea, URL: assetURL}},
		})
	}
	return request, nil
}

func (s *fulfillmentService) SyncOrderStatus(ctx context.Context, provider, providerOrderID, stage string) (StatusSyncResult, error) {
	dropship, err := s.orders.FindDropshipByProviderOrderID(ctx, provider, providerOrderID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return StatusSyncResult{}, domain.NewOrderError("unknown_provider_order", "no order for provider reference", http.StatusNotFound).WithCause(err)
		}
		return StatusSyncResult{}, domain.NewOrderError("order_read_failed", "could not read dropship order", http.StatusInternalServerError).WithCause(err)
	}
	order, err := s.orders.FindByID(ctx, dropship.OrderID)
	if err != nil {
		return StatusSyncResult{}, domain.NewOrderError("order_read_failed", "could not read order", http.StatusInternalServerError).WithCause(err)
	}

	if err := s.orders.UpdateDropshipStage(ctx, dropship.ID, stage); err != nil {
		s.logger(ctx, "order.dropship.stage_update_failed", map[string]any{"dropship_id": dropship.ID, "error": err.Error()})
	}

	next, known := statusFromStage[strings.ToLower(strings.TrimSpace(stage))]
	if !known {
		s.logger(ctx, "order.stage.unknown", map[string]any{"stage": stage, "order_id": order.ID})
		next = domain.OrderStatusProcessing
	}

	result := StatusSyncResult{Order: order, Stage: stage}
	if next == order.Status {
		return result, nil
	}
	if !order.Status.CanTransitionTo(next) {
		s.logger(ctx, "order.status.regression_ignored", map[string]any{
			"order_id": order.ID,
			"from":     string(order.Status),
			"to":       string(next),
		})
		return result, nil
	}

	if err := s.orders.UpdateStatus(ctx, order.ID, next); err != nil {
		return StatusSyncResult{}, domain.NewOrderError("order_write_failed", "could not update order status", http.StatusInternalServerError).WithCause(err)
	}
	row := s.appendHistory(ctx, order.ID, next, order.Status, historySourceProvider, s.clock())

	s.publish(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        order.ID,
		UserID:         order.UserID,
		Status:         next,
		PreviousStatus: order.Status,
		Source:         historySourceProvider,
	})

	order.Status = next
	order.UpdatedAt = s.clock()
	result.Order = order
	result.Changed = true
	result.HistoryRow = row
	return result, nil
}

func (s *fulfillmentService) GetOrder(ctx context.Context, userID, orderID string) (Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil || order.UserID != userID {
		if err == nil || repositories.IsNotFound(err) {
			return Order{}, domain.NewOrderError("order_not_found", "order not found", http.StatusNotFound)
		}
		return Order{}, domain.NewOrderError("order_read_failed", "could not read order", http.StatusInternalServerError).WithCause(err)
	}
	return order, nil
}

func (s *fulfillmentService) ListOrders(ctx context.Context, userID string) ([]Order, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, domain.NewOrderError("order_read_failed", "could not list orders", http.StatusInternalServerError).WithCause(err)
	}
	return orders, nil
}

func (s *fulfillmentService) ListOrderHistory(ctx context.Context, userID, orderID string) ([]OrderStatusHistory, error) {
	if _, err := s.GetOrder(ctx, userID, orderID); err != nil {
		return nil, err
	}
	history, err := s.orders.ListHistory(ctx, orderID)
	if err != nil {
		return nil, domain.NewOrderError("order_read_failed", "could not read order history", http.StatusInternalServerError).WithCause(err)
	}
	return history, nil
}

func (s *fulfillmentService) appendHistory(ctx context.Context, orderID string, status, previous domain.OrderStatus, source string, at time.Time) *domain.OrderStatusHistory {
	row := domain.OrderStatusHistory{
		ID:             s.idGenerator(),
		OrderID:        orderID,
		Status:         status,
		PreviousStatus: previous,
		Source:         source,
		OccurredAt:     at,
	}
	if _, err := s.orders.AppendHistory(ctx, row); err != nil {
		s.logger(ctx, "order.history.append_failed", map[string]any{"order_id": orderID, "error": err.Error()})
		return nil
	}
	return &row
}

func (s *fulfillmentService) markOrderFailed(ctx context.Context, order domain.Order, at time.Time) {
	if err := s.orders.UpdateStatus(ctx, order.ID, domain.OrderStatusFailed); err != nil {
		s.logger(ctx, "order.status.fail_mark_failed", map[string]any{"order_id": order.ID, "error": err.Error()})
		return
	}
	s.appendHistory(ctx, order.ID, domain.OrderStatusFailed, order.Status, historySourceCheckout, at)
}

func (s *fulfillmentService) publish(ctx context.Context, event OrderEvent) {
	if err := s.publisher.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish_failed", map[string]any{
			"type":     event.Type,
			"order_id": event.OrderID,
			"error":    err.Error(),
		})
	}
}

func validateShippingAddress(address Address) error {
	missing := make([]string, 0, 4)
	if strings.TrimSpace(address.Line1) == "" {
		missing = append(missing, "line1")
	}
	if strings.TrimSpace(address.City) == "" {
		missing = append(missing, "city")
	}
	if strings.TrimSpace(address.PostalCode) == "" {
		missing = append(missing, "postalCode")
	}
	if strings.TrimSpace(address.CountryCode) == "" {
		missing = append(missing, "countryCode")
	}
	if len(missing) > 0 {
		return domain.NewAddressError("incomplete_address", "shipping address is incomplete", http.StatusBadRequest).
			WithDetails(map[string]any{"missing": missing})
	}
	return nil
}

func shippingMethodOrStandard(method string) string {
	method = strings.TrimSpace(method)
	if method == "" {
		return standardShippingMethod
	}
	return method
}

func orderNumberFromID(id string) string {
	suffix := id
	if len(suffix) > 8 {
		suffix = suffix[len(suffix)-8:]
	}
	return fmt.Sprintf("FL-%s", strings.ToUpper(suffix))
}
