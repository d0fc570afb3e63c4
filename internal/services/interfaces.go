package services

import (
	"context"

	domain "github.com/framelane/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	FrameConfiguration = domain.FrameConfiguration
	CartLineItem       = domain.CartLineItem
	QuoteItem          = domain.QuoteItem
	Quote              = domain.Quote
	PricingResult      = domain.PricingResult
	PriceWarning       = domain.PriceWarning
	AvailableOptions   = domain.AvailableOptions
	OptionSet          = domain.OptionSet
	ProductType        = domain.ProductType
	Order              = domain.Order
	OrderItem          = domain.OrderItem
	OrderStatus        = domain.OrderStatus
	OrderStatusHistory = domain.OrderStatusHistory
	DropshipOrder      = domain.DropshipOrder
	Address            = domain.Address
)

// ProductContext carries what the attribute resolver knows about the product
// being configured. ValidAttributes is nil when the catalog schema is
// unavailable, which switches resolution to heuristic mode.
type ProductContext struct {
	SKU             string
	ProductType     ProductType
	ValidAttributes map[string][]string
}

// AttributeResolver maps a frame configuration onto the catalog's attribute
// vocabulary. Resolve never fails; unresolvable fields are dropped.
type AttributeResolver interface {
	Resolve(ctx context.Context, config FrameConfiguration, product ProductContext) map[string]string
}

// CurrencyService converts amounts between display currencies. Both methods
// degrade to an embedded fallback table and never fail.
type CurrencyService interface {
	Rate(ctx context.Context, from, to string) float64
	Convert(ctx context.Context, amount float64, from, to string) float64
}

// OptionsResolver reports which option values are currently orderable for a
// product type shipped to a country.
type OptionsResolver interface {
	AvailableOptions(ctx context.Context, productType ProductType, countryCode string, extraFilters map[string]string) (AvailableOptions, error)
}

// PriceQuery describes one pricing calculation over a set of cart lines.
type PriceQuery struct {
	Items              []CartLineItem
	DestinationCountry string
	ShippingMethod     string
	DisplayCurrency    string
}

// PricingCalculator aggregates cart lines into catalog quotes and derives the
// customer-facing totals.
type PricingCalculator interface {
	Price(ctx context.Context, query PriceQuery) (PricingResult, error)
	ValidatePrices(ctx context.Context, items []CartLineItem, result PricingResult) []PriceWarning
}

// AddItemCommand adds one configured product to a user's cart.
type AddItemCommand struct {
	UserID             string
	ProductID          string
	SKU                string
	Quantity           int
	CatalogPrice       float64
	Currency           string
	Configuration      FrameConfiguration
	DestinationCountry string
	ShippingMethod     string
}

// CartView is a cart snapshot with its opportunistic pricing outcome.
type CartView struct {
	Items      []CartLineItem
	Pricing    *PricingResult
	PriceStale bool
	Warnings   []PriceWarning
}

// CartService owns cart mutation semantics. Pricing is attempted on every
// mutation but a pricing failure never fails the mutation.
type CartService interface {
	Add(ctx context.Context, cmd AddItemCommand) (CartView, error)
	UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) (CartView, error)
	Remove(ctx context.Context, userID, itemID string) (CartView, error)
	Clear(ctx context.Context, userID string) error
	Get(ctx context.Context, userID string, destinationCountry, shippingMethod string) (CartView, error)
}

// CreateOrderCommand turns the user's cart into an order.
type CreateOrderCommand struct {
	UserID          string
	ShippingAddress Address
	ShippingMethod  string
	DisplayCurrency string
}

// StatusSyncResult reports the outcome of one fulfillment status sync.
type StatusSyncResult struct {
	Order      Order
	Changed    bool
	Stage      string
	HistoryRow *OrderStatusHistory
}

// FulfillmentService creates orders from carts and reconciles provider-side
// fulfillment stages into the internal order status machine.
type FulfillmentService interface {
	CreateOrderFromCart(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	SyncOrderStatus(ctx context.Context, provider, providerOrderID, stage string) (StatusSyncResult, error)
	GetOrder(ctx context.Context, userID, orderID string) (Order, error)
	ListOrders(ctx context.Context, userID string) ([]Order, error)
	ListOrderHistory(ctx context.Context, userID, orderID string) ([]OrderStatusHistory, error)
}

// OrderEventPublisher broadcasts order lifecycle events to interested workers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent is one order lifecycle notification.
type OrderEvent struct {
	Type           string
	OrderID        string
	UserID         string
	Status         OrderStatus
	PreviousStatus OrderStatus
	Source         string
}
