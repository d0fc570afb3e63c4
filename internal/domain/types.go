package domain

import "time"

// ConfigNone is the sentinel configuration value meaning "not requested".
// Callers may omit a field or set it to ConfigNone interchangeably.
const ConfigNone = "none"

// FrameConfiguration captures the customer's abstract product configuration.
// It is an immutable value object; all fields are optional free-form strings
// that the attribute resolver maps onto the catalog's vocabulary.
type FrameConfiguration struct {
	Size            string
	FrameColor      string
	FrameStyle      string
	Material        string
	Mount           string
	MountColor      string
	Glaze           string
	Wrap            string
	PaperType       string
	Finish          string
	Edge            string
	SubstrateWeight string
	Style           string
}

// IsZero reports whether no configuration field carries a requested value.
func (c FrameConfiguration) IsZero() bool {
	return len(c.Requested()) == 0
}

// Requested returns the configuration as a field name to value map, dropping
// empty fields and the ConfigNone sentinel. Keys use the internal field
// vocabulary (size, frameColor, ...), not the catalog's.
func (c FrameConfiguration) Requested() map[string]string {
	fields := map[string]string{
		"size":            c.Size,
		"frameColor":      c.FrameColor,
		"frameStyle":      c.FrameStyle,
		"material":        c.Material,
		"mount":           c.Mount,
		"mountColor":      c.MountColor,
		"glaze":           c.Glaze,
		"wrap":            c.Wrap,
		"paperType":       c.PaperType,
		"finish":          c.Finish,
		"edge":            c.Edge,
		"substrateWeight": c.SubstrateWeight,
		"style":           c.Style,
	}
	out := make(map[string]string, len(fields))
	for name, value := range fields {
		if v := normalizeConfigValue(value); v != "" {
			out[name] = v
		}
	}
	return out
}

// ConfigurationFromMap rebuilds a FrameConfiguration from its Requested()
// representation. Unknown keys are ignored.
func ConfigurationFromMap(fields map[string]string) FrameConfiguration {
	var c FrameConfiguration
	for name, value := range fields {
		switch name {
		case "size":
			c.Size = value
		case "frameColor":
			c.FrameColor = value
		case "frameStyle":
			c.FrameStyle = value
		case "material":
			c.Material = value
		case "mount":
			c.Mount = value
		case "mountColor":
			c.MountColor = value
		case "glaze":
			c.Glaze = value
		case "wrap":
			c.Wrap = value
		case "paperType":
			c.PaperType = value
		case "finish":
			c.Finish = value
		case "edge":
			c.Edge = value
		case "substrateWeight":
			c.SubstrateWeight = value
		case "style":
			c.Style = value
		}
	}
	return c
}

// CartLineItem is a single cart row owned by the cart orchestrator.
// Quantity stays within [MinLineQuantity, MaxLineQuantity] at every mutation.
type CartLineItem struct {
	ID            string
	UserID        string
	ProductID     string
	SKU           string
	Quantity      int
	DisplayPrice  float64
	OriginalPrice float64 // stored catalog price, always USD
	Currency      string
	Configuration FrameConfiguration
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Line quantity bounds enforced by the cart orchestrator.
const (
	MinLineQuantity = 1
	MaxLineQuantity = 10
)

// QuoteItem is a deduplicated catalog quote request line. Two items are
// equivalent when base SKU and canonicalized attributes match; equivalent
// items merge by summing Copies.
type QuoteItem struct {
	BaseSKU      string
	Copies       int
	Attributes   map[string]string
	PrintAreaRef string
}

// Quote is one shipping-method-specific cost breakdown returned by the
// catalog. Amounts are in the catalog's quoting currency.
type Quote struct {
	ShippingMethod string
	ItemsCost      float64
	ShippingCost   float64
	Currency       string
	UnitCosts      []float64
}

// PricingResult is the final priced view of a cart: one selected quote plus
// tax, optionally converted into the requested display currency.
type PricingResult struct {
	Subtotal         float64
	Shipping         float64
	Tax              float64
	Total            float64
	Currency         string
	OriginalCurrency string
	OriginalTotal    float64
	ExchangeRate     *float64
	Warnings         []PriceWarning
}

// PriceWarning records an advisory price deviation between a fresh quote and
// the stored catalog price. Advisory only; never fails a request.
type PriceWarning struct {
	SKU          string
	QuotedPrice  float64
	CatalogPrice float64
	Deviation    float64
}

// OptionSource tells where an option family's values came from.
type OptionSource string

const (
	// OptionSourceFacets marks values observed live in the catalog search index.
	OptionSourceFacets OptionSource = "facets"
	// OptionSourceFallback marks values substituted from the static tables.
	OptionSourceFallback OptionSource = "fallback"
)

// OptionSet is one option family's valid values together with its source.
type OptionSet struct {
	Values []string
	Source OptionSource
}

// Available reports whether the option family offers any value at all.
func (s OptionSet) Available() bool { return len(s.Values) > 0 }

// AvailableOptions lists the valid option values per family for one product
// type in one destination country. Live facet values take precedence over
// fallback values field by field, never silently contradicting each other.
type AvailableOptions struct {
	ProductType  ProductType
	FrameColors  OptionSet
	FrameStyles  OptionSet
	Mounts       OptionSet
	MountColors  OptionSet
	Glazes       OptionSet
	Wraps        OptionSet
	Finishes     OptionSet
	PaperTypes   OptionSet
	Edges        OptionSet
	Sizes        OptionSet
	AspectRatios OptionSet
}

// AspectRatioBucket partitions catalog aspect ratios ((longer/shorter)*100).
type AspectRatioBucket string

const (
	AspectPortrait  AspectRatioBucket = "portrait"
	AspectSquare    AspectRatioBucket = "square"
	AspectLandscape AspectRatioBucket = "landscape"
)

// BucketAspectRatio places a catalog ratio value into its bucket.
// Boundaries: <95 portrait, 95..105 inclusive square, >105 landscape.
func BucketAspectRatio(ratio float64) AspectRatioBucket {
	switch {
	case ratio < 95:
		return AspectPortrait
	case ratio <= 105:
		return AspectSquare
	default:
		return AspectLandscape
	}
}

// AllAspectRatioBuckets is the default offering when facet data is absent.
func AllAspectRatioBuckets() []string {
	return []string{string(AspectPortrait), string(AspectSquare), string(AspectLandscape)}
}

// OrderStatus is the internal order state, derived from but distinct from the
// fulfillment provider's stage.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusFailed     OrderStatus = "failed"
)

var orderStatusRank = map[OrderStatus]int{
	OrderStatusPending:    1,
	OrderStatusProcessing: 2,
	OrderStatusShipped:    3,
}

// Terminal reports whether the status permits no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCancelled || s == OrderStatusFailed || s == OrderStatusShipped
}

// CanTransitionTo reports whether moving from s to next is a legal,
// forward-only transition. Equal statuses are not a transition.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s == next {
		return false
	}
	if s == OrderStatusCancelled || s == OrderStatusFailed {
		return false
	}
	if next == OrderStatusCancelled || next == OrderStatusFailed {
		return s != OrderStatusShipped
	}
	return orderStatusRank[next] > orderStatusRank[s]
}

// Order is an immutable record of a placed purchase. Status moves forward
// only; every change appends a history row rather than rewriting state.
type Order struct {
	ID              string
	UserID          string
	OrderNumber     string
	Status          OrderStatus
	Currency        string
	Subtotal        float64
	Shipping        float64
	Tax             float64
	Total           float64
	ShippingMethod  string
	Items           []OrderItem
	ShippingAddress Address
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderItem is a cart line frozen at order creation time.
type OrderItem struct {
	ID            string
	OrderID       string
	ProductID     string
	SKU           string
	Quantity      int
	UnitPrice     float64
	Currency      string
	Configuration FrameConfiguration
}

// DropshipOrder tracks the fulfillment provider's view of an order. One
// exists per provider; its Stage is the provider's raw vocabulary.
type DropshipOrder struct {
	ID              string
	OrderID         string
	Provider        string
	ProviderOrderID string
	Stage           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderStatusHistory is one append-only status change row.
type OrderStatusHistory struct {
	ID             string
	OrderID        string
	Status         OrderStatus
	PreviousStatus OrderStatus
	Source         string
	OccurredAt     time.Time
}

// Address is a destination for quoting and shipping.
type Address struct {
	Name        string
	Line1       string
	Line2       string
	City        string
	State       string
	PostalCode  string
	CountryCode string
}
