package services

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strings"

	"github.com/framelane/api/internal/catalog"
	"github.com/framelane/api/internal/domain"
)

// QuoteCatalog is the slice of the catalog client the pricing calculator
// needs: quoting plus the per-SKU attribute schema.
type QuoteCatalog interface {
	GetQuotes(ctx context.Context, req catalog.QuoteRequest) ([]domain.Quote, error)
	GetProductDetails(ctx context.Context, sku string) (catalog.ProductDetails, error)
}

const (
	standardShippingMethod = "Standard"
	priceDeviationLimit    = 0.05
)

// countryTaxRates is the flat per-country rate applied to item cost.
// Unlisted countries are taxed at zero.
var countryTaxRates = map[string]float64{
	"GB": 0.20,
	"DE": 0.19,
	"FR": 0.20,
	"IT": 0.22,
	"ES": 0.21,
	"NL": 0.21,
	"IE": 0.23,
	"AU": 0.10,
	"NZ": 0.15,
	"JP": 0.10,
	"CA": 0.05,
}

type pricingCalculator struct {
	catalog    QuoteCatalog
	attributes AttributeResolver
	currency   CurrencyService
	logger     func(context.Context, string, map[string]any)
}

type PricingCalculatorDeps struct {
	Catalog    QuoteCatalog
	Attributes AttributeResolver
	Currency   CurrencyService
	Logger     func(context.Context, string, map[string]any)
}

func NewPricingCalculator(deps PricingCalculatorDeps) (PricingCalculator, error) {
	if deps.Catalog == nil {
		return nil, errors.New("pricing calculator: catalog is required")
	}
	if deps.Attributes == nil {
		return nil, errors.New("pricing calculator: attribute resolver is required")
	}
	if deps.Currency == nil {
		return nil, errors.New("pricing calculator: currency service is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &pricingCalculator{
		catalog:    deps.Catalog,
		attributes: deps.Attributes,
		currency:   deps.Currency,
		logger:     logger,
	}, nil
}

func (p *pricingCalculator) Price(ctx context.Context, query PriceQuery) (PricingResult, error) {
	if len(query.Items) == 0 {
		return PricingResult{}, domain.NewPricingError("empty_cart", "no items to price", http.StatusBadRequest)
	}
	country := strings.ToUpper(strings.TrimSpace(query.DestinationCountry))
	if country == "" {
		return PricingResult{}, domain.NewShippingError("missing_destination", "destination country is required", http.StatusBadRequest)
	}

	quoteItems := p.buildQuoteItems(ctx, query.Items)
	quotes, err := p.fetchQuotes(ctx, country, query.ShippingMethod, quoteItems)
	if err != nil {
		return PricingResult{}, err
	}

	quote := selectQuote(quotes, query.ShippingMethod)
	return p.deriveResult(ctx, quote, country, query.DisplayCurrency), nil
}

// buildQuoteItems deduplicates cart lines into distinct quote requests keyed
// by base SKU plus canonical attributes, summing copies across equivalent
// lines. First-seen order is preserved so repeated calls quote identically.
func (p *pricingCalculator) buildQuoteItems(ctx context.Context, items []CartLineItem) []domain.QuoteItem {
	index := make(map[string]int, len(items))
	merged := make([]domain.QuoteItem, 0, len(items))
	schemas := make(map[string]map[string][]string, len(items))

	for _, item := range items {
		baseSKU := domain.BaseSKU(item.SKU)
		schema, fetched := schemas[baseSKU]
		if !fetched {
			schema = p.productSchema(ctx, baseSKU)
			schemas[baseSKU] = schema
		}
		attrs := p.attributes.Resolve(ctx, item.Configuration, ProductContext{
			SKU:             baseSKU,
			ValidAttributes: schema,
		})

		copies := item.Quantity
		if copies < 1 {
			copies = 1
		}
		key := quoteItemKey(baseSKU, attrs)
		if existing, ok := index[key]; ok {
			merged[existing].Copies += copies
			continue
		}
		index[key] = len(merged)
		merged = append(merged, domain.QuoteItem{
			BaseSKU:      baseSKU,
			Copies:       copies,
			Attributes:   attrs,
			PrintAreaRef: catalog.QuotePrintArea,
		})
	}
	return merged
}

func (p *pricingCalculator) productSchema(ctx context.Context, baseSKU string) map[string][]string {
	details, err := p.catalog.GetProductDetails(ctx, baseSKU)
	if err != nil {
		p.logger(ctx, "pricing.product_details.failed", map[string]any{
			"sku":   baseSKU,
			"error": err.Error(),
		})
		return nil
	}
	return details.Attributes
}

// fetchQuotes asks for a cross-method comparison first and retries once with
// a direct single-method request before giving up.
func (p *pricingCalculator) fetchQuotes(ctx context.Context, country, shippingMethod string, items []domain.QuoteItem) ([]domain.Quote, error) {
	requestItems := make([]catalog.QuoteRequestItem, 0, len(items))
	for _, item := range items {
		requestItems = append(requestItems, catalog.NewQuoteRequestItem(item))
	}

	quotes, crossErr := p.catalog.GetQuotes(ctx, catalog.QuoteRequest{
		DestinationCountryCode: country,
		Items:                  requestItems,
	})
	if crossErr == nil && len(quotes) > 0 {
		return quotes, nil
	}
	if crossErr != nil {
		p.logger(ctx, "pricing.quotes.cross_method_failed", map[string]any{
			"country": country,
			"error":   crossErr.Error(),
		})
	}

	method := strings.TrimSpace(shippingMethod)
	if method == "" {
		method = standardShippingMethod
	}
	quotes, directErr := p.catalog.GetQuotes(ctx, catalog.QuoteRequest{
		DestinationCountryCode: country,
		ShippingMethod:         method,
		Items:                  requestItems,
	})
	if directErr == nil && len(quotes) > 0 {
		return quotes, nil
	}
	if directErr != nil {
		p.logger(ctx, "pricing.quotes.direct_failed", map[string]any{
			"country": country,
			"method":  method,
			"error":   directErr.Error(),
		})
	}

	err := domain.NewPricingError("no_quotes", "no quotes available for destination", http.StatusBadGateway).
		WithDetails(map[string]any{"country": country})
	if directErr != nil {
		return nil, err.WithCause(directErr)
	}
	if crossErr != nil {
		return nil, err.WithCause(crossErr)
	}
	return nil, err
}

// selectQuote picks the quote for the requested shipping method, falling back
// to Standard and then to the first quote returned.
func selectQuote(quotes []domain.Quote, shippingMethod string) domain.Quote {
	requested := strings.TrimSpace(shippingMethod)
	if requested != "" {
		for _, quote := range quotes {
			if strings.EqualFold(quote.ShippingMethod, requested) {
				return quote
			}
		}
	}
	for _, quote := range quotes {
		if strings.EqualFold(quote.ShippingMethod, standardShippingMethod) {
			return quote
		}
	}
	return quotes[0]
}

// deriveResult applies tax in the quoting currency, converts each component
// independently into the display currency, and recomputes the total from the
// converted parts.
func (p *pricingCalculator) deriveResult(ctx context.Context, quote domain.Quote, country, displayCurrency string) PricingResult {
	quoteCurrency := strings.ToUpper(strings.TrimSpace(quote.Currency))
	if quoteCurrency == "" {
		quoteCurrency = "USD"
	}

	subtotal := quote.ItemsCost
	shipping := quote.ShippingCost
	tax := subtotal * countryTaxRates[country]
	originalTotal := domain.RoundAmount(subtotal+shipping+tax, quoteCurrency)

	result := PricingResult{
		Subtotal:         domain.RoundAmount(subtotal, quoteCurrency),
		Shipping:         domain.RoundAmount(shipping, quoteCurrency),
		Tax:              domain.RoundAmount(tax, quoteCurrency),
		Total:            originalTotal,
		Currency:         quoteCurrency,
		OriginalCurrency: quoteCurrency,
		OriginalTotal:    originalTotal,
	}

	display := strings.ToUpper(strings.TrimSpace(displayCurrency))
	if display == "" || display == quoteCurrency {
		return result
	}

	result.Subtotal = p.currency.Convert(ctx, subtotal, quoteCurrency, display)
	result.Shipping = p.currency.Convert(ctx, shipping, quoteCurrency, display)
	result.Tax = p.currency.Convert(ctx, tax, quoteCurrency, display)
	result.Total = domain.RoundAmount(result.Subtotal+result.Shipping+result.Tax, display)
	result.Currency = display
	rate := p.currency.Rate(ctx, quoteCurrency, display)
	result.ExchangeRate = &rate
	return result
}

// ValidatePrices re-quotes each line individually and reports stored catalog
// prices drifting more than five percent from the fresh per-unit cost.
// Advisory only; quote failures are logged and skipped.
func (p *pricingCalculator) ValidatePrices(ctx context.Context, items []CartLineItem, result PricingResult) []PriceWarning {
	var warnings []PriceWarning
	for _, item := range items {
		if item.OriginalPrice <= 0 {
			continue
		}
		baseSKU := domain.BaseSKU(item.SKU)
		attrs := p.attributes.Resolve(ctx, item.Configuration, ProductContext{
			SKU:             baseSKU,
			ValidAttributes: p.productSchema(ctx, baseSKU),
		})

		// Stored catalog prices are quoted for the US market.
		quotes, err := p.catalog.GetQuotes(ctx, catalog.QuoteRequest{
			DestinationCountryCode: "US",
			Items: []catalog.QuoteRequestItem{catalog.NewQuoteRequestItem(domain.QuoteItem{
				BaseSKU:      baseSKU,
				Copies:       1,
				Attributes:   attrs,
				PrintAreaRef: catalog.QuotePrintArea,
			})},
		})
		if err != nil || len(quotes) == 0 {
			p.logger(ctx, "pricing.validate.skipped", map[string]any{"sku": item.SKU})
			continue
		}

		quote := selectQuote(quotes, "")
		unit := quote.ItemsCost
		if len(quote.UnitCosts) > 0 {
			unit = quote.UnitCosts[0]
		}
		// Stored catalog prices are USD, so the fresh quote is compared
		// in USD regardless of the line's display currency.
		quoted := p.currency.Convert(ctx, unit, quote.Currency, "USD")

		deviation := math.Abs(quoted-item.OriginalPrice) / item.OriginalPrice
		if deviation > priceDeviationLimit {
			warnings = append(warnings, PriceWarning{
				SKU:          item.SKU,
				QuotedPrice:  quoted,
				CatalogPrice: item.OriginalPrice,
				Deviation:    deviation,
			})
			p.logger(ctx, "pricing.validate.deviation", map[string]any{
				"sku":       item.SKU,
				"quoted":    quoted,
				"catalog":   item.OriginalPrice,
				"deviation": deviation,
			})
		}
	}
	return warnings
}

func quoteItemKey(baseSKU string, attrs map[string]string) string {
	if len(attrs) == 0 {
		return baseSKU + ":{}"
	}
	// json.Marshal sorts map keys, giving a canonical attribute encoding.
	encoded, err := json.Marshal(attrs)
	if err != nil {
		return baseSKU + ":{}"
	}
	return baseSKU + ":" + string(encoded)
}
