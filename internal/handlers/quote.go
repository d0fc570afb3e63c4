package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/framelane/api/internal/platform/httpx"
	"github.com/framelane/api/internal/services"
)

const maxQuoteBodySize = 32 * 1024

// QuoteHandlers prices ad-hoc item sets without touching a cart.
type QuoteHandlers struct {
	pricing services.PricingCalculator
}

// NewQuoteHandlers constructs handlers backed by the pricing calculator.
func NewQuoteHandlers(pricing services.PricingCalculator) *QuoteHandlers {
	return &QuoteHandlers{pricing: pricing}
}

// Routes wires the /quote endpoint onto the provided router.
func (h *QuoteHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.quote)
}

type quoteItemRequest struct {
	SKU           string               `json:"sku"`
	Quantity      int                  `json:"quantity"`
	Configuration configurationPayload `json:"configuration"`
}

type quoteRequest struct {
	Items              []quoteItemRequest `json:"items"`
	DestinationCountry string             `json:"destinationCountry"`
	ShippingMethod     string             `json:"shippingMethod"`
	DisplayCurrency    string             `json:"displayCurrency"`
}

func (h *QuoteHandlers) quote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := readLimitedBody(r, maxQuoteBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req quoteRequest
	if err := decodeJSONBody(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	items := make([]services.CartLineItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, services.CartLineItem{
			SKU:           item.SKU,
			Quantity:      item.Quantity,
			Configuration: item.Configuration.toDomain(),
		})
	}

	result, err := h.pricing.Price(ctx, services.PriceQuery{
		Items:              items,
		DestinationCountry: req.DestinationCountry,
		ShippingMethod:     req.ShippingMethod,
		DisplayCurrency:    req.DisplayCurrency,
	})
	if err != nil {
		httpx.WriteDomainError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, pricingPayloadFrom(result))
}
