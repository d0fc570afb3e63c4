package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/framelane/api/internal/platform/httpx"
	"github.com/framelane/api/internal/platform/requestctx"
	"github.com/framelane/api/internal/services"
)

const maxCartBodySize = 16 * 1024

// CartHandlers exposes the authenticated cart endpoints for the current user.
type CartHandlers struct {
	carts services.CartService
}

// NewCartHandlers constructs handlers backed by the cart service.
func NewCartHandlers(carts services.CartService) *CartHandlers {
	return &CartHandlers{carts: carts}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Post("/items", h.addItem)
	r.Patch("/items/{itemID}", h.updateItem)
	r.Delete("/items/{itemID}", h.removeItem)
}

type addItemRequest struct {
	ProductID          string               `json:"productId"`
	SKU                string               `json:"sku"`
	Quantity           int                  `json:"quantity"`
	CatalogPrice       float64              `json:"catalogPrice"`
	Currency           string               `json:"currency"`
	Configuration      configurationPayload `json:"configuration"`
	DestinationCountry string               `json:"destinationCountry"`
	ShippingMethod     string               `json:"shippingMethod"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

type cartItemPayload struct {
	ID            string               `json:"id"`
	ProductID     string               `json:"productId"`
	SKU           string               `json:"sku"`
	Quantity      int                  `json:"quantity"`
	DisplayPrice  float64              `json:"displayPrice"`
	OriginalPrice float64              `json:"originalPrice"`
	Currency      string               `json:"currency"`
	Configuration configurationPayload `json:"configuration"`
	CreatedAt     string               `json:"createdAt,omitempty"`
	UpdatedAt     string               `json:"updatedAt,omitempty"`
}

type cartPayload struct {
	Items         []cartItemPayload     `json:"items"`
	Pricing       *pricingPayload       `json:"pricing,omitempty"`
	PriceStale    bool                  `json:"priceStale"`
	PriceWarnings []priceWarningPayload `json:"priceWarnings,omitempty"`
}

func cartPayloadFrom(view services.CartView) cartPayload {
	items := make([]cartItemPayload, 0, len(view.Items))
	for _, item := range view.Items {
		items = append(items, cartItemPayload{
			ID:            item.ID,
			ProductID:     item.ProductID,
			SKU:           item.SKU,
			Quantity:      item.Quantity,
			DisplayPrice:  item.DisplayPrice,
			OriginalPrice: item.OriginalPrice,
			Currency:      item.Currency,
			Configuration: configurationPayloadFrom(item.Configuration),
			CreatedAt:     formatTime(item.CreatedAt),
			UpdatedAt:     formatTime(item.UpdatedAt),
		})
	}

	payload := cartPayload{
		Items:         items,
		PriceStale:    view.PriceStale,
		PriceWarnings: priceWarningPayloadsFrom(view.Warnings),
	}
	if view.Pricing != nil {
		pricing := pricingPayloadFrom(*view.Pricing)
		payload.Pricing = &pricing
	}
	return payload
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestctx.UserID(ctx)

	query := r.URL.Query()
	view, err := h.carts.Get(ctx, userID, query.Get("country"), query.Get("shippingMethod"))
	if err != nil {
		httpx.WriteDomainError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, cartPayloadFrom(view))
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestctx.UserID(ctx)

	body, err := readLimitedBody(r, maxCartBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req addItemRequest
	if err := decodeJSONBody(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	view, err := h.carts.Add(ctx, services.AddItemCommand{
		UserID:             userID,
		ProductID:          req.ProductID,
		SKU:                req.SKU,
		Quantity:           req.Quantity,
		CatalogPrice:       req.CatalogPrice,
		Currency:           req.Currency,
		Configuration:      req.Configuration.toDomain(),
		DestinationCountry: req.DestinationCountry,
		ShippingMethod:     req.ShippingMethod,
	})
	if err != nil {
		httpx.WriteDomainError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusCreated, cartPayloadFrom(view))
}

func (h *CartHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestctx.UserID(ctx)

	itemID := strings.TrimSpace(chi.URLParam(r, "itemID"))
	if itemID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "item id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxCartBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req updateItemRequest
	if err := decodeJSONBody(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	view, err := h.carts.UpdateQuantity(ctx, userID, itemID, req.Quantity)
	if err != nil {
		httpx.WriteDomainError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, cartPayloadFrom(view))
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestctx.UserID(ctx)

	itemID := strings.TrimSpace(chi.URLParam(r, "itemID"))
	if itemID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "item id is required", http.StatusBadRequest))
		return
	}

	view, err := h.carts.Remove(ctx, userID, itemID)
	if err != nil {
		httpx.WriteDomainError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, cartPayloadFrom(view))
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestctx.UserID(ctx)

	if err := h.carts.Clear(ctx, userID); err != nil {
		httpx.WriteDomainError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

