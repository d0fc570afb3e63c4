package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/framelane/api/internal/domain"
	"github.com/framelane/api/internal/payments"
	"github.com/framelane/api/internal/platform/httpx"
	"github.com/framelane/api/internal/platform/pagination"
	"github.com/framelane/api/internal/platform/requestctx"
	"github.com/framelane/api/internal/services"
)

const maxOrderBodySize = 16 * 1024

// PaymentStarter opens a payment session for a freshly created order.
// *payments.Manager satisfies it.
type PaymentStarter interface {
	CreatePayment(ctx context.Context, paymentCtx payments.PaymentContext, req payments.PaymentRequest) (payments.PaymentDetails, error)
}

// OrderHandlers exposes checkout and order read endpoints for the current user.
type OrderHandlers struct {
	orders   services.FulfillmentService
	payments PaymentStarter
}

// NewOrderHandlers constructs handlers backed by the fulfillment service. The
// payment starter may be nil, in which case orders are created without a
// payment session.
func NewOrderHandlers(orders services.FulfillmentService, starter PaymentStarter) *OrderHandlers {
	return &OrderHandlers{orders: orders, payments: starter}
}

// Routes wires the /orders endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createOrder)
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Get("/{orderID}/history", h.getOrderHistory)
}

type createOrderRequest struct {
	ShippingAddress addressPayload `json:"shippingAddress"`
	ShippingMethod  string         `json:"shippingMethod"`
	DisplayCurrency string         `json:"displayCurrency"`
	PaymentProvider string         `json:"paymentProvider"`
}

type orderItemPayload struct {
	ID            string               `json:"id"`
	ProductID     string               `json:"productId"`
	SKU           string               `json:"sku"`
	Quantity      int                  `json:"quantity"`
	UnitPrice     float64              `json:"unitPrice"`
	Currency      string               `json:"currency"`
	Configuration configurationPayload `json:"configuration"`
}

type paymentPayload struct {
	Provider     string `json:"provider"`
	IntentID     string `json:"intentId"`
	ClientSecret string `json:"clientSecret,omitempty"`
	Status       string `json:"status"`
}

type orderPayload struct {
	ID              string             `json:"id"`
	OrderNumber     string             `json:"orderNumber"`
	Status          string             `json:"status"`
	Currency        string             `json:"currency"`
	Subtotal        float64            `json:"subtotal"`
	Shipping        float64            `json:"shipping"`
	Tax             float64            `json:"tax"`
	Total           float64            `json:"total"`
	ShippingMethod  string             `json:"shippingMethod"`
	Items           []orderItemPayload `json:"items"`
	ShippingAddress addressPayload     `json:"shippingAddress"`
	Payment         *paymentPayload    `json:"payment,omitempty"`
	CreatedAt       string             `json:"createdAt,omitempty"`
	UpdatedAt       string             `json:"updatedAt,omitempty"`
}

type orderListPayload struct {
	Orders        []orderPayload `json:"orders"`
	NextPageToken string         `json:"nextPageToken,omitempty"`
}

type orderHistoryRowPayload struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	PreviousStatus string `json:"previousStatus,omitempty"`
	Source         string `json:"source"`
	OccurredAt     string `json:"occurredAt"`
}

func orderPayloadFrom(order services.Order) orderPayload {
	items := make([]orderItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemPayload{
			ID:            item.ID,
			ProductID:     item.ProductID,
			SKU:           item.SKU,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			Currency:      item.Currency,
			Configuration: configurationPayloadFrom(item.Configuration),
		})
	}
	return orderPayload{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		Status:          string(order.Status),
		Currency:        order.Currency,
		Subtotal:        order.Subtotal,
		Shipping:        order.Shipping,
		Tax:             order.Tax,
		Total:           order.Total,
		ShippingMethod:  order.ShippingMethod,
		Items:           items,
		ShippingAddress: addressPayloadFrom(order.ShippingAddress),
		CreatedAt:       formatTime(order.CreatedAt),
		UpdatedAt:       formatTime(order.UpdatedAt),
	}
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestctx.UserID(ctx)

	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req createOrderRequest
	if err := decodeJSONBody(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	order, err := h.orders.CreateOrderFromCart(ctx, services.CreateOrderCommand{
		UserID:          userID,
		ShippingAddress: req.ShippingAddress.toDomain(),
		ShippingMethod:  req.ShippingMethod,
		DisplayCurrency: req.DisplayCurrency,
	})
	if err != nil {
		httpx.WriteDomainError(ctx, w, err)
		return
	}

	payload := orderPayloadFrom(order)

	if h.payments != nil {
		details, err := h.payments.CreatePayment(ctx, payments.PaymentContext{
			PreferredProvider: req.PaymentProvider,
			Currency:          order.Currency,
		}, payments.PaymentRequest{
			OrderID:        order.ID,
			OrderNumber:    order.OrderNumber,
			Amount:         payments.MinorUnits(order.Total, order.Currency),
			Currency:       order.Currency,
			CustomerID:     userID,
			IdempotencyKey: order.ID,
		})
		if err != nil {
			// The order exists and stays pending; the client can retry payment.
			httpx.WriteDomainError(ctx, w, domain.NewPaymentError("payment_session_failed", "could not start payment session", http.StatusBadGateway).
				WithDetails(map[string]any{"orderId": order.ID}).
				WithCause(err))
			return
		}
		payload.Payment = &paymentPayload{
			Provider:     details.Provider,
			IntentID:     details.IntentID,
			ClientSecret: details.ClientSecret,
			Status:       string(details.Status),
		}
	}

	httpx.WriteJSON(ctx, w, http.StatusCreated, payload)
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestctx.UserID(ctx)

	params, err := pagination.FromRequest(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_pagination", err.Error(), http.StatusBadRequest))
		return
	}

	orders, err := h.orders.ListOrders(ctx, userID)
	if err != nil {
		httpx.WriteDomainError(ctx, w, err)
		return
	}

	start := 0
	if params.Cursor.LastID != "" {
		for i, order := range orders {
			if order.ID == params.Cursor.LastID {
				start = i + 1
				break
			}
		}
	}

	end := start + params.PageSize
	if end > len(orders) {
		end = len(orders)
	}

	page := make([]orderPayload, 0, end-start)
	for _, order := range orders[start:end] {
		page = append(page, orderPayloadFrom(order))
	}

	payload := orderListPayload{Orders: page}
	if end < len(orders) && end > start {
		payload.NextPageToken = pagination.EncodeToken(pagination.Cursor{LastID: orders[end-1].ID})
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, payload)
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestctx.UserID(ctx)

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	order, err := h.orders.GetOrder(ctx, userID, orderID)
	if err != nil {
		httpx.WriteDomainError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, orderPayloadFrom(order))
}

func (h *OrderHandlers) getOrderHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestctx.UserID(ctx)

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	history, err := h.orders.ListOrderHistory(ctx, userID, orderID)
	if err != nil {
		httpx.WriteDomainError(ctx, w, err)
		return
	}

	rows := make([]orderHistoryRowPayload, 0, len(history))
	for _, row := range history {
		rows = append(rows, orderHistoryRowPayload{
			ID:             row.ID,
			Status:         string(row.Status),
			PreviousStatus: string(row.PreviousStatus),
			Source:         row.Source,
			OccurredAt:     formatTime(row.OccurredAt),
		})
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, map[string]any{"history": rows})
}
