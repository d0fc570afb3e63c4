package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/framelane/api/internal/platform/httpx"
	"github.com/framelane/api/internal/services"
)

const maxWebhookBodySize = 64 * 1024

// WebhookHandlers receives fulfilment status callbacks from the provider.
type WebhookHandlers struct {
	orders services.FulfillmentService
}

// NewWebhookHandlers constructs handlers backed by the fulfillment service.
func NewWebhookHandlers(orders services.FulfillmentService) *WebhookHandlers {
	return &WebhookHandlers{orders: orders}
}

// Routes wires the webhook endpoints onto the provided router.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/{provider}", h.statusCallback)
}

type webhookOrderEnvelope struct {
	ID    string `json:"id"`
	Stage string `json:"stage"`
}

// statusCallbackRequest accepts the provider's flat payload as well as the
// wrapped form some callback versions send.
type statusCallbackRequest struct {
	OrderID string                `json:"orderId"`
	Stage   string                `json:"stage"`
	Order   *webhookOrderEnvelope `json:"order"`
}

func (r statusCallbackRequest) providerOrderID() string {
	if r.Order != nil && strings.TrimSpace(r.Order.ID) != "" {
		return strings.TrimSpace(r.Order.ID)
	}
	return strings.TrimSpace(r.OrderID)
}

func (r statusCallbackRequest) stage() string {
	if r.Order != nil && strings.TrimSpace(r.Order.Stage) != "" {
		return strings.TrimSpace(r.Order.Stage)
	}
	return strings.TrimSpace(r.Stage)
}

func (h *WebhookHandlers) statusCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	provider := strings.TrimSpace(chi.URLParam(r, "provider"))

	body, err := readLimitedBody(r, maxWebhookBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req statusCallbackRequest
	if err := decodeJSONBody(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	providerOrderID := req.providerOrderID()
	if providerOrderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("missing_order_id", "provider order id is required", http.StatusBadRequest))
		return
	}

	result, err := h.orders.SyncOrderStatus(ctx, provider, providerOrderID, req.stage())
	if err != nil {
		httpx.WriteDomainError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, map[string]any{
		"orderId": result.Order.ID,
		"status":  string(result.Order.Status),
		"stage":   result.Stage,
		"changed": result.Changed,
	})
}
