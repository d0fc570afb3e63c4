package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/framelane/api/internal/platform/auth"
	"github.com/framelane/api/internal/services"
)

func TestRouterHealthz(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected ok, got %v", body["status"])
	}
}

func TestRouterNotFoundEnvelope(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if body["error"] != "route_not_found" {
		t.Fatalf("expected route_not_found, got %v", body["error"])
	}
}

func TestRouterCartRequiresUser(t *testing.T) {
	authn := auth.NewGatewayAuthenticator("")
	router := NewRouter(
		WithMiddlewares(authn.Middleware()),
		WithCartRoutes(NewCartHandlers(&fakeCartService{}).Routes),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous cart access, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("X-User-Id", "user-1")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with user header, got %d body %s", rr.Code, rr.Body.String())
	}
}

func TestRouterWebhookSignatureEnforced(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	verifier, err := auth.NewWebhookVerifier("hooksecret", auth.WithWebhookClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	fulfillment := &fakeFulfillmentService{
		sync: services.StatusSyncResult{Changed: true},
	}
	router := NewRouter(
		WithWebhookRoutes(NewWebhookHandlers(fulfillment).Routes),
		WithWebhookMiddlewares(verifier.Require()),
	)

	body := `{"orderId": "prov-1", "stage": "Complete"}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/prodigi", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without signature, got %d", rr.Code)
	}

	timestamp := now.Format(time.RFC3339)
	req = httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/prodigi", strings.NewReader(body))
	req.Header.Set("X-Webhook-Timestamp", timestamp)
	req.Header.Set("X-Webhook-Signature", auth.SignWebhookRequest("hooksecret", timestamp, []byte(body)))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid signature, got %d body %s", rr.Code, rr.Body.String())
	}
	if len(fulfillment.syncCalls) != 1 {
		t.Fatalf("expected 1 sync, got %d", len(fulfillment.syncCalls))
	}
}

func TestRouterUnmountedGroupNotImplemented(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quote", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", rr.Code)
	}
}
