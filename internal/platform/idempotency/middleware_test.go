package idempotency

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/framelane/api/internal/platform/requestctx"
)

func newIdempotentHandler(t *testing.T, hits *int) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		*hits++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"orderId":"order-1"}`))
	})
}

func keyedRequest(method, key, body string) *http.Request {
	req := httptest.NewRequest(method, "/api/v1/orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req.WithContext(requestctx.WithUserID(req.Context(), "user-1"))
}

func TestMiddlewareReplaysStoredResponse(t *testing.T) {
	hits := 0
	handler := Middleware(NewMemoryStore())(newIdempotentHandler(t, &hits))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, keyedRequest(http.MethodPost, "key-1", `{"shippingMethod":"Standard"}`))
	if first.Code != http.StatusCreated {
		t.Fatalf("first request status = %d, want %d", first.Code, http.StatusCreated)
	}
	if first.Header().Get("X-Idempotent-Replay") != "" {
		t.Fatalf("first request unexpectedly marked as replay")
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, keyedRequest(http.MethodPost, "key-1", `{"shippingMethod":"Standard"}`))
	if second.Code != http.StatusCreated {
		t.Fatalf("replay status = %d, want %d", second.Code, http.StatusCreated)
	}
	if second.Header().Get("X-Idempotent-Replay") != "true" {
		t.Fatalf("replay header missing")
	}
	if second.Body.String() != `{"orderId":"order-1"}` {
		t.Fatalf("replay body = %q", second.Body.String())
	}
	if hits != 1 {
		t.Fatalf("handler hits = %d, want 1", hits)
	}
}

func TestMiddlewarePassesThroughWithoutKey(t *testing.T) {
	hits := 0
	handler := Middleware(NewMemoryStore())(newIdempotentHandler(t, &hits))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, keyedRequest(http.MethodPost, "", `{}`))
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
		}
	}
	if hits != 2 {
		t.Fatalf("handler hits = %d, want 2", hits)
	}
}

func TestMiddlewareRejectsReusedKeyForDifferentRequest(t *testing.T) {
	hits := 0
	handler := Middleware(NewMemoryStore())(newIdempotentHandler(t, &hits))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, keyedRequest(http.MethodPost, "key-1", `{"shippingMethod":"Standard"}`))
	if first.Code != http.StatusCreated {
		t.Fatalf("first request status = %d", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, keyedRequest(http.MethodPost, "key-1", `{"shippingMethod":"Express"}`))
	if second.Code != http.StatusConflict {
		t.Fatalf("conflicting request status = %d, want %d", second.Code, http.StatusConflict)
	}
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(second.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	if envelope.Error != "idempotency_key_conflict" {
		t.Fatalf("error code = %q", envelope.Error)
	}
	if hits != 1 {
		t.Fatalf("handler hits = %d, want 1", hits)
	}
}

func TestMiddlewareScopesKeysByUser(t *testing.T) {
	hits := 0
	handler := Middleware(NewMemoryStore())(newIdempotentHandler(t, &hits))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, keyedRequest(http.MethodPost, "key-1", `{}`))

	otherUser := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{}`))
	otherUser.Header.Set("Content-Type", "application/json")
	otherUser.Header.Set("Idempotency-Key", "key-1")
	otherUser = otherUser.WithContext(requestctx.WithUserID(otherUser.Context(), "user-2"))

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, otherUser)
	if second.Header().Get("X-Idempotent-Replay") != "" {
		t.Fatalf("key unexpectedly shared across users")
	}
	if hits != 2 {
		t.Fatalf("handler hits = %d, want 2", hits)
	}
}

func TestMiddlewareIgnoresReadRequests(t *testing.T) {
	hits := 0
	handler := Middleware(NewMemoryStore())(newIdempotentHandler(t, &hits))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("Idempotency-Key", "key-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if hits != 1 {
		t.Fatalf("handler hits = %d, want 1", hits)
	}
	if rec.Header().Get("X-Idempotent-Replay") != "" {
		t.Fatalf("read request treated as idempotent mutation")
	}
}
