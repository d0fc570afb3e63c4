package rates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchLatest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v6/latest/USD" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":"success","rates":{"usd":1,"EUR":0.9,"CAD":1.35,"BAD":-1}}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL+"/v6", server.Client())
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	rates, err := client.FetchLatest(context.Background())
	if err != nil {
		t.Fatalf("FetchLatest returned error: %v", err)
	}
	if rates["EUR"] != 0.9 {
		t.Fatalf("expected EUR 0.9, got %v", rates["EUR"])
	}
	if rates["CAD"] != 1.35 {
		t.Fatalf("expected CAD 1.35, got %v", rates["CAD"])
	}
	if rates["USD"] != 1 {
		t.Fatalf("expected normalised USD rate 1, got %v", rates["USD"])
	}
	if _, ok := rates["BAD"]; ok {
		t.Fatal("expected non-positive rate to be dropped")
	}
}

func TestFetchLatestUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate provider down", http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, server.Client())
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if _, err := client.FetchLatest(context.Background()); err == nil {
		t.Fatal("expected error from failing upstream")
	}
}

func TestFetchLatestErrorResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":"error","rates":{}}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, server.Client())
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if _, err := client.FetchLatest(context.Background()); err == nil {
		t.Fatal("expected error for non-success result")
	}
}

func TestFallbackTable(t *testing.T) {
	rate, ok := FallbackRate("CAD")
	if !ok || rate != 1.35 {
		t.Fatalf("expected CAD fallback 1.35, got %v (ok=%v)", rate, ok)
	}
	if _, ok := FallbackRate("XXX"); ok {
		t.Fatal("expected unknown currency to miss")
	}

	copied := FallbackRates()
	copied["USD"] = 99
	if r, _ := FallbackRate("USD"); r != 1 {
		t.Fatal("FallbackRates must return a copy")
	}
}
