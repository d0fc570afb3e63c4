package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	domain "github.com/framelane/api/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL+"/v4", "test-key", server.Client())
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return client, server
}

func TestGetQuotesCrossMethod(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v4/quotes" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("X-API-Key"); got != "test-key" {
			t.Fatalf("expected API key header, got %q", got)
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if _, ok := body["shippingMethod"]; ok {
			t.Fatal("cross-method comparison must omit shippingMethod")
		}
		items := body["items"].([]any)
		first := items[0].(map[string]any)
		assets := first["assets"].([]any)
		if pa := assets[0].(map[string]any)["printArea"]; pa != "default" {
			t.Fatalf("expected lowercase default print area, got %v", pa)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"outcome": "Created",
			"quotes": [
				{
					"shipmentMethod": "Budget",
					"costSummary": {"items": {"amount": "20.00", "currency": "USD"}, "shipping": {"amount": "5.00", "currency": "USD"}},
					"items": [{"sku": "GLOBAL-CFPM-16X20", "copies": 2, "unitCost": {"amount": "10.00", "currency": "USD"}}]
				},
				{
					"shipmentMethod": "Standard",
					"costSummary": {"items": {"amount": 22.5, "currency": "USD"}, "shipping": {"amount": 7, "currency": "USD"}},
					"items": [{"sku": "GLOBAL-CFPM-16X20", "copies": 2, "unitCost": {"amount": 11.25, "currency": "USD"}}]
				}
			]
		}`))
	})

	quotes, err := client.GetQuotes(context.Background(), QuoteRequest{
		DestinationCountryCode: "US",
		Items: []QuoteRequestItem{
			NewQuoteRequestItem(domain.QuoteItem{BaseSKU: "GLOBAL-CFPM-16X20", Copies: 2}),
		},
	})
	if err != nil {
		t.Fatalf("GetQuotes returned error: %v", err)
	}
	if len(quotes) != 2 {
		t.Fatalf("expected 2 quotes, got %d", len(quotes))
	}
	if quotes[0].ShippingMethod != "Budget" || quotes[0].ItemsCost != 20 || quotes[0].ShippingCost != 5 {
		t.Fatalf("unexpected first quote: %+v", quotes[0])
	}
	if len(quotes[0].UnitCosts) != 2 || quotes[0].UnitCosts[0] != 10 {
		t.Fatalf("expected per-copy unit costs, got %v", quotes[0].UnitCosts)
	}
	if quotes[1].ItemsCost != 22.5 {
		t.Fatalf("expected numeric amount parsing, got %v", quotes[1].ItemsCost)
	}
}

func TestGetQuotesFailedOutcome(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"outcome": "FailedToFulfil", "quotes": []}`))
	})

	_, err := client.GetQuotes(context.Background(), QuoteRequest{
		DestinationCountryCode: "US",
		Items:                  []QuoteRequestItem{{SKU: "GLOBAL-CAN-10X10", Copies: 1, Assets: []QuoteAsset{{PrintArea: QuotePrintArea}}}},
	})
	if err == nil {
		t.Fatal("expected error for failed outcome")
	}
}

func TestGetProductDetails(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v4/products/GLOBAL-CFPM-16X20" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"product": {"sku": "GLOBAL-CFPM-16X20", "attributes": {"color": ["Black", "White"], "mount": ["2.5mm"]}}}`))
	})

	details, err := client.GetProductDetails(context.Background(), "GLOBAL-CFPM-16X20")
	if err != nil {
		t.Fatalf("GetProductDetails returned error: %v", err)
	}
	if len(details.Attributes["color"]) != 2 {
		t.Fatalf("unexpected attributes: %+v", details.Attributes)
	}
}

func TestSearchFacets(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body searchRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body.Top != 0 {
			t.Fatalf("facet requests must set top to 0, got %d", body.Top)
		}
		if !strings.Contains(body.Filter, "search.in(productType, 'Stretched canvas', '|')") {
			t.Fatalf("unexpected filter %q", body.Filter)
		}
		if body.Facets[0] != "attributes/wrap,count:50" {
			t.Fatalf("expected count suffix, got %q", body.Facets[0])
		}
		_, _ = w.Write([]byte(`{"facets": {"attributes/wrap,count:50": [{"value": "ImageWrap", "count": 12}]}}`))
	})

	facets, err := client.SearchFacets(context.Background(), FacetQuery{
		Filter: SearchIn("productType", []string{"Stretched canvas"}),
		Facets: []string{"attributes/wrap"},
	})
	if err != nil {
		t.Fatalf("SearchFacets returned error: %v", err)
	}
	values := facets["attributes/wrap"]
	if len(values) != 1 || values[0].Value != "ImageWrap" {
		t.Fatalf("unexpected facet values: %+v", values)
	}
}

func TestSearchInEscapesQuotes(t *testing.T) {
	clause := SearchIn("field", []string{"it's", "plain"})
	if clause != "search.in(field, 'it''s|plain', '|')" {
		t.Fatalf("unexpected clause %q", clause)
	}
}

func TestCreateOrderRequiresAssetURL(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request must not reach the server")
	})

	_, err := client.CreateOrder(context.Background(), OrderRequest{
		Items: []OrderRequestItem{{SKU: "GLOBAL-CAN-10X10", Copies: 1, Assets: []OrderAsset{{PrintArea: OrderPrintArea}}}},
	})
	if err == nil {
		t.Fatal("expected error for missing asset url")
	}
}

func TestGetOrder(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v4/orders/ord_123" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"order": {"id": "ord_123", "stage": "InProgress"}}`))
	})

	result, err := client.GetOrder(context.Background(), "ord_123")
	if err != nil {
		t.Fatalf("GetOrder returned error: %v", err)
	}
	if result.ID != "ord_123" || result.Stage != "InProgress" {
		t.Fatalf("unexpected order result: %+v", result)
	}
}
