package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/framelane/api/internal/domain"
	"github.com/framelane/api/internal/services"
)

type fakeOptionsResolver struct {
	options services.AvailableOptions
	err     error

	productTypes []domain.ProductType
	countries    []string
	filters      []map[string]string
}

func (f *fakeOptionsResolver) AvailableOptions(_ context.Context, productType domain.ProductType, country string, filters map[string]string) (services.AvailableOptions, error) {
	f.productTypes = append(f.productTypes, productType)
	f.countries = append(f.countries, country)
	f.filters = append(f.filters, filters)
	return f.options, f.err
}

func newOptionsRouter(resolver services.OptionsResolver) chi.Router {
	r := chi.NewRouter()
	r.Route("/options", NewOptionsHandlers(resolver).Routes)
	return r
}

func TestOptionsHandlersSuccess(t *testing.T) {
	resolver := &fakeOptionsResolver{
		options: services.AvailableOptions{
			ProductType: domain.ProductFramedPrint,
			FrameColors: domain.OptionSet{Values: []string{"black", "white"}, Source: domain.OptionSourceFacets},
			FrameStyles: domain.OptionSet{Values: []string{"Classic", "Box Frame"}, Source: domain.OptionSourceFallback},
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/options/framed-print?country=gb&mount=2.0mm", nil)
	rr := httptest.NewRecorder()
	newOptionsRouter(resolver).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body %s", rr.Code, rr.Body.String())
	}
	if len(resolver.productTypes) != 1 || resolver.productTypes[0] != domain.ProductFramedPrint {
		t.Fatalf("unexpected product types: %v", resolver.productTypes)
	}
	if resolver.countries[0] != "gb" {
		t.Fatalf("expected country passed through, got %q", resolver.countries[0])
	}
	if got := resolver.filters[0]; got["mount"] != "2.0mm" {
		t.Fatalf("expected mount filter, got %v", got)
	}
	if _, ok := resolver.filters[0]["country"]; ok {
		t.Fatal("country must not leak into filters")
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if body["productType"] != "framed-print" {
		t.Fatalf("expected framed-print, got %v", body["productType"])
	}
	if body["country"] != "GB" {
		t.Fatalf("expected country GB, got %v", body["country"])
	}
	frameColors, ok := body["frameColors"].(map[string]any)
	if !ok {
		t.Fatalf("expected frameColors object, got %v", body["frameColors"])
	}
	if frameColors["source"] != "facets" {
		t.Fatalf("expected facets source, got %v", frameColors["source"])
	}
	values, ok := frameColors["values"].([]any)
	if !ok || len(values) != 2 {
		t.Fatalf("expected 2 frame colors, got %v", frameColors["values"])
	}
	wraps, ok := body["wraps"].(map[string]any)
	if !ok {
		t.Fatalf("expected wraps object, got %v", body["wraps"])
	}
	if _, ok := wraps["values"].([]any); !ok {
		t.Fatalf("empty option sets must serialise values as an array, got %v", wraps["values"])
	}
}

func TestOptionsHandlersUnknownProductType(t *testing.T) {
	resolver := &fakeOptionsResolver{}

	req := httptest.NewRequest(http.MethodGet, "/options/mug?country=GB", nil)
	rr := httptest.NewRecorder()
	newOptionsRouter(resolver).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if len(resolver.productTypes) != 0 {
		t.Fatal("resolver should not be called")
	}
}

func TestOptionsHandlersRequiresCountry(t *testing.T) {
	resolver := &fakeOptionsResolver{}

	req := httptest.NewRequest(http.MethodGet, "/options/canvas", nil)
	rr := httptest.NewRecorder()
	newOptionsRouter(resolver).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if body["error"] != "missing_country" {
		t.Fatalf("expected missing_country, got %v", body["error"])
	}
}
