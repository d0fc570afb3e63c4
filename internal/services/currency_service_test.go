package services

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

type fakeRateSource struct {
	rates   map[string]float64
	err     error
	fetches int
}

func (f *fakeRateSource) FetchLatest(ctx context.Context) (map[string]float64, error) {
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	return f.rates, nil
}

func newCurrencyServiceForTest(t *testing.T, source *fakeRateSource, clock func() time.Time) CurrencyService {
	t.Helper()
	svc, err := NewCurrencyService(CurrencyServiceDeps{Source: source, Clock: clock})
	if err != nil {
		t.Fatalf("NewCurrencyService returned error: %v", err)
	}
	return svc
}

func TestCurrencyConvertLiveRates(t *testing.T) {
	source := &fakeRateSource{rates: map[string]float64{"USD": 1, "EUR": 0.9, "GBP": 0.8}}
	svc := newCurrencyServiceForTest(t, source, time.Now)
	ctx := context.Background()

	if got := svc.Convert(ctx, 100, "USD", "EUR"); got != 90 {
		t.Fatalf("expected 90 EUR, got %v", got)
	}

	// Non-USD pair pivots through USD: 90 EUR -> 100 USD -> 80 GBP.
	if got := svc.Convert(ctx, 90, "EUR", "GBP"); got != 80 {
		t.Fatalf("expected 80 GBP, got %v", got)
	}
}

func TestCurrencyConvertRoundTrip(t *testing.T) {
	source := &fakeRateSource{rates: map[string]float64{"USD": 1, "EUR": 0.9173, "CAD": 1.3467}}
	svc := newCurrencyServiceForTest(t, source, time.Now)
	ctx := context.Background()

	start := 123.45
	converted := svc.Convert(ctx, start, "EUR", "CAD")
	back := svc.Convert(ctx, converted, "CAD", "EUR")
	if math.Abs(back-start) > 0.02 {
		t.Fatalf("round trip drifted: %v -> %v -> %v", start, converted, back)
	}
}

func TestCurrencyCacheTTL(t *testing.T) {
	current := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }
	source := &fakeRateSource{rates: map[string]float64{"USD": 1, "EUR": 0.9}}
	svc := newCurrencyServiceForTest(t, source, clock)
	ctx := context.Background()

	svc.Convert(ctx, 1, "USD", "EUR")
	svc.Convert(ctx, 1, "USD", "EUR")
	if source.fetches != 1 {
		t.Fatalf("expected 1 fetch within TTL, got %d", source.fetches)
	}

	current = current.Add(11 * time.Hour)
	svc.Convert(ctx, 1, "USD", "EUR")
	if source.fetches != 1 {
		t.Fatalf("expected cache hit before expiry, got %d fetches", source.fetches)
	}

	current = current.Add(2 * time.Hour)
	svc.Convert(ctx, 1, "USD", "EUR")
	if source.fetches != 2 {
		t.Fatalf("expected refresh after TTL, got %d fetches", source.fetches)
	}
}

func TestCurrencyFallbackNotCached(t *testing.T) {
	source := &fakeRateSource{err: errors.New("rate provider down")}
	svc := newCurrencyServiceForTest(t, source, time.Now)
	ctx := context.Background()

	// CAD fallback rate is 1.35: $45.00 converts to $60.75.
	if got := svc.Convert(ctx, 45, "USD", "CAD"); got != 60.75 {
		t.Fatalf("expected 60.75 from fallback table, got %v", got)
	}

	// A failed fetch must not populate the cache; the next call retries live.
	svc.Convert(ctx, 1, "USD", "CAD")
	if source.fetches != 2 {
		t.Fatalf("expected retry after fallback, got %d fetches", source.fetches)
	}

	source.err = nil
	source.rates = map[string]float64{"USD": 1, "CAD": 1.40}
	if got := svc.Convert(ctx, 45, "USD", "CAD"); got != 63 {
		t.Fatalf("expected live rate once recovered, got %v", got)
	}
}

func TestCurrencyZeroDecimalRounding(t *testing.T) {
	source := &fakeRateSource{rates: map[string]float64{"USD": 1, "JPY": 148.3}}
	svc := newCurrencyServiceForTest(t, source, time.Now)

	if got := svc.Convert(context.Background(), 10, "USD", "JPY"); got != 1483 {
		t.Fatalf("expected whole-yen rounding, got %v", got)
	}
}

func TestCurrencyUnknownCurrency(t *testing.T) {
	source := &fakeRateSource{rates: map[string]float64{"USD": 1}}
	svc := newCurrencyServiceForTest(t, source, time.Now)

	if got := svc.Convert(context.Background(), 42.5, "USD", "XXX"); got != 42.5 {
		t.Fatalf("expected identity conversion for unknown currency, got %v", got)
	}
}
