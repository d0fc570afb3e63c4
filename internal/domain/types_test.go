package domain

import "testing"

func TestBucketAspectRatioBoundaries(t *testing.T) {
	cases := []struct {
		ratio float64
		want  AspectRatioBucket
	}{
		{94.9, AspectPortrait},
		{95.0, AspectSquare},
		{100.0, AspectSquare},
		{105.0, AspectSquare},
		{105.1, AspectLandscape},
		{50.0, AspectPortrait},
		{200.0, AspectLandscape},
	}
	for _, tc := range cases {
		if got := BucketAspectRatio(tc.ratio); got != tc.want {
			t.Fatalf("BucketAspectRatio(%v) = %q, want %q", tc.ratio, got, tc.want)
		}
	}
}

func TestFrameConfigurationRequested(t *testing.T) {
	cfg := FrameConfiguration{
		Size:       "16x20",
		FrameColor: "black",
		Mount:      "none",
		Glaze:      "  ",
	}
	got := cfg.Requested()
	if len(got) != 2 {
		t.Fatalf("expected 2 requested fields, got %v", got)
	}
	if got["size"] != "16x20" || got["frameColor"] != "black" {
		t.Fatalf("unexpected requested map: %v", got)
	}
	if _, ok := got["mount"]; ok {
		t.Fatalf("sentinel %q should be dropped", ConfigNone)
	}
}

func TestOrderStatusTransitions(t *testing.T) {
	allowed := []struct{ from, to OrderStatus }{
		{OrderStatusPending, OrderStatusProcessing},
		{OrderStatusPending, OrderStatusShipped},
		{OrderStatusProcessing, OrderStatusShipped},
		{OrderStatusPending, OrderStatusCancelled},
		{OrderStatusProcessing, OrderStatusFailed},
	}
	for _, tc := range allowed {
		if !tc.from.CanTransitionTo(tc.to) {
			t.Fatalf("%s -> %s should be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to OrderStatus }{
		{OrderStatusShipped, OrderStatusProcessing},
		{OrderStatusProcessing, OrderStatusPending},
		{OrderStatusCancelled, OrderStatusProcessing},
		{OrderStatusFailed, OrderStatusPending},
		{OrderStatusShipped, OrderStatusCancelled},
		{OrderStatusPending, OrderStatusPending},
	}
	for _, tc := range denied {
		if tc.from.CanTransitionTo(tc.to) {
			t.Fatalf("%s -> %s should be denied", tc.from, tc.to)
		}
	}
}

func TestRoundAmount(t *testing.T) {
	if got := RoundAmount(60.7512, "EUR"); got != 60.75 {
		t.Fatalf("EUR rounding: got %v", got)
	}
	if got := RoundAmount(1234.56, "JPY"); got != 1235 {
		t.Fatalf("JPY rounding: got %v", got)
	}
	if !ZeroDecimalCurrency("krw") {
		t.Fatalf("krw should be zero-decimal")
	}
	if ZeroDecimalCurrency("USD") {
		t.Fatalf("USD should not be zero-decimal")
	}
	// Three-decimal ISO currencies are capped at two decimals for display.
	if got := RoundAmount(12.3456, "BHD"); got != 12.35 {
		t.Fatalf("BHD rounding: got %v", got)
	}
	if got := RoundAmount(9.999, "XYZ"); got != 10 {
		t.Fatalf("unknown code rounding: got %v", got)
	}
}
