package secrets

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
)

type fakeAccessClient struct {
	values map[string]string
	err    error
	calls  []string
	closed bool
}

func (f *fakeAccessClient) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.calls = append(f.calls, req.GetName())
	if f.err != nil {
		return nil, f.err
	}
	value, ok := f.values[req.GetName()]
	if !ok {
		return nil, errors.New("not found")
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
	}, nil
}

func (f *fakeAccessClient) Close() error {
	f.closed = true
	return nil
}

func newTestFetcher(t *testing.T, client *fakeAccessClient, opts ...Option) *Fetcher {
	t.Helper()
	opts = append([]Option{WithClient(client)}, opts...)
	fetcher, err := NewFetcher(context.Background(), "proj-1", opts...)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	return fetcher
}

func TestResolvePassesThroughLiterals(t *testing.T) {
	client := &fakeAccessClient{}
	fetcher := newTestFetcher(t, client)

	value, err := fetcher.Resolve(context.Background(), "sk_test_123")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if value != "sk_test_123" {
		t.Fatalf("value = %q", value)
	}
	if len(client.calls) != 0 {
		t.Fatalf("unexpected secret manager calls: %v", client.calls)
	}
}

func TestResolveFetchesAndCachesReference(t *testing.T) {
	client := &fakeAccessClient{values: map[string]string{
		"projects/proj-1/secrets/stripe-api-key/versions/latest": "sk_live_abc",
	}}
	fetcher := newTestFetcher(t, client)

	for i := 0; i < 2; i++ {
		value, err := fetcher.Resolve(context.Background(), "secret://stripe-api-key")
		if err != nil {
			t.Fatalf("Resolve attempt %d: %v", i+1, err)
		}
		if value != "sk_live_abc" {
			t.Fatalf("value = %q", value)
		}
	}
	if len(client.calls) != 1 {
		t.Fatalf("secret manager calls = %d, want 1", len(client.calls))
	}
}

func TestResolveHonoursVersionQuery(t *testing.T) {
	client := &fakeAccessClient{values: map[string]string{
		"projects/proj-1/secrets/webhook-secret/versions/3": "whsec_v3",
	}}
	fetcher := newTestFetcher(t, client)

	value, err := fetcher.Resolve(context.Background(), "secret://webhook-secret?version=3")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if value != "whsec_v3" {
		t.Fatalf("value = %q", value)
	}
}

func TestResolveFallsBackToEnvironment(t *testing.T) {
	client := &fakeAccessClient{err: errors.New("unavailable")}
	fetcher := newTestFetcher(t, client, WithEnvLookup(func(key string) (string, bool) {
		if key == "API_SECRET_STRIPE_API_KEY" {
			return "sk_env_fallback", true
		}
		return "", false
	}))

	value, err := fetcher.Resolve(context.Background(), "secret://stripe-api-key")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if value != "sk_env_fallback" {
		t.Fatalf("value = %q", value)
	}
}

func TestResolveErrorsWhenUnresolvable(t *testing.T) {
	client := &fakeAccessClient{err: errors.New("unavailable")}
	fetcher := newTestFetcher(t, client, WithEnvLookup(func(string) (string, bool) { return "", false }))

	if _, err := fetcher.Resolve(context.Background(), "secret://missing"); err == nil {
		t.Fatalf("expected error for unresolvable secret")
	}
}

func TestCloseLeavesInjectedClientOpen(t *testing.T) {
	client := &fakeAccessClient{}
	fetcher := newTestFetcher(t, client)

	if err := fetcher.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if client.closed {
		t.Fatalf("injected client should not be closed")
	}
}
