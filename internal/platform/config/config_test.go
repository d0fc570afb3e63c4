package config

import (
	"errors"
	"testing"
	"time"
)

func validEnv() map[string]string {
	return map[string]string{
		"API_FIRESTORE_PROJECT_ID": "framelane-test",
		"API_CATALOG_BASE_URL":     "https://catalog.example.com/v4",
		"API_CATALOG_API_KEY":      "test-key",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(WithEnvMap(validEnv()), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Server.Port)
	}
	if cfg.Caching.RateTTL != 12*time.Hour {
		t.Fatalf("expected 12h rate TTL, got %v", cfg.Caching.RateTTL)
	}
	if cfg.Caching.OptionsTTL != 5*time.Minute {
		t.Fatalf("expected 5m options TTL, got %v", cfg.Caching.OptionsTTL)
	}
	if cfg.Uploads.BatchSize != 10 {
		t.Fatalf("expected upload batch size 10, got %d", cfg.Uploads.BatchSize)
	}
	if cfg.Currency.Timeout != 5*time.Second {
		t.Fatalf("expected 5s currency timeout, got %v", cfg.Currency.Timeout)
	}
	if cfg.PubSub.ProjectID != "framelane-test" {
		t.Fatalf("expected pubsub project to default to firestore project, got %q", cfg.PubSub.ProjectID)
	}
}

func TestLoadOverrides(t *testing.T) {
	env := validEnv()
	env["API_SERVER_PORT"] = "9090"
	env["API_CACHE_RATE_TTL"] = "1h"
	env["API_UPLOAD_BATCH_SIZE"] = "25"
	env["API_PUBSUB_PROJECT_ID"] = "other-project"

	cfg, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Fatalf("expected port override, got %q", cfg.Server.Port)
	}
	if cfg.Caching.RateTTL != time.Hour {
		t.Fatalf("expected 1h rate TTL, got %v", cfg.Caching.RateTTL)
	}
	if cfg.Uploads.BatchSize != 25 {
		t.Fatalf("expected upload batch size 25, got %d", cfg.Uploads.BatchSize)
	}
	if cfg.PubSub.ProjectID != "other-project" {
		t.Fatalf("expected pubsub project override, got %q", cfg.PubSub.ProjectID)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	env := validEnv()
	delete(env, "API_CATALOG_API_KEY")

	_, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error")
	}

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	found := false
	for _, field := range vErr.Fields() {
		if field == "Catalog.APIKey" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected Catalog.APIKey in missing fields, got %v", vErr.Fields())
	}
}

func TestLoadInvalidDurationFallsBack(t *testing.T) {
	env := validEnv()
	env["API_CACHE_OPTIONS_TTL"] = "not-a-duration"

	cfg, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Caching.OptionsTTL != 5*time.Minute {
		t.Fatalf("expected fallback options TTL, got %v", cfg.Caching.OptionsTTL)
	}
}
