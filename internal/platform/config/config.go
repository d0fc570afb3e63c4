package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile      = ".env"
	defaultPort         = "8080"
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 120 * time.Second

	defaultCatalogTimeout  = 30 * time.Second
	defaultCurrencyTimeout = 5 * time.Second
	defaultCurrencyBaseURL = "https://open.er-api.com/v6"

	defaultRateCacheTTL    = 12 * time.Hour
	defaultOptionsCacheTTL = 5 * time.Minute

	defaultUploadBatchSize  = 10
	defaultUploadBatchDelay = time.Second

	defaultProviderName = "prodigi"

	defaultIdempotencyHeader          = "Idempotency-Key"
	defaultIdempotencyTTL             = 24 * time.Hour
	defaultIdempotencyCleanupInterval = time.Hour
	defaultIdempotencyCleanupBatch    = 100
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Firestore   FirestoreConfig
	Catalog     CatalogConfig
	Currency    CurrencyConfig
	Stripe      StripeConfig
	PubSub      PubSubConfig
	Storage     StorageConfig
	Caching     CachingConfig
	Uploads     UploadConfig
	Auth        AuthConfig
	Provider    ProviderConfig
	Idempotency IdempotencyConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// CatalogConfig points at the print-on-demand catalog and fulfilment API.
type CatalogConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// CurrencyConfig points at the exchange-rate provider.
type CurrencyConfig struct {
	BaseURL string
	Timeout time.Duration
}

// StripeConfig collects payment provider credentials.
type StripeConfig struct {
	APIKey        string
	WebhookSecret string
}

// PubSubConfig names the topic carrying order lifecycle events.
type PubSubConfig struct {
	ProjectID       string
	OrderEventTopic string
}

// StorageConfig lists bucket names used for customer artwork uploads.
type StorageConfig struct {
	AssetsBucket string
}

// CachingConfig tunes the in-process caches for rates and catalog options.
type CachingConfig struct {
	RateTTL    time.Duration
	OptionsTTL time.Duration
}

// UploadConfig controls artwork upload batching against the storage backend.
type UploadConfig struct {
	BatchSize  int
	BatchDelay time.Duration
}

// AuthConfig carries the trust material for the edge gateway handing us
// authenticated user ids.
type AuthConfig struct {
	GatewayKey string
}

// ProviderConfig names the fulfilment provider and the shared secret its
// status callbacks are signed with.
type ProviderConfig struct {
	Name          string
	WebhookSecret string
}

// IdempotencyConfig tunes replay protection for keyed mutating requests.
type IdempotencyConfig struct {
	Header           string
	TTL              time.Duration
	CleanupInterval  time.Duration
	CleanupBatchSize int
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the application configuration by combining defaults, .env overrides,
// and environment variables.
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}

	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "API_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "API_FIRESTORE_EMULATOR_HOST", ""),
		},
		Catalog: CatalogConfig{
			BaseURL: stringWithDefault(lookup, "API_CATALOG_BASE_URL", ""),
			APIKey:  stringWithDefault(lookup, "API_CATALOG_API_KEY", ""),
			Timeout: durationWithDefault(lookup, "API_CATALOG_TIMEOUT", defaultCatalogTimeout),
		},
		Currency: CurrencyConfig{
			BaseURL: stringWithDefault(lookup, "API_CURRENCY_BASE_URL", defaultCurrencyBaseURL),
			Timeout: durationWithDefault(lookup, "API_CURRENCY_TIMEOUT", defaultCurrencyTimeout),
		},
		Stripe: StripeConfig{
			APIKey:        stringWithDefault(lookup, "API_STRIPE_API_KEY", ""),
			WebhookSecret: stringWithDefault(lookup, "API_STRIPE_WEBHOOK_SECRET", ""),
		},
		PubSub: PubSubConfig{
			ProjectID:       stringWithDefault(lookup, "API_PUBSUB_PROJECT_ID", ""),
			OrderEventTopic: stringWithDefault(lookup, "API_PUBSUB_ORDER_EVENT_TOPIC", "order-events"),
		},
		Storage: StorageConfig{
			AssetsBucket: stringWithDefault(lookup, "API_STORAGE_ASSETS_BUCKET", ""),
		},
		Caching: CachingConfig{
			RateTTL:    durationWithDefault(lookup, "API_CACHE_RATE_TTL", defaultRateCacheTTL),
			OptionsTTL: durationWithDefault(lookup, "API_CACHE_OPTIONS_TTL", defaultOptionsCacheTTL),
		},
		Uploads: UploadConfig{
			BatchSize:  intWithDefault(lookup, "API_UPLOAD_BATCH_SIZE", defaultUploadBatchSize),
			BatchDelay: durationWithDefault(lookup, "API_UPLOAD_BATCH_DELAY", defaultUploadBatchDelay),
		},
		Auth: AuthConfig{
			GatewayKey: stringWithDefault(lookup, "API_AUTH_GATEWAY_KEY", ""),
		},
		Provider: ProviderConfig{
			Name:          stringWithDefault(lookup, "API_PROVIDER_NAME", defaultProviderName),
			WebhookSecret: stringWithDefault(lookup, "API_PROVIDER_WEBHOOK_SECRET", ""),
		},
		Idempotency: IdempotencyConfig{
			Header:           stringWithDefault(lookup, "API_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:              durationWithDefault(lookup, "API_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			CleanupInterval:  durationWithDefault(lookup, "API_IDEMPOTENCY_CLEANUP_INTERVAL", defaultIdempotencyCleanupInterval),
			CleanupBatchSize: intWithDefault(lookup, "API_IDEMPOTENCY_CLEANUP_BATCH", defaultIdempotencyCleanupBatch),
		},
	}

	// PubSub project defaults to the Firestore project when unspecified.
	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Firestore.ProjectID
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Firestore.ProjectID == "" {
		missing = append(missing, "Firestore.ProjectID")
	}
	if cfg.Catalog.BaseURL == "" {
		missing = append(missing, "Catalog.BaseURL")
	}
	if cfg.Catalog.APIKey == "" {
		missing = append(missing, "Catalog.APIKey")
	}
	if cfg.Currency.BaseURL == "" {
		missing = append(missing, "Currency.BaseURL")
	}
	if cfg.Caching.RateTTL <= 0 {
		missing = append(missing, "Caching.RateTTL")
	}
	if cfg.Caching.OptionsTTL <= 0 {
		missing = append(missing, "Caching.OptionsTTL")
	}
	if cfg.Uploads.BatchSize <= 0 {
		missing = append(missing, "Uploads.BatchSize")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}
