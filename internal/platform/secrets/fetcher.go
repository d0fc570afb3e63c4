package secrets

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const (
	refScheme      = "secret"
	defaultVersion = "latest"
	envPrefix      = "API_SECRET_"
)

// ErrNotFound is returned when neither Secret Manager nor the environment
// fallback can supply a referenced secret.
var ErrNotFound = errors.New("secrets: secret not found")

type accessClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Fetcher resolves secret:// references against Google Secret Manager.
// Plain values pass through untouched, so configuration can mix literal
// values locally with managed secrets in deployed environments. Resolved
// values are cached for the fetcher's lifetime.
type Fetcher struct {
	client     accessClient
	ownsClient bool
	projectID  string
	logger     *zap.Logger
	lookupEnv  func(string) (string, bool)

	mu    sync.RWMutex
	cache map[string]string
}

type fetcherConfig struct {
	client     accessClient
	clientOpts []option.ClientOption
	logger     *zap.Logger
	lookupEnv  func(string) (string, bool)
}

// Option customises Fetcher construction.
type Option func(*fetcherConfig)

// WithLogger sets the logger used for diagnostic output.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *fetcherConfig) {
		cfg.logger = logger
	}
}

// WithClient injects a pre-built Secret Manager client. The fetcher will not
// close an injected client.
func WithClient(client accessClient) Option {
	return func(cfg *fetcherConfig) {
		cfg.client = client
	}
}

// WithClientOptions forwards options to the Secret Manager client constructor.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(cfg *fetcherConfig) {
		cfg.clientOpts = append(cfg.clientOpts, opts...)
	}
}

// WithEnvLookup overrides the environment lookup used for fallbacks,
// primarily for tests.
func WithEnvLookup(lookup func(string) (string, bool)) Option {
	return func(cfg *fetcherConfig) {
		if lookup != nil {
			cfg.lookupEnv = lookup
		}
	}
}

// NewFetcher constructs a Fetcher scoped to the given project.
func NewFetcher(ctx context.Context, projectID string, opts ...Option) (*Fetcher, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, errors.New("secrets: project id is required")
	}

	cfg := fetcherConfig{lookupEnv: os.LookupEnv}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	fetcher := &Fetcher{
		client:    cfg.client,
		projectID: projectID,
		logger:    logger,
		lookupEnv: cfg.lookupEnv,
		cache:     make(map[string]string),
	}
	if fetcher.client == nil {
		client, err := secretmanager.NewClient(ctx, cfg.clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("secrets: create secret manager client: %w", err)
		}
		fetcher.client = client
		fetcher.ownsClient = true
	}
	return fetcher, nil
}

// IsReference reports whether the value is a secret:// reference.
func IsReference(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), refScheme+"://")
}

// Resolve returns the secret value for a secret://<name>[?version=<v>]
// reference. Values that are not references are returned as-is. When the
// Secret Manager lookup fails, the environment variable API_SECRET_<NAME>
// (uppercased, dashes to underscores) is consulted before giving up.
func (f *Fetcher) Resolve(ctx context.Context, value string) (string, error) {
	value = strings.TrimSpace(value)
	if !IsReference(value) {
		return value, nil
	}

	name, version, err := parseReference(value)
	if err != nil {
		return "", err
	}

	cacheKey := name + "@" + version
	f.mu.RLock()
	cached, ok := f.cache[cacheKey]
	f.mu.RUnlock()
	if ok {
		return cached, nil
	}

	resolved, err := f.access(ctx, name, version)
	if err != nil {
		if fallback, ok := f.envFallback(name); ok {
			f.logger.Warn("secret manager lookup failed; using environment fallback",
				zap.String("secret", name), zap.Error(err))
			return fallback, nil
		}
		return "", err
	}

	f.mu.Lock()
	f.cache[cacheKey] = resolved
	f.mu.Unlock()
	return resolved, nil
}

// Close releases the underlying client when the fetcher owns it.
func (f *Fetcher) Close() error {
	if !f.ownsClient || f.client == nil {
		return nil
	}
	return f.client.Close()
}

func (f *Fetcher) access(ctx context.Context, name, version string) (string, error) {
	resource := fmt.Sprintf("projects/%s/secrets/%s/versions/%s", f.projectID, name, version)
	resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: resource})
	if err != nil {
		return "", fmt.Errorf("secrets: access %s: %w", name, err)
	}
	if resp.GetPayload() == nil {
		return "", fmt.Errorf("secrets: access %s: %w", name, ErrNotFound)
	}
	return string(resp.GetPayload().GetData()), nil
}

func (f *Fetcher) envFallback(name string) (string, bool) {
	if f.lookupEnv == nil {
		return "", false
	}
	key := envPrefix + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
	value, ok := f.lookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return value, true
}

func parseReference(ref string) (name, version string, err error) {
	parsed, err := url.Parse(ref)
	if err != nil {
		return "", "", fmt.Errorf("secrets: parse reference %q: %w", ref, err)
	}
	name = parsed.Host
	if name == "" {
		name = strings.Trim(parsed.Path, "/")
	}
	if name == "" {
		return "", "", fmt.Errorf("secrets: reference %q names no secret", ref)
	}
	version = parsed.Query().Get("version")
	if version == "" {
		version = defaultVersion
	}
	return name, version, nil
}
