package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/framelane/api/internal/handlers"
	"github.com/framelane/api/internal/platform/auth"
	"github.com/framelane/api/internal/platform/config"
	"github.com/framelane/api/internal/platform/idempotency"
	"github.com/framelane/api/internal/platform/observability"
	"github.com/framelane/api/internal/repositories"
	"github.com/framelane/api/internal/services"
)

// CatalogClient is the provider API surface the service layer consumes:
// facet search for option resolution, quoting for pricing, and order
// submission for fulfilment.
type CatalogClient interface {
	services.FacetSearcher
	services.QuoteCatalog
	services.FulfillmentCatalog
}

// Services bundles the service-layer contracts the handlers rely upon.
type Services struct {
	Currency    services.CurrencyService
	Attributes  services.AttributeResolver
	Options     services.OptionsResolver
	Pricing     services.PricingCalculator
	Cart        services.CartService
	Fulfillment services.FulfillmentService
}

// ContainerDeps carries the external clients the container wires together.
// Production builds them in main; tests substitute in-memory fakes.
type ContainerDeps struct {
	Config   config.Config
	Logger   *zap.Logger
	Registry repositories.Registry
	Catalog  CatalogClient
	Rates    services.RateSource
	Assets   services.AssetURLResolver

	// Optional collaborators. A nil publisher drops order events, a nil
	// payment starter produces orders without payment sessions, a nil
	// idempotency store disables replay protection, and a nil health
	// repository leaves readiness with no dependency probes.
	Publisher        services.OrderEventPublisher
	Payments         handlers.PaymentStarter
	IdempotencyStore idempotency.Store
	Health           repositories.HealthRepository

	Clock func() time.Time
}

// Container wires repositories, services, and the HTTP surface for runtime use.
type Container struct {
	Config   config.Config
	Logger   *zap.Logger
	Registry repositories.Registry
	Services Services
	Router   chi.Router
}

// NewContainer assembles the service graph and router from the provided deps.
func NewContainer(deps ContainerDeps) (*Container, error) {
	if deps.Registry == nil {
		return nil, errors.New("di: repositories registry is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("di: catalog client is required")
	}
	if deps.Rates == nil {
		return nil, errors.New("di: rate source is required")
	}
	if deps.Assets == nil {
		return nil, errors.New("di: asset resolver is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	cfg := deps.Config

	svc, err := buildServices(cfg, deps, logger, clock)
	if err != nil {
		return nil, err
	}

	router, err := buildRouter(cfg, deps, svc, logger)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:   cfg,
		Logger:   logger,
		Registry: deps.Registry,
		Services: svc,
		Router:   router,
	}, nil
}

// Close releases the repository registry. External clients handed in through
// ContainerDeps are owned, and closed, by the caller.
func (c *Container) Close() error {
	if c == nil || c.Registry == nil {
		return nil
	}
	return c.Registry.Close()
}

func buildServices(cfg config.Config, deps ContainerDeps, logger *zap.Logger, clock func() time.Time) (Services, error) {
	currency, err := services.NewCurrencyService(services.CurrencyServiceDeps{
		Source: deps.Rates,
		Clock:  clock,
		TTL:    cfg.Caching.RateTTL,
		Logger: eventLogger(logger.Named("currency")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("di: currency service: %w", err)
	}

	attributes, err := services.NewAttributeResolver(services.AttributeResolverDeps{
		Logger: eventLogger(logger.Named("attributes")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("di: attribute resolver: %w", err)
	}

	options, err := services.NewOptionsResolver(services.OptionsResolverDeps{
		Search:   deps.Catalog,
		CacheTTL: cfg.Caching.OptionsTTL,
		Clock:    clock,
		Logger:   eventLogger(logger.Named("options")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("di: options resolver: %w", err)
	}

	pricing, err := services.NewPricingCalculator(services.PricingCalculatorDeps{
		Catalog:    deps.Catalog,
		Attributes: attributes,
		Currency:   currency,
		Logger:     eventLogger(logger.Named("pricing")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("di: pricing calculator: %w", err)
	}

	cart, err := services.NewCartService(services.CartServiceDeps{
		Carts:   deps.Registry.Carts(),
		Pricing: pricing,
		Clock:   clock,
		Logger:  eventLogger(logger.Named("cart")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("di: cart service: %w", err)
	}

	fulfillment, err := services.NewFulfillmentService(services.FulfillmentServiceDeps{
		Orders:     deps.Registry.Orders(),
		Carts:      deps.Registry.Carts(),
		Pricing:    pricing,
		Attributes: attributes,
		Catalog:    deps.Catalog,
		Assets:     deps.Assets,
		Publisher:  deps.Publisher,
		Provider:   cfg.Provider.Name,
		Clock:      clock,
		Logger:     eventLogger(logger.Named("fulfillment")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("di: fulfillment service: %w", err)
	}

	return Services{
		Currency:    currency,
		Attributes:  attributes,
		Options:     options,
		Pricing:     pricing,
		Cart:        cart,
		Fulfillment: fulfillment,
	}, nil
}

func buildRouter(cfg config.Config, deps ContainerDeps, svc Services, logger *zap.Logger) (chi.Router, error) {
	httpLogger := logger.Named("http")
	projectID := cfg.Firestore.ProjectID

	gateway := auth.NewGatewayAuthenticator(cfg.Auth.GatewayKey)

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(httpLogger),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(httpLogger),
		observability.RequestLoggerMiddleware(projectID),
		gateway.Middleware(),
	}
	if deps.IdempotencyStore != nil {
		middlewares = append(middlewares, idempotency.Middleware(
			deps.IdempotencyStore,
			idempotency.WithHeader(cfg.Idempotency.Header),
			idempotency.WithTTL(cfg.Idempotency.TTL),
			idempotency.WithLogger(zap.NewStdLog(logger.Named("idempotency"))),
		))
	}

	var healthOpts []handlers.HealthOption
	if deps.Health != nil {
		healthOpts = append(healthOpts, handlers.WithHealthDependencies(deps.Health))
	}

	optionsHandlers := handlers.NewOptionsHandlers(svc.Options)
	quoteHandlers := handlers.NewQuoteHandlers(svc.Pricing)
	cartHandlers := handlers.NewCartHandlers(svc.Cart)
	orderHandlers := handlers.NewOrderHandlers(svc.Fulfillment, deps.Payments)
	webhookHandlers := handlers.NewWebhookHandlers(svc.Fulfillment)

	opts := []handlers.Option{
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(healthOpts...)),
		handlers.WithOptionsRoutes(optionsHandlers.Routes),
		handlers.WithQuoteRoutes(quoteHandlers.Routes),
		handlers.WithCartRoutes(cartHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithWebhookRoutes(webhookHandlers.Routes),
	}
	if cfg.Provider.WebhookSecret != "" {
		verifier, err := auth.NewWebhookVerifier(cfg.Provider.WebhookSecret)
		if err != nil {
			return nil, fmt.Errorf("di: webhook verifier: %w", err)
		}
		opts = append(opts, handlers.WithWebhookMiddlewares(verifier.Require()))
	}

	return handlers.NewRouter(opts...), nil
}

// eventLogger adapts a zap logger to the event callback the services accept.
func eventLogger(logger *zap.Logger) func(context.Context, string, map[string]any) {
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Debug(event, zFields...)
	}
}
