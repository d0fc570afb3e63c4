package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	cloudstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/framelane/api/internal/assets"
	"github.com/framelane/api/internal/catalog"
	"github.com/framelane/api/internal/di"
	"github.com/framelane/api/internal/payments"
	"github.com/framelane/api/internal/platform/config"
	pfirestore "github.com/framelane/api/internal/platform/firestore"
	"github.com/framelane/api/internal/platform/idempotency"
	"github.com/framelane/api/internal/platform/jobs"
	"github.com/framelane/api/internal/platform/observability"
	"github.com/framelane/api/internal/platform/secrets"
	"github.com/framelane/api/internal/rates"
	"github.com/framelane/api/internal/repositories"
	fsrepo "github.com/framelane/api/internal/repositories/firestore"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	if err := resolveSecrets(ctx, &cfg, logger); err != nil {
		logger.Fatal("failed to resolve secret references", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}

	registry, err := fsrepo.NewRegistry(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	catalogClient, err := catalog.NewClient(cfg.Catalog.BaseURL, cfg.Catalog.APIKey, &http.Client{Timeout: cfg.Catalog.Timeout})
	if err != nil {
		logger.Fatal("failed to initialise catalog client", zap.Error(err))
	}

	ratesClient, err := rates.NewClient(cfg.Currency.BaseURL, &http.Client{Timeout: cfg.Currency.Timeout})
	if err != nil {
		logger.Fatal("failed to initialise exchange rate client", zap.Error(err))
	}

	storageClient, err := cloudstorage.NewClient(ctx)
	if err != nil {
		logger.Fatal("failed to initialise storage client", zap.Error(err))
	}
	defer func() {
		if err := storageClient.Close(); err != nil {
			logger.Warn("storage close error", zap.Error(err))
		}
	}()

	if cfg.Storage.AssetsBucket == "" {
		logger.Fatal("assets bucket is required")
	}
	assetStore, err := assets.NewStore(storageClient.Bucket(cfg.Storage.AssetsBucket))
	if err != nil {
		logger.Fatal("failed to initialise asset store", zap.Error(err))
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		logger.Fatal("failed to initialise pubsub client", zap.Error(err))
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}()

	orderTopic := pubsubClient.Topic(cfg.PubSub.OrderEventTopic)
	defer orderTopic.Stop()
	publisher, err := jobs.NewPubSubOrderPublisher(orderTopic)
	if err != nil {
		logger.Fatal("failed to initialise order event publisher", zap.Error(err))
	}

	if cfg.Stripe.APIKey == "" {
		logger.Fatal("stripe api key is required")
	}
	paymentsLogger := logger.Named("payments")
	stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
		APIKey: cfg.Stripe.APIKey,
		Logger: func(_ context.Context, event string, fields map[string]any) {
			zFields := make([]zap.Field, 0, len(fields))
			for k, v := range fields {
				zFields = append(zFields, zap.Any(k, v))
			}
			paymentsLogger.Debug(event, zFields...)
		},
	})
	if err != nil {
		logger.Fatal("failed to initialise stripe provider", zap.Error(err))
	}
	paymentManager, err := payments.NewManager(map[string]payments.Provider{
		"stripe": stripeProvider,
	})
	if err != nil {
		logger.Fatal("failed to initialise payment manager", zap.Error(err))
	}

	idempotencyStore := idempotency.NewFirestoreStore(firestoreClient)
	cleanupStop := startIdempotencyCleanup(logger.Named("idempotency"), idempotencyStore, cfg.Idempotency)
	defer cleanupStop()

	health, err := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{
		{
			Name:    "firestore",
			Timeout: 1500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				iter := firestoreClient.Collections(ctx)
				if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
					return err
				}
				return nil
			},
		},
		{
			Name:    "pubsub",
			Timeout: 1500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				ok, err := orderTopic.Exists(ctx)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("topic %s does not exist", cfg.PubSub.OrderEventTopic)
				}
				return nil
			},
		},
	})
	if err != nil {
		logger.Fatal("failed to initialise health checks", zap.Error(err))
	}

	container, err := di.NewContainer(di.ContainerDeps{
		Config:           cfg,
		Logger:           logger,
		Registry:         registry,
		Catalog:          catalogClient,
		Rates:            ratesClient,
		Assets:           assetStore,
		Publisher:        publisher,
		Payments:         paymentManager,
		IdempotencyStore: idempotencyStore,
		Health:           health,
	})
	if err != nil {
		logger.Fatal("failed to assemble container", zap.Error(err))
	}
	defer func() {
		if err := container.Close(); err != nil {
			logger.Warn("container close error", zap.Error(err))
		}
	}()

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      container.Router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("framelane api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// resolveSecrets replaces secret:// references in the loaded configuration
// with values from Secret Manager. Literal values are left untouched, so a
// fetcher is only built when at least one reference is present.
func resolveSecrets(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	refs := []*string{&cfg.Stripe.APIKey, &cfg.Stripe.WebhookSecret, &cfg.Provider.WebhookSecret, &cfg.Auth.GatewayKey, &cfg.Catalog.APIKey}

	needed := false
	for _, ref := range refs {
		if secrets.IsReference(*ref) {
			needed = true
			break
		}
	}
	if !needed {
		return nil
	}

	fetcher, err := secrets.NewFetcher(ctx, cfg.Firestore.ProjectID, secrets.WithLogger(logger.Named("secrets")))
	if err != nil {
		return err
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	for _, ref := range refs {
		resolved, err := fetcher.Resolve(ctx, *ref)
		if err != nil {
			return err
		}
		*ref = resolved
	}
	return nil
}

// startIdempotencyCleanup prunes expired idempotency records on an interval.
// The returned stop function blocks until the worker exits.
func startIdempotencyCleanup(logger *zap.Logger, store idempotency.Store, cfg config.IdempotencyConfig) func() {
	if cfg.CleanupInterval <= 0 {
		return func() {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	ticker := time.NewTicker(cfg.CleanupInterval)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ticker.C:
				runCtx, runCancel := context.WithTimeout(ctx, time.Minute)
				removed, err := store.CleanupExpired(runCtx, time.Now().UTC(), cfg.CleanupBatchSize)
				runCancel()
				if err != nil {
					logger.Error("cleanup error", zap.Error(err))
					continue
				}
				if removed > 0 {
					logger.Info("cleanup removed records", zap.Int("count", removed))
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() {
		ticker.Stop()
		cancel()
		wg.Wait()
	}
}
