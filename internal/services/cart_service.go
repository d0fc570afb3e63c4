package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/framelane/api/internal/domain"
	"github.com/framelane/api/internal/repositories"
)

const (
	minLineQuantity = 1
	maxLineQuantity = 10
)

type cartService struct {
	carts       repositories.CartRepository
	pricing     PricingCalculator
	clock       func() time.Time
	idGenerator func() string
	logger      func(context.Context, string, map[string]any)
}

type CartServiceDeps struct {
	Carts       repositories.CartRepository
	Pricing     PricingCalculator
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service: cart repository is required")
	}
	if deps.Pricing == nil {
		return nil, errors.New("cart service: pricing calculator is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGenerator := deps.IDGenerator
	if idGenerator == nil {
		idGenerator = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &cartService{
		carts:       deps.Carts,
		pricing:     deps.Pricing,
		clock:       func() time.Time { return clock().UTC() },
		idGenerator: idGenerator,
		logger:      logger,
	}, nil
}

func (s *cartService) Add(ctx context.Context, cmd AddItemCommand) (CartView, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return CartView{}, domain.NewCartError("missing_user", "user id is required", http.StatusBadRequest)
	}
	if strings.TrimSpace(cmd.SKU) == "" {
		return CartView{}, domain.NewCartError("missing_sku", "sku is required", http.StatusBadRequest)
	}
	if strings.TrimSpace(cmd.ProductID) == "" {
		return CartView{}, domain.NewCartError("missing_product", "product id is required", http.StatusBadRequest)
	}

	now := s.clock()
	existing, err := s.carts.FindItemByProduct(ctx, userID, cmd.ProductID)
	switch {
	case err == nil:
		existing.Quantity = clampQuantity(existing.Quantity + cmd.Quantity)
		existing.Configuration = cmd.Configuration
		existing.UpdatedAt = now
		if _, err := s.carts.UpsertItem(ctx, existing); err != nil {
			return CartView{}, domain.NewCartError("cart_write_failed", "could not update cart", http.StatusInternalServerError).WithCause(err)
		}
	case repositories.IsNotFound(err):
		item := domain.CartLineItem{
			ID:            s.idGenerator(),
			UserID:        userID,
			ProductID:     cmd.ProductID,
			SKU:           cmd.SKU,
			Quantity:      clampQuantity(cmd.Quantity),
			DisplayPrice:  cmd.CatalogPrice,
			OriginalPrice: cmd.CatalogPrice,
			Currency:      strings.ToUpper(strings.TrimSpace(cmd.Currency)),
			Configuration: cmd.Configuration,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if _, err := s.carts.UpsertItem(ctx, item); err != nil {
			return CartView{}, domain.NewCartError("cart_write_failed", "could not add to cart", http.StatusInternalServerError).WithCause(err)
		}
	default:
		return CartView{}, domain.NewCartError("cart_read_failed", "could not read cart", http.StatusInternalServerError).WithCause(err)
	}

	return s.view(ctx, userID, cmd.DestinationCountry, cmd.ShippingMethod)
}

func (s *cartService) UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) (CartView, error) {
	if quantity < minLineQuantity {
		return s.Remove(ctx, userID, itemID)
	}

	item, err := s.carts.FindItem(ctx, userID, itemID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return CartView{}, domain.NewCartError("item_not_found", "cart item not found", http.StatusNotFound).WithCause(err)
		}
		return CartView{}, domain.NewCartError("cart_read_failed", "could not read cart", http.StatusInternalServerError).WithCause(err)
	}

	item.Quantity = clampQuantity(quantity)
	item.UpdatedAt = s.clock()
	if _, err := s.carts.UpsertItem(ctx, item); err != nil {
		return CartView{}, domain.NewCartError("cart_write_failed", "could not update cart", http.StatusInternalServerError).WithCause(err)
	}
	return s.view(ctx, userID, "", "")
}

func (s *cartService) Remove(ctx context.Context, userID, itemID string) (CartView, error) {
	if err := s.carts.RemoveItem(ctx, userID, itemID); err != nil && !repositories.IsNotFound(err) {
		return CartView{}, domain.NewCartError("cart_write_failed", "could not remove cart item", http.StatusInternalServerError).WithCause(err)
	}
	return s.view(ctx, userID, "", "")
}

func (s *cartService) Clear(ctx context.Context, userID string) error {
	if err := s.carts.Clear(ctx, userID); err != nil {
		return domain.NewCartError("cart_write_failed", "could not clear cart", http.StatusInternalServerError).WithCause(err)
	}
	return nil
}

func (s *cartService) Get(ctx context.Context, userID, destinationCountry, shippingMethod string) (CartView, error) {
	return s.view(ctx, userID, destinationCountry, shippingMethod)
}

// view loads the cart and prices it opportunistically. A pricing failure
// degrades to the stored per-line prices and marks the view stale.
func (s *cartService) view(ctx context.Context, userID, destinationCountry, shippingMethod string) (CartView, error) {
	items, err := s.carts.ListItems(ctx, userID)
	if err != nil {
		return CartView{}, domain.NewCartError("cart_read_failed", "could not read cart", http.StatusInternalServerError).WithCause(err)
	}
	view := CartView{Items: items}
	if len(items) == 0 {
		return view, nil
	}
	if strings.TrimSpace(destinationCountry) == "" {
		// No destination, no quote. The stored prices stand.
		view.PriceStale = true
		return view, nil
	}

	result, err := s.pricing.Price(ctx, PriceQuery{
		Items:              items,
		DestinationCountry: destinationCountry,
		ShippingMethod:     shippingMethod,
	})
	if err != nil {
		s.logger(ctx, "cart.pricing.degraded", map[string]any{
			"user_id": userID,
			"country": destinationCountry,
			"error":   err.Error(),
		})
		view.PriceStale = true
		return view, nil
	}
	view.Pricing = &result
	view.Warnings = s.pricing.ValidatePrices(ctx, items, result)
	return view, nil
}

func clampQuantity(quantity int) int {
	if quantity < minLineQuantity {
		return minLineQuantity
	}
	if quantity > maxLineQuantity {
		return maxLineQuantity
	}
	return quantity
}
