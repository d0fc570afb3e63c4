package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	domain "github.com/framelane/api/internal/domain"
)

// CartRepository is an in-memory cart store used by tests and local development.
type CartRepository struct {
	mu    sync.RWMutex
	items map[string]map[string]domain.CartLineItem // userID -> itemID -> item
	now   func() time.Time
}

// CartOption customises the in-memory cart repository.
type CartOption func(*CartRepository)

// WithCartClock injects a custom clock primarily for tests.
func WithCartClock(clock func() time.Time) CartOption {
	return func(r *CartRepository) {
		if clock != nil {
			r.now = clock
		}
	}
}

// NewCartRepository constructs an empty in-memory cart repository.
func NewCartRepository(opts ...CartOption) *CartRepository {
	repo := &CartRepository{
		items: make(map[string]map[string]domain.CartLineItem),
		now:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo
}

// ListItems returns the user's cart lines ordered by creation time.
func (r *CartRepository) ListItems(ctx context.Context, userID string) ([]domain.CartLineItem, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	lines := r.items[userID]
	out := make([]domain.CartLineItem, 0, len(lines))
	for _, item := range lines {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// FindItem returns the identified cart line.
func (r *CartRepository) FindItem(ctx context.Context, userID, itemID string) (domain.CartLineItem, error) {
	if err := requireUser(userID); err != nil {
		return domain.CartLineItem{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if item, ok := r.items[userID][itemID]; ok {
		return item, nil
	}
	return domain.CartLineItem{}, notFoundf("cart item %s not found", itemID)
}

// FindItemByProduct returns the user's cart line for the given product, if any.
func (r *CartRepository) FindItemByProduct(ctx context.Context, userID, productID string) (domain.CartLineItem, error) {
	if err := requireUser(userID); err != nil {
		return domain.CartLineItem{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, item := range r.items[userID] {
		if item.ProductID == productID {
			return item, nil
		}
	}
	return domain.CartLineItem{}, notFoundf("no cart item for product %s", productID)
}

// UpsertItem inserts or replaces a cart line keyed by its ID.
func (r *CartRepository) UpsertItem(ctx context.Context, item domain.CartLineItem) (domain.CartLineItem, error) {
	if err := requireUser(item.UserID); err != nil {
		return domain.CartLineItem{}, err
	}
	if strings.TrimSpace(item.ID) == "" {
		return domain.CartLineItem{}, errors.New("memory cart: item id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	existing, ok := r.items[item.UserID][item.ID]
	if ok {
		item.CreatedAt = existing.CreatedAt
	} else if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	if r.items[item.UserID] == nil {
		r.items[item.UserID] = make(map[string]domain.CartLineItem)
	}
	r.items[item.UserID][item.ID] = item
	return item, nil
}

// RemoveItem deletes the identified cart line.
func (r *CartRepository) RemoveItem(ctx context.Context, userID, itemID string) error {
	if err := requireUser(userID); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[userID][itemID]; !ok {
		return notFoundf("cart item %s not found", itemID)
	}
	delete(r.items[userID], itemID)
	return nil
}

// Clear removes every line from the user's cart.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	if err := requireUser(userID); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.items, userID)
	return nil
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return errors.New("memory cart: user id is required")
	}
	return nil
}
