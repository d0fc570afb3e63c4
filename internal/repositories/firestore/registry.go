package firestore

import (
	"errors"

	pfirestore "github.com/framelane/api/internal/platform/firestore"
	"github.com/framelane/api/internal/repositories"
)

// Registry bundles the Firestore-backed repositories behind the repositories.Registry contract.
type Registry struct {
	provider *pfirestore.Provider
	carts    *CartRepository
	orders   *OrderRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry constructs the repository set sharing a single provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	carts, err := NewCartRepository(provider)
	if err != nil {
		return nil, err
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider: provider,
		carts:    carts,
		orders:   orders,
	}, nil
}

// Carts returns the cart repository.
func (r *Registry) Carts() repositories.CartRepository { return r.carts }

// Orders returns the order repository.
func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

// Close releases the shared Firestore client.
func (r *Registry) Close() error {
	return r.provider.Close()
}
