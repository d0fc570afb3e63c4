package memory

import "github.com/framelane/api/internal/repositories"

// Registry bundles the in-memory repositories for tests and local development.
type Registry struct {
	carts  *CartRepository
	orders *OrderRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry constructs an empty in-memory repository set.
func NewRegistry() *Registry {
	return &Registry{
		carts:  NewCartRepository(),
		orders: NewOrderRepository(),
	}
}

// Carts returns the cart repository.
func (r *Registry) Carts() repositories.CartRepository { return r.carts }

// Orders returns the order repository.
func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

// Close is a no-op for the in-memory registry.
func (r *Registry) Close() error { return nil }
