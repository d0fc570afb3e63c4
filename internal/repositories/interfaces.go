package repositories

import (
	"context"
	"errors"

	domain "github.com/framelane/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// IsNotFound reports whether the error chain carries a not-found repository error.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound()
	}
	return false
}

// IsConflict reports whether the error chain carries a conflict repository error.
func IsConflict(err error) bool {
	var repoErr RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsConflict()
	}
	return false
}

// Registry exposes typed repository accessors for dependency injection.
type Registry interface {
	Close() error

	Carts() CartRepository
	Orders() OrderRepository
}

// CartRepository owns cart line item persistence. Lines are scoped per user;
// a user holds at most one line per product.
type CartRepository interface {
	ListItems(ctx context.Context, userID string) ([]domain.CartLineItem, error)
	FindItem(ctx context.Context, userID, itemID string) (domain.CartLineItem, error)
	FindItemByProduct(ctx context.Context, userID, productID string) (domain.CartLineItem, error)
	UpsertItem(ctx context.Context, item domain.CartLineItem) (domain.CartLineItem, error)
	RemoveItem(ctx context.Context, userID, itemID string) error
	Clear(ctx context.Context, userID string) error
}

// OrderRepository persists orders, their dropship counterparts, and the
// append-only status history.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) (domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) error

	InsertDropship(ctx context.Context, dropship domain.DropshipOrder) (domain.DropshipOrder, error)
	FindDropshipByProviderOrderID(ctx context.Context, provider, providerOrderID string) (domain.DropshipOrder, error)
	ListDropshipByOrder(ctx context.Context, orderID string) ([]domain.DropshipOrder, error)
	UpdateDropshipStage(ctx context.Context, dropshipID, stage string) error

	AppendHistory(ctx context.Context, entry domain.OrderStatusHistory) (domain.OrderStatusHistory, error)
	ListHistory(ctx context.Context, orderID string) ([]domain.OrderStatusHistory, error)
}
