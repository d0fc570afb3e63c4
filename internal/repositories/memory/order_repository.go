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

// OrderRepository is an in-memory order store used by tests and local development.
type OrderRepository struct {
	mu        sync.RWMutex
	orders    map[string]domain.Order
	dropships map[string]domain.DropshipOrder
	history   map[string][]domain.OrderStatusHistory // orderID -> rows in append order
	now       func() time.Time
}

// OrderOption customises the in-memory order repository.
type OrderOption func(*OrderRepository)

// WithOrderClock injects a custom clock primarily for tests.
func WithOrderClock(clock func() time.Time) OrderOption {
	return func(r *OrderRepository) {
		if clock != nil {
			r.now = clock
		}
	}
}

// NewOrderRepository constructs an empty in-memory order repository.
func NewOrderRepository(opts ...OrderOption) *OrderRepository {
	repo := &OrderRepository{
		orders:    make(map[string]domain.Order),
		dropships: make(map[string]domain.DropshipOrder),
		history:   make(map[string][]domain.OrderStatusHistory),
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo
}

// Insert stores a new order. Inserting an existing ID is a conflict.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	if strings.TrimSpace(order.ID) == "" {
		return domain.Order{}, errors.New("memory orders: order id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[order.ID]; ok {
		return domain.Order{}, conflictf("order %s already exists", order.ID)
	}

	now := r.now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	r.orders[order.ID] = order
	return order, nil
}

// FindByID returns the identified order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if order, ok := r.orders[orderID]; ok {
		return order, nil
	}
	return domain.Order{}, notFoundf("order %s not found", orderID)
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Order, 0)
	for _, order := range r.orders {
		if order.UserID == userID {
			out = append(out, order)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateStatus sets the order's status field.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[orderID]
	if !ok {
		return notFoundf("order %s not found", orderID)
	}
	order.Status = status
	order.UpdatedAt = r.now().UTC()
	r.orders[orderID] = order
	return nil
}

// InsertDropship stores the provider-side order record.
func (r *OrderRepository) InsertDropship(ctx context.Context, dropship domain.DropshipOrder) (domain.DropshipOrder, error) {
	if strings.TrimSpace(dropship.ID) == "" {
		return domain.DropshipOrder{}, errors.New("memory orders: dropship id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.dropships[dropship.ID]; ok {
		return domain.DropshipOrder{}, conflictf("dropship order %s already exists", dropship.ID)
	}

	now := r.now().UTC()
	if dropship.CreatedAt.IsZero() {
		dropship.CreatedAt = now
	}
	dropship.UpdatedAt = now
	r.dropships[dropship.ID] = dropship
	return dropship, nil
}

// FindDropshipByProviderOrderID resolves the provider's order reference.
func (r *OrderRepository) FindDropshipByProviderOrderID(ctx context.Context, provider, providerOrderID string) (domain.DropshipOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, dropship := range r.dropships {
		if dropship.Provider == provider && dropship.ProviderOrderID == providerOrderID {
			return dropship, nil
		}
	}
	return domain.DropshipOrder{}, notFoundf("dropship order %s/%s not found", provider, providerOrderID)
}

// ListDropshipByOrder returns the provider records attached to an order.
func (r *OrderRepository) ListDropshipByOrder(ctx context.Context, orderID string) ([]domain.DropshipOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.DropshipOrder, 0)
	for _, dropship := range r.dropships {
		if dropship.OrderID == orderID {
			out = append(out, dropship)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateDropshipStage records the provider's latest raw stage.
func (r *OrderRepository) UpdateDropshipStage(ctx context.Context, dropshipID, stage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dropship, ok := r.dropships[dropshipID]
	if !ok {
		return notFoundf("dropship order %s not found", dropshipID)
	}
	dropship.Stage = stage
	dropship.UpdatedAt = r.now().UTC()
	r.dropships[dropshipID] = dropship
	return nil
}

// AppendHistory appends one status change row. Rows are never mutated.
func (r *OrderRepository) AppendHistory(ctx context.Context, entry domain.OrderStatusHistory) (domain.OrderStatusHistory, error) {
	if strings.TrimSpace(entry.OrderID) == "" {
		return domain.OrderStatusHistory{}, errors.New("memory orders: history order id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = r.now().UTC()
	}
	r.history[entry.OrderID] = append(r.history[entry.OrderID], entry)
	return entry, nil
}

// ListHistory returns the order's status rows in append order.
func (r *OrderRepository) ListHistory(ctx context.Context, orderID string) ([]domain.OrderStatusHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := r.history[orderID]
	out := make([]domain.OrderStatusHistory, len(rows))
	copy(out, rows)
	return out, nil
}
