package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/framelane/api/internal/domain"
	pfirestore "github.com/framelane/api/internal/platform/firestore"
)

const (
	orderCollection    = "orders"
	historyCollection  = "statusHistory"
	dropshipCollection = "dropshipOrders"
)

type orderDocument struct {
	UserID         string          `firestore:"userId"`
	OrderNumber    string          `firestore:"orderNumber"`
	Status         string          `firestore:"status"`
	Currency       string          `firestore:"currency"`
	Subtotal       float64         `firestore:"subtotal"`
	Shipping       float64         `firestore:"shipping"`
	Tax            float64         `firestore:"tax"`
	Total          float64         `firestore:"total"`
	ShippingMethod string          `firestore:"shippingMethod"`
	Items          []orderItemDoc  `firestore:"items"`
	Address        orderAddressDoc `firestore:"shippingAddress"`
	CreatedAt      time.Time       `firestore:"createdAt"`
	UpdatedAt      time.Time       `firestore:"updatedAt"`
}

type orderItemDoc struct {
	ID            string            `firestore:"id"`
	ProductID     string            `firestore:"productId"`
	SKU           string            `firestore:"sku"`
	Quantity      int               `firestore:"quantity"`
	UnitPrice     float64           `firestore:"unitPrice"`
	Currency      string            `firestore:"currency"`
	Configuration map[string]string `firestore:"configuration,omitempty"`
}

type orderAddressDoc struct {
	Name        string `firestore:"name,omitempty"`
	Line1       string `firestore:"line1"`
	Line2       string `firestore:"line2,omitempty"`
	City        string `firestore:"city"`
	State       string `firestore:"state,omitempty"`
	PostalCode  string `firestore:"postalCode"`
	CountryCode string `firestore:"countryCode"`
}

type historyDocument struct {
	OrderID        string    `firestore:"orderId"`
	Status         string    `firestore:"status"`
	PreviousStatus string    `firestore:"previousStatus,omitempty"`
	Source         string    `firestore:"source"`
	OccurredAt     time.Time `firestore:"occurredAt"`
}

type dropshipDocument struct {
	OrderID         string    `firestore:"orderId"`
	Provider        string    `firestore:"provider"`
	ProviderOrderID string    `firestore:"providerOrderId"`
	Stage           string    `firestore:"stage"`
	CreatedAt       time.Time `firestore:"createdAt"`
	UpdatedAt       time.Time `firestore:"updatedAt"`
}

// OrderRepository persists orders, dropship counterparts, and status history in Firestore.
type OrderRepository struct {
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{provider: provider}, nil
}

// Insert stores a new order. Inserting an existing ID is a conflict.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	if strings.TrimSpace(order.ID) == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Order{}, err
	}

	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	if _, err := client.Collection(orderCollection).Doc(order.ID).Create(ctx, encodeOrder(order)); err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.insert", err)
	}
	return order, nil
}

// FindByID returns the identified order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Order{}, err
	}

	snap, err := client.Collection(orderCollection).Doc(orderID).Get(ctx)
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.get", err)
	}
	return decodeOrder(snap)
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}

	iter := client.Collection(orderCollection).
		Where("userId", "==", userID).
		OrderBy("createdAt", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	var out []domain.Order
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("orders.list", err)
		}
		order, err := decodeOrder(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, order)
	}
	return out, nil
}

// UpdateStatus sets the order's status field.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}

	_, err = client.Collection(orderCollection).Doc(orderID).Update(ctx, []firestore.Update{
		{Path: "status", Value: string(status)},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
	return pfirestore.WrapError("orders.updateStatus", err)
}

// InsertDropship stores the provider-side order record.
func (r *OrderRepository) InsertDropship(ctx context.Context, dropship domain.DropshipOrder) (domain.DropshipOrder, error) {
	if strings.TrimSpace(dropship.ID) == "" {
		return domain.DropshipOrder{}, errors.New("order repository: dropship id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.DropshipOrder{}, err
	}

	now := time.Now().UTC()
	if dropship.CreatedAt.IsZero() {
		dropship.CreatedAt = now
	}
	dropship.UpdatedAt = now

	doc := dropshipDocument{
		OrderID:         dropship.OrderID,
		Provider:        dropship.Provider,
		ProviderOrderID: dropship.ProviderOrderID,
		Stage:           dropship.Stage,
		CreatedAt:       dropship.CreatedAt,
		UpdatedAt:       dropship.UpdatedAt,
	}
	if _, err := client.Collection(dropshipCollection).Doc(dropship.ID).Create(ctx, doc); err != nil {
		return domain.DropshipOrder{}, pfirestore.WrapError("orders.insertDropship", err)
	}
	return dropship, nil
}

// FindDropshipByProviderOrderID resolves the provider's order reference.
func (r *OrderRepository) FindDropshipByProviderOrderID(ctx context.Context, provider, providerOrderID string) (domain.DropshipOrder, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.DropshipOrder{}, err
	}

	iter := client.Collection(dropshipCollection).
		Where("provider", "==", provider).
		Where("providerOrderId", "==", providerOrderID).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return domain.DropshipOrder{}, pfirestore.NotFoundError("orders.findDropship",
			errors.New("dropship order "+provider+"/"+providerOrderID+" not found"))
	}
	if err != nil {
		return domain.DropshipOrder{}, pfirestore.WrapError("orders.findDropship", err)
	}
	return decodeDropship(snap)
}

// ListDropshipByOrder returns the provider records attached to an order.
func (r *OrderRepository) ListDropshipByOrder(ctx context.Context, orderID string) ([]domain.DropshipOrder, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}

	iter := client.Collection(dropshipCollection).Where("orderId", "==", orderID).Documents(ctx)
	defer iter.Stop()

	var out []domain.DropshipOrder
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("orders.listDropship", err)
		}
		dropship, err := decodeDropship(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, dropship)
	}
	return out, nil
}

// UpdateDropshipStage records the provider's latest raw stage.
func (r *OrderRepository) UpdateDropshipStage(ctx context.Context, dropshipID, stage string) error {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}

	_, err = client.Collection(dropshipCollection).Doc(dropshipID).Update(ctx, []firestore.Update{
		{Path: "stage", Value: stage},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
	return pfirestore.WrapError("orders.updateDropshipStage", err)
}

// AppendHistory appends one status change row under the order document.
func (r *OrderRepository) AppendHistory(ctx context.Context, entry domain.OrderStatusHistory) (domain.OrderStatusHistory, error) {
	if strings.TrimSpace(entry.OrderID) == "" {
		return domain.OrderStatusHistory{}, errors.New("order repository: history order id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.OrderStatusHistory{}, err
	}

	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}

	doc := historyDocument{
		OrderID:        entry.OrderID,
		Status:         string(entry.Status),
		PreviousStatus: string(entry.PreviousStatus),
		Source:         entry.Source,
		OccurredAt:     entry.OccurredAt,
	}

	ref := client.Collection(orderCollection).Doc(entry.OrderID).Collection(historyCollection).Doc(entry.ID)
	if entry.ID == "" {
		ref = client.Collection(orderCollection).Doc(entry.OrderID).Collection(historyCollection).NewDoc()
		entry.ID = ref.ID
	}
	if _, err := ref.Create(ctx, doc); err != nil {
		return domain.OrderStatusHistory{}, pfirestore.WrapError("orders.appendHistory", err)
	}
	return entry, nil
}

// ListHistory returns the order's status rows oldest first.
func (r *OrderRepository) ListHistory(ctx context.Context, orderID string) ([]domain.OrderStatusHistory, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}

	iter := client.Collection(orderCollection).Doc(orderID).Collection(historyCollection).
		OrderBy("occurredAt", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var out []domain.OrderStatusHistory
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("orders.listHistory", err)
		}
		var doc historyDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, pfirestore.WrapError("orders.listHistory", err)
		}
		out = append(out, domain.OrderStatusHistory{
			ID:             snap.Ref.ID,
			OrderID:        doc.OrderID,
			Status:         domain.OrderStatus(doc.Status),
			PreviousStatus: domain.OrderStatus(doc.PreviousStatus),
			Source:         doc.Source,
			OccurredAt:     doc.OccurredAt,
		})
	}
	return out, nil
}

func encodeOrder(order domain.Order) orderDocument {
	items := make([]orderItemDoc, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDoc{
			ID:            item.ID,
			ProductID:     item.ProductID,
			SKU:           item.SKU,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			Currency:      item.Currency,
			Configuration: item.Configuration.Requested(),
		})
	}
	return orderDocument{
		UserID:         order.UserID,
		OrderNumber:    order.OrderNumber,
		Status:         string(order.Status),
		Currency:       order.Currency,
		Subtotal:       order.Subtotal,
		Shipping:       order.Shipping,
		Tax:            order.Tax,
		Total:          order.Total,
		ShippingMethod: order.ShippingMethod,
		Items:          items,
		Address: orderAddressDoc{
			Name:        order.ShippingAddress.Name,
			Line1:       order.ShippingAddress.Line1,
			Line2:       order.ShippingAddress.Line2,
			City:        order.ShippingAddress.City,
			State:       order.ShippingAddress.State,
			PostalCode:  order.ShippingAddress.PostalCode,
			CountryCode: order.ShippingAddress.CountryCode,
		},
		CreatedAt: order.CreatedAt,
		UpdatedAt: order.UpdatedAt,
	}
}

func decodeOrder(snap *firestore.DocumentSnapshot) (domain.Order, error) {
	var doc orderDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.decode", err)
	}

	items := make([]domain.OrderItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, domain.OrderItem{
			ID:            item.ID,
			OrderID:       snap.Ref.ID,
			ProductID:     item.ProductID,
			SKU:           item.SKU,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			Currency:      item.Currency,
			Configuration: domain.ConfigurationFromMap(item.Configuration),
		})
	}

	return domain.Order{
		ID:             snap.Ref.ID,
		UserID:         doc.UserID,
		OrderNumber:    doc.OrderNumber,
		Status:         domain.OrderStatus(doc.Status),
		Currency:       doc.Currency,
		Subtotal:       doc.Subtotal,
		Shipping:       doc.Shipping,
		Tax:            doc.Tax,
		Total:          doc.Total,
		ShippingMethod: doc.ShippingMethod,
		Items:          items,
		ShippingAddress: domain.Address{
			Name:        doc.Address.Name,
			Line1:       doc.Address.Line1,
			Line2:       doc.Address.Line2,
			City:        doc.Address.City,
			State:       doc.Address.State,
			PostalCode:  doc.Address.PostalCode,
			CountryCode: doc.Address.CountryCode,
		},
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

func decodeDropship(snap *firestore.DocumentSnapshot) (domain.DropshipOrder, error) {
	var doc dropshipDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.DropshipOrder{}, pfirestore.WrapError("orders.decodeDropship", err)
	}
	return domain.DropshipOrder{
		ID:              snap.Ref.ID,
		OrderID:         doc.OrderID,
		Provider:        doc.Provider,
		ProviderOrderID: doc.ProviderOrderID,
		Stage:           doc.Stage,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}, nil
}
