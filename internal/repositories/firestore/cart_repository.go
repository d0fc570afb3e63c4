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
	cartCollection     = "carts"
	cartItemCollection = "items"
)

// cartItemDocument is the Firestore representation of a cart line.
type cartItemDocument struct {
	UserID        string            `firestore:"userId"`
	ProductID     string            `firestore:"productId"`
	SKU           string            `firestore:"sku"`
	Quantity      int               `firestore:"quantity"`
	DisplayPrice  float64           `firestore:"displayPrice"`
	OriginalPrice float64           `firestore:"originalPrice"`
	Currency      string            `firestore:"currency"`
	Configuration map[string]string `firestore:"configuration,omitempty"`
	CreatedAt     time.Time         `firestore:"createdAt"`
	UpdatedAt     time.Time         `firestore:"updatedAt"`
}

// CartRepository persists cart lines under carts/{userID}/items.
type CartRepository struct {
	provider *pfirestore.Provider
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{provider: provider}, nil
}

func (r *CartRepository) itemsRef(client *firestore.Client, userID string) *firestore.CollectionRef {
	return client.Collection(cartCollection).Doc(userID).Collection(cartItemCollection)
}

// ListItems returns the user's cart lines ordered by creation time.
func (r *CartRepository) ListItems(ctx context.Context, userID string) ([]domain.CartLineItem, error) {
	client, err := r.client(ctx, userID)
	if err != nil {
		return nil, err
	}

	iter := r.itemsRef(client, userID).OrderBy("createdAt", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var out []domain.CartLineItem
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("cart.list", err)
		}
		item, err := decodeCartItem(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// FindItem returns the identified cart line.
func (r *CartRepository) FindItem(ctx context.Context, userID, itemID string) (domain.CartLineItem, error) {
	client, err := r.client(ctx, userID)
	if err != nil {
		return domain.CartLineItem{}, err
	}

	snap, err := r.itemsRef(client, userID).Doc(itemID).Get(ctx)
	if err != nil {
		return domain.CartLineItem{}, pfirestore.WrapError("cart.get", err)
	}
	return decodeCartItem(snap)
}

// FindItemByProduct returns the user's cart line for the given product, if any.
func (r *CartRepository) FindItemByProduct(ctx context.Context, userID, productID string) (domain.CartLineItem, error) {
	client, err := r.client(ctx, userID)
	if err != nil {
		return domain.CartLineItem{}, err
	}

	iter := r.itemsRef(client, userID).Where("productId", "==", productID).Limit(1).Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return domain.CartLineItem{}, pfirestore.NotFoundError("cart.findByProduct", errors.New("no cart item for product "+productID))
	}
	if err != nil {
		return domain.CartLineItem{}, pfirestore.WrapError("cart.findByProduct", err)
	}
	return decodeCartItem(snap)
}

// UpsertItem inserts or replaces a cart line keyed by its ID.
func (r *CartRepository) UpsertItem(ctx context.Context, item domain.CartLineItem) (domain.CartLineItem, error) {
	client, err := r.client(ctx, item.UserID)
	if err != nil {
		return domain.CartLineItem{}, err
	}
	if strings.TrimSpace(item.ID) == "" {
		return domain.CartLineItem{}, errors.New("cart repository: item id is required")
	}

	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	doc := cartItemDocument{
		UserID:        item.UserID,
		ProductID:     item.ProductID,
		SKU:           item.SKU,
		Quantity:      item.Quantity,
		DisplayPrice:  item.DisplayPrice,
		OriginalPrice: item.OriginalPrice,
		Currency:      item.Currency,
		Configuration: item.Configuration.Requested(),
		CreatedAt:     item.CreatedAt,
		UpdatedAt:     item.UpdatedAt,
	}
	if _, err := r.itemsRef(client, item.UserID).Doc(item.ID).Set(ctx, doc); err != nil {
		return domain.CartLineItem{}, pfirestore.WrapError("cart.upsert", err)
	}
	return item, nil
}

// RemoveItem deletes the identified cart line.
func (r *CartRepository) RemoveItem(ctx context.Context, userID, itemID string) error {
	client, err := r.client(ctx, userID)
	if err != nil {
		return err
	}
	if _, err := r.itemsRef(client, userID).Doc(itemID).Delete(ctx); err != nil {
		return pfirestore.WrapError("cart.remove", err)
	}
	return nil
}

// Clear removes every line from the user's cart.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	client, err := r.client(ctx, userID)
	if err != nil {
		return err
	}

	iter := r.itemsRef(client, userID).Documents(ctx)
	defer iter.Stop()

	batch := client.BulkWriter(ctx)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return pfirestore.WrapError("cart.clear", err)
		}
		if _, err := batch.Delete(snap.Ref); err != nil {
			return pfirestore.WrapError("cart.clear", err)
		}
	}
	batch.End()
	return nil
}

func (r *CartRepository) client(ctx context.Context, userID string) (*firestore.Client, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("cart repository: user id is required")
	}
	return r.provider.Client(ctx)
}

func decodeCartItem(snap *firestore.DocumentSnapshot) (domain.CartLineItem, error) {
	var doc cartItemDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.CartLineItem{}, pfirestore.WrapError("cart.decode", err)
	}
	return domain.CartLineItem{
		ID:            snap.Ref.ID,
		UserID:        doc.UserID,
		ProductID:     doc.ProductID,
		SKU:           doc.SKU,
		Quantity:      doc.Quantity,
		DisplayPrice:  doc.DisplayPrice,
		OriginalPrice: doc.OriginalPrice,
		Currency:      doc.Currency,
		Configuration: domain.ConfigurationFromMap(doc.Configuration),
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}, nil
}
