package assets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const defaultURLExpiry = 15 * time.Minute

var (
	errNoSigner         = errors.New("assets: url signer is required")
	errInvalidProductID = errors.New("assets: product id is required")
)

// URLSigner issues signed object URLs. *storage.BucketHandle satisfies it.
type URLSigner interface {
	SignedURL(object string, opts *storage.SignedURLOptions) (string, error)
}

// Store resolves printable artwork locations for products. Fulfilment hands
// the signed URL to the provider, so the expiry must outlive order submission.
type Store struct {
	signer URLSigner
	expiry time.Duration
	now    func() time.Time
}

// StoreOption customises store behaviour.
type StoreOption func(*Store)

// WithURLExpiry overrides the signed URL lifetime.
func WithURLExpiry(expiry time.Duration) StoreOption {
	return func(s *Store) {
		if expiry > 0 {
			s.expiry = expiry
		}
	}
}

// WithStoreClock injects a custom clock (useful for tests).
func WithStoreClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewStore constructs an artwork store over a signed URL issuer.
func NewStore(signer URLSigner, opts ...StoreOption) (*Store, error) {
	if signer == nil {
		return nil, errNoSigner
	}
	store := &Store{
		signer: signer,
		expiry: defaultURLExpiry,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

// AssetURL returns a signed download URL for the product's print artwork.
func (s *Store) AssetURL(_ context.Context, productID string) (string, error) {
	object, err := ArtworkObjectPath(productID)
	if err != nil {
		return "", err
	}
	url, err := s.signer.SignedURL(object, &storage.SignedURLOptions{
		Method:  http.MethodGet,
		Expires: s.now().UTC().Add(s.expiry),
		Scheme:  storage.SigningSchemeV4,
	})
	if err != nil {
		return "", fmt.Errorf("assets: sign artwork url for %s: %w", productID, err)
	}
	return url, nil
}

// ArtworkObjectPath maps a product to its canonical artwork object name.
// Product ids never contain path separators.
func ArtworkObjectPath(productID string) (string, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" || strings.ContainsAny(productID, "/\\") {
		return "", errInvalidProductID
	}
	return fmt.Sprintf("products/%s/artwork.png", productID), nil
}
