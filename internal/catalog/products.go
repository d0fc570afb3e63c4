package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ProductDetails is the catalog's authoritative view of one base SKU,
// including the valid values per attribute used by schema-aware resolution.
type ProductDetails struct {
	SKU         string              `json:"sku"`
	Description string              `json:"description"`
	Attributes  map[string][]string `json:"attributes"`
}

// GetProductDetails fetches the product-detail record for a base SKU.
func (c *Client) GetProductDetails(ctx context.Context, sku string) (ProductDetails, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return ProductDetails{}, errors.New("catalog: sku is required")
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/products/"+url.PathEscape(sku), nil)
	if err != nil {
		return ProductDetails{}, err
	}
	resp, err := c.do(req)
	if err != nil {
		return ProductDetails{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ProductDetails{}, fmt.Errorf("catalog: product %s not found", sku)
	}
	if resp.StatusCode != http.StatusOK {
		return ProductDetails{}, c.errorFromResponse(resp)
	}

	// Product responses wrap the record under "product" on some catalog
	// versions and return it bare on others.
	var payload struct {
		Product *ProductDetails `json:"product"`
		ProductDetails
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return ProductDetails{}, fmt.Errorf("catalog: decode product %s: %w", sku, err)
	}
	if payload.Product != nil {
		return *payload.Product, nil
	}
	return payload.ProductDetails, nil
}
