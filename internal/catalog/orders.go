package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	domain "github.com/framelane/api/internal/domain"
)

// OrderPrintArea is the capitalised print area reference order submission
// expects, unlike quoting which uses the lowercase literal.
const OrderPrintArea = "Default"

// OrderRequest submits a dropship order to the catalog for fulfilment.
type OrderRequest struct {
	MerchantReference string             `json:"merchantReference"`
	ShippingMethod    string             `json:"shippingMethod"`
	Recipient         OrderRecipient     `json:"recipient"`
	Items             []OrderRequestItem `json:"items"`
}

// OrderRecipient is the shipping destination for a dropship order.
type OrderRecipient struct {
	Name    string       `json:"name"`
	Address OrderAddress `json:"address"`
}

// OrderAddress is the catalog's address shape.
type OrderAddress struct {
	Line1           string `json:"line1"`
	Line2           string `json:"line2,omitempty"`
	TownOrCity      string `json:"townOrCity"`
	StateOrCounty   string `json:"stateOrCounty,omitempty"`
	PostalOrZipCode string `json:"postalOrZipCode"`
	CountryCode     string `json:"countryCode"`
}

// OrderRequestItem is one fulfilment line; unlike quote lines, assets must
// carry the artwork URL.
type OrderRequestItem struct {
	SKU        string            `json:"sku"`
	Copies     int               `json:"copies"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Assets     []OrderAsset      `json:"assets"`
}

// OrderAsset points the printer at the artwork for one print area.
type OrderAsset struct {
	PrintArea string `json:"printArea"`
	URL       string `json:"url"`
}

// OrderResult is the catalog's view of a submitted order.
type OrderResult struct {
	ID     string `json:"id"`
	Stage  string `json:"stage"`
	Status string `json:"status"`
}

// NewOrderRecipient builds a catalog recipient from a domain address.
func NewOrderRecipient(address domain.Address) OrderRecipient {
	return OrderRecipient{
		Name: address.Name,
		Address: OrderAddress{
			Line1:           address.Line1,
			Line2:           address.Line2,
			TownOrCity:      address.City,
			StateOrCounty:   address.State,
			PostalOrZipCode: address.PostalCode,
			CountryCode:     address.CountryCode,
		},
	}
}

// CreateOrder submits a dropship order and returns the provider's reference.
func (c *Client) CreateOrder(ctx context.Context, orderReq OrderRequest) (OrderResult, error) {
	if len(orderReq.Items) == 0 {
		return OrderResult{}, errors.New("catalog: order request requires items")
	}
	for _, item := range orderReq.Items {
		for _, asset := range item.Assets {
			if strings.TrimSpace(asset.URL) == "" {
				return OrderResult{}, fmt.Errorf("catalog: order item %s asset is missing a url", item.SKU)
			}
		}
	}

	req, err := c.newJSONRequest(ctx, http.MethodPost, "/orders", orderReq)
	if err != nil {
		return OrderResult{}, err
	}
	resp, err := c.do(req)
	if err != nil {
		return OrderResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return OrderResult{}, c.errorFromResponse(resp)
	}
	return decodeOrderResult(resp)
}

// GetOrder fetches the provider's current view of a dropship order.
func (c *Client) GetOrder(ctx context.Context, providerOrderID string) (OrderResult, error) {
	providerOrderID = strings.TrimSpace(providerOrderID)
	if providerOrderID == "" {
		return OrderResult{}, errors.New("catalog: provider order id is required")
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/orders/"+url.PathEscape(providerOrderID), nil)
	if err != nil {
		return OrderResult{}, err
	}
	resp, err := c.do(req)
	if err != nil {
		return OrderResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return OrderResult{}, c.errorFromResponse(resp)
	}
	return decodeOrderResult(resp)
}

func decodeOrderResult(resp *http.Response) (OrderResult, error) {
	var payload struct {
		Outcome string       `json:"outcome"`
		Order   *OrderResult `json:"order"`
		OrderResult
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return OrderResult{}, fmt.Errorf("catalog: decode order: %w", err)
	}
	if payload.Order != nil {
		return *payload.Order, nil
	}
	return payload.OrderResult, nil
}
