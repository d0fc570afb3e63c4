package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	domain "github.com/framelane/api/internal/domain"
)

// QuotePrintArea is the literal print area reference the quoting endpoint
// expects. Order submission uses a different, capitalised convention.
const QuotePrintArea = "default"

// QuoteRequest describes one quoting call against the catalog.
type QuoteRequest struct {
	DestinationCountryCode string             `json:"destinationCountryCode"`
	ShippingMethod         string             `json:"shippingMethod,omitempty"`
	Items                  []QuoteRequestItem `json:"items"`
}

// QuoteRequestItem is one deduplicated line in a quote request.
type QuoteRequestItem struct {
	SKU        string            `json:"sku"`
	Copies     int               `json:"copies"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Assets     []QuoteAsset      `json:"assets"`
}

// QuoteAsset names a print area for quoting purposes.
type QuoteAsset struct {
	PrintArea string `json:"printArea"`
}

// NewQuoteRequestItem builds a request line from a deduplicated quote item.
func NewQuoteRequestItem(item domain.QuoteItem) QuoteRequestItem {
	printArea := item.PrintAreaRef
	if printArea == "" {
		printArea = QuotePrintArea
	}
	return QuoteRequestItem{
		SKU:        item.BaseSKU,
		Copies:     item.Copies,
		Attributes: item.Attributes,
		Assets:     []QuoteAsset{{PrintArea: printArea}},
	}
}

// flexFloat tolerates upstream amounts encoded as either JSON strings or numbers.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*f = 0
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("catalog: parse amount %q: %w", s, err)
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

type quoteCost struct {
	Amount   flexFloat `json:"amount"`
	Currency string    `json:"currency"`
}

type quoteCostSummary struct {
	Items    quoteCost `json:"items"`
	Shipping quoteCost `json:"shipping"`
}

type quoteItemResponse struct {
	SKU      string    `json:"sku"`
	Copies   int       `json:"copies"`
	UnitCost quoteCost `json:"unitCost"`
}

type quoteResponseEntry struct {
	ShipmentMethod string              `json:"shipmentMethod"`
	CostSummary    quoteCostSummary    `json:"costSummary"`
	Items          []quoteItemResponse `json:"items"`
}

type quoteResponse struct {
	Outcome string               `json:"outcome"`
	Quotes  []quoteResponseEntry `json:"quotes"`
}

// GetQuotes requests quotes for the given items. Leaving ShippingMethod empty
// asks the catalog for a cross-method comparison; setting it quotes a single
// method directly.
func (c *Client) GetQuotes(ctx context.Context, quoteReq QuoteRequest) ([]domain.Quote, error) {
	if len(quoteReq.Items) == 0 {
		return nil, errors.New("catalog: quote request requires items")
	}

	req, err := c.newJSONRequest(ctx, http.MethodPost, "/quotes", quoteReq)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, c.errorFromResponse(resp)
	}

	var payload quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("catalog: decode quotes: %w", err)
	}
	if payload.Outcome != "" && !strings.EqualFold(payload.Outcome, "created") {
		return nil, fmt.Errorf("catalog: quote outcome %q", payload.Outcome)
	}

	quotes := make([]domain.Quote, 0, len(payload.Quotes))
	for _, entry := range payload.Quotes {
		quote := domain.Quote{
			ShippingMethod: entry.ShipmentMethod,
			ItemsCost:      float64(entry.CostSummary.Items.Amount),
			ShippingCost:   float64(entry.CostSummary.Shipping.Amount),
			Currency:       entry.CostSummary.Items.Currency,
		}
		if quote.Currency == "" {
			quote.Currency = entry.CostSummary.Shipping.Currency
		}
		for _, item := range entry.Items {
			unit := float64(item.UnitCost.Amount)
			copies := item.Copies
			if copies < 1 {
				copies = 1
			}
			for i := 0; i < copies; i++ {
				quote.UnitCosts = append(quote.UnitCosts, unit)
			}
		}
		quotes = append(quotes, quote)
	}
	return quotes, nil
}
