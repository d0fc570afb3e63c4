package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/framelane/api/internal/domain"
	"github.com/framelane/api/internal/platform/httpx"
	"github.com/framelane/api/internal/services"
)

var errBodyTooLarge = errors.New("request body too large")

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, errBodyTooLarge) {
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		return
	}
	httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
}

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, errBodyTooLarge
	}
	return body, nil
}

func decodeJSONBody(body []byte, v any) error {
	if len(body) == 0 {
		return errors.New("request body is required")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid JSON payload: %w", err)
	}
	return nil
}

type configurationPayload struct {
	Size            string `json:"size,omitempty"`
	FrameColor      string `json:"frameColor,omitempty"`
	FrameStyle      string `json:"frameStyle,omitempty"`
	Material        string `json:"material,omitempty"`
	Mount           string `json:"mount,omitempty"`
	MountColor      string `json:"mountColor,omitempty"`
	Glaze           string `json:"glaze,omitempty"`
	Wrap            string `json:"wrap,omitempty"`
	PaperType       string `json:"paperType,omitempty"`
	Finish          string `json:"finish,omitempty"`
	Edge            string `json:"edge,omitempty"`
	SubstrateWeight string `json:"substrateWeight,omitempty"`
	Style           string `json:"style,omitempty"`
}

func (p configurationPayload) toDomain() domain.FrameConfiguration {
	return domain.FrameConfiguration{
		Size:            p.Size,
		FrameColor:      p.FrameColor,
		FrameStyle:      p.FrameStyle,
		Material:        p.Material,
		Mount:           p.Mount,
		MountColor:      p.MountColor,
		Glaze:           p.Glaze,
		Wrap:            p.Wrap,
		PaperType:       p.PaperType,
		Finish:          p.Finish,
		Edge:            p.Edge,
		SubstrateWeight: p.SubstrateWeight,
		Style:           p.Style,
	}
}

func configurationPayloadFrom(config domain.FrameConfiguration) configurationPayload {
	return configurationPayload{
		Size:            config.Size,
		FrameColor:      config.FrameColor,
		FrameStyle:      config.FrameStyle,
		Material:        config.Material,
		Mount:           config.Mount,
		MountColor:      config.MountColor,
		Glaze:           config.Glaze,
		Wrap:            config.Wrap,
		PaperType:       config.PaperType,
		Finish:          config.Finish,
		Edge:            config.Edge,
		SubstrateWeight: config.SubstrateWeight,
		Style:           config.Style,
	}
}

type pricingPayload struct {
	Subtotal         float64  `json:"subtotal"`
	Shipping         float64  `json:"shipping"`
	Tax              float64  `json:"tax"`
	Total            float64  `json:"total"`
	Currency         string   `json:"currency"`
	OriginalCurrency string   `json:"originalCurrency,omitempty"`
	OriginalTotal    float64  `json:"originalTotal,omitempty"`
	ExchangeRate     *float64 `json:"exchangeRate,omitempty"`
}

func pricingPayloadFrom(result services.PricingResult) pricingPayload {
	return pricingPayload{
		Subtotal:         result.Subtotal,
		Shipping:         result.Shipping,
		Tax:              result.Tax,
		Total:            result.Total,
		Currency:         result.Currency,
		OriginalCurrency: result.OriginalCurrency,
		OriginalTotal:    result.OriginalTotal,
		ExchangeRate:     result.ExchangeRate,
	}
}

type priceWarningPayload struct {
	SKU          string  `json:"sku"`
	QuotedPrice  float64 `json:"quotedPrice"`
	CatalogPrice float64 `json:"catalogPrice"`
	Deviation    float64 `json:"deviation"`
}

func priceWarningPayloadsFrom(warnings []services.PriceWarning) []priceWarningPayload {
	if len(warnings) == 0 {
		return nil
	}
	out := make([]priceWarningPayload, 0, len(warnings))
	for _, warning := range warnings {
		out = append(out, priceWarningPayload{
			SKU:          warning.SKU,
			QuotedPrice:  warning.QuotedPrice,
			CatalogPrice: warning.CatalogPrice,
			Deviation:    warning.Deviation,
		})
	}
	return out
}

type addressPayload struct {
	Name        string `json:"name,omitempty"`
	Line1       string `json:"line1"`
	Line2       string `json:"line2,omitempty"`
	City        string `json:"city"`
	State       string `json:"state,omitempty"`
	PostalCode  string `json:"postalCode"`
	CountryCode string `json:"countryCode"`
}

func (p addressPayload) toDomain() domain.Address {
	return domain.Address{
		Name:        p.Name,
		Line1:       p.Line1,
		Line2:       p.Line2,
		City:        p.City,
		State:       p.State,
		PostalCode:  p.PostalCode,
		CountryCode: p.CountryCode,
	}
}

func addressPayloadFrom(address domain.Address) addressPayload {
	return addressPayload{
		Name:        address.Name,
		Line1:       address.Line1,
		Line2:       address.Line2,
		City:        address.City,
		State:       address.State,
		PostalCode:  address.PostalCode,
		CountryCode: address.CountryCode,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
