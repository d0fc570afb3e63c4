package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/framelane/api/internal/domain"
	"github.com/framelane/api/internal/platform/httpx"
	"github.com/framelane/api/internal/platform/textutil"
	"github.com/framelane/api/internal/services"
)

// OptionsHandlers serves the per-product-type option availability endpoint.
type OptionsHandlers struct {
	options services.OptionsResolver
}

// NewOptionsHandlers constructs handlers backed by the options resolver.
func NewOptionsHandlers(options services.OptionsResolver) *OptionsHandlers {
	return &OptionsHandlers{options: options}
}

// Routes wires the /options endpoints onto the provided router.
func (h *OptionsHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{productType}", h.getOptions)
}

type optionSetPayload struct {
	Values []string `json:"values"`
	Source string   `json:"source"`
}

type optionsPayload struct {
	ProductType  string           `json:"productType"`
	Country      string           `json:"country"`
	FrameColors  optionSetPayload `json:"frameColors"`
	FrameStyles  optionSetPayload `json:"frameStyles"`
	Mounts       optionSetPayload `json:"mounts"`
	MountColors  optionSetPayload `json:"mountColors"`
	Glazes       optionSetPayload `json:"glazes"`
	Wraps        optionSetPayload `json:"wraps"`
	Finishes     optionSetPayload `json:"finishes"`
	PaperTypes   optionSetPayload `json:"paperTypes"`
	Edges        optionSetPayload `json:"edges"`
	Sizes        optionSetPayload `json:"sizes"`
	AspectRatios optionSetPayload `json:"aspectRatios"`
}

func optionSetPayloadFrom(set domain.OptionSet) optionSetPayload {
	values := set.Values
	if values == nil {
		values = []string{}
	}
	return optionSetPayload{Values: values, Source: string(set.Source)}
}

func (h *OptionsHandlers) getOptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	productType, ok := domain.ParseProductType(chi.URLParam(r, "productType"))
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unknown_product_type", "unknown product type", http.StatusBadRequest))
		return
	}

	query := r.URL.Query()
	country := strings.TrimSpace(query.Get("country"))
	if country == "" {
		httpx.WriteError(ctx, w, httpx.NewError("missing_country", "country query parameter is required", http.StatusBadRequest))
		return
	}

	filters := make(map[string]string)
	for key, values := range query {
		if key == "country" || len(values) == 0 {
			continue
		}
		filters[key] = values[0]
	}
	filters = textutil.NormalizeStringMap(filters)

	options, err := h.options.AvailableOptions(ctx, productType, country, filters)
	if err != nil {
		httpx.WriteDomainError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, optionsPayload{
		ProductType:  string(options.ProductType),
		Country:      strings.ToUpper(country),
		FrameColors:  optionSetPayloadFrom(options.FrameColors),
		FrameStyles:  optionSetPayloadFrom(options.FrameStyles),
		Mounts:       optionSetPayloadFrom(options.Mounts),
		MountColors:  optionSetPayloadFrom(options.MountColors),
		Glazes:       optionSetPayloadFrom(options.Glazes),
		Wraps:        optionSetPayloadFrom(options.Wraps),
		Finishes:     optionSetPayloadFrom(options.Finishes),
		PaperTypes:   optionSetPayloadFrom(options.PaperTypes),
		Edges:        optionSetPayloadFrom(options.Edges),
		Sizes:        optionSetPayloadFrom(options.Sizes),
		AspectRatios: optionSetPayloadFrom(options.AspectRatios),
	})
}
