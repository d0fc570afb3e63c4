package services

import (
	"context"
	"strings"

	domain "github.com/framelane/api/internal/domain"
)

// acrylicGlazeLiteral is the catalog's exact spelling for acrylic glazing.
const acrylicGlazeLiteral = "Acrylic / Perspex"

// frameColorNames are color words customers routinely type into the frame
// style field. A style matching one of these is a misclassified color and is
// never emitted as the frame attribute.
var frameColorNames = map[string]struct{}{
	"black":      {},
	"white":      {},
	"brown":      {},
	"natural":    {},
	"gold":       {},
	"silver":     {},
	"dark grey":  {},
	"light grey": {},
}

// attributeRule binds one configuration field to the catalog's attribute
// vocabulary. Candidates name the catalog keys the field may appear under;
// defaults are tried in order when the catalog requires the attribute and the
// customer left it unset.
type attributeRule struct {
	field        string
	candidates   []string
	defaults     []string
	coupled      string // catalog attribute that must be co-emitted
	lowercase    bool
	translations map[string]string
}

// attributeRules is evaluated in order by both resolution modes. Order
// matters for couplings: mount must be settled before mountColor.
var attributeRules = []attributeRule{
	{field: "size", candidates: []string{"size"}},
	{field: "frameColor", candidates: []string{"color", "frameColour", "frameColor"}},
	{field: "frameStyle", candidates: []string{"frame", "frameStyle"}},
	{field: "material", candidates: []string{"material"}},
	{field: "mount", candidates: []string{"mount"}, defaults: []string{"2.5mm"}, coupled: "mountColor"},
	{field: "mountColor", candidates: []string{"mountColor", "mountColour"}},
	{field: "glaze", candidates: []string{"glaze"}, translations: map[string]string{"acrylic": acrylicGlazeLiteral}},
	{field: "wrap", candidates: []string{"wrap"}, defaults: []string{"ImageWrap", "Black", "White", "MirrorWrap"}, lowercase: true},
	{field: "paperType", candidates: []string{"paperType"}},
	{field: "finish", candidates: []string{"finish"}, defaults: []string{"high gloss", "satin", "mid-gloss", "sheer glossy", "sheer matte"}},
	{field: "edge", candidates: []string{"edge"}},
	{field: "substrateWeight", candidates: []string{"substrateWeight"}},
	{field: "style", candidates: []string{"style"}},
}

// AttributeResolverDeps wires logging into the resolver.
type AttributeResolverDeps struct {
	Logger func(context.Context, string, map[string]any)
}

type attributeResolver struct {
	logger func(context.Context, string, map[string]any)
}

// NewAttributeResolver constructs the resolver. It has no hard dependencies;
// a nil logger falls back to a no-op.
func NewAttributeResolver(deps AttributeResolverDeps) (AttributeResolver, error) {
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &attributeResolver{logger: logger}, nil
}

// Resolve maps the configuration onto catalog attributes. With a schema it
// emits only attributes the catalog lists, using the catalog's exact casing;
// without one it falls back to SKU-pattern heuristics. It never fails.
func (r *attributeResolver) Resolve(ctx context.Context, config FrameConfiguration, product ProductContext) map[string]string {
	if len(product.ValidAttributes) > 0 {
		return r.resolveWithSchema(ctx, config, product)
	}
	return r.resolveHeuristic(ctx, config, product)
}

func (r *attributeResolver) resolveWithSchema(ctx context.Context, config FrameConfiguration, product ProductContext) map[string]string {
	requested := config.Requested()
	out := make(map[string]string)

	for _, rule := range attributeRules {
		catalogKey, validValues := findSchemaAttribute(product.ValidAttributes, rule.candidates)
		if catalogKey == "" {
			continue
		}

		value := requested[rule.field]
		value = rule.translate(value)

		if rule.field == "frameStyle" && isColorWord(value) {
			// A color word in the style field would be rejected by the
			// catalog's frame attribute.
			r.logger(ctx, "attributes.style_as_color", map[string]any{"sku": product.SKU, "value": value})
			value = ""
		}

		emitted, ok := matchValidValue(validValues, value)
		if !ok && value != "" {
			r.logger(ctx, "attributes.dropped", map[string]any{"sku": product.SKU, "attribute": catalogKey, "value": value})
		}
		if !ok && len(rule.defaults) > 0 {
			emitted, ok = firstValidDefault(validValues, rule.defaults)
		}
		if !ok {
			continue
		}

		if rule.lowercase {
			emitted = strings.ToLower(emitted)
		}
		out[catalogKey] = emitted

		if rule.coupled != "" {
			r.emitCoupled(ctx, rule.coupled, requested, product, out)
		}
	}

	return out
}

// emitCoupled forces the coupled attribute whenever its owner was emitted.
// Mount without mountColor is an invalid half-state the catalog rejects.
func (r *attributeResolver) emitCoupled(ctx context.Context, field string, requested map[string]string, product ProductContext, out map[string]string) {
	var rule *attributeRule
	for i := range attributeRules {
		if attributeRules[i].field == field {
			rule = &attributeRules[i]
			break
		}
	}
	if rule == nil {
		return
	}

	catalogKey, validValues := findSchemaAttribute(product.ValidAttributes, rule.candidates)
	if catalogKey == "" || len(validValues) == 0 {
		return
	}
	if _, already := out[catalogKey]; already {
		return
	}

	if emitted, ok := matchValidValue(validValues, requested[field]); ok {
		out[catalogKey] = emitted
		return
	}
	out[catalogKey] = validValues[0]
}

func (r *attributeResolver) resolveHeuristic(ctx context.Context, config FrameConfiguration, product ProductContext) map[string]string {
	productType := product.ProductType
	if productType == "" {
		if classified, ok := domain.ClassifySKU(product.SKU); ok {
			productType = classified
		}
	}

	requested := config.Requested()
	canvasBased := productType == domain.ProductCanvas || productType == domain.ProductFramedCanvas

	out := make(map[string]string)
	for _, rule := range attributeRules {
		// Mount, glaze, and edge do not apply to canvas products and
		// including them fails catalog validation.
		if canvasBased && (rule.field == "mount" || rule.field == "mountColor" || rule.field == "glaze" || rule.field == "edge") {
			continue
		}

		value := rule.translate(requested[rule.field])

		if rule.field == "frameStyle" && isColorWord(value) {
			r.logger(ctx, "attributes.style_as_color", map[string]any{"sku": product.SKU, "value": value})
			value = ""
		}

		switch rule.field {
		case "wrap":
			if productType.RequiresWrap() && value == "" {
				value = "ImageWrap"
			}
		case "finish":
			if productType.RequiresFinish() && value == "" {
				value = "high gloss"
			}
		case "paperType":
			if !productType.UsesPaperType() {
				value = ""
			}
		case "frameStyle":
			if !productType.SupportsFrameStyle() {
				value = ""
			}
		}

		if value == "" {
			continue
		}
		if rule.lowercase {
			value = strings.ToLower(value)
		}
		out[rule.candidates[0]] = strings.TrimSpace(value)
	}

	return out
}

func (rule attributeRule) translate(value string) string {
	value = strings.TrimSpace(value)
	if len(rule.translations) == 0 {
		return value
	}
	if translated, ok := rule.translations[strings.ToLower(value)]; ok {
		return translated
	}
	return value
}

// findSchemaAttribute locates the first candidate key present in the schema,
// comparing case-insensitively but returning the schema's spelling.
func findSchemaAttribute(schema map[string][]string, candidates []string) (string, []string) {
	for _, candidate := range candidates {
		for key, values := range schema {
			if strings.EqualFold(key, candidate) {
				return key, values
			}
		}
	}
	return "", nil
}

// matchValidValue matches case-insensitively and returns the catalog's exact
// casing. Catalogs are case-sensitive on read but inconsistent on write.
func matchValidValue(validValues []string, value string) (string, bool) {
	if value == "" {
		return "", false
	}
	for _, valid := range validValues {
		if strings.EqualFold(valid, value) {
			return valid, true
		}
	}
	return "", false
}

func firstValidDefault(validValues []string, defaults []string) (string, bool) {
	for _, candidate := range defaults {
		if emitted, ok := matchValidValue(validValues, candidate); ok {
			return emitted, true
		}
	}
	if len(validValues) > 0 {
		return validValues[0], true
	}
	return "", false
}

func isColorWord(value string) bool {
	_, ok := frameColorNames[strings.ToLower(strings.TrimSpace(value))]
	return ok
}
