package services

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/framelane/api/internal/catalog"
	"github.com/framelane/api/internal/domain"
)

// FacetSearcher is the slice of the catalog client the options resolver needs.
type FacetSearcher interface {
	SearchFacets(ctx context.Context, query catalog.FacetQuery) (map[string][]catalog.FacetValue, error)
}

const defaultOptionsTTL = 5 * time.Minute

// catalogTypeNames maps internal product types to the display names the
// search index stores under productType.
var catalogTypeNames = map[ProductType][]string{
	domain.ProductFramedPrint:  {"Framed prints"},
	domain.ProductCanvas:       {"Stretched canvas"},
	domain.ProductFramedCanvas: {"Framed canvas"},
	domain.ProductMetal:        {"Aluminium prints", "Dibond prints"},
	domain.ProductAcrylic:      {"Acrylic prints", "Perspex prints"},
	domain.ProductPaper:        {"Fine art prints", "Posters"},
}

// facetFields lists every option family together with the index field that
// aggregates it. The slice keeps request order stable for cache-friendly
// upstream behaviour.
var facetFields = []struct {
	family string
	field  string
}{
	{"frameColors", "attributes/color"},
	{"frameStyles", "attributes/frame"},
	{"mounts", "attributes/mount"},
	{"mountColors", "attributes/mountColour"},
	{"glazes", "attributes/glaze"},
	{"wraps", "attributes/wrap"},
	{"finishes", "attributes/finish"},
	{"paperTypes", "attributes/paperType"},
	{"edges", "attributes/edge"},
	{"sizes", "size"},
	{"aspectRatios", "aspectRatio"},
}

// fallbackOptionValues is the static per-product-type offering used whenever
// the live index has nothing for a family.
var fallbackOptionValues = map[ProductType]map[string][]string{
	domain.ProductFramedPrint: {
		"frameColors": {"Black", "White", "Brown", "Natural", "Gold", "Silver"},
		"frameStyles": {"Classic", "Box Frame", "Float Frame", "Ornate Frame", "Aluminium", "Budget", "Spacer"},
		"mounts":      {"2.5mm", "1.4mm"},
		"mountColors": {"Snow White", "Off-White", "Black"},
		"glazes":      {"Acrylic / Perspex", "Float Glass", "Motif"},
		"paperTypes":  {"Enhanced Matte", "Smooth Art", "Photo Lustre"},
	},
	domain.ProductCanvas: {
		"wraps": {"ImageWrap", "Black", "White", "MirrorWrap"},
		"edges": {"19mm Standard Stretcher Bar", "38mm Gallery Stretcher Bar"},
	},
	domain.ProductFramedCanvas: {
		"frameColors": {"Black", "White", "Natural", "Gold", "Silver"},
		"frameStyles": {"Classic", "Box Frame", "Float Frame"},
		"wraps":       {"ImageWrap", "Black", "White", "MirrorWrap"},
	},
	domain.ProductMetal: {
		"finishes": {"high gloss", "satin", "mid-gloss"},
	},
	domain.ProductAcrylic: {
		"finishes": {"high gloss", "sheer glossy", "sheer matte"},
	},
	domain.ProductPaper: {
		"paperTypes": {"Enhanced Matte", "Smooth Art", "Photo Lustre", "Poster Paper"},
	},
}

// frameStyleCanonical maps cleaned facet values onto the canonical frame
// style set shown to shoppers.
var frameStyleCanonical = map[string]string{
	"classic":   "Classic",
	"box":       "Box Frame",
	"float":     "Float Frame",
	"floating":  "Float Frame",
	"ornate":    "Ornate Frame",
	"aluminium": "Aluminium",
	"aluminum":  "Aluminium",
	"budget":    "Budget",
	"spacer":    "Spacer",
}

type optionsResolver struct {
	search FacetSearcher
	logger func(context.Context, string, map[string]any)
	cache  *optionsCache
}

type OptionsResolverDeps struct {
	Search   FacetSearcher
	CacheTTL time.Duration
	Clock    func() time.Time
	Logger   func(context.Context, string, map[string]any)
}

func NewOptionsResolver(deps OptionsResolverDeps) (OptionsResolver, error) {
	if deps.Search == nil {
		return nil, errors.New("options resolver: facet searcher is required")
	}
	ttl := deps.CacheTTL
	if ttl <= 0 {
		ttl = defaultOptionsTTL
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &optionsResolver{
		search: deps.Search,
		logger: logger,
		cache:  newOptionsCache(ttl, func() time.Time { return clock().UTC() }),
	}, nil
}

func (r *optionsResolver) AvailableOptions(ctx context.Context, productType ProductType, countryCode string, extraFilters map[string]string) (AvailableOptions, error) {
	if _, ok := catalogTypeNames[productType]; !ok {
		return AvailableOptions{}, errors.New("options resolver: unknown product type " + string(productType))
	}
	countryCode = strings.ToUpper(strings.TrimSpace(countryCode))

	key := optionsCacheKey(productType, countryCode, extraFilters)
	if cached, ok := r.cache.Get(key); ok {
		return cached, nil
	}

	live := r.fetchFacets(ctx, productType, countryCode, extraFilters)
	options := r.merge(ctx, productType, live)
	r.cache.Set(key, options)
	return options, nil
}

// fetchFacets queries the search index; a degraded index yields an empty map
// so the static fallbacks take over field by field.
func (r *optionsResolver) fetchFacets(ctx context.Context, productType ProductType, countryCode string, extraFilters map[string]string) map[string][]catalog.FacetValue {
	clauses := []string{catalog.SearchIn("productType", catalogTypeNames[productType])}
	if countryCode != "" {
		clauses = append(clauses, catalog.SearchIn("destinationCountries", []string{countryCode}))
	}
	for _, field := range sortedKeys(extraFilters) {
		if value := strings.TrimSpace(extraFilters[field]); value != "" {
			clauses = append(clauses, catalog.SearchIn(field, []string{value}))
		}
	}

	facets := make([]string, 0, len(facetFields))
	for _, ff := range facetFields {
		facets = append(facets, ff.field)
	}

	result, err := r.search.SearchFacets(ctx, catalog.FacetQuery{
		Filter: catalog.AndFilters(clauses...),
		Facets: facets,
	})
	if err != nil {
		r.logger(ctx, "options.facets.failed", map[string]any{
			"product_type": string(productType),
			"country":      countryCode,
			"error":        err.Error(),
		})
		return nil
	}
	return result
}

// merge builds the final option sets, preferring non-empty live facet data
// per field and substituting the static fallback otherwise.
func (r *optionsResolver) merge(ctx context.Context, productType ProductType, live map[string][]catalog.FacetValue) AvailableOptions {
	fallback := fallbackOptionValues[productType]

	pick := func(family, field string) OptionSet {
		liveValues := facetValueList(live[field])
		if family == "frameStyles" {
			liveValues = normalizeFrameStyles(ctx, r.logger, liveValues)
		}
		fallbackValues := fallback[family]
		if (len(liveValues) > 0) != (len(fallbackValues) > 0) {
			r.logger(ctx, "options.facet_disagreement", map[string]any{
				"product_type": string(productType),
				"family":       family,
				"live":         len(liveValues) > 0,
				"fallback":     len(fallbackValues) > 0,
			})
		}
		if len(liveValues) > 0 {
			return OptionSet{Values: liveValues, Source: domain.OptionSourceFacets}
		}
		return OptionSet{Values: append([]string(nil), fallbackValues...), Source: domain.OptionSourceFallback}
	}

	options := AvailableOptions{ProductType: productType}
	for _, ff := range facetFields {
		switch ff.family {
		case "frameColors":
			options.FrameColors = pick(ff.family, ff.field)
		case "frameStyles":
			if productType.SupportsFrameStyle() {
				options.FrameStyles = pick(ff.family, ff.field)
			} else {
				options.FrameStyles = OptionSet{Source: domain.OptionSourceFallback}
			}
		case "mounts":
			options.Mounts = pick(ff.family, ff.field)
		case "mountColors":
			options.MountColors = pick(ff.family, ff.field)
		case "glazes":
			options.Glazes = pick(ff.family, ff.field)
		case "wraps":
			options.Wraps = pick(ff.family, ff.field)
		case "finishes":
			options.Finishes = pick(ff.family, ff.field)
		case "paperTypes":
			options.PaperTypes = pick(ff.family, ff.field)
		case "edges":
			options.Edges = pick(ff.family, ff.field)
		case "sizes":
			options.Sizes = pick(ff.family, ff.field)
		case "aspectRatios":
			options.AspectRatios = aspectRatioSet(live[ff.field])
		}
	}
	return options
}

// aspectRatioSet buckets the numeric index ratios; absent data offers every
// bucket.
func aspectRatioSet(values []catalog.FacetValue) OptionSet {
	seen := make(map[domain.AspectRatioBucket]bool, 3)
	for _, fv := range values {
		ratio, err := strconv.ParseFloat(strings.TrimSpace(fv.Value), 64)
		if err != nil || fv.Count <= 0 {
			continue
		}
		seen[domain.BucketAspectRatio(ratio)] = true
	}
	if len(seen) == 0 {
		return OptionSet{Values: domain.AllAspectRatioBuckets(), Source: domain.OptionSourceFallback}
	}
	buckets := make([]string, 0, len(seen))
	for _, bucket := range []domain.AspectRatioBucket{domain.AspectPortrait, domain.AspectSquare, domain.AspectLandscape} {
		if seen[bucket] {
			buckets = append(buckets, string(bucket))
		}
	}
	return OptionSet{Values: buckets, Source: domain.OptionSourceFacets}
}

// normalizeFrameStyles strips stretcher-bar and thickness suffixes, drops
// rolled/unframed entries, and maps the rest onto the canonical style set.
func normalizeFrameStyles(ctx context.Context, logger func(context.Context, string, map[string]any), raw []string) []string {
	seen := make(map[string]bool, len(raw))
	styles := make([]string, 0, len(raw))
	for _, value := range raw {
		canonical, ok := canonicalFrameStyle(value)
		if !ok {
			continue
		}
		if canonical == "" {
			logger(ctx, "options.frame_style.unmapped", map[string]any{"value": value})
			continue
		}
		if !seen[canonical] {
			seen[canonical] = true
			styles = append(styles, canonical)
		}
	}
	return styles
}

// canonicalFrameStyle returns ("", false) for values that describe the lack
// of a frame and ("", true) for frame-like values that match no canonical
// style.
func canonicalFrameStyle(raw string) (string, bool) {
	value := strings.TrimSpace(raw)
	if idx := strings.Index(value, ","); idx >= 0 {
		value = strings.TrimSpace(value[:idx])
	}
	lower := strings.ToLower(value)
	if lower == "" ||
		strings.Contains(lower, "rolled") ||
		strings.Contains(lower, "no frame") ||
		strings.Contains(lower, "unframed") ||
		strings.Contains(lower, "stretcher") {
		return "", false
	}
	lower = strings.TrimSpace(strings.TrimSuffix(lower, "frame"))
	if canonical, ok := frameStyleCanonical[lower]; ok {
		return canonical, true
	}
	if canonical, ok := frameStyleCanonical[strings.ToLower(value)]; ok {
		return canonical, true
	}
	return "", true
}

func facetValueList(values []catalog.FacetValue) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, fv := range values {
		value := strings.TrimSpace(fv.Value)
		if value == "" || fv.Count <= 0 || seen[value] {
			continue
		}
		seen[value] = true
		out = append(out, value)
	}
	return out
}

func optionsCacheKey(productType ProductType, countryCode string, extraFilters map[string]string) string {
	filters := "{}"
	if len(extraFilters) > 0 {
		// json.Marshal sorts map keys, so equal filter sets share a key.
		if encoded, err := json.Marshal(extraFilters); err == nil {
			filters = string(encoded)
		}
	}
	return string(productType) + "|" + countryCode + "|" + filters
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

type optionsCache struct {
	ttl time.Duration
	now func() time.Time
	mu  sync.RWMutex
	m   map[string]optionsCacheEntry
}

type optionsCacheEntry struct {
	options AvailableOptions
	expires time.Time
}

func newOptionsCache(ttl time.Duration, now func() time.Time) *optionsCache {
	return &optionsCache{
		ttl: ttl,
		now: now,
		m:   make(map[string]optionsCacheEntry),
	}
}

func (c *optionsCache) Get(key string) (AvailableOptions, bool) {
	c.mu.RLock()
	entry, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return AvailableOptions{}, false
	}
	if c.now().After(entry.expires) {
		return AvailableOptions{}, false
	}
	return entry.options, true
}

func (c *optionsCache) Set(key string, options AvailableOptions) {
	c.mu.Lock()
	c.m[key] = optionsCacheEntry{options: options, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
}
