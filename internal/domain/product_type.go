package domain

import "strings"

// ProductType is the closed set of product families the storefront sells.
type ProductType string

const (
	ProductFramedPrint  ProductType = "framed-print"
	ProductCanvas       ProductType = "canvas"
	ProductFramedCanvas ProductType = "framed-canvas"
	ProductMetal        ProductType = "metal"
	ProductAcrylic      ProductType = "acrylic"
	ProductPaper        ProductType = "paper"
)

// skuTypePatterns drive SKU-based classification when no catalog schema is
// available. Order matters: the first matching row wins, so the compound
// framed-canvas patterns sit above the plain canvas ones.
var skuTypePatterns = []struct {
	productType ProductType
	substrings  []string
}{
	{ProductFramedCanvas, []string{"framed-canvas", "framedcanvas", "fra-can"}},
	{ProductCanvas, []string{"canvas", "can-", "stretched"}},
	{ProductMetal, []string{"metal", "alu", "dibond"}},
	{ProductAcrylic, []string{"acrylic", "perspex"}},
	{ProductPaper, []string{"paper", "poster", "fineart", "fine-art", "fap", "print-only"}},
	{ProductFramedPrint, []string{"framed", "fra-", "box-frame"}},
}

// ClassifySKU infers the product type from SKU substring patterns. The
// zero value ("", false) means the SKU matched no known family.
func ClassifySKU(sku string) (ProductType, bool) {
	needle := strings.ToLower(strings.TrimSpace(sku))
	if needle == "" {
		return "", false
	}
	for _, row := range skuTypePatterns {
		for _, sub := range row.substrings {
			if strings.Contains(needle, sub) {
				return row.productType, true
			}
		}
	}
	return "", false
}

// ParseProductType validates an internal product-type slug.
func ParseProductType(slug string) (ProductType, bool) {
	switch ProductType(strings.ToLower(strings.TrimSpace(slug))) {
	case ProductFramedPrint:
		return ProductFramedPrint, true
	case ProductCanvas:
		return ProductCanvas, true
	case ProductFramedCanvas:
		return ProductFramedCanvas, true
	case ProductMetal:
		return ProductMetal, true
	case ProductAcrylic:
		return ProductAcrylic, true
	case ProductPaper:
		return ProductPaper, true
	}
	return "", false
}

// SupportsFrameStyle reports whether frame style is applicable at all.
// Only framed products carry a frame style; every other type resolves to an
// empty set regardless of what the search index reports.
func (t ProductType) SupportsFrameStyle() bool {
	return t == ProductFramedPrint || t == ProductFramedCanvas
}

// RequiresWrap reports whether the type needs a wrap attribute on quotes.
func (t ProductType) RequiresWrap() bool {
	return t == ProductCanvas || t == ProductFramedCanvas
}

// RequiresFinish reports whether the type needs a finish attribute on quotes.
func (t ProductType) RequiresFinish() bool {
	return t == ProductMetal || t == ProductAcrylic
}

// UsesPaperType reports whether paper stock selection applies.
func (t ProductType) UsesPaperType() bool {
	return t == ProductPaper || t == ProductFramedPrint
}
