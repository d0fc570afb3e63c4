package domain

import (
	"regexp"
	"strings"
)

// Unique SKUs optionally carry an 8-hex-digit suffix identifying the source
// image. The catalog's quote and order endpoints reject suffixed SKUs, so
// everything leaving the storefront uses the base form.
var skuImageSuffix = regexp.MustCompile(`^(.+)-[a-f0-9]{8}$`)

// BaseSKU strips the internal image-identifier suffix from a SKU. Idempotent:
// a SKU already in base form is returned unchanged.
func BaseSKU(sku string) string {
	trimmed := strings.TrimSpace(sku)
	if m := skuImageSuffix.FindStringSubmatch(trimmed); m != nil {
		return m[1]
	}
	return trimmed
}

func normalizeConfigValue(value string) string {
	v := strings.TrimSpace(value)
	if v == "" || strings.EqualFold(v, ConfigNone) {
		return ""
	}
	return v
}
