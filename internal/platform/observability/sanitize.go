package observability

import (
	"strings"
	"unicode"
)

// Length caps for logged request metadata. Oversized or control-laden
// header input is clipped rather than rejected so it cannot break a log
// line or blow up a span attribute.
const (
	maxRouteLen  = 180
	maxMethodLen = 10
	maxUserIDLen = 64
)

// SanitizeRoute prepares a route pattern for logging and span attributes.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return clipLogValue(route, maxRouteLen)
}

// SanitizeMethod prepares an HTTP method for logging.
func SanitizeMethod(method string) string {
	return clipLogValue(method, maxMethodLen)
}

// SanitizeUserID caps user identifiers in logs.
func SanitizeUserID(uid string) string {
	return clipLogValue(uid, maxUserIDLen)
}

// clipLogValue drops control characters (common whitespace excepted) and
// truncates the result to limit runes.
func clipLogValue(value string, limit int) string {
	var b strings.Builder
	b.Grow(len(value))
	kept := 0
	for _, r := range value {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		if kept == limit {
			break
		}
		b.WriteRune(r)
		kept++
	}
	return b.String()
}
