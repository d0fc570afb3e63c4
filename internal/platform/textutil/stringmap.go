package textutil

import "strings"

// NormalizeStringMap returns a copy of the map with surrounding whitespace
// stripped from keys and values. Entries whose key trims to empty are
// dropped, and a map with nothing left comes back nil.
func NormalizeStringMap(values map[string]string) map[string]string {
	var normalized map[string]string
	for key, value := range values {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if normalized == nil {
			normalized = make(map[string]string, len(values))
		}
		normalized[key] = strings.TrimSpace(value)
	}
	return normalized
}
