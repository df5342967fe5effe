package embcache

import "strings"

// NormalizeKey maps query text to its cache identity: lower-cased and trimmed.
func NormalizeKey(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
