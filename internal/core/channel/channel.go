package channel

import "strings"

// Virtual states injected by the journey normalizer. They are not marketing
// channels and must never receive attributed revenue.
const (
	Start      = "(start)"
	Conversion = "(conversion)"
	Null       = "(null)"
)

// IsVirtual reports whether name is one of the synthetic boundary states.
func IsVirtual(name string) bool {
	return name == Start || name == Conversion || name == Null
}

// Canonical normalizes a raw channel name to lowercase underscore form:
// "Google Ads" and "google-ads" both become "google_ads".
// Returns "" for names that are empty after trimming.
func Canonical(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return strings.Trim(s, "_")
}
