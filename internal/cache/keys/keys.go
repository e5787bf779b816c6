package keys

import "strings"

const (
	GeocodePrefix  = "geocode:"
	DistancePrefix = "distance:"
)

// CleanPostcode trims and strips spaces but keeps the caller's case; it is the
// form sent upstream.
func CleanPostcode(postcode string) string {
	return strings.ReplaceAll(strings.TrimSpace(postcode), " ", "")
}

// NormalizePostcode is the case-insensitive form used in cache keys.
func NormalizePostcode(postcode string) string {
	return strings.ToUpper(CleanPostcode(postcode))
}

func Geocode(postcode string) string {
	return GeocodePrefix + NormalizePostcode(postcode)
}

func Distance(roomID string) string {
	return DistancePrefix + strings.TrimSpace(roomID)
}
