package tracing

import "strings"

// Caps applied to span attribute values before they leave the process.
const (
	// DefaultMaxLength is the cap for generic attribute values.
	DefaultMaxLength = 200

	// MaxSQLLength caps recorded SQL statements.
	MaxSQLLength = 500

	// MaxRedisLength caps recorded Redis keys.
	MaxRedisLength = 100

	// MaxProfileLength caps recorded résumé profile excerpts.
	MaxProfileLength = 150
)

// piiFragments are attribute-name fragments whose values are masked instead
// of truncated. Résumé data flows through the pipeline, so candidate
// identifiers must never land in a trace verbatim.
var piiFragments = []string{
	"email",
	"phone",
	"password",
	"address",
	"name",
	"secret",
	"token",
	"api_key",
}

// SafeAttributeValue prepares an attribute value for a span: values under
// sensitive names are masked, everything else is truncated to maxLength.
func SafeAttributeValue(name, value string, maxLength int) string {
	lower := strings.ToLower(name)
	for _, fragment := range piiFragments {
		if strings.Contains(lower, fragment) {
			return MaskPII(value)
		}
	}
	return TruncateString(value, maxLength)
}

// MaskPII masks a sensitive value, keeping at most two runes of prefix and
// suffix so traces stay correlatable without exposing the value.
func MaskPII(value string) string {
	runes := []rune(value)
	switch n := len(runes); {
	case n == 0:
		return ""
	case n == 1:
		return "*"
	case n == 2:
		return string(runes[:1]) + "*"
	case n <= 4:
		return string(runes[:1]) + strings.Repeat("*", n-2) + string(runes[n-1:])
	default:
		return string(runes[:2]) + strings.Repeat("*", n-4) + string(runes[n-2:])
	}
}

// TruncateString shortens s to maxLength runes, keeping the head and tail
// joined by an ellipsis. Short inputs pass through unchanged.
func TruncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return string(runes[:maxLength])
	}

	half := (maxLength - 3) / 2
	if half < 1 {
		half = 1
	}
	return string(runes[:half]) + "..." + string(runes[len(runes)-half:])
}

// SafeSQL truncates a SQL statement for span attributes.
func SafeSQL(sql string) string {
	return TruncateString(sql, MaxSQLLength)
}

// SafeRedisKey truncates a Redis key for span attributes.
func SafeRedisKey(key string) string {
	return TruncateString(key, MaxRedisLength)
}
