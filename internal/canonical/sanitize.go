package canonical

import (
	"regexp"

	"hotelguard-ingest/internal/sign"
)

// PII scrubbing. Name-like keys are dropped entirely; device/identifier keys
// keep a sha256 digest instead of the clear value. Applied both to the data
// map of canonical events and to raw payloads before persistence.
var (
	nameKeyRe = regexp.MustCompile(`(?i)^(guest[_\s-]?name|first[_\s-]?name|last[_\s-]?name|full[_\s-]?name|name)$`)
	idKeyRe   = regexp.MustCompile(`(?i)\b(device[_\s-]?id|mac([_\s-]?address)?|serial([_\s-]?number)?|imei|udid|uid|fingerprint|ip([_\s-]?address)?|passport|license)\b`)
)

// Sanitize recursively scrubs PII from a decoded JSON value.
func Sanitize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if nameKeyRe.MatchString(k) {
				continue
			}
			if idKeyRe.MatchString(k) {
				if s, ok := val.(string); ok && s != "" {
					out[k] = "sha256:" + sign.Hash(s)
					continue
				}
			}
			out[k] = Sanitize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Sanitize(val)
		}
		return out
	default:
		return v
	}
}
