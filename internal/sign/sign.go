// Package sign holds the keyed-hash signing, content hashing and timestamp
// parsing primitives shared by the intake paths.
package sign

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"time"
)

// Sign computes the hex HMAC-SHA256 of message under secret.
func Sign(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares two hex signatures in constant time. Never use a
// short-circuit string compare on signatures.
func Verify(supplied, expected string) bool {
	a := []byte(strings.ToLower(supplied))
	b := []byte(strings.ToLower(expected))
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// Hash returns the hex SHA-256 of message, used for content-based dedupe keys.
func Hash(message string) string {
	sum := sha256.Sum256([]byte(message))
	return hex.EncodeToString(sum[:])
}

// ParseTimestamp accepts ISO-8601 strings and raw epoch values and returns
// epoch milliseconds. Epoch values of 10 digits or fewer are seconds, longer
// values milliseconds. Invalid input returns ok=false, never panics, so
// callers can produce a clean 400.
func ParseTimestamp(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	if isDigits(s) {
		n := int64(0)
		for _, c := range s {
			n = n*10 + int64(c-'0')
		}
		if len(s) <= 10 {
			return n * 1000, true
		}
		return n, true
	}

	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}

func isDigits(s string) bool {
	if len(s) == 0 || len(s) > 18 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
