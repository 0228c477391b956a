package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

// apiKeyOK checks the shared CV API key, from x-cv-api-key or a Bearer token.
// Constant-time compare; the key is a shared secret.
func apiKeyOK(r *http.Request, key string) bool {
	if key == "" {
		return false
	}
	supplied := r.Header.Get("x-cv-api-key")
	if supplied == "" {
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			supplied = strings.TrimPrefix(auth, "Bearer ")
		}
	}
	if len(supplied) != len(key) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(key)) == 1
}
