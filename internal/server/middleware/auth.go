package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Auth checks a Bearer token or X-API-Key header against apiKey. An empty
// apiKey disables the check. Paths in public are always allowed.
func Auth(apiKey string, public ...string) func(http.Handler) http.Handler {
	open := make(map[string]bool, len(public))
	for _, p := range public {
		open[p] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" || open[r.URL.Path] || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token := extractToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "missing authentication token")
				return
			}
			if subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
				writeError(w, http.StatusUnauthorized, "invalid authentication token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractToken reads "Authorization: Bearer <token>", then X-API-Key, then
// the api_key query parameter used by browser WebSocket clients.
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return strings.TrimSpace(key)
	}
	return r.URL.Query().Get("api_key")
}
