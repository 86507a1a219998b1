package middleware

import (
	"net/http"
	"strings"

	"github.com/reverb-labs/recall/internal/api"
)

// APIKeyAuth checks the bearer token against a static accepted-key set. An
// empty set disables authentication entirely.
func APIKeyAuth(keys map[string]struct{}) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(keys) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}
			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			if _, ok := keys[token]; !ok {
				api.Error(w, http.StatusUnauthorized, "invalid api key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
