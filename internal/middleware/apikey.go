package middleware

import (
	"crypto/subtle"
	"net/http"
)

const headerAPIKey = "X-API-Key"

// APIKey returns middleware requiring the X-API-Key header to equal key.
// An empty key disables the check.
func APIKey(key string) func(http.Handler) http.Handler {
	return APIKeyFunc(func() string { return key })
}

// APIKeyFunc is APIKey with the expected key read on every request, so a
// rotated key takes effect without a restart.
func APIKeyFunc(key func() string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			want := key()
			if want == "" {
				next.ServeHTTP(w, r)
				return
			}
			got := r.Header.Get(headerAPIKey)
			if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"success":false,"message":"invalid or missing API key"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
