package middleware

import (
	"context"
	"net/http"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

const maxUsernameLen = 64

// ValidUsername rejects names that cannot be used as a channel key.
func ValidUsername(name string) bool {
	if name == "" || len(name) > maxUsernameLen {
		return false
	}
	for _, r := range name {
		if r == ':' || unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// Principal resolves the connection identity from the username query
// parameter or the X-Username header. Requests without one get a generated
// anon-<uuid> principal.
func Principal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSpace(r.URL.Query().Get("username"))
		if name == "" {
			name = strings.TrimSpace(r.Header.Get("X-Username"))
		}
		ctx := r.Context()
		if name == "" {
			name = "anon-" + uuid.NewString()
			ctx = context.WithValue(ctx, AnonymousKey, true)
		} else if !ValidUsername(name) {
			http.Error(w, `{"error":"invalid username"}`, http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUsername(ctx, name)))
	})
}
