package middleware

import (
	"net/http"
	"time"

	"github.com/parley/internal/logger"
)

// RequestLog times every request through logger.LogDuration, tagged with the principal.
func RequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		name := "http " + r.Method + " " + r.URL.Path
		if u := GetUsername(r.Context()); u != "" {
			name += " user=" + u
		}
		logger.LogDuration(name, start)
	})
}
