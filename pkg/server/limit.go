package server

import (
	"net/http"

	"golang.org/x/sync/semaphore"
)

// Limit bounds the number of requests handled at once. n <= 0 disables the
// limit.
func Limit(n int64) Middleware {
	if n <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	sem := semaphore.NewWeighted(n)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := sem.Acquire(r.Context(), 1); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			defer sem.Release(1)
			next.ServeHTTP(w, r)
		})
	}
}
