// Package cors answers cross-origin requests from an allow-list of browser
// origins with credentials enabled.
package cors

import (
	"net/http"
	"strings"
)

var (
	allowedMethods = strings.Join([]string{
		http.MethodGet, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions,
	}, ", ")
	allowedHeaders = "Content-Type, X-CSRFToken, X-Request-ID"
	exposedHeaders = "X-Request-ID, Retry-After"
)

// Middleware holds the set of allowed origins.
type Middleware struct {
	origins map[string]struct{}
}

// New builds a middleware for the given origins. Matching is exact.
func New(origins []string) *Middleware {
	m := &Middleware{origins: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		m.origins[strings.TrimRight(o, "/")] = struct{}{}
	}
	return m
}

// Allowed reports whether origin may make credentialed requests.
func (m *Middleware) Allowed(origin string) bool {
	_, ok := m.origins[origin]
	return ok
}

// Handler decorates responses for allowed origins and answers preflight
// requests itself.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Add("Vary", "Origin")
		allowed := m.Allowed(origin)
		if allowed {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Expose-Headers", exposedHeaders)
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			if allowed {
				h.Set("Access-Control-Allow-Methods", allowedMethods)
				h.Set("Access-Control-Allow-Headers", allowedHeaders)
				h.Set("Access-Control-Max-Age", "600")
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
