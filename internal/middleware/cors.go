// Package middleware provides HTTP middleware for the lunch bot API.
package middleware

import (
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Policy describes what cross-origin callers may do. The webhook is called
// server to server; browsers only reach the admin and health routes.
type Policy struct {
	Origins []string
	Headers []string
	// Routes supplies the allowed methods. It is walked on the first request,
	// after every route has been registered.
	Routes chi.Routes
}

// CORS returns middleware that answers preflights and sets CORS headers for
// allowed origins.
func CORS(p Policy) func(http.Handler) http.Handler {
	var (
		once    sync.Once
		methods string
	)
	allowMethods := func() string {
		once.Do(func() { methods = strings.Join(RouteMethods(p.Routes), ", ") })
		return methods
	}
	headers := strings.Join(p.Headers, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				w.Header().Add("Vary", "Origin")
			}

			if match := p.match(origin); match != "" {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", allowMethods())
				if headers != "" {
					h.Set("Access-Control-Allow-Headers", headers)
				}
				// Credentials only for an explicitly listed origin; echoing a
				// wildcard match with credentials enables CSRF.
				if match != "*" {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// match returns the entry that admits origin: the origin itself, "*", or ""
// when it is not allowed. An explicit entry wins over the wildcard.
func (p Policy) match(origin string) string {
	if origin == "" {
		return ""
	}
	if slices.Contains(p.Origins, origin) {
		return origin
	}
	if slices.Contains(p.Origins, "*") {
		return "*"
	}
	return ""
}

// RouteMethods lists the methods registered on routes, sorted, always
// including OPTIONS for preflights.
func RouteMethods(routes chi.Routes) []string {
	seen := map[string]bool{http.MethodOptions: true}
	if routes != nil {
		_ = chi.Walk(routes, func(method, _ string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
			seen[method] = true
			return nil
		})
	}
	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	slices.Sort(out)
	return out
}
