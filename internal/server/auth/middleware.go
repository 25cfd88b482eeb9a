package auth

import (
	"net/http"
)

// Middleware wraps a handler. Middlewares compose explicitly with Chain.
type Middleware func(http.Handler) http.Handler

// Chain composes mws so that the first one is outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

// RequireAuth rejects requests without a valid bearer token by calling deny,
// and otherwise puts the principal into the request context. A nil deny
// replies with a bare 401.
func RequireAuth(v *Validator, deny http.Handler) Middleware {
	if deny == nil {
		deny = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		})
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := v.ValidateHeader(r.Header.Get("Authorization"))
			if !ok {
				deny.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireRole must run after RequireAuth. Principals lacking role get 403.
func RequireRole(role string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok || !p.HasRole(role) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
