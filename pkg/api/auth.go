package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// SessionChecker reports whether the request carries a valid operator
// session. Implementations typically inspect a session cookie.
type SessionChecker func(r *http.Request) bool

// authorize accepts a request that presents the shared secret as a
// bearer token or passes the session check. Secret comparison is
// constant time.
func (rt *router) authorize(r *http.Request) bool {
	if rt.sharedSecret != "" {
		header := r.Header.Get("Authorization")
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			if subtle.ConstantTimeCompare([]byte(token), []byte(rt.sharedSecret)) == 1 {
				return true
			}
		}
	}
	if rt.sessionCheck != nil && rt.sessionCheck(r) {
		return true
	}
	return false
}

func (rt *router) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rt.authorize(r) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
