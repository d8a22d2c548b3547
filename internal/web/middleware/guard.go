package middleware

import (
	"net/http"

	"github.com/kozaktomas/biogate/internal/guard"
)

// Guard redirects page requests according to the route guard. The account
// flag comes from the session resolved by WithSession.
func Guard() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := GetSessionFromContext(r.Context())
			decision := guard.Decide(r.URL.Path, session.HasAccount())
			if decision != guard.Allow {
				http.Redirect(w, r, decision.Location(), http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
