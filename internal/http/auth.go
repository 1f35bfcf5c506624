package http

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

// The upstream identity-aware proxy authenticates users and forwards the
// verified address in this header; the app only checks the allow list.
const authEmailHeader = "X-Auth-Email"

type contextKey int

const emailKey contextKey = iota

// EmailChecker decides whether an authenticated email may use the API.
type EmailChecker interface {
	EmailAllowed(email string) bool
}

// requireUser rejects requests before any handler runs: missing identity
// is 401, an address off the allow list is 403.
func requireUser(checker EmailChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email := strings.TrimSpace(r.Header.Get(authEmailHeader))
			if email == "" {
				writeError(w, http.StatusUnauthorized, "unauthenticated", "missing identity header")
				return
			}
			if !checker.EmailAllowed(email) {
				writeError(w, http.StatusForbidden, "forbidden", "email not allowed")
				return
			}
			ctx := context.WithValue(r.Context(), emailKey, email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// userEmail returns the authenticated email, or "" outside the auth chain.
func userEmail(ctx context.Context) string {
	email, _ := ctx.Value(emailKey).(string)
	return email
}

// requireCronSecret guards the scheduler trigger with a shared secret in
// the Authorization header. An unset secret disables the endpoint.
func requireCronSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				writeError(w, http.StatusUnauthorized, "unauthenticated", "cron trigger disabled")
				return
			}
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthenticated", "invalid cron secret")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
