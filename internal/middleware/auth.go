package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

const (
	headerCaller = "X-Caller"

	// MaxCallerLen bounds the caller address so it cannot blow up derived
	// keys or journal entries.
	MaxCallerLen = 128
)

type callerKey struct{}

// CallerFromContext returns the authenticated caller address, or "" when the
// request carried none.
func CallerFromContext(ctx context.Context) string {
	caller, _ := ctx.Value(callerKey{}).(string)
	return caller
}

// Caller extracts the caller address from the X-Caller header. Signature
// verification happens upstream in the deployment environment; the engine
// trusts the header the same way it would trust a transaction signer.
// Requests without a caller still pass: read endpoints don't need one, and
// mutating handlers reject the empty string themselves.
func Caller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := strings.TrimSpace(r.Header.Get(headerCaller))
		if len(caller) > MaxCallerLen {
			writeAuthError(w, http.StatusBadRequest, "caller address too long")
			return
		}
		ctx := context.WithValue(r.Context(), callerKey{}, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireKey gates a route group behind a static bearer key (admin or
// arbitrator). An empty configured key disables the route group entirely
// rather than leaving it open.
func RequireKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				writeAuthError(w, http.StatusForbidden, "role key not configured")
				return
			}
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(token), []byte(key)) != 1 {
				writeAuthError(w, http.StatusUnauthorized, "invalid role key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
