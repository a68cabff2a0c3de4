// Package middleware provides HTTP middleware for the settlement engine API:
// request IDs, caller identity, and bearer-key gates for privileged roles.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/Dexploarer/ghostspeak-go/internal/logger"
)

const headerRequestID = "X-Request-ID"

// RequestID tags every request with an ID for log correlation. A client-sent
// X-Request-ID is kept, so a gateway in front of the engine can trace a call
// end to end; otherwise a fresh UUID is issued. The ID is echoed on the
// response header either way.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}

		ctx := logger.WithRequestID(r.Context(), id)
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
