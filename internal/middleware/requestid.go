// Package middleware provides HTTP middleware for CodeAtlas.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/Strob0t/CodeAtlas/internal/logger"
)

const (
	headerRequestID = "X-Request-ID"

	// maxRequestIDLen caps the inbound header so a hostile client
	// cannot inflate every downstream log line.
	maxRequestIDLen = 128
)

// RequestID adopts the caller's X-Request-ID or mints a fresh UUID,
// stores it in the request context, and echoes it on the response so
// clients can quote it when reporting a failure.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}

		ctx := logger.WithRequestID(r.Context(), id)
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
