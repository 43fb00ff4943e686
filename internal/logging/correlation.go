package logging

import (
	"context"
	"net/http"
	"strings"
)

type correlationKey struct{}

// WithCorrelation lifts the configured header off each incoming request into
// its context so downstream log lines can carry the caller's request id. An
// empty header name disables the middleware.
func WithCorrelation(header string, next http.Handler) http.Handler {
	if strings.TrimSpace(header) == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := strings.TrimSpace(r.Header.Get(header)); id != "" {
			r = r.WithContext(context.WithValue(r.Context(), correlationKey{}, id))
		}
		next.ServeHTTP(w, r)
	})
}

// CorrelationID returns the request id attached by WithCorrelation, if any.
func CorrelationID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(correlationKey{}).(string)
	return id, ok
}
