package middleware

import (
	"context"
	"net/http"
)

// CallerHeader names the header carrying the caller's address, the signed
// sender analog of the execution environment the ledger models.
const CallerHeader = "X-Caller-Address"

const callerKey contextKey = "caller_address"

// Caller extracts the caller address into the request context. Routes that
// mutate state reject requests without one.
func Caller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), callerKey, r.Header.Get(CallerHeader))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CallerFromContext returns the caller address, empty when absent.
func CallerFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(callerKey).(string); ok {
		return v
	}
	return ""
}
