// internal/middleware/admin.go
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/soloqueue/inhouse/internal/auth"
)

type contextKey string

// OperatorKey carries the authenticated operator name through the
// request context.
const OperatorKey contextKey = "operator"

// RequireAdmin rejects requests without a valid admin bearer token and
// stores the operator name in the request context.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		operator, err := auth.AuthenticateAdminJWT(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), OperatorKey, operator)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Operator returns the authenticated operator name, empty if the
// request skipped RequireAdmin.
func Operator(r *http.Request) string {
	op, _ := r.Context().Value(OperatorKey).(string)
	return op
}
