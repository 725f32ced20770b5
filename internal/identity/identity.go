// Package identity carries the accountable caller through request context.
// There is no authentication: every request acts for the configured user.
package identity

import (
	"context"
	"net/http"
)

type contextKey string

const userKey contextKey = "user_id"

func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey, userID)
}

func UserFrom(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userKey).(string)
	return userID, ok && userID != ""
}

// Middleware scopes every request to userID.
func Middleware(userID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID)))
		})
	}
}
