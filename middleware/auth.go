package middleware

import (
	"context"
	"net/http"
)

type contextKey string

const userIDKey contextKey = "userID"

// RequireUser resolves the caller identity set by the API gateway in the
// X-User-Id header. Token verification happens upstream; an absent header
// means the request never passed authentication.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-Id")
		if userID == "" {
			http.Error(w, "caller identity required", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID returns the authenticated caller id from the request context, or
// empty when the request skipped RequireUser.
func UserID(r *http.Request) string {
	userID, _ := r.Context().Value(userIDKey).(string)
	return userID
}
