package middleware

import (
	"context"
	"net/http"
	"strings"
)

const (
	// UserIDHeader carries the identity set by the authenticating proxy.
	UserIDHeader = "X-User-ID"
	// AnonymousID is used when no identity is present.
	AnonymousID = "anonymous"

	maxUserIDLen = 128
)

type userIDKey struct{}

// Identity stores the caller's id in the request context.
func Identity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid := strings.TrimSpace(r.Header.Get(UserIDHeader))
			if uid == "" || len(uid) > maxUserIDLen {
				uid = AnonymousID
			}
			ctx := context.WithValue(r.Context(), userIDKey{}, uid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID returns the id stored by Identity.
func UserID(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(userIDKey{}).(string)
	return uid, ok
}
