package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"draftroom/internal/identity"
	"draftroom/pkg/logger"
)

type contextKey string

const UserIDKey contextKey = "userID"

// Auth wraps a handler with bearer-token verification through the identity
// gate. Tokens come from the Authorization header, or from the query string
// because the browser WebSocket API cannot set custom headers.
func Auth(gate *identity.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := r.URL.Query().Get("token")
			if tokenString == "" {
				authHeader := r.Header.Get("Authorization")
				tokenString = strings.TrimPrefix(authHeader, "Bearer ")
			}

			who, err := gate.Authenticate(tokenString)
			if err != nil {
				status := http.StatusForbidden
				if errors.Is(err, identity.ErrUnauthorized) {
					status = http.StatusUnauthorized
				}
				logger.Sugar.Warnf("Rejected request to %s: %v", r.URL.Path, err)
				http.Error(w, http.StatusText(status), status)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, who.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
