package handler

import (
	"context"
	"go-auth-api/common"
	"go-auth-api/logger"
	"go-auth-api/model"
	"go-auth-api/service"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

type contextKey string

const userContextKey contextKey = "user"

// UserFromContext returns the account attached by AuthMiddleware.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	return user, ok
}

// AuthMiddleware gates protected routes. It extracts the bearer access token,
// verifies signature and expiry, loads the account it names (without password
// hash or refresh token) and attaches it to the request context. Each failure
// mode is reported with its own kind.
func AuthMiddleware(authService *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				common.ErrNoToken().Send(w, r)
				return
			}

			headerParts := strings.Split(authHeader, " ")
			if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" {
				common.ErrMalformedHeader().Send(w, r)
				return
			}

			user, appErr := authService.Authenticate(headerParts[1])
			if appErr != nil {
				appErr.Send(w, r)
				return
			}

			// Audit trail for security monitoring.
			logger.Log.WithFields(logrus.Fields{
				"user_id": user.ID,
				"email":   user.Email,
				"ip":      common.ClientIP(r),
				"url":     r.URL.Path,
			}).Info("User authenticated")

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
