package auth

import (
	"net/http"

	"go.uber.org/zap"
)

// UserIDHeader is set by the gateway after it authenticates the request.
// This service never sees credentials, only the resolved identity.
const UserIDHeader = "X-User-ID"

// Middleware injects the gateway-resolved user identity into request contexts.
type Middleware struct {
	logger *zap.Logger
}

// NewMiddleware creates a new auth middleware.
func NewMiddleware(logger *zap.Logger) *Middleware {
	return &Middleware{logger: logger.Named("auth")}
}

// RequireUser rejects requests without an identity header and stores the
// user ID in the context for everything downstream.
func (m *Middleware) RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(UserIDHeader)
		if userID == "" {
			m.logger.Warn("Request missing user identity",
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method))
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		next(w, r.WithContext(WithUserID(r.Context(), userID)))
	}
}
