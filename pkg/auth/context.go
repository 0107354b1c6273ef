// Package auth provides the request identity layer. Authentication itself
// happens upstream; requests arrive with a trusted X-User-ID header set by
// the gateway, and this package moves that identity into the request context.
package auth

import (
	"context"
	"fmt"
)

type contextKey string

const userIDKey contextKey = "user_id"

// WithUserID returns a context carrying the user's identity.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserIDFromContext extracts the user ID from the context.
// Returns empty string if the request was not authenticated.
func GetUserIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

// RequireUserIDFromContext extracts the user ID from context and returns an
// error if not found. Use this when user ID is required for the operation.
func RequireUserIDFromContext(ctx context.Context) (string, error) {
	userID := GetUserIDFromContext(ctx)
	if userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}
